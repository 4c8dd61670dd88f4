package documents

import (
	"context"
	"fmt"

	"github.com/Epistemic-Technology/zotero/zotero"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/models"
)

// GetFromZotero downloads the file of a Zotero attachment. The attachment's
// file name, or its title, names the document.
func (f *Fetcher) GetFromZotero(ctx context.Context, zoteroID string) (models.DocumentData, error) {
	if f.ZoteroAPIKey == "" || f.ZoteroLibraryID == "" {
		return models.DocumentData{}, apperr.Configuration("ZOTERO_API_KEY and ZOTERO_LIBRARY_ID must be set to fetch Zotero attachments")
	}

	client := zotero.NewClient(f.ZoteroLibraryID, zotero.LibraryTypeUser, zotero.WithAPIKey(f.ZoteroAPIKey))

	item, err := client.Item(ctx, zoteroID, nil)
	if err != nil {
		return models.DocumentData{}, apperr.New(apperr.KindUpstream, zoteroID, "failed to fetch Zotero item", err)
	}
	if item.Data.ItemType != "attachment" {
		return models.DocumentData{}, apperr.Validation(
			fmt.Sprintf("Zotero item %s is a %s, not an attachment", zoteroID, item.Data.ItemType), nil)
	}

	data, err := client.File(ctx, zoteroID)
	if err != nil {
		return models.DocumentData{}, apperr.New(apperr.KindUpstream, zoteroID, "failed to download Zotero attachment", err)
	}
	if data == nil {
		return models.DocumentData{}, apperr.NotFound(zoteroID, "Zotero attachment has no file")
	}

	return models.DocumentData{Data: data, Name: attachmentName(zoteroID, item.Data.Filename, item.Data.Title)}, nil
}

func attachmentName(zoteroID string, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return SafeName(c)
		}
	}
	return SafeName(zoteroID)
}
