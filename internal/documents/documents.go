// Package documents fetches contract bytes from a local path, a URL or a
// Zotero attachment.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/models"
)

// Document types reported by DetectDocumentType.
const (
	TypePDF     = "pdf"
	TypeHTML    = "html"
	TypeZip     = "zip"
	TypeText    = "txt"
	TypeUnknown = "unknown"
)

// DefaultMaxBytes caps downloads.
const DefaultMaxBytes = 50 << 20

// Fetcher retrieves documents. The zero value reads local files and URLs
// with http.DefaultClient; Zotero needs both credentials.
type Fetcher struct {
	ZoteroAPIKey    string
	ZoteroLibraryID string
	HTTPClient      *http.Client
	MaxBytes        int64
}

// DetectDocumentType determines the type of document from the raw data
// by checking magic bytes/headers
func DetectDocumentType(data []byte) string {
	if len(data) == 0 {
		return TypeUnknown
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return TypePDF
	}

	trimmed := bytes.TrimSpace(data)
	lower := bytes.ToLower(trimmed[:min(len(trimmed), 16)])
	if bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html")) {
		return TypeHTML
	}

	if len(data) >= 4 && data[0] == 0x50 && data[1] == 0x4B &&
		(data[2] == 0x03 || data[2] == 0x05 || data[2] == 0x07) {
		return TypeZip
	}

	if isLikelyText(data) {
		return TypeText
	}
	return TypeUnknown
}

// isLikelyText checks if the data is likely plain text (no binary content)
func isLikelyText(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sample := data[:min(len(data), 512)]
	if bytes.Contains(sample, []byte{0}) {
		return false
	}

	printable := 0
	for _, b := range sample {
		if (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t' || b == '\f' {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) > 0.9
}

// GetData retrieves the document described by sourceInfo. Exactly one of
// Path, URL and ZoteroID must be set.
func (f *Fetcher) GetData(ctx context.Context, sourceInfo models.SourceInfo) (models.DocumentData, error) {
	set := 0
	for _, s := range []string{sourceInfo.Path, sourceInfo.URL, sourceInfo.ZoteroID} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return models.DocumentData{}, apperr.Validation("exactly one of path, url or zotero_id is required", nil)
	}

	var doc models.DocumentData
	var err error
	switch {
	case sourceInfo.Path != "":
		doc, err = f.GetFromPath(sourceInfo.Path)
	case sourceInfo.URL != "":
		doc, err = f.GetFromURL(ctx, sourceInfo.URL)
	default:
		doc, err = f.GetFromZotero(ctx, sourceInfo.ZoteroID)
	}
	if err != nil {
		return models.DocumentData{}, err
	}

	doc.Type = DetectDocumentType(doc.Data)
	return doc, nil
}

// GetFromPath reads a local file.
func (f *Fetcher) GetFromPath(p string) (models.DocumentData, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.DocumentData{}, apperr.NotFound(p, "document not found")
		}
		return models.DocumentData{}, apperr.Extraction(p, err)
	}
	return models.DocumentData{Data: data, Name: SafeName(filepath.Base(p))}, nil
}

// GetFromURL fetches document data from a URL
func (f *Fetcher) GetFromURL(ctx context.Context, rawURL string) (models.DocumentData, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return models.DocumentData{}, apperr.Validation(fmt.Sprintf("invalid document URL %q", rawURL), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.DocumentData{}, apperr.Validation(fmt.Sprintf("invalid document URL %q", rawURL), err)
	}
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.DocumentData{}, apperr.New(apperr.KindUpstream, rawURL, "failed to fetch document", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.DocumentData{}, apperr.NotFound(rawURL, "document not found")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.DocumentData{}, apperr.New(apperr.KindUpstream, rawURL, "failed to fetch document", errors.New(resp.Status))
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return models.DocumentData{}, apperr.New(apperr.KindUpstream, rawURL, "failed to read document", err)
	}
	if int64(len(data)) > limit {
		return models.DocumentData{}, apperr.Validation(fmt.Sprintf("document at %s exceeds %d bytes", rawURL, limit), nil)
	}

	return models.DocumentData{Data: data, Name: SafeName(path.Base(u.Path))}, nil
}

// RequirePDF rejects documents that are not PDFs.
func RequirePDF(doc models.DocumentData) error {
	if doc.Type != TypePDF {
		return apperr.Extraction(doc.Name, fmt.Errorf("unsupported document type %q, expected a PDF", doc.Type))
	}
	return nil
}

// SafeName turns name into a file name usable as a processed-text stem.
// Empty or unusable names become "document.pdf".
func SafeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r < 32:
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(name))

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" || strings.Trim(stem, ".") == "" {
		return "document.pdf"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
