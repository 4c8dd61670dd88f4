package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/render"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
)

// RunResourceHandler serves stored extraction runs as rental:// resources
type RunResourceHandler struct {
	store storage.Store
}

// NewRunResourceHandler creates a new run resource handler
func NewRunResourceHandler(store storage.Store) *RunResourceHandler {
	return &RunResourceHandler{store: store}
}

// ReadResource reads a specific resource by URI
func (h *RunResourceHandler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	// rental://run_id[/answers|/summary]
	if !strings.HasPrefix(uri, storage.ResourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme, expected %s", storage.ResourceScheme)
	}

	path := strings.TrimPrefix(uri, storage.ResourceScheme)
	runID, resourceType, _ := strings.Cut(path, "/")
	if runID == "" {
		return nil, fmt.Errorf("invalid URI, missing run ID")
	}

	rec, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return nil, err
	}

	mimeType := "application/json"
	var content string
	switch resourceType {
	case "":
		content, err = marshal(rec)
	case "answers":
		content, err = marshal(rec.Answers)
	case "summary":
		mimeType = "text/plain"
		content = render.String(rec.Answers)
	default:
		return nil, fmt.Errorf("unknown resource type: %s", resourceType)
	}
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: mimeType,
				Text:     content,
			},
		},
	}, nil
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal resource: %w", err)
	}
	return string(data), nil
}
