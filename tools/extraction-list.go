package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
	"github.com/Epistemic-Technology/rental-check/models"
)

const defaultListLimit = 20

type ExtractionListQuery struct {
	DocumentID string `json:"document_id,omitempty" jsonschema:"only list runs for this document"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of runs, newest first (default 20)"`
}

// RunSummary describes one stored run without its answers.
type RunSummary struct {
	RunID        string            `json:"run_id"`
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	Source       models.SourceInfo `json:"source"`
	Model        string            `json:"model"`
	Truncated    bool              `json:"truncated"`
	CreatedAt    string            `json:"created_at"`
	ResourcePath string            `json:"resource_path"`
}

type ExtractionListResponse struct {
	Runs []RunSummary `json:"runs"`
}

func ExtractionListTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ExtractionListQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "extraction-list",
		Description: "List previous contract extractions, newest first. Each run's answers can be read from its resource path.",
		InputSchema: inputschema,
	}
}

func ExtractionListToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ExtractionListQuery, store storage.Store, log logger.Logger) (*mcp.CallToolResult, *ExtractionListResponse, error) {
	log.Info("extraction-list tool called")

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	runs, err := store.ListRuns(ctx, query.DocumentID, limit)
	if err != nil {
		log.Error("extraction-list tool failed: %v", err)
		return nil, nil, err
	}

	response := &ExtractionListResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		response.Runs = append(response.Runs, RunSummary{
			RunID:        r.RunID,
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			Source:       r.Source,
			Model:        r.Model,
			Truncated:    r.Truncated,
			CreatedAt:    r.CreatedAt,
			ResourcePath: storage.CalculateResourcePaths(r.RunID)[0],
		})
	}

	return nil, response, nil
}
