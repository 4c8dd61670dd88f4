package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/operations"
	"github.com/Epistemic-Technology/rental-check/internal/render"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
	"github.com/Epistemic-Technology/rental-check/models"
)

type ContractExtractQuery struct {
	Path     string `json:"path,omitempty" jsonschema:"path of a local PDF readable by the server"`
	URL      string `json:"url,omitempty" jsonschema:"http or https URL of a PDF"`
	ZoteroID string `json:"zotero_id,omitempty" jsonschema:"key of a Zotero attachment holding the PDF"`
}

type ContractExtractResponse struct {
	RunID         string         `json:"run_id,omitempty"`
	DocumentName  string         `json:"document_name"`
	Answers       models.Answers `json:"answers"`
	Truncated     bool           `json:"truncated"`
	OriginalChars int            `json:"original_chars"`
	Pages         int            `json:"pages"`
	ResourcePaths []string       `json:"resource_paths,omitempty"`
}

func ContractExtractTool() *mcp.Tool {
	inputschema, err := jsonschema.For[ContractExtractQuery](nil)
	if err != nil {
		panic(err)
	}
	return &mcp.Tool{
		Name:        "contract-extract",
		Description: "Extract renters, letting agency, property address, agreement date, deposit and rent from a rental contract PDF. Give exactly one of path, url or zotero_id. Every extracted value comes with a verbatim citation from the contract; facts not stated in the contract are null. Only the first 30,000 characters of the contract are read, and truncated reports whether anything was cut.",
		InputSchema: inputschema,
	}
}

func ContractExtractToolHandler(ctx context.Context, req *mcp.CallToolRequest, query ContractExtractQuery, deps operations.ExtractDeps) (*mcp.CallToolResult, *ContractExtractResponse, error) {
	log := deps.Log
	if log == nil {
		log = logger.NewNoOpLogger()
		deps.Log = log
	}
	log.Info("contract-extract tool called")

	source := models.SourceInfo{Path: query.Path, URL: query.URL, ZoteroID: query.ZoteroID}
	rec, err := operations.ExtractContract(ctx, source, deps)
	if err != nil {
		log.Error("contract-extract tool failed: %v", err)
		return nil, nil, err
	}

	answers := rec.Answers
	if answers.Renters.Names == nil {
		answers.Renters.Names = []models.Name{}
	}

	responseData := &ContractExtractResponse{
		RunID:         rec.RunID,
		DocumentName:  rec.DocumentName,
		Answers:       answers,
		Truncated:     rec.Truncated,
		OriginalChars: rec.OriginalChars,
		Pages:         rec.Pages,
	}
	if rec.RunID != "" {
		responseData.ResourcePaths = storage.CalculateResourcePaths(rec.RunID)
	}

	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: render.String(answers)},
		},
	}
	return result, responseData, nil
}
