package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/documents"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/operations"
	"github.com/Epistemic-Technology/rental-check/internal/pipeline"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
	"github.com/Epistemic-Technology/rental-check/resources"
	"github.com/Epistemic-Technology/rental-check/tools"
)

const (
	Name    = "rental-check"
	Version = "v0.1.0"
)

// CreateServer builds the pipeline and the run history described by cfg and
// returns a server using them. The caller closes the returned store.
func CreateServer(cfg config.Config, log logger.Logger) (*mcp.Server, storage.Store, error) {
	p, err := pipeline.New(cfg, pipeline.Options{Logger: log})
	if err != nil {
		return nil, nil, err
	}

	store, err := initializeStorage(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	deps := operations.ExtractDeps{
		Processor: p,
		Fetcher: &documents.Fetcher{
			ZoteroAPIKey:    cfg.ZoteroAPIKey,
			ZoteroLibraryID: cfg.ZoteroLibraryID,
		},
		Store: store,
		Model: cfg.Model,
		Log:   log,
	}
	return NewServer(deps, log), store, nil
}

// NewServer registers the tools and resource templates around deps.
// deps.Store must be set. Tool calls may run concurrently, so runs on
// documents sharing a file stem are serialized.
func NewServer(deps operations.ExtractDeps, log logger.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)

	deps.Log = log
	if deps.Locks == nil {
		deps.Locks = operations.NewStemLocks()
	}
	store := deps.Store
	runResourceHandler := resources.NewRunResourceHandler(store)

	mcp.AddTool(server, tools.ContractExtractTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ContractExtractQuery) (*mcp.CallToolResult, *tools.ContractExtractResponse, error) {
		return tools.ContractExtractToolHandler(ctx, req, query, deps)
	})

	mcp.AddTool(server, tools.ExtractionListTool(), func(ctx context.Context, req *mcp.CallToolRequest, query tools.ExtractionListQuery) (*mcp.CallToolResult, *tools.ExtractionListResponse, error) {
		return tools.ExtractionListToolHandler(ctx, req, query, store, log)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "rental://{runId}",
		Name:        "extraction-run",
		Description: "A stored extraction run with its source, truncation flag and answers",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return runResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "rental://{runId}/answers",
		Name:        "extraction-answers",
		Description: "Extracted answers of a run, each with its citation",
		MIMEType:    "application/json",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return runResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "rental://{runId}/summary",
		Name:        "extraction-summary",
		Description: "Answers of a run as readable text",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return runResourceHandler.ReadResource(ctx, req.Params.URI)
	})

	return server
}

// initializeStorage creates and initializes the storage backend
func initializeStorage(cfg config.Config, log logger.Logger) (storage.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		// Default to ~/.rental-check/rental-check.db
		dir, err := logger.DefaultDir()
		if err != nil {
			return nil, err
		}
		dbPath = storage.DefaultDBPath(dir)
	}

	log.Info("Initializing SQLite database at: %s", dbPath)

	store, err := storage.NewSQLiteStore(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}

	return store, nil
}
