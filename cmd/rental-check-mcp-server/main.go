package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/server"
)

func main() {
	// Initialize logger with default configuration
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		// Fall back to stderr if logger initialization fails
		panic(err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	log.Info("Starting rental-check MCP server")

	srv, store, err := server.CreateServer(cfg, log)
	if err != nil {
		log.Fatal("Failed to create server: %v", err)
	}
	defer store.Close()

	if err := srv.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Error("Server failed: %v", err)
	}
}
