package storage

import (
	"context"

	"github.com/Epistemic-Technology/rental-check/models"
)

// Store keeps a history of extraction runs. It is a log: nothing reads it
// to avoid a model call.
type Store interface {
	// StoreRun saves rec, filling in RunID, DocumentID and CreatedAt when
	// empty, and returns the run ID.
	StoreRun(ctx context.Context, rec *models.ExtractionRecord) (string, error)

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*models.ExtractionRecord, error)

	// ListRuns returns runs newest first, optionally limited to one
	// document. A non-positive limit returns every run.
	ListRuns(ctx context.Context, documentID string, limit int) ([]models.ExtractionRecord, error)

	// DeleteRun removes a run.
	DeleteRun(ctx context.Context, runID string) error

	// Close closes the database connection
	Close() error
}
