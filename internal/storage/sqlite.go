package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/models"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, log: log}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// DefaultDBPath is rental-check.db inside dir.
func DefaultDBPath(dir string) string {
	return filepath.Join(dir, "rental-check.db")
}

// initSchema creates the database tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT,
		path TEXT,
		url TEXT,
		zotero_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		model TEXT,
		original_chars INTEGER,
		truncated INTEGER,
		pages INTEGER,
		answers TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document_id ON runs(document_id);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// StoreRun saves an extraction run and the document it belongs to.
func (s *SQLiteStore) StoreRun(ctx context.Context, rec *models.ExtractionRecord) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.DocumentID == "" {
		rec.DocumentID = generateDocumentID(rec.DocumentName, rec.Source)
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	answersJSON, err := json.Marshal(rec.Answers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal answers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, name, path, url, zotero_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, rec.DocumentID, rec.DocumentName, rec.Source.Path, rec.Source.URL, rec.Source.ZoteroID, rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, document_id, model, original_chars, truncated, pages, answers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.DocumentID, rec.Model, rec.OriginalChars, rec.Truncated, rec.Pages, string(answersJSON), rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Stored run %s for document %s", rec.RunID, rec.DocumentID)
	return rec.RunID, nil
}

const selectRuns = `
	SELECT r.id, r.document_id, d.name, d.path, d.url, d.zotero_id,
		r.model, r.original_chars, r.truncated, r.pages, r.answers, r.created_at
	FROM runs r
	JOIN documents d ON d.id = r.document_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.ExtractionRecord, error) {
	var rec models.ExtractionRecord
	var name, path, url, zoteroID, model sql.NullString
	var answersJSON string
	if err := row.Scan(&rec.RunID, &rec.DocumentID, &name, &path, &url, &zoteroID,
		&model, &rec.OriginalChars, &rec.Truncated, &rec.Pages, &answersJSON, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.DocumentName = name.String
	rec.Source = models.SourceInfo{Path: path.String, URL: url.String, ZoteroID: zoteroID.String}
	rec.Model = model.String

	if err := json.Unmarshal([]byte(answersJSON), &rec.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	return &rec, nil
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE r.id = ?`, runID)
	rec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(runID, "run not found")
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return rec, nil
}

// ListRuns returns runs newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, documentID string, limit int) ([]models.ExtractionRecord, error) {
	query := selectRuns
	var args []any
	if documentID != "" {
		query += ` WHERE r.document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY r.created_at DESC, r.rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.ExtractionRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun removes a run
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperr.NotFound(runID, "run not found")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateDocumentID derives a stable document ID from where the document
// came from
func generateDocumentID(name string, sourceInfo models.SourceInfo) string {
	if sourceInfo.ZoteroID != "" {
		return "zotero_" + sourceInfo.ZoteroID
	}
	if sourceInfo.URL != "" {
		return fmt.Sprintf("url_%x", hashString(sourceInfo.URL))
	}
	if sourceInfo.Path != "" {
		if abs, err := filepath.Abs(sourceInfo.Path); err == nil {
			return fmt.Sprintf("path_%x", hashString(abs))
		}
		return fmt.Sprintf("path_%x", hashString(sourceInfo.Path))
	}
	return fmt.Sprintf("name_%x", hashString(name))
}

// hashString creates a simple hash of a string
func hashString(s string) uint32 {
	var hash uint32
	for i := 0; i < len(s); i++ {
		hash = hash*31 + uint32(s[i])
	}
	return hash
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
