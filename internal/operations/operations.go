package operations

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Epistemic-Technology/rental-check/internal/documents"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/pipeline"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
	"github.com/Epistemic-Technology/rental-check/models"
)

// Processor is the part of the pipeline ExtractContract drives.
type Processor interface {
	Process(ctx context.Context, documentPath string) (pipeline.Result, error)
	ProcessBytes(ctx context.Context, name string, data []byte) (pipeline.Result, error)
}

// ExtractDeps bundles what ExtractContract needs. Store may be nil, in which
// case the run is not recorded. Locks must be set when ExtractContract is
// called concurrently.
type ExtractDeps struct {
	Processor Processor
	Fetcher   *documents.Fetcher
	Store     storage.Store
	Locks     *StemLocks
	Model     string
	Log       logger.Logger
}

// ExtractContract fetches the contract described by source, runs the
// extraction pipeline on it and records the run.
//
// Local paths are handed to the pipeline as they are. URLs and Zotero
// attachments are downloaded first and must be PDFs.
func ExtractContract(ctx context.Context, source models.SourceInfo, deps ExtractDeps) (*models.ExtractionRecord, error) {
	log := deps.Log
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	var (
		result pipeline.Result
		name   string
		err    error
	)
	if source.Path != "" && source.URL == "" && source.ZoteroID == "" {
		name = filepath.Base(source.Path)
		unlock := deps.lock(name)
		result, err = deps.Processor.Process(ctx, source.Path)
		unlock()
	} else {
		fetcher := deps.Fetcher
		if fetcher == nil {
			fetcher = &documents.Fetcher{}
		}
		var doc models.DocumentData
		doc, err = fetcher.GetData(ctx, source)
		if err != nil {
			return nil, err
		}
		if err := documents.RequirePDF(doc); err != nil {
			return nil, err
		}
		name = doc.Name
		log.Debug("Fetched %s (%d bytes)", name, len(doc.Data))
		unlock := deps.lock(name)
		result, err = deps.Processor.ProcessBytes(ctx, name, doc.Data)
		unlock()
	}
	if err != nil {
		return nil, err
	}

	rec := NewRecord(name, source, deps.Model, result)

	if deps.Store != nil {
		if _, err := deps.Store.StoreRun(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		log.Info("Recorded run %s for %s", rec.RunID, name)
	}

	return rec, nil
}

func (d ExtractDeps) lock(name string) func() {
	if d.Locks == nil {
		return func() {}
	}
	return d.Locks.Lock(name)
}

// NewRecord describes a finished pipeline run. Run and document IDs are
// assigned when the record is stored.
func NewRecord(name string, source models.SourceInfo, model string, result pipeline.Result) *models.ExtractionRecord {
	return &models.ExtractionRecord{
		DocumentName:  name,
		Source:        source,
		Model:         model,
		OriginalChars: result.OriginalChars,
		Truncated:     result.Truncated,
		Pages:         result.Pages,
		Answers:       result.Answers,
	}
}
