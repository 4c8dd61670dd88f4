// Package pdf turns contract PDFs into page-delimited plain text and
// persists it as the intermediate artifact read by the pipeline.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
)

// PageDelimiter terminates the text of every page.
const PageDelimiter = "\f"

type source interface {
	io.ReadSeeker
	io.ReaderAt
}

// Extractor writes <ProcessedDir>/<stem>.txt for each document it extracts.
type Extractor struct {
	ProcessedDir string
	log          logger.Logger
}

func NewExtractor(processedDir string, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Extractor{ProcessedDir: processedDir, log: log}
}

// ProcessedPath is where the text of the named document is stored.
func (e *Extractor) ProcessedPath(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(e.ProcessedDir, stem+".txt")
}

// Extract converts the PDF at pdfPath and returns the path of the written
// text file.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) (out string, err error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.NotFound(pdfPath, "document not found")
		}
		return "", apperr.Extraction(pdfPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			if err == nil {
				err = apperr.Extraction(pdfPath, fmt.Errorf("close document: %w", closeErr))
			} else {
				e.log.Warn("Failed to close %s: %v", pdfPath, closeErr)
			}
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return "", apperr.Extraction(pdfPath, err)
	}

	return e.extract(ctx, f, info.Size(), pdfPath)
}

// ExtractBytes converts an in-memory PDF; name determines the output file.
func (e *Extractor) ExtractBytes(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.Extraction(name, errors.New("empty document"))
	}
	return e.extract(ctx, bytes.NewReader(data), int64(len(data)), name)
}

func (e *Extractor) extract(ctx context.Context, src source, size int64, name string) (string, error) {
	text, pages, err := Text(ctx, src, size)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", apperr.Extraction(name, err)
	}

	out := e.ProcessedPath(name)
	if err := writeText(out, text); err != nil {
		return "", apperr.Extraction(out, err)
	}
	e.log.Info("Extracted %d pages (%d bytes) from %s to %s", pages, len(text), name, out)
	return out, nil
}

// Text returns the plain text of every page, each followed by PageDelimiter,
// and the page count. Pages without text still get their delimiter.
func Text(ctx context.Context, src source, size int64) (string, int, error) {
	conf := model.NewDefaultConfiguration()
	pdfContext, err := api.ReadValidateAndOptimize(src, conf)
	if err != nil {
		return "", 0, fmt.Errorf("invalid PDF: %w", err)
	}
	pageCount := pdfContext.PageCount

	reader, err := pdf.NewReader(src, size)
	if err != nil {
		return "", 0, fmt.Errorf("open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		if i <= reader.NumPage() {
			text, err := pageText(reader.Page(i))
			if err != nil {
				return "", 0, fmt.Errorf("page %d: %w", i, err)
			}
			b.WriteString(text)
		}
		b.WriteString(PageDelimiter)
	}
	return b.String(), pageCount, nil
}

func pageText(page pdf.Page) (string, error) {
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// writeText writes text to path, removing the file if the write fails.
func writeText(path, text string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create processed directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	_, err = io.WriteString(f, text)
	return err
}

// ReadProcessed returns the stored text at path. A missing file yields an
// error matching apperr.ErrNothingExtracted.
func ReadProcessed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", apperr.ErrNothingExtracted, path)
		}
		return "", apperr.Extraction(path, err)
	}
	return string(data), nil
}

// CountPages returns the number of page delimiters in text.
func CountPages(text string) int {
	return strings.Count(text, PageDelimiter)
}
