package pdf

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/pdf/pdftest"
)

func TestExtractWritesOneDelimiterPerPage(t *testing.T) {
	tests := []struct {
		name  string
		pages [][]string
		want  []string
	}{
		{
			name:  "single page",
			pages: [][]string{{"Tenant: Jane Doe.", "Rent: $1500/month."}},
			want:  []string{"Jane Doe", "1500"},
		},
		{
			name:  "blank middle page",
			pages: [][]string{{"First page"}, nil, {"Third page"}},
			want:  []string{"First page", "Third page"},
		},
		{
			name:  "no text at all",
			pages: [][]string{nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := pdftest.Write(t, "contract.pdf", tt.pages...)
			e := NewExtractor(t.TempDir(), nil)

			out, err := e.Extract(context.Background(), src)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if filepath.Base(out) != "contract.txt" {
				t.Errorf("output file = %s, want contract.txt", out)
			}

			text, err := ReadProcessed(out)
			if err != nil {
				t.Fatalf("ReadProcessed failed: %v", err)
			}
			if got := CountPages(text); got != len(tt.pages) {
				t.Errorf("got %d page delimiters, want %d", got, len(tt.pages))
			}
			if !strings.HasSuffix(text, PageDelimiter) {
				t.Error("text should end with a page delimiter")
			}
			for _, w := range tt.want {
				if !strings.Contains(text, w) {
					t.Errorf("text %q does not contain %q", text, w)
				}
			}
		})
	}
}

func TestExtractPageOrder(t *testing.T) {
	src := pdftest.Write(t, "lease.pdf", []string{"alpha"}, []string{"bravo"})
	e := NewExtractor(t.TempDir(), nil)
	out, err := e.Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	text, err := ReadProcessed(out)
	if err != nil {
		t.Fatal(err)
	}
	pages := strings.Split(text, PageDelimiter)
	if len(pages) != 3 || !strings.Contains(pages[0], "alpha") || !strings.Contains(pages[1], "bravo") || pages[2] != "" {
		t.Errorf("unexpected page split: %q", pages)
	}
}

func TestExtractMissingDocument(t *testing.T) {
	e := NewExtractor(t.TempDir(), nil)
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestExtractCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4\nthis is not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	processed := t.TempDir()
	e := NewExtractor(processed, nil)
	_, err := e.Extract(context.Background(), src)
	if !errors.Is(err, apperr.ErrExtraction) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if !strings.Contains(err.Error(), src) {
		t.Errorf("error should name the document: %v", err)
	}
	if _, statErr := os.Stat(e.ProcessedPath(src)); !os.IsNotExist(statErr) {
		t.Error("no intermediate file should remain after a failed extraction")
	}
}

func TestExtractBytes(t *testing.T) {
	e := NewExtractor(t.TempDir(), nil)
	out, err := e.ExtractBytes(context.Background(), "upload.pdf", pdftest.Build([]string{"Deposit: $3000."}))
	if err != nil {
		t.Fatalf("ExtractBytes failed: %v", err)
	}
	text, err := ReadProcessed(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "3000") || CountPages(text) != 1 {
		t.Errorf("unexpected text %q", text)
	}

	if _, err := e.ExtractBytes(context.Background(), "empty.pdf", nil); !errors.Is(err, apperr.ErrExtraction) {
		t.Errorf("expected ExtractionError for empty input, got %v", err)
	}
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExtractor(t.TempDir(), nil)
	_, err := e.ExtractBytes(ctx, "a.pdf", pdftest.Build([]string{"text"}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReadProcessedMissing(t *testing.T) {
	_, err := ReadProcessed(filepath.Join(t.TempDir(), "never-written.txt"))
	if !errors.Is(err, apperr.ErrNothingExtracted) {
		t.Errorf("expected ErrNothingExtracted, got %v", err)
	}
}

func TestProcessedPath(t *testing.T) {
	e := NewExtractor("data/processed", nil)
	tests := map[string]string{
		"data/raw/contract.pdf":  filepath.Join("data/processed", "contract.txt"),
		"Lease 2024.PDF":         filepath.Join("data/processed", "Lease 2024.txt"),
		"/tmp/no-extension":      filepath.Join("data/processed", "no-extension.txt"),
		"archive/v1.2/lease.pdf": filepath.Join("data/processed", "lease.txt"),
	}
	for in, want := range tests {
		if got := e.ProcessedPath(in); got != want {
			t.Errorf("ProcessedPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSamplePDFs(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "samples", "*.pdf"))
	if err != nil {
		t.Fatalf("Failed to list sample PDFs: %v", err)
	}
	if len(files) == 0 {
		t.Skip("No sample PDFs found in samples directory")
	}

	for _, filePath := range files {
		t.Run(filepath.Base(filePath), func(t *testing.T) {
			data, err := os.ReadFile(filePath)
			if err != nil {
				t.Fatal(err)
			}
			expected, err := api.PageCount(bytes.NewReader(data), nil)
			if err != nil {
				t.Fatalf("Failed to get page count: %v", err)
			}
			text, pages, err := Text(context.Background(), bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("Text failed: %v", err)
			}
			if pages != expected || CountPages(text) != expected {
				t.Errorf("expected %d pages, got %d (%d delimiters)", expected, pages, CountPages(text))
			}
		})
	}
}
