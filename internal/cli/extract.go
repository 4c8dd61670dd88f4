package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/operations"
	"github.com/Epistemic-Technology/rental-check/internal/pipeline"
	"github.com/Epistemic-Technology/rental-check/internal/render"
	"github.com/Epistemic-Technology/rental-check/internal/storage"
	"github.com/Epistemic-Technology/rental-check/models"
)

type extractOptions struct {
	jsonOutput bool
	workers    int
	record     bool
}

// extractOutput is one document in --json output.
type extractOutput struct {
	Path          string          `json:"path"`
	RunID         string          `json:"run_id,omitempty"`
	Truncated     bool            `json:"truncated"`
	OriginalChars int             `json:"original_chars"`
	Pages         int             `json:"pages"`
	Answers       *models.Answers `json:"answers,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func newExtractCmd(a *app) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract [pdf...]",
		Short: "Extract renters, agency, address, date, deposit and rent from contracts",
		Long: `Extract reads each PDF, writes its text to the processed directory
(one form feed after every page) and asks the model for the contract's
key facts.

Without arguments every PDF in the raw directory is processed.

Example:
  rental-check extract data/raw/lease.pdf
  rental-check extract --json lease-a.pdf lease-b.pdf
  rental-check extract --raw-dir contracts --workers 2 --record`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return a.bindFlags(cmd, map[string]string{
				"model":         "model",
				"max-chars":     "max_chars",
				"timeout":       "timeout",
				"template-dir":  "template_dir",
				"raw-dir":       "raw_dir",
				"processed-dir": "processed_dir",
				"db":            "db_path",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print answers as JSON")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "number of contracts processed at once")
	cmd.Flags().BoolVar(&opts.record, "record", false, "record each run in the history database")

	cmd.Flags().String("model", "", "model name (default "+config.DefaultModel+")")
	cmd.Flags().Int("max-chars", 0, "characters of contract text sent to the model (default 30000)")
	cmd.Flags().Duration("timeout", 0, "time limit for one model call (default 2m)")
	cmd.Flags().String("template-dir", "", "directory with system_prompt.tmpl and user_prompt.tmpl (default: built-in)")
	cmd.Flags().String("raw-dir", "", "directory searched for PDFs when none are given (default data/raw)")
	cmd.Flags().String("processed-dir", "", "directory for extracted text (default data/processed)")
	cmd.Flags().String("db", "", "history database (default ~/.rental-check/rental-check.db)")

	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, args []string, opts *extractOptions) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	log := a.logger(cmd)

	paths := args
	if len(paths) == 0 {
		paths, err = findPDFs(cfg.RawDir)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDF files found in %s", cfg.RawDir)
		}
	}

	p, err := pipeline.New(cfg, pipeline.Options{Logger: log})
	if err != nil {
		return err
	}

	var store storage.Store
	if opts.record {
		store, err = openStore(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results, err := p.ProcessAll(ctx, paths, opts.workers)
	if err != nil {
		return err
	}

	outputs := make([]extractOutput, 0, len(results))
	failed := 0
	for _, r := range results {
		out := extractOutput{Path: r.Path}
		if r.Err != nil {
			failed++
			out.Error = r.Err.Error()
			log.Error("%s: %v", r.Path, r.Err)
			outputs = append(outputs, out)
			continue
		}

		answers := r.Result.Answers
		out.Answers = &answers
		out.Truncated = r.Result.Truncated
		out.OriginalChars = r.Result.OriginalChars
		out.Pages = r.Result.Pages

		if store != nil {
			rec := operations.NewRecord(filepath.Base(r.Path), models.SourceInfo{Path: r.Path}, cfg.Model, r.Result)
			if _, err := store.StoreRun(ctx, rec); err != nil {
				return fmt.Errorf("failed to record run for %s: %w", r.Path, err)
			}
			out.RunID = rec.RunID
		}
		outputs = append(outputs, out)
	}

	if opts.jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), outputs); err != nil {
			return err
		}
	} else {
		writeText(cmd.OutOrStdout(), outputs, len(outputs) > 1)
	}

	if failed > 0 {
		if failed == 1 && len(results) == 1 {
			return results[0].Err
		}
		return fmt.Errorf("%d of %d contracts failed", failed, len(results))
	}
	return nil
}

func writeJSON(w io.Writer, outputs []extractOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(outputs) == 1 && outputs[0].Error == "" {
		return enc.Encode(outputs[0].Answers)
	}
	return enc.Encode(outputs)
}

func writeText(w io.Writer, outputs []extractOutput, headers bool) {
	for i, out := range outputs {
		if headers {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "== %s ==\n", out.Path)
		}
		if out.Error != "" {
			fmt.Fprintf(w, "Error: %s\n", out.Error)
			continue
		}
		if out.Truncated {
			fmt.Fprintf(w, "Note: only the first part of this contract (%d characters) was read.\n", out.OriginalChars)
		}
		render.Text(w, *out.Answers)
		if out.RunID != "" {
			fmt.Fprintf(w, "Run: %s\n", out.RunID)
		}
	}
}

// findPDFs lists the PDFs directly inside dir in name order.
func findPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("raw directory %s does not exist", dir)
		}
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func openStore(cfg config.Config, log logger.Logger) (storage.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dir, err := logger.DefaultDir()
		if err != nil {
			return nil, err
		}
		dbPath = storage.DefaultDBPath(dir)
	}
	log.Debug("Opening history database %s", dbPath)
	store, err := storage.NewSQLiteStore(dbPath, log)
	if err != nil {
		return nil, err
	}
	return store, nil
}
