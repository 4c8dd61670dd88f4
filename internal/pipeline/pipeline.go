// Package pipeline sequences extraction, truncation, prompt rendering and
// the model call for one rental contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/llm"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/pdf"
	"github.com/Epistemic-Technology/rental-check/internal/prompts"
	"github.com/Epistemic-Technology/rental-check/models"
)

// Extractor writes the text of a document and returns the path it wrote.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
	ExtractBytes(ctx context.Context, name string, data []byte) (string, error)
}

// Invoker produces an answer set from the rendered prompts.
type Invoker interface {
	ExtractAnswers(ctx context.Context, systemPrompt, userPrompt string) (models.Answers, error)
}

// Options overrides the components New would otherwise build from config.
type Options struct {
	Renderer     *prompts.Renderer
	Extractor    Extractor
	Invoker      Invoker
	SystemPrompt string
	Logger       logger.Logger
}

// Result is the outcome of one successful run.
type Result struct {
	Answers       models.Answers
	Truncated     bool
	OriginalChars int
	Pages         int
	ProcessedPath string
}

// Pipeline is immutable after New and safe for concurrent use as long as
// concurrent runs write distinct processed files.
type Pipeline struct {
	renderer     *prompts.Renderer
	extractor    Extractor
	invoker      Invoker
	systemPrompt string
	maxChars     int
	log          logger.Logger
}

// New checks cfg, renders the system prompt once and builds any component
// not supplied in opts. Missing templates and a missing API key fail here.
func New(cfg config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = prompts.NewRenderer(cfg.TemplateDir)
	}

	systemPrompt := opts.SystemPrompt
	if systemPrompt == "" {
		rendered, err := renderer.Render(prompts.SystemPrompt, nil)
		if err != nil {
			return nil, err
		}
		systemPrompt = rendered
	}
	if _, err := renderer.Render(prompts.UserPrompt, map[string]any{prompts.ContractVar: ""}); err != nil {
		return nil, err
	}

	extractor := opts.Extractor
	if extractor == nil {
		extractor = pdf.NewExtractor(cfg.ProcessedDir, log)
	}

	invoker := opts.Invoker
	if invoker == nil {
		client, err := llm.NewClient(llm.Config{
			APIKey:          cfg.OpenAIAPIKey,
			Model:           cfg.Model,
			BaseURL:         cfg.OpenAIBaseURL,
			Timeout:         cfg.Timeout,
			TokensPerMinute: cfg.TokensPerMinute,
		}, log)
		if err != nil {
			return nil, err
		}
		invoker = client
	}

	return &Pipeline{
		renderer:     renderer,
		extractor:    extractor,
		invoker:      invoker,
		systemPrompt: systemPrompt,
		maxChars:     cfg.MaxChars,
		log:          log,
	}, nil
}

// Process runs the pipeline on the PDF at documentPath.
func (p *Pipeline) Process(ctx context.Context, documentPath string) (Result, error) {
	p.log.Info("Processing %s", documentPath)
	processed, err := p.extractor.Extract(ctx, documentPath)
	if err != nil {
		return Result{}, err
	}
	return p.run(ctx, processed)
}

// ProcessBytes runs the pipeline on an in-memory PDF stored under name.
func (p *Pipeline) ProcessBytes(ctx context.Context, name string, data []byte) (Result, error) {
	p.log.Info("Processing %s (%d bytes)", name, len(data))
	processed, err := p.extractor.ExtractBytes(ctx, name, data)
	if err != nil {
		return Result{}, err
	}
	return p.run(ctx, processed)
}

func (p *Pipeline) run(ctx context.Context, processedPath string) (Result, error) {
	text, err := pdf.ReadProcessed(processedPath)
	if err != nil {
		if errors.Is(err, apperr.ErrNothingExtracted) {
			return Result{}, apperr.New(apperr.KindNotFound, processedPath, "no extracted text", err)
		}
		return Result{}, err
	}

	document, truncated := Truncate(text, p.maxChars)
	originalChars := utf8.RuneCountInString(text)
	if truncated {
		p.log.Warn("Contract text truncated from %d to %d characters; the remainder is not sent to the model",
			originalChars, p.maxChars)
	}

	userPrompt, err := p.renderer.Render(prompts.UserPrompt, map[string]any{prompts.ContractVar: document})
	if err != nil {
		return Result{}, err
	}

	answers, err := p.invoker.ExtractAnswers(ctx, p.systemPrompt, userPrompt)
	if err != nil {
		return Result{}, err
	}
	if err := answers.CheckGrounding(document); err != nil {
		return Result{}, fmt.Errorf("answers for %s: %w", processedPath, err)
	}

	return Result{
		Answers:       answers,
		Truncated:     truncated,
		OriginalChars: originalChars,
		Pages:         pdf.CountPages(text),
		ProcessedPath: processedPath,
	}, nil
}

// Truncate returns the first maxChars characters of text and whether
// anything was cut.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(text) <= maxChars {
		return text, false
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i], true
		}
		n++
	}
	return text, false
}
