package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/pdf/pdftest"
	"github.com/Epistemic-Technology/rental-check/internal/prompts"
	"github.com/Epistemic-Technology/rental-check/models"
)

// fakeExtractor writes texts[path] as the processed file. Paths without an
// entry produce no file.
type fakeExtractor struct {
	dir   string
	texts map[string]string
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(f.dir, stem+".txt")
	if text, ok := f.texts[path]; ok {
		if err := os.WriteFile(out, []byte(text), 0644); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (f *fakeExtractor) ExtractBytes(ctx context.Context, name string, data []byte) (string, error) {
	if f.texts == nil {
		f.texts = map[string]string{}
	}
	f.texts[name] = string(data)
	return f.Extract(ctx, name)
}

// fakeInvoker returns answers built from the user prompt it receives.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   int
	system  string
	user    string
	answers func(user string) models.Answers
	err     error
}

func (f *fakeInvoker) ExtractAnswers(ctx context.Context, systemPrompt, userPrompt string) (models.Answers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	if f.err != nil {
		return models.Answers{}, f.err
	}
	if f.answers == nil {
		return models.Empty(), nil
	}
	return f.answers(userPrompt), nil
}

// verbatimRenderer renders the contract as the whole user prompt.
func verbatimRenderer(t *testing.T) *prompts.Renderer {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"system_prompt.tmpl": "extract rental facts",
		"user_prompt.tmpl":   "{{.contract}}",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return prompts.NewRenderer(dir)
}

func newTestPipeline(t *testing.T, ext Extractor, inv Invoker) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.ProcessedDir = t.TempDir()
	p, err := New(cfg, Options{Renderer: verbatimRenderer(t), Extractor: ext, Invoker: inv})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

const scenarioText = "Tenant: Jane Doe. Rent: $1500/month. Deposit: $3000.\f"

func scenarioAnswers(string) models.Answers {
	a := models.Empty()
	a.Renters.Names = []models.Name{{Name: models.NewStringValue("Jane Doe", "Tenant: Jane Doe")}}
	a.Rent = models.NewMonetaryValue(1500, "USD", "Rent: $1500/month")
	a.Deposit = models.NewMonetaryValue(3000, "USD", "Deposit: $3000")
	return a
}

func TestProcessScenario(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{"lease.pdf": scenarioText}}
	inv := &fakeInvoker{answers: scenarioAnswers}
	p := newTestPipeline(t, ext, inv)

	res, err := p.Process(context.Background(), "lease.pdf")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	a := res.Answers
	if len(a.Renters.Names) != 1 || *a.Renters.Names[0].Name.Value != "Jane Doe" {
		t.Errorf("renters = %+v", a.Renters)
	}
	if *a.Rent.Amount != 1500 || *a.Deposit.Amount != 3000 {
		t.Errorf("rent %v deposit %v", *a.Rent.Amount, *a.Deposit.Amount)
	}
	if a.LettingAgency.HasValue() || a.PropertyAddress.HasValue() || a.AgreementDate.HasValue() {
		t.Errorf("absent facts should stay null: %+v", a)
	}
	if res.Truncated || res.Pages != 1 || res.OriginalChars != utf8.RuneCountInString(scenarioText) {
		t.Errorf("unexpected result metadata: %+v", res)
	}
	if inv.user != scenarioText {
		t.Errorf("user prompt = %q, want the document verbatim", inv.user)
	}
	if inv.system != "extract rental facts" {
		t.Errorf("system prompt = %q", inv.system)
	}
}

func TestProcessEmptyDocument(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{"blank.pdf": "\f"}}
	inv := &fakeInvoker{}
	p := newTestPipeline(t, ext, inv)

	res, err := p.Process(context.Background(), "blank.pdf")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	empty := models.Empty()
	if len(res.Answers.Renters.Names) != 0 || res.Answers.Rent != empty.Rent || res.Answers.LettingAgency != empty.LettingAgency {
		t.Errorf("expected an all-null answer set, got %+v", res.Answers)
	}
}

func TestProcessTruncation(t *testing.T) {
	tests := []struct {
		name          string
		length        int
		wantLength    int
		wantTruncated bool
	}{
		{"short", 100, 100, false},
		{"at limit", 30000, 30000, false},
		{"over limit", 40000, 30000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := strings.Repeat("é", tt.length)
			ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{"long.pdf": text}}
			inv := &fakeInvoker{}
			p := newTestPipeline(t, ext, inv)

			res, err := p.Process(context.Background(), "long.pdf")
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if got := utf8.RuneCountInString(inv.user); got != tt.wantLength {
				t.Errorf("model saw %d characters, want %d", got, tt.wantLength)
			}
			if !strings.HasPrefix(text, inv.user) {
				t.Error("truncated text must be a prefix of the document")
			}
			if res.Truncated != tt.wantTruncated || res.OriginalChars != tt.length {
				t.Errorf("Truncated=%v OriginalChars=%d", res.Truncated, res.OriginalChars)
			}
		})
	}
}

func TestProcessRejectsUngroundedCitations(t *testing.T) {
	beyondCut := strings.Repeat("x", 30000) + "Landlord: Acme Lettings"

	tests := []struct {
		name     string
		text     string
		citation string
	}{
		{"not in document", scenarioText, "Tenant: John Smith"},
		{"only after the cut", beyondCut, "Acme Lettings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{"doc.pdf": tt.text}}
			inv := &fakeInvoker{answers: func(string) models.Answers {
				a := models.Empty()
				a.LettingAgency = models.NewStringValue("Acme", tt.citation)
				return a
			}}
			p := newTestPipeline(t, ext, inv)

			_, err := p.Process(context.Background(), "doc.pdf")
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestProcessPropagatesStageFailures(t *testing.T) {
	upstream := apperr.Upstream("gpt-4o-2024-08-06", errors.New("connection reset"))

	tests := []struct {
		name      string
		ext       *fakeExtractor
		inv       *fakeInvoker
		wantErr   error
		wantCalls int
	}{
		{
			name:    "extraction failure",
			ext:     &fakeExtractor{err: apperr.Extraction("bad.pdf", errors.New("corrupt xref"))},
			inv:     &fakeInvoker{},
			wantErr: apperr.ErrExtraction,
		},
		{
			name:    "nothing extracted",
			ext:     &fakeExtractor{texts: map[string]string{}},
			inv:     &fakeInvoker{},
			wantErr: apperr.ErrNotFound,
		},
		{
			name:      "upstream failure",
			ext:       &fakeExtractor{texts: map[string]string{"doc.pdf": scenarioText}},
			inv:       &fakeInvoker{err: upstream},
			wantErr:   apperr.ErrUpstream,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.ext.dir = t.TempDir()
			p := newTestPipeline(t, tt.ext, tt.inv)

			res, err := p.Process(context.Background(), "doc.pdf")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if res.Answers.Renters.Names != nil {
				t.Error("no partial result should be returned")
			}
			if tt.inv.calls != tt.wantCalls {
				t.Errorf("invoker called %d times, want %d", tt.inv.calls, tt.wantCalls)
			}
		})
	}

	t.Run("nothing extracted keeps the cause", func(t *testing.T) {
		p := newTestPipeline(t, &fakeExtractor{dir: t.TempDir()}, &fakeInvoker{})
		_, err := p.Process(context.Background(), "doc.pdf")
		if !errors.Is(err, apperr.ErrNothingExtracted) {
			t.Errorf("expected ErrNothingExtracted in chain, got %v", err)
		}
	})
}

func TestNewFailsFast(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		cfg := config.Default()
		cfg.TemplateDir = t.TempDir()
		_, err := New(cfg, Options{Invoker: &fakeInvoker{}})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := config.Default()
		cfg.OpenAIAPIKey = ""
		_, err := New(cfg, Options{})
		if !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.MaxChars = 0
		_, err := New(cfg, Options{Invoker: &fakeInvoker{}})
		if !errors.Is(err, apperr.ErrConfiguration) {
			t.Errorf("expected ConfigurationError, got %v", err)
		}
	})

	t.Run("system prompt override", func(t *testing.T) {
		inv := &fakeInvoker{}
		ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{"a.pdf": "text\f"}}
		p, err := New(config.Default(), Options{SystemPrompt: "custom", Extractor: ext, Invoker: inv})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := p.Process(context.Background(), "a.pdf"); err != nil {
			t.Fatal(err)
		}
		if inv.system != "custom" {
			t.Errorf("system prompt = %q", inv.system)
		}
		if !strings.Contains(inv.user, "text") {
			t.Errorf("built-in user prompt should embed the contract: %q", inv.user)
		}
	})
}

func TestProcessRealPDF(t *testing.T) {
	src := pdftest.Write(t, "lease.pdf", []string{"Tenant: Jane Doe.", "Rent: $1500/month."}, nil)
	inv := &fakeInvoker{answers: func(user string) models.Answers {
		a := models.Empty()
		if strings.Contains(user, "Jane Doe") {
			a.Renters.Names = []models.Name{{Name: models.NewStringValue("Jane Doe", "Jane Doe")}}
		}
		return a
	}}

	cfg := config.Default()
	cfg.ProcessedDir = t.TempDir()
	p, err := New(cfg, Options{Renderer: verbatimRenderer(t), Invoker: inv})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if len(res.Answers.Renters.Names) != 1 {
		t.Errorf("renters = %+v", res.Answers.Renters)
	}
	if filepath.Dir(res.ProcessedPath) != cfg.ProcessedDir {
		t.Errorf("processed file %s outside %s", res.ProcessedPath, cfg.ProcessedDir)
	}
}

func TestProcessBytes(t *testing.T) {
	inv := &fakeInvoker{answers: scenarioAnswers}
	p := newTestPipeline(t, &fakeExtractor{dir: t.TempDir()}, inv)

	res, err := p.ProcessBytes(context.Background(), "upload.pdf", []byte(scenarioText))
	if err != nil {
		t.Fatalf("ProcessBytes failed: %v", err)
	}
	if filepath.Base(res.ProcessedPath) != "upload.txt" {
		t.Errorf("ProcessedPath = %s", res.ProcessedPath)
	}
}

func TestProcessAll(t *testing.T) {
	ext := &fakeExtractor{dir: t.TempDir(), texts: map[string]string{
		"a.pdf": scenarioText,
		"b.pdf": scenarioText,
	}}
	inv := &fakeInvoker{answers: scenarioAnswers}
	p := newTestPipeline(t, ext, inv)

	results, err := p.ProcessAll(context.Background(), []string{"a.pdf", "missing.pdf", "b.pdf"}, 2)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("unexpected failures: %v / %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, apperr.ErrNotFound) {
		t.Errorf("missing.pdf: expected NotFoundError, got %v", results[1].Err)
	}
	if results[1].Path != "missing.pdf" {
		t.Errorf("results out of order: %+v", results)
	}

	if _, err := p.ProcessAll(context.Background(), []string{"x/lease.pdf", "y/lease.pdf"}, 2); err == nil {
		t.Error("expected an error for paths sharing a stem")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		text      string
		max       int
		want      string
		truncated bool
	}{
		{"", 5, "", false},
		{"abc", 5, "abc", false},
		{"abcde", 5, "abcde", false},
		{"abcdef", 5, "abcde", true},
		{"ééééé", 3, "ééé", true},
		{"ééé", 3, "ééé", false},
		{"abc", 0, "abc", false},
	}
	for _, tt := range tests {
		got, truncated := Truncate(tt.text, tt.max)
		if got != tt.want || truncated != tt.truncated {
			t.Errorf("Truncate(%q, %d) = %q, %v; want %q, %v", tt.text, tt.max, got, truncated, tt.want, tt.truncated)
		}
	}
}
