package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("RENTAL_CHECK_MODEL", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.MaxChars != 30000 {
		t.Errorf("MaxChars = %d, want 30000", cfg.MaxChars)
	}
	if cfg.ProcessedDir != "data/processed" {
		t.Errorf("ProcessedDir = %q", cfg.ProcessedDir)
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123456789")
	t.Setenv("RENTAL_CHECK_MODEL", "gpt-4o-mini")
	t.Setenv("RENTAL_CHECK_MAX_CHARS", "1000")
	t.Setenv("RENTAL_CHECK_TIMEOUT", "45s")
	t.Setenv("ZOTERO_LIBRARY_ID", "12345")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.OpenAIAPIKey != "sk-test-123456789" {
		t.Errorf("OpenAIAPIKey = %q", cfg.OpenAIAPIKey)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.MaxChars != 1000 {
		t.Errorf("MaxChars = %d", cfg.MaxChars)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
	if cfg.ZoteroLibraryID != "12345" {
		t.Errorf("ZoteroLibraryID = %q", cfg.ZoteroLibraryID)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "model: gpt-4.1\nprocessed_dir: /tmp/processed\nmax_chars: 500\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	SetDefaults(v)
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model != "gpt-4.1" || cfg.ProcessedDir != "/tmp/processed" || cfg.MaxChars != 500 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.TokensPerMinute != DefaultTokensPerMinute {
		t.Errorf("TokensPerMinute = %d, want default", cfg.TokensPerMinute)
	}
}

func TestReadFileMissingExplicitPath(t *testing.T) {
	v := viper.New()
	err := ReadFile(v, filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Model = " " }},
		{"zero max chars", func(c *Config) { c.MaxChars = 0 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"empty processed dir", func(c *Config) { c.ProcessedDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, apperr.ErrConfiguration) {
				t.Errorf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.OpenAIAPIKey = "sk-abcdefghijklmnop"
	red := cfg.Redacted()
	if red.OpenAIAPIKey == cfg.OpenAIAPIKey {
		t.Error("API key was not redacted")
	}
	if red.OpenAIAPIKey != "sk-****mnop" {
		t.Errorf("Redacted key = %q", red.OpenAIAPIKey)
	}
	if cfg.OpenAIAPIKey != "sk-abcdefghijklmnop" {
		t.Error("Redacted mutated the original")
	}
}
