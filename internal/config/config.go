// Package config loads rental-check settings from defaults, an optional YAML
// file, RENTAL_CHECK_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
)

const (
	EnvPrefix = "RENTAL_CHECK"

	DefaultModel           = "gpt-4o-2024-08-06"
	DefaultProcessedDir    = "data/processed"
	DefaultRawDir          = "data/raw"
	DefaultMaxChars        = 30000
	DefaultTimeout         = 2 * time.Minute
	DefaultTokensPerMinute = 30000
)

// Config is the resolved configuration of one process.
type Config struct {
	OpenAIAPIKey    string        `mapstructure:"openai_api_key" yaml:"openai_api_key"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url" yaml:"openai_base_url,omitempty"`
	Model           string        `mapstructure:"model" yaml:"model"`
	TemplateDir     string        `mapstructure:"template_dir" yaml:"template_dir,omitempty"`
	RawDir          string        `mapstructure:"raw_dir" yaml:"raw_dir"`
	ProcessedDir    string        `mapstructure:"processed_dir" yaml:"processed_dir"`
	MaxChars        int           `mapstructure:"max_chars" yaml:"max_chars"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TokensPerMinute int           `mapstructure:"tokens_per_minute" yaml:"tokens_per_minute"`
	DBPath          string        `mapstructure:"db_path" yaml:"db_path,omitempty"`
	ZoteroAPIKey    string        `mapstructure:"zotero_api_key" yaml:"zotero_api_key,omitempty"`
	ZoteroLibraryID string        `mapstructure:"zotero_library_id" yaml:"zotero_library_id,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model:           DefaultModel,
		RawDir:          DefaultRawDir,
		ProcessedDir:    DefaultProcessedDir,
		MaxChars:        DefaultMaxChars,
		Timeout:         DefaultTimeout,
		TokensPerMinute: DefaultTokensPerMinute,
	}
}

// SetDefaults registers defaults and environment bindings on v. Keys without
// the RENTAL_CHECK prefix are bound to their conventional variable names.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("model", d.Model)
	v.SetDefault("raw_dir", d.RawDir)
	v.SetDefault("processed_dir", d.ProcessedDir)
	v.SetDefault("max_chars", d.MaxChars)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("tokens_per_minute", d.TokensPerMinute)
	v.SetDefault("openai_base_url", "")
	v.SetDefault("template_dir", "")
	v.SetDefault("db_path", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai_base_url", EnvPrefix+"_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("zotero_api_key", "ZOTERO_API_KEY")
	_ = v.BindEnv("zotero_library_id", "ZOTERO_LIBRARY_ID")
}

// ReadFile reads path, or ~/.rental-check/config.yaml when path is empty. A
// missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(filepath.Join(home, ".rental-check"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return apperr.New(apperr.KindConfiguration, path, "failed to read config file", err)
	}
	return nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, apperr.New(apperr.KindConfiguration, "", "failed to decode configuration", err)
	}
	return cfg, nil
}

// FromEnv resolves a Config from defaults and the environment only.
func FromEnv() (Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// Validate reports settings that make extraction impossible. The API key is
// checked separately by the model client so that offline commands still work.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Model) == "" {
		problems = append(problems, "model must not be empty")
	}
	if c.ProcessedDir == "" {
		problems = append(problems, "processed_dir must not be empty")
	}
	if c.MaxChars <= 0 {
		problems = append(problems, fmt.Sprintf("max_chars must be positive, got %d", c.MaxChars))
	}
	if c.Timeout < 0 {
		problems = append(problems, fmt.Sprintf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.TokensPerMinute < 0 {
		problems = append(problems, fmt.Sprintf("tokens_per_minute must not be negative, got %d", c.TokensPerMinute))
	}
	if len(problems) > 0 {
		return apperr.Configuration(strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.OpenAIAPIKey = redact(c.OpenAIAPIKey)
	c.ZoteroAPIKey = redact(c.ZoteroAPIKey)
	return c
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:3] + "****" + secret[len(secret)-4:]
}
