package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/prompts"
)

const hierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (RENTAL_CHECK_*, OPENAI_API_KEY, ZOTERO_API_KEY, ZOTERO_LIBRARY_ID)
  3. Config file (~/.rental-check/config.yaml)
  4. Defaults`

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rental-check configuration",
		Long:  "Manage rental-check configuration files and settings.\n\n" + hierarchy,
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the resolved configuration from all sources. API keys are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}

			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", used)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found\n\n")
			}

			yamlData, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprint(w, string(yamlData))
			fmt.Fprintln(w)
			fmt.Fprintln(w, hierarchy)
			renderer := prompts.NewRenderer(cfg.TemplateDir)
			if ids, err := renderer.List(); err != nil {
				fmt.Fprintf(w, "\nWarning: %v\n", err)
			} else {
				fmt.Fprintf(w, "\nTemplates (%s): %s\n", renderer.Location(), strings.Join(ids, ", "))
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(w, "\nWarning: %v\n", err)
			}
			if cfg.OpenAIAPIKey == "" {
				fmt.Fprintln(w, "\nWarning: OPENAI_API_KEY is not set; extraction will fail")
			}
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration file",
		Long:  "Create a default configuration file at ~/.rental-check/config.yaml.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := logger.DefaultDir()
			if err != nil {
				return err
			}
			configPath := filepath.Join(dir, "config.yaml")
			if err := writeDefaultConfig(configPath, force); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Created default configuration: %s\n", configPath)
			fmt.Fprintf(w, "\nTo view the configuration:\n  rental-check config show\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// writeDefaultConfig writes the built-in configuration to path with comments.
func writeDefaultConfig(path string, force bool) (err error) {
	if _, statErr := os.Stat(path); statErr == nil && !force {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite it", path)
	}

	yamlData, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# rental-check configuration\n#\n")
	for _, line := range strings.Split(hierarchy, "\n") {
		printf("# %s\n", line)
	}
	printf("\n%s", yamlData)
	printf("\n# API keys are best kept in the environment:\n")
	printf("#   export OPENAI_API_KEY=sk-...\n")
	printf("#   export ZOTERO_API_KEY=... ZOTERO_LIBRARY_ID=...\n")
	return err
}
