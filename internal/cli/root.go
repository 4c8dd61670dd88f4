// Package cli implements the rental-check command line.
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Epistemic-Technology/rental-check/internal/config"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
)

// Version is set at build time with -ldflags.
var Version = "v0.1.0"

// app is the state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
}

// Execute runs the root command with args.
func Execute(args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// NewRootCmd builds the command tree with a fresh configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "rental-check",
		Short: "Extract key facts from rental contract PDFs",
		Long: `rental-check reads a rental contract PDF and extracts who rents the
property, the letting agency, the property address, the agreement date,
the deposit and the rent.

Every value is returned together with a verbatim citation from the
contract. Facts the contract does not state are reported as not found.
Only the first 30,000 characters of a contract are sent to the model.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetDefaults(a.v)
			return config.ReadFile(a.v, a.cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.rental-check/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newExtractCmd(a),
		newHistoryCmd(a),
		newSchemaCmd(),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// config resolves the configuration after flags have been bound.
func (a *app) config() (config.Config, error) {
	return config.Load(a.v)
}

// logger writes warnings, or everything with --verbose, to the command's
// error stream.
func (a *app) logger(cmd *cobra.Command) logger.Logger {
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	return logger.NewWriterLogger(cmd.ErrOrStderr(), level)
}

// bindFlags maps command flags onto configuration keys so that flags take
// precedence over the environment and the config file.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rental-check %s\n", Version)
		},
	}
}
