package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/dbt-fusion/internal/config"
	"github.com/yu-iskw/dbt-fusion/internal/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to dbtsel.yml; empty means DBTSEL_CONFIG or ./dbtsel.yml

	// cfg is loaded once in PersistentPreRunE.
	cfg config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dbtsel CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dbtsel",
		Short: "dbtsel - dbt node selection",
		Long: `Resolve dbt selector definitions and selection strings into the set
of nodes they select.

Named selectors are read from selectors.yml or selectors.cue; nodes come
from a dbt manifest.json or a sqlite catalog built with "dbtsel import".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			if opts.Verbose {
				log.Init(cmd.ErrOrStderr(), "debug")
			} else {
				log.InitFromEnv(cmd.ErrOrStderr())
			}

			cfg, err := config.Load(opts.Config)
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			opts.cfg = cfg
			if cfg.Source != "" {
				log.Debugf("loaded config from %s", cfg.Source)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./"+config.FileName+")")

	// Add subcommands
	cmd.AddCommand(NewParseCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSelectCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// settings returns the loaded configuration, or the defaults when a command
// runs without the root's PersistentPreRunE (as in unit tests).
func (o *RootOptions) settings() config.Config {
	if o.cfg.Backend == "" {
		return config.Default()
	}
	return o.cfg
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
