package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/dbt-fusion/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Selectors int                        `json:"selectors"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [selectors-file]",
		Short: "Validate selector definitions",
		Long: `Validate named selector definitions without evaluating them.

Checks names, defaults, selector references and reference cycles, empty
lists, method shorthand arity, top-level excludes and every bare selection
string. The path may be a selectors.yml, a .cue file or a directory holding
a CUE package. Defaults to the selectors entry of dbtsel.yml.

Exit codes:
  0 - All selectors valid
  1 - Validation errors
  2 - Command error (file not found, malformed YAML or CUE, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.settings().Selectors
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if path == "" {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeNotFound, Message: "no selectors file given and none configured"})
	}

	loaded, err := LoadSelectors(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d selector(s) from %d file(s)", len(loaded.Definitions), len(loaded.Files))

	errs := compiler.Validate(loaded.Definitions)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, len(loaded.Definitions), errs)
	}
	return outputValidateSuccess(formatter, len(loaded.Definitions))
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Selectors: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ All selectors valid (%d)\n", count)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, count int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:     false,
				Selectors: count,
				Errors:    errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.writeJSON(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return exitf(ExitFailure, "validation failed with %d error(s)", len(errs))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return exitf(ExitFailure, "validation failed with %d error(s)", len(errs))
}
