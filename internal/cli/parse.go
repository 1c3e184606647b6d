package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/dbt-fusion/internal/log"
	"github.com/yu-iskw/dbt-fusion/internal/parser"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// ParsedSelector is one resolved named selector.
type ParsedSelector struct {
	Name        string   `json:"name"`
	Default     bool     `json:"default,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Canonical   string   `json:"canonical,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ParseResult holds the parse command output.
type ParseResult struct {
	Selectors []ParsedSelector `json:"selectors"`
	Failed    int              `json:"failed"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse [name...]",
		Short: "Resolve named selectors into expressions",
		Long: `Resolve named selectors into selection expressions.

Prints each expression, its canonical JSON and fingerprint, and lint
warnings for constructs that are easy to misread, such as an exclude that
does not subtract. Without names every selector in the file is resolved.

Examples:
  dbtsel parse --selectors selectors.yml
  dbtsel parse --selectors selectors.cue nightly staging
  dbtsel parse --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = rootOpts.settings().Selectors
			}
			return runParse(rootOpts, file, args, cmd)
		},
	}

	cmd.Flags().StringVar(&file, "selectors", "", "selectors file or CUE directory (default from dbtsel.yml)")

	return cmd
}

func runParse(opts *RootOptions, file string, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if file == "" {
		return reportLoadError(formatter, &LoadError{Code: ErrCodeNotFound, Message: "no selectors file given and none configured"})
	}
	loaded, err := LoadSelectors(file)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	registry, err := schema.NewRegistry(loaded.Definitions)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	if len(names) == 0 {
		names = registry.Names()
	}

	p := parser.New(registry,
		parser.WithDefaultIndirect(opts.settings().IndirectSelection),
		parser.WithLogger(log.Logger().WithField("command", cmd.Name())),
	)
	result := ParseResult{Selectors: make([]ParsedSelector, 0, len(names))}
	for _, name := range names {
		parsed := parseOne(p, registry, name)
		if parsed.Error != "" {
			result.Failed++
		}
		result.Selectors = append(result.Selectors, parsed)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		writeParseText(formatter, result)
	}

	if result.Failed > 0 {
		return exitf(ExitFailure, "%d selector(s) failed to parse", result.Failed)
	}
	return nil
}

func parseOne(p *parser.Parser, registry *schema.Registry, name string) ParsedSelector {
	parsed := ParsedSelector{Name: name}
	if def, ok := registry.Lookup(name); ok {
		parsed.Default = def.Default
	}

	expr, err := p.ParseNamed(name)
	if err != nil {
		parsed.Error = err.Error()
		return parsed
	}

	parsed.Expression = selector.Format(expr)
	if canonical, err := selector.MarshalCanonical(expr); err == nil {
		parsed.Canonical = string(canonical)
	}
	if fp, err := selector.Fingerprint(expr); err == nil {
		parsed.Fingerprint = fp
	}
	parsed.Warnings = selector.Validate(expr).Warnings
	return parsed
}

func writeParseText(formatter *OutputFormatter, result ParseResult) {
	w := formatter.Writer
	for _, s := range result.Selectors {
		if s.Error != "" {
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			fmt.Fprintf(w, "  error: %s\n", s.Error)
			continue
		}
		label := s.Name
		if s.Default {
			label += " (default)"
		}
		fmt.Fprintf(w, "%s: %s\n", label, s.Expression)
		if formatter.Verbose {
			fmt.Fprintf(w, "  canonical: %s\n", s.Canonical)
			fmt.Fprintf(w, "  fingerprint: %s\n", s.Fingerprint)
		}
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}
}
