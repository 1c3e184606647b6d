package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yu-iskw/dbt-fusion/internal/compiler"
	"github.com/yu-iskw/dbt-fusion/internal/config"
	"github.com/yu-iskw/dbt-fusion/internal/eval"
	"github.com/yu-iskw/dbt-fusion/internal/graph"
	"github.com/yu-iskw/dbt-fusion/internal/log"
	"github.com/yu-iskw/dbt-fusion/internal/parser"
	"github.com/yu-iskw/dbt-fusion/internal/querysql"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/specifier"
)

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	*RootOptions
	Manifest          string
	Database          string
	Selectors         string
	Selector          string   // named selector
	Select            []string // bare selection strings
	Exclude           []string
	IndirectSelection string
	Backend           string
}

// SelectResult holds the select command output.
type SelectResult struct {
	Selector   string   `json:"selector,omitempty"`
	Expression string   `json:"expression"`
	Backend    string   `json:"backend"`
	Selected   []string `json:"selected"`
	Count      int      `json:"count"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "select",
		Aliases: []string{"ls"},
		Short:   "List the nodes a selection selects",
		Long: fmt.Sprintf(`Resolve a selection and print the unique ids it selects, sorted.

The selection is a named selector (--selector), bare selection strings
(--select/--exclude), or the default selector of the selectors file. With
none of these every node is selected.

The memory backend evaluates against the manifest (or a catalog read into
memory) and supports graph operators and indirect test selection. The
sqlite backend runs the selection as SQL against a catalog built with
"dbtsel import"; it rejects graph operators and the config method.

Methods: %s

Examples:
  dbtsel select --manifest target/manifest.json -s tag:nightly
  dbtsel ls --selectors selectors.yml --selector nightly
  dbtsel select -s "+orders" --exclude "tag:deprecated" --indirect-selection cautious
  dbtsel select --backend sqlite --db catalog.db -s "path:models/staging"`, methodList()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.applyConfig(rootOpts.settings())
			return runSelect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "dbt manifest.json (default from dbtsel.yml)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "sqlite catalog (default from dbtsel.yml)")
	cmd.Flags().StringVar(&opts.Selectors, "selectors", "", "selectors file or CUE directory (default from dbtsel.yml)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "named selector to resolve")
	cmd.Flags().StringArrayVarP(&opts.Select, "select", "s", nil, "selection string (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Exclude, "exclude", nil, "exclusion string (repeatable)")
	cmd.Flags().StringVar(&opts.IndirectSelection, "indirect-selection", "", "override indirect selection (eager|cautious|buildable|empty)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "evaluation backend (memory|sqlite)")
	cmd.MarkFlagsMutuallyExclusive("selector", "select")
	cmd.MarkFlagsMutuallyExclusive("selector", "exclude")

	return cmd
}

// applyConfig fills unset flags from the config file.
func (o *SelectOptions) applyConfig(cfg config.Config) {
	if o.Manifest == "" {
		o.Manifest = cfg.Manifest
	}
	if o.Database == "" {
		o.Database = cfg.Database
	}
	if o.Selectors == "" {
		o.Selectors = cfg.Selectors
	}
	if o.Backend == "" {
		o.Backend = cfg.Backend
	}
}

func runSelect(opts *SelectOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	cfg := opts.settings()

	expr, name, err := resolveSelection(opts, cfg)
	if err != nil {
		return reportSelectionError(formatter, err)
	}
	if opts.IndirectSelection != "" {
		mode, err := selector.ParseIndirectSelection(opts.IndirectSelection)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		expr = selector.Clone(expr)
		selector.SetIndirectSelection(expr, mode)
	}
	for _, w := range selector.Validate(expr).Warnings {
		log.Warnf("%s", w)
	}
	formatter.VerboseLog("Resolved selection: %s", selector.Format(expr))

	var selected []string
	switch opts.Backend {
	case config.BackendMemory:
		nodes, err := LoadNodes(ctx, opts.Manifest, opts.Database)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		formatter.VerboseLog("Loaded %d node(s)", len(nodes))

		e := eval.New(nodes,
			eval.WithGraph(graph.New(nodes)),
			eval.WithDefaultIndirect(cfg.IndirectSelection),
		)
		label := name
		if label == "" {
			label = "select"
		}
		sets, err := e.EvaluateAll(ctx, map[string]selector.Expression{label: expr})
		if err != nil {
			return WrapExitError(ExitCommandError, "evaluation interrupted", err)
		}
		selected = sets[label].Sorted()
	case config.BackendSQLite:
		if opts.Database == "" {
			return reportLoadError(formatter, &LoadError{Code: ErrCodeNotFound, Message: "the sqlite backend needs --db"})
		}
		cat, err := openCatalog(opts.Database)
		if err != nil {
			return reportLoadError(formatter, err)
		}
		defer cat.Close()
		selected, err = cat.Select(ctx, expr)
		if errors.Is(err, querysql.ErrUnsupported) {
			return reportLoadError(formatter, fmt.Errorf("%w (use --backend memory)", err))
		}
		if err != nil {
			return reportLoadError(formatter, err)
		}
	default:
		return reportLoadError(formatter, fmt.Errorf("unknown backend %q (want %s or %s)", opts.Backend, config.BackendMemory, config.BackendSQLite))
	}

	result := SelectResult{
		Selector:   name,
		Expression: selector.Format(expr),
		Backend:    opts.Backend,
		Selected:   selected,
		Count:      len(selected),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if len(selected) > 0 {
		fmt.Fprintln(formatter.Writer, strings.Join(selected, "\n"))
	}
	return nil
}

// resolveSelection builds the expression to evaluate and, for named or
// default selectors, the selector name.
func resolveSelection(opts *SelectOptions, cfg config.Config) (selector.Expression, string, error) {
	if len(opts.Select) > 0 || len(opts.Exclude) > 0 {
		expr, err := specifier.ParseWithExclude(opts.Select, opts.Exclude)
		return expr, "", err
	}

	if opts.Selectors == "" {
		if opts.Selector != "" {
			return nil, "", &LoadError{Code: ErrCodeNotFound, Message: "--selector needs a selectors file"}
		}
		expr, err := specifier.ParseWithExclude(nil, nil)
		return expr, "", err
	}

	loaded, err := LoadSelectors(opts.Selectors)
	if err != nil {
		return nil, "", err
	}
	registry, err := schema.NewRegistry(loaded.Definitions)
	if err != nil {
		return nil, "", &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	p := parser.New(registry,
		parser.WithDefaultIndirect(cfg.IndirectSelection),
		parser.WithLogger(log.Logger().WithField("command", "select")),
	)

	if opts.Selector != "" {
		expr, err := p.ParseNamed(opts.Selector)
		return expr, opts.Selector, err
	}
	if len(registry.Defaults()) == 0 {
		expr, err := specifier.ParseWithExclude(nil, nil)
		return expr, "", err
	}
	return p.ParseDefault()
}

// reportSelectionError reports load failures as command errors and
// everything else, parser and selection-string errors, as a failed
// selection (exit 1).
func reportSelectionError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return reportLoadError(formatter, err)
	}
	_ = formatter.Error(compiler.ErrInvalidSelection, err.Error(), nil)
	return WrapExitError(ExitFailure, "selection failed", err)
}

// methodList names every selection method for help text.
func methodList() string {
	methods := selector.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}
