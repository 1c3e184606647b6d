package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"

	"github.com/yu-iskw/dbt-fusion/internal/catalog"
	"github.com/yu-iskw/dbt-fusion/internal/eval"
	"github.com/yu-iskw/dbt-fusion/internal/graph"
	"github.com/yu-iskw/dbt-fusion/internal/parser"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/specifier"
)

// Harness is the scenario execution engine.
type Harness struct {
	scenario  *Scenario
	parser    *parser.Parser
	warnings  *memory.Handler
	evaluator *eval.Evaluator
	catalog   *catalog.Catalog // opened on first sqlite case
}

// Run executes a scenario and returns the result.
//
// Each scenario gets a fresh in-memory catalog for isolation.
//
// Execution flow:
// 1. Build the selector registry and parser
// 2. Resolve every case to an expression, checking errors and warnings
// 3. Evaluate all resolved cases concurrently in memory
// 4. Check each selection and replay it on the SQLite catalog
// 5. Return result with pass/fail, selections, and errors
//
// The returned error is reserved for problems with the scenario itself;
// failed expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	registry, err := schema.NewRegistry(scenario.Selectors)
	if err != nil {
		return nil, fmt.Errorf("build selector registry: %w", err)
	}

	warnings := memory.New()
	logger := &log.Logger{Handler: warnings, Level: log.InfoLevel}

	var opts []eval.Option
	if scenario.Graph {
		opts = append(opts, eval.WithGraph(graph.New(scenario.Nodes)))
	}

	h := &Harness{
		scenario:  scenario,
		parser:    parser.New(registry, parser.WithLogger(logger)),
		warnings:  warnings,
		evaluator: eval.New(scenario.Nodes, opts...),
	}
	defer h.close()

	return h.run(ctx)
}

func (h *Harness) close() {
	if h.catalog != nil {
		h.catalog.Close()
	}
}

func (h *Harness) run(ctx context.Context) (*Result, error) {
	result := NewResult()
	resolved := make(map[string]selector.Expression, len(h.scenario.Cases))

	for i := range h.scenario.Cases {
		c := &h.scenario.Cases[i]

		expr, err := h.resolve(c)
		cr := CaseResult{Name: c.Name, Selected: []string{}, Warnings: h.drainWarnings()}
		if err != nil {
			cr.Error = err.Error()
		} else {
			cr.Expression = selector.Format(expr)
			if c.ExpectError == "" {
				resolved[c.Name] = expr
			}
		}
		result.Cases = append(result.Cases, cr)

		if aerr := assertError(c.Name, c.ExpectError, err); aerr != nil {
			result.AddError(aerr.Error())
		}
		if aerr := assertWarnings(c.Name, c.ExpectWarnings, cr.Warnings); aerr != nil {
			result.AddError(aerr.Error())
		}
	}

	selections, err := h.evaluator.EvaluateAll(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("evaluate cases: %w", err)
	}

	for i := range h.scenario.Cases {
		c := &h.scenario.Cases[i]
		expr, ok := resolved[c.Name]
		if !ok {
			continue
		}
		got := selections[c.Name].Sorted()
		result.Cases[i].Selected = got

		if aerr := assertSelection(c.Name, c.Expect, got); aerr != nil {
			result.AddError(aerr.Error())
		}
		for _, backend := range c.backends(h.scenario) {
			if backend != BackendSQLite {
				continue
			}
			ids, err := h.selectSQL(ctx, expr)
			if err != nil {
				result.AddError(fmt.Sprintf("case %q: %s backend: %v", c.Name, backend, err))
				continue
			}
			if aerr := assertBackendsAgree(c.Name, backend, got, ids); aerr != nil {
				result.AddError(aerr.Error())
			}
		}
	}

	return result, nil
}

// resolve builds the case's expression.
func (h *Harness) resolve(c *Case) (selector.Expression, error) {
	var (
		expr selector.Expression
		err  error
	)
	switch {
	case c.Selector != "":
		expr, err = h.parser.ParseNamed(c.Selector)
	case c.Default:
		expr, _, err = h.parser.ParseDefault()
	default:
		expr, err = specifier.ParseWithExclude(c.Select, c.Exclude)
	}
	if err != nil {
		return nil, err
	}

	if c.IndirectSelection != "" {
		mode, err := selector.ParseIndirectSelection(c.IndirectSelection)
		if err != nil {
			return nil, err
		}
		expr = selector.Clone(expr)
		selector.SetIndirectSelection(expr, mode)
	}
	return expr, nil
}

func (h *Harness) selectSQL(ctx context.Context, expr selector.Expression) ([]string, error) {
	if h.catalog == nil {
		cat, err := catalog.Open(":memory:")
		if err != nil {
			return nil, err
		}
		if err := cat.WriteNodes(ctx, h.scenario.Nodes); err != nil {
			cat.Close()
			return nil, err
		}
		h.catalog = cat
	}
	return h.catalog.Select(ctx, expr)
}

// drainWarnings renders captured log entries as "message k=v ...".
func (h *Harness) drainWarnings() []string {
	var out []string
	for _, e := range h.warnings.Entries {
		if e.Level < log.WarnLevel {
			continue
		}
		names := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			names = append(names, k)
		}
		sort.Strings(names)

		var sb strings.Builder
		sb.WriteString(e.Message)
		for _, k := range names {
			fmt.Fprintf(&sb, " %s=%v", k, e.Fields[k])
		}
		out = append(out, sb.String())
	}
	h.warnings.Entries = nil
	return out
}
