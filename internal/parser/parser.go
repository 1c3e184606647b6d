// Package parser normalizes surface selector definitions into selector
// expressions.
//
// Normalization rules:
//   - bare strings go to the bare-string grammar
//   - composites hoist their exclude blocks: excludes are unioned and
//     subtracted through an outer And, even for a union composite
//   - method atoms resolve their method head; parents/children without a
//     depth become DepthUnbounded; an attached exclude list becomes the
//     atom's nested exclude
//   - {method: value} shorthand needs exactly one pair and gets the default
//     indirect-selection mode
//   - a standalone exclude block at the top of a definition is an error
//   - {method: selector, value: name} returns the referenced expression
//     as-is; graph operators on the reference are warned about and ignored,
//     an exclude list on the reference is dropped
package parser

import (
	"fmt"
	"strings"

	"github.com/apex/log"

	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/specifier"
)

// GraphOperatorsIgnored is logged when a selector reference carries graph
// operators.
const GraphOperatorsIgnored = "Graph operators (parents, children, etc.) are not supported with selector inheritance and will be ignored"

// SpecResolver resolves bare selection strings.
type SpecResolver func(specs []string) (selector.Expression, error)

// MethodResolver splits a dotted method into its name and arguments,
// falling back to a method inferred from value for unknown heads.
type MethodResolver func(method, value string) (selector.MethodName, []string)

// Parser resolves definitions against a registry. It holds no mutable state
// and is safe for concurrent use.
type Parser struct {
	registry        *schema.Registry
	logger          log.Interface
	resolveSpec     SpecResolver
	resolveMethod   MethodResolver
	defaultIndirect selector.IndirectSelection
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the sink for non-fatal diagnostics.
func WithLogger(l log.Interface) Option {
	return func(p *Parser) { p.logger = l }
}

// WithSpecResolver replaces the bare-string grammar.
func WithSpecResolver(r SpecResolver) Option {
	return func(p *Parser) { p.resolveSpec = r }
}

// WithMethodResolver replaces method-name resolution.
func WithMethodResolver(r MethodResolver) Option {
	return func(p *Parser) { p.resolveMethod = r }
}

// WithDefaultIndirect sets the mode stamped on shorthand atoms.
func WithDefaultIndirect(mode selector.IndirectSelection) Option {
	return func(p *Parser) { p.defaultIndirect = mode }
}

// New creates a Parser over registry. A nil registry behaves as empty.
func New(registry *schema.Registry, opts ...Option) *Parser {
	if registry == nil {
		registry, _ = schema.NewRegistry(nil)
	}
	p := &Parser{
		registry:        registry,
		logger:          log.Log,
		resolveSpec:     specifier.Parse,
		resolveMethod:   selector.ResolveMethod,
		defaultIndirect: selector.DefaultIndirectSelection,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseNamed resolves the named selector.
func (p *Parser) ParseNamed(name string) (selector.Expression, error) {
	return (&resolution{p: p}).parseNamed(name)
}

// ParseDefinition resolves an inline definition. Selector references inside
// it are looked up in the registry.
func (p *Parser) ParseDefinition(v schema.Value) (selector.Expression, error) {
	return (&resolution{p: p}).parseValue(v)
}

// ParseDefault resolves the single selector marked default.
func (p *Parser) ParseDefault() (selector.Expression, string, error) {
	defaults := p.registry.Defaults()
	switch len(defaults) {
	case 0:
		return nil, "", selErr("no default selector defined")
	case 1:
		expr, err := p.ParseNamed(defaults[0].Name)
		return expr, defaults[0].Name, err
	default:
		names := make([]string, len(defaults))
		for i, d := range defaults {
			names[i] = d.Name
		}
		return nil, "", selErr("multiple default selectors: %s", strings.Join(names, ", "))
	}
}

// resolution carries the stack of selectors currently being resolved so a
// reference cycle fails instead of recursing forever.
type resolution struct {
	p     *Parser
	stack []string
}

func (r *resolution) parseNamed(name string) (selector.Expression, error) {
	for i, active := range r.stack {
		if active == name {
			cycle := append(append([]string(nil), r.stack[i:]...), name)
			return nil, &SelectionError{
				Selector: r.stack[len(r.stack)-1],
				Message:  "selector reference cycle: " + strings.Join(cycle, " -> "),
			}
		}
	}

	def, ok := r.p.registry.Lookup(name)
	if !ok {
		se := selErr("Unknown selector `%s`", name)
		if len(r.stack) > 0 {
			se.Selector = r.stack[len(r.stack)-1]
		}
		return nil, se
	}

	r.stack = append(r.stack, name)
	expr, err := r.parseValue(def.Definition)
	r.stack = r.stack[:len(r.stack)-1]
	if err != nil {
		return nil, attach(err, name)
	}
	return expr, nil
}

func (r *resolution) parseValue(v schema.Value) (selector.Expression, error) {
	switch x := v.(type) {
	case schema.StringValue:
		expr, err := r.p.resolveSpec([]string{string(x)})
		if err != nil {
			return nil, &SelectionError{Message: fmt.Sprintf("invalid selection string %q", string(x)), Err: err}
		}
		return expr, nil
	case *schema.Composite:
		return r.parseComposite(x)
	case *schema.MethodAtom:
		return r.parseMethodAtom(x)
	case schema.MethodKey:
		if len(x) != 1 {
			return nil, selErr("MethodKey must have exactly one key-value pair")
		}
		return r.parseMethodAtom(&schema.MethodAtom{
			Method:            x[0].Key,
			Value:             x[0].Value,
			IndirectSelection: r.p.defaultIndirect.Ptr(),
		})
	case *schema.ExcludeAtom:
		return nil, selErr("Top level exclude not allowed in YAML selectors")
	default:
		return nil, selErr("empty selector definition")
	}
}

func (r *resolution) parseComposite(c *schema.Composite) (selector.Expression, error) {
	// An empty list is allowed and selects nothing.
	if c.Kind == schema.CompositeNone {
		return nil, selErr("Empty composite expression")
	}

	includes := make([]selector.Expression, 0, len(c.Values))
	var excludes []selector.Expression
	for _, v := range c.Values {
		if ex, ok := v.(*schema.ExcludeAtom); ok {
			if len(ex.Values) == 0 {
				return nil, selErr("Empty exclude list")
			}
			expr, err := r.parseList(ex.Values)
			if err != nil {
				return nil, err
			}
			excludes = append(excludes, expr)
			continue
		}
		expr, err := r.parseValue(v)
		if err != nil {
			return nil, err
		}
		includes = append(includes, expr)
	}

	var include selector.Expression
	if c.Kind == schema.CompositeUnion {
		include = selector.NewOr(includes...)
	} else {
		include = selector.NewAnd(includes...)
	}
	if len(excludes) == 0 {
		return include, nil
	}

	combined := excludes[0]
	if len(excludes) > 1 {
		combined = selector.NewOr(excludes...)
	}
	return selector.NewAnd(include, selector.NewExclude(combined)), nil
}

func (r *resolution) parseMethodAtom(m *schema.MethodAtom) (selector.Expression, error) {
	if m.Method == selector.MethodSelector {
		expr, err := r.parseNamed(m.Value)
		if err != nil {
			return nil, err
		}
		if m.HasGraphOperators() {
			r.p.logger.WithField("selector", m.Value).Warn(GraphOperatorsIgnored)
		}
		return expr, nil
	}

	name, args := r.p.resolveMethod(m.Method, m.Value)
	c := selector.Criteria{
		Method:           name,
		MethodArgs:       args,
		Value:            m.Value,
		ChildrensParents: m.ChildrensParents,
		ParentsDepth:     normalizeDepth(m.Parents, m.ParentsDepth),
		ChildrenDepth:    normalizeDepth(m.Children, m.ChildrenDepth),
	}
	if m.IndirectSelection != nil {
		c.Indirect = m.IndirectSelection.Ptr()
	}
	if len(m.Exclude) > 0 {
		expr, err := r.parseList(m.Exclude)
		if err != nil {
			return nil, err
		}
		c.Exclude = expr
	}
	return &selector.Atom{Criteria: c}, nil
}

// parseList parses each value; one result is returned as-is, several are
// unioned.
func (r *resolution) parseList(values []schema.Value) (selector.Expression, error) {
	exprs := make([]selector.Expression, 0, len(values))
	for _, v := range values {
		expr, err := r.parseValue(v)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return selector.NewOr(exprs...), nil
}

func normalizeDepth(flag bool, depth *uint32) *uint32 {
	if depth != nil {
		return selector.Depth(*depth)
	}
	if flag {
		return selector.Depth(selector.DepthUnbounded)
	}
	return nil
}
