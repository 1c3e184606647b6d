// Package specifier resolves command-line style selection strings such as
// "tag:nightly +orders,config.materialized:table" into selector expressions.
//
// Grammar, per whitespace-separated token:
//
//	token := part ("," part)*          parts are intersected
//	part  := ["@"] [N "+"] [method ("." arg)* ":"] value ["+" N]
//
// Tokens are unioned. A "+" without digits means unbounded depth.
package specifier

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// ErrNoSelection is returned when no token is present.
var ErrNoSelection = errors.New("no selection specified")

var partPattern = regexp.MustCompile(
	`^(?P<childrens_parents>@)?` +
		`(?P<parents>(?P<parents_depth>\d*)\+)?` +
		`(?:(?P<method>[\w.]+):)?` +
		`(?P<value>.*?)` +
		`(?P<children>\+(?P<children_depth>\d*))?$`,
)

var (
	groupChildrensParents = partPattern.SubexpIndex("childrens_parents")
	groupParents          = partPattern.SubexpIndex("parents")
	groupParentsDepth     = partPattern.SubexpIndex("parents_depth")
	groupMethod           = partPattern.SubexpIndex("method")
	groupValue            = partPattern.SubexpIndex("value")
	groupChildren         = partPattern.SubexpIndex("children")
	groupChildrenDepth    = partPattern.SubexpIndex("children_depth")
)

// Parse resolves selection strings. Every whitespace-separated token across
// all strings is one union operand.
func Parse(specs []string) (selector.Expression, error) {
	var tokens []string
	for _, s := range specs {
		tokens = append(tokens, strings.Fields(s)...)
	}
	if len(tokens) == 0 {
		return nil, ErrNoSelection
	}

	exprs := make([]selector.Expression, 0, len(tokens))
	for _, tok := range tokens {
		expr, err := parseToken(tok)
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

// ParseWithExclude combines --select and --exclude style inputs.
//
// An empty select means every node (fqn:*). Excludes, when present, are
// subtracted through an outer intersection, the same shape a composite with
// hoisted excludes produces.
func ParseWithExclude(selects, excludes []string) (selector.Expression, error) {
	include, err := Parse(selects)
	if errors.Is(err, ErrNoSelection) {
		include, err = selector.NewAtom(selector.MethodFqn, "*"), nil
	}
	if err != nil {
		return nil, err
	}

	exclude, err := Parse(excludes)
	if errors.Is(err, ErrNoSelection) {
		return include, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return selector.NewAnd(include, selector.NewExclude(exclude)), nil
}

func parseToken(tok string) (selector.Expression, error) {
	parts := strings.Split(tok, ",")
	atoms := make([]selector.Expression, 0, len(parts))
	for _, p := range parts {
		atom, err := ParsePart(p)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, atom)
	}
	if len(atoms) == 1 {
		return atoms[0], nil
	}
	return selector.NewAnd(atoms...), nil
}

// ParsePart resolves a single comma-free part into an atom.
func ParsePart(raw string) (*selector.Atom, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty selection part")
	}
	m := partPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid selection %q", raw)
	}

	value := m[groupValue]
	if value == "" {
		return nil, fmt.Errorf("invalid selection %q: missing value", raw)
	}
	if m[groupChildrensParents] != "" && m[groupParents] != "" {
		return nil, fmt.Errorf("invalid selection %q: '@' cannot be combined with a parents '+'", raw)
	}

	c := selector.Criteria{
		Value:            value,
		ChildrensParents: m[groupChildrensParents] != "",
	}

	if method := m[groupMethod]; method != "" {
		segments := strings.Split(method, ".")
		name, err := selector.ParseMethodName(segments[0])
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", raw, err)
		}
		c.Method = name
		if len(segments) > 1 {
			c.MethodArgs = segments[1:]
		}
	} else {
		c.Method = selector.DefaultMethodFor(value)
	}

	var err error
	if m[groupParents] != "" {
		if c.ParentsDepth, err = parseDepth(m[groupParentsDepth]); err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", raw, err)
		}
	}
	if m[groupChildren] != "" {
		if c.ChildrenDepth, err = parseDepth(m[groupChildrenDepth]); err != nil {
			return nil, fmt.Errorf("invalid selection %q: %w", raw, err)
		}
	}

	return &selector.Atom{Criteria: c}, nil
}

func parseDepth(digits string) (*uint32, error) {
	if digits == "" {
		return selector.Depth(selector.DepthUnbounded), nil
	}
	d, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("depth %q: %w", digits, err)
	}
	return selector.Depth(uint32(d)), nil
}
