package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/wildcard"
)

// ErrUnsupported marks criteria the SQL backend cannot express. Callers fall
// back to the in-memory evaluator.
var ErrUnsupported = errors.New("not supported by the sql backend")

// emptySet selects nothing. Used for empty and/or.
const emptySet = "SELECT unique_id FROM nodes WHERE 0"

// SQLCompiler compiles selector expressions to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries end with ORDER BY unique_id for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
//
// The generated SQL reads the catalog tables nodes and node_tags and returns
// one column, unique_id. It computes the same set as the in-memory evaluator
// without a graph: graph operators are rejected, and indirect selection is
// ignored the same way the evaluator ignores it.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts an expression to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(expr selector.Expression) (string, []any, error) {
	if expr == nil {
		return "", nil, fmt.Errorf("cannot compile nil expression")
	}
	q, params, err := c.compileSet(expr)
	if err != nil {
		return "", nil, err
	}

	// MANDATORY: Always add ORDER BY
	sql := fmt.Sprintf("SELECT unique_id FROM (%s) ORDER BY unique_id ASC COLLATE BINARY", q)
	return sql, params, nil
}

// compileSet returns a SELECT (possibly compound) yielding unique_id.
func (c *SQLCompiler) compileSet(expr selector.Expression) (string, []any, error) {
	switch x := expr.(type) {
	case *selector.Atom:
		return c.compileAtom(&x.Criteria)
	case *selector.Or:
		return c.compileOr(x.Exprs)
	case *selector.And:
		return c.compileAnd(x.Exprs)
	case *selector.Exclude:
		// Raw inner matches. Only compileAnd subtracts.
		return c.compileSet(x.Inner)
	default:
		return "", nil, fmt.Errorf("unsupported expression type: %T", expr)
	}
}

// compileOr unions operands.
func (c *SQLCompiler) compileOr(exprs []selector.Expression) (string, []any, error) {
	if len(exprs) == 0 {
		return emptySet, nil, nil
	}
	var parts []string
	var allParams []any
	for i, sub := range exprs {
		q, params, err := c.compileSet(sub)
		if err != nil {
			return "", nil, fmt.Errorf("or[%d]: %w", i, err)
		}
		parts = append(parts, operand(q))
		allParams = append(allParams, params...)
	}
	return strings.Join(parts, " UNION "), allParams, nil
}

// compileAnd seeds with the first operand, then intersects each following
// operand or, for an Exclude operand, subtracts it.
func (c *SQLCompiler) compileAnd(exprs []selector.Expression) (string, []any, error) {
	if len(exprs) == 0 {
		return emptySet, nil, nil
	}
	var sb strings.Builder
	var allParams []any
	for i, sub := range exprs {
		q, params, err := c.compileSet(sub)
		if err != nil {
			return "", nil, fmt.Errorf("and[%d]: %w", i, err)
		}
		if i > 0 {
			if _, ok := sub.(*selector.Exclude); ok {
				sb.WriteString(" EXCEPT ")
			} else {
				sb.WriteString(" INTERSECT ")
			}
		}
		sb.WriteString(operand(q))
		allParams = append(allParams, params...)
	}
	return sb.String(), allParams, nil
}

// compileAtom compiles the direct predicate and subtracts the nested
// exclude.
func (c *SQLCompiler) compileAtom(cr *selector.Criteria) (string, []any, error) {
	if cr.HasGraphOperators() {
		return "", nil, fmt.Errorf("%w: graph operators on %s:%s", ErrUnsupported, cr.Method, cr.Value)
	}
	where, params, err := c.compilePredicate(cr)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT unique_id FROM nodes WHERE " + where
	if cr.Exclude == nil {
		return q, params, nil
	}

	exQ, exParams, err := c.compileSet(cr.Exclude)
	if err != nil {
		return "", nil, fmt.Errorf("exclude: %w", err)
	}
	return operand(q) + " EXCEPT " + operand(exQ), append(params, exParams...), nil
}

// compilePredicate compiles one criteria to a WHERE clause fragment over
// nodes. Each branch mirrors node.Node.Matches.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(cr *selector.Criteria) (string, []any, error) {
	v := cr.Value
	switch cr.Method {
	case selector.MethodFqn:
		return compileFQN(v)
	case selector.MethodTag:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "EXISTS (SELECT 1 FROM node_tags t WHERE t.unique_id = nodes.unique_id AND " + m.on("t.tag") + ")",
			m.params(1), nil
	case selector.MethodPath:
		return compilePath(v)
	case selector.MethodFile:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "path <> '' AND (" + m.on("file_name") + " OR " + m.on("file_stem") + ")", m.params(2), nil
	case selector.MethodResourceType:
		return "resource_type = ?", []any{v}, nil
	case selector.MethodPackage:
		return "package_name = ?", []any{v}, nil
	case selector.MethodAccess:
		return "access <> '' AND access = ?", []any{v}, nil
	case selector.MethodGroup:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "grp <> '' AND " + m.on("grp"), m.params(1), nil
	case selector.MethodTestName:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "resource_type = 'test' AND test_name <> '' AND " + m.on("test_name"), m.params(1), nil
	case selector.MethodTestType:
		switch v {
		case "generic", "schema":
			return "resource_type = 'test' AND test_name <> ''", nil, nil
		case "singular", "data":
			return "resource_type = 'test' AND test_name = ''", nil, nil
		default:
			return "0", nil, nil
		}
	case selector.MethodSource:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "resource_type = 'source' AND (" +
			m.on("source_name") + " OR " +
			m.on("source_name || '.' || name") + " OR " +
			m.on("package_name || '.' || source_name || '.' || name") + ")", m.params(3), nil
	case selector.MethodExposure:
		m, err := newMatch(v)
		if err != nil {
			return "", nil, err
		}
		return "resource_type = 'exposure' AND (" +
			m.on("name") + " OR " +
			m.on("package_name || '.' || name") + ")", m.params(2), nil
	case selector.MethodConfig:
		return "", nil, fmt.Errorf("%w: config method", ErrUnsupported)
	default:
		return "", nil, fmt.Errorf("%w: method %s", ErrUnsupported, cr.Method)
	}
}

func compileFQN(v string) (string, []any, error) {
	m, err := newMatch(v)
	if err != nil {
		return "", nil, err
	}
	sql := "(" + m.on("fqn") + " OR " + m.on("name")
	params := m.params(2)
	if !m.glob && v != "" {
		sql += " OR instr(fqn, ?) = 1"
		params = append(params, v+".")
	}
	return sql + ")", params, nil
}

func compilePath(v string) (string, []any, error) {
	v = strings.ReplaceAll(v, `\`, "/")
	m, err := newMatch(v)
	if err != nil {
		return "", nil, err
	}
	sql := "path <> '' AND (" + m.on("path")
	params := m.params(1)
	if dir := strings.TrimSuffix(v, "/"); !m.glob && dir != "" {
		sql += " OR instr(path, ?) = 1"
		params = append(params, dir+"/")
	}
	return sql + ")", params, nil
}

// match is a comparison against one selector value: equality for literals,
// GLOB for wildcard patterns.
type match struct {
	glob  bool
	value string
}

func newMatch(v string) (match, error) {
	if !wildcard.HasWildcard(v) {
		return match{value: v}, nil
	}
	pattern, err := TranslateGlob(v)
	if err != nil {
		return match{}, err
	}
	return match{glob: true, value: pattern}, nil
}

func (m match) on(column string) string {
	if m.glob {
		return column + " GLOB ?"
	}
	return column + " = ?"
}

// params repeats the bound value once per placeholder.
func (m match) params(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = m.value
	}
	return out
}

// TranslateGlob rewrites a wildcard pattern into SQLite GLOB syntax.
// Character class negation [!x] becomes [^x]. Alternation and backslash
// escapes have no GLOB equivalent and are rejected, as is [^x], which means
// something else to the in-memory matcher.
func TranslateGlob(pattern string) (string, error) {
	if strings.ContainsAny(pattern, `{\`) {
		return "", fmt.Errorf("%w: glob %q uses alternation or escapes", ErrUnsupported, pattern)
	}
	if strings.Contains(pattern, "[^") {
		return "", fmt.Errorf("%w: glob %q uses [^", ErrUnsupported, pattern)
	}
	if !wildcard.Valid(pattern) {
		return "", fmt.Errorf("%w: invalid glob %q", ErrUnsupported, pattern)
	}
	return strings.ReplaceAll(pattern, "[!", "[^"), nil
}

// operand wraps q so it can take part in a compound select regardless of
// its own shape.
func operand(q string) string {
	return "SELECT unique_id FROM (" + q + ")"
}
