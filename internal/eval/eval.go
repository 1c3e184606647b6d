package eval

import (
	"github.com/yu-iskw/dbt-fusion/internal/graph"
	"github.com/yu-iskw/dbt-fusion/internal/log"
	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// Matcher reports whether a node satisfies an atom's direct predicate.
type Matcher func(n *node.Node, c *selector.Criteria) bool

// DefaultMatcher delegates to node.Node.Matches.
func DefaultMatcher(n *node.Node, c *selector.Criteria) bool {
	return n.Matches(c)
}

// Evaluator evaluates expressions against one node snapshot.
type Evaluator struct {
	nodes           []*node.Node
	match           Matcher
	graph           *graph.Graph
	defaultIndirect selector.IndirectSelection
	concurrency     int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMatcher replaces the per-node criteria matcher.
func WithMatcher(m Matcher) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.match = m
		}
	}
}

// WithGraph enables graph operators and indirect test selection.
// Without a graph those criteria fields are carried but inert.
func WithGraph(g *graph.Graph) Option {
	return func(e *Evaluator) { e.graph = g }
}

// WithDefaultIndirect sets the mode used for atoms whose own mode is unset.
func WithDefaultIndirect(mode selector.IndirectSelection) Option {
	return func(e *Evaluator) { e.defaultIndirect = mode }
}

// WithConcurrency bounds the number of selectors EvaluateAll runs at once.
// Zero or negative means unbounded.
func WithConcurrency(n int) Option {
	return func(e *Evaluator) { e.concurrency = n }
}

// New creates an Evaluator over nodes.
func New(nodes []*node.Node, opts ...Option) *Evaluator {
	e := &Evaluator{
		nodes:           nodes,
		match:           DefaultMatcher,
		defaultIndirect: selector.DefaultIndirectSelection,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate is a convenience function that evaluates expr against nodes with
// the default matcher and no graph.
func Evaluate(expr selector.Expression, nodes []*node.Node) node.Set {
	return New(nodes).Evaluate(expr)
}

// Evaluate returns the ids expr selects. The returned set is owned by the
// caller.
//
// Cautious and buildable tests are collected as candidates while the
// expression is combined and admitted once against the final selection, so
// a test whose parents come from different operands of a union still
// qualifies.
func (e *Evaluator) Evaluate(expr selector.Expression) node.Set {
	return e.resolve(e.eval(expr))
}

// selection is an intermediate result: settled ids plus candidate tests
// still waiting on the cautious or buildable check.
type selection struct {
	ids     node.Set
	pending map[string]selector.IndirectSelection
}

func newSelection() *selection {
	return &selection{ids: node.NewSet(), pending: map[string]selector.IndirectSelection{}}
}

// propose records id as a candidate under mode. Buildable admits a
// superset of cautious, so it wins when both ask for the same test.
func (s *selection) propose(id string, mode selector.IndirectSelection) {
	if prev, ok := s.pending[id]; ok && prev == selector.IndirectBuildable {
		return
	}
	s.pending[id] = mode
}

func (s *selection) has(id string) bool {
	if s.ids.Has(id) {
		return true
	}
	_, ok := s.pending[id]
	return ok
}

func (s *selection) union(other *selection) {
	s.ids.AddAll(other.ids)
	for id, mode := range other.pending {
		s.propose(id, mode)
	}
}

// intersect keeps ids settled on both sides. A candidate survives when the
// other side selects or proposes it too.
func (s *selection) intersect(other *selection) {
	next := &selection{ids: s.ids.Clone(), pending: map[string]selector.IndirectSelection{}}
	next.ids.Retain(other.ids)
	for _, side := range []*selection{s, other} {
		for id, mode := range side.pending {
			if !next.ids.Has(id) && s.has(id) && other.has(id) {
				next.propose(id, mode)
			}
		}
	}
	*s = *next
}

func (s *selection) subtract(ids node.Set) {
	s.ids.Remove(ids)
	for id := range ids {
		delete(s.pending, id)
	}
}

// resolve admits pending candidates against the settled ids.
func (e *Evaluator) resolve(s *selection) node.Set {
	if e.graph == nil || len(s.pending) == 0 {
		return s.ids
	}
	byMode := map[selector.IndirectSelection]node.Set{}
	for id, mode := range s.pending {
		if byMode[mode] == nil {
			byMode[mode] = node.NewSet()
		}
		byMode[mode].Add(id)
	}
	added := node.NewSet()
	for mode, candidates := range byMode {
		added.AddAll(e.graph.Admit(candidates, s.ids, mode))
	}
	s.ids.AddAll(added)
	return s.ids
}

func (e *Evaluator) eval(expr selector.Expression) *selection {
	switch x := expr.(type) {
	case *selector.Atom:
		return e.evalAtom(&x.Criteria)
	case *selector.Or:
		result := newSelection()
		for _, sub := range x.Exprs {
			result.union(e.eval(sub))
		}
		return result
	case *selector.And:
		return e.evalAnd(x.Exprs)
	case *selector.Exclude:
		// Raw inner matches. Only evalAnd subtracts.
		return e.eval(x.Inner)
	default:
		return newSelection()
	}
}

func (e *Evaluator) evalAnd(exprs []selector.Expression) *selection {
	if len(exprs) == 0 {
		return newSelection()
	}
	result := e.eval(exprs[0])
	for _, sub := range exprs[1:] {
		if _, ok := sub.(*selector.Exclude); ok {
			// Remove of an empty set is a no-op, never a reset.
			result.subtract(e.Evaluate(sub))
			continue
		}
		result.intersect(e.eval(sub))
	}
	return result
}

func (e *Evaluator) evalAtom(c *selector.Criteria) *selection {
	result := newSelection()
	for _, n := range e.nodes {
		if e.match(n, c) {
			result.ids.Add(n.UniqueID)
		}
	}
	direct := len(result.ids)

	if e.graph != nil {
		result.ids = e.graph.Expand(result.ids, c)
		mode := e.defaultIndirect
		if c.Indirect != nil {
			mode = *c.Indirect
		}
		switch mode {
		case selector.IndirectEmpty:
		case selector.IndirectCautious, selector.IndirectBuildable:
			for id := range e.graph.Candidates(result.ids) {
				result.propose(id, mode)
			}
		default:
			result.ids.AddAll(e.graph.IndirectTests(result.ids, selector.IndirectEager))
		}
	}

	if c.Exclude != nil {
		result.subtract(e.Evaluate(c.Exclude))
	}
	log.Tracef("atom %s:%s: %d direct, %d selected, %d pending",
		c.Method, c.Value, direct, len(result.ids), len(result.pending))
	return result
}
