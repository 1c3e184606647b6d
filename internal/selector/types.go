package selector

import "math"

// DepthUnbounded is the depth sentinel for a parents or children request
// without an explicit limit.
const DepthUnbounded uint32 = math.MaxUint32

// Expression is a node in the selection expression tree.
//
// This is a sealed interface - only types in this package implement it.
//
// Expression types:
//   - *Atom: a single method-based predicate
//   - *And: intersection of operands, with Exclude operands subtracted
//   - *Or: union of operands
//   - *Exclude: a removal-set marker, meaningful only inside And
type Expression interface {
	expressionNode() // Marker method - seals interface to this package
}

// Atom is a leaf predicate.
type Atom struct {
	Criteria Criteria
}

// And intersects its operands left to right.
//
// The first operand seeds the result. Each later operand is intersected,
// except an *Exclude operand, whose matches are removed instead. An Exclude
// that matches nothing leaves the running result unchanged.
type And struct {
	Exprs []Expression
}

// Or is the union of its operands.
type Or struct {
	Exprs []Expression
}

// Exclude marks a removal set.
//
// Only an enclosing And interprets Exclude as subtraction. Evaluated anywhere
// else it yields the matches of Inner, not their complement.
type Exclude struct {
	Inner Expression
}

func (*Atom) expressionNode()    {}
func (*And) expressionNode()     {}
func (*Or) expressionNode()      {}
func (*Exclude) expressionNode() {}

// Criteria is the payload of an Atom.
type Criteria struct {
	// Method selects the node attribute to test.
	Method MethodName `json:"method"`

	// MethodArgs holds sub-qualifiers from dotted method syntax, e.g. the
	// "materialized" in config.materialized.
	MethodArgs []string `json:"method_args,omitempty"`

	// Value is the pattern or literal matched against the attribute.
	Value string `json:"value"`

	// ChildrensParents requests descendants plus all of their ancestors (@).
	ChildrensParents bool `json:"childrens_parents,omitempty"`

	// ParentsDepth requests ancestor expansion. nil means not requested,
	// DepthUnbounded means no limit.
	ParentsDepth *uint32 `json:"parents_depth,omitempty"`

	// ChildrenDepth requests descendant expansion, same shape as ParentsDepth.
	ChildrenDepth *uint32 `json:"children_depth,omitempty"`

	// Indirect is the indirect-selection mode. nil inherits the default
	// supplied at evaluation time.
	Indirect *IndirectSelection `json:"indirect_selection,omitempty"`

	// Exclude is a nested removal set, always subtracted from this atom's
	// own matches regardless of where the atom sits in the tree.
	Exclude Expression `json:"-"`
}

// Parents reports whether ancestor expansion was requested.
func (c *Criteria) Parents() bool { return c.ParentsDepth != nil }

// Children reports whether descendant expansion was requested.
func (c *Criteria) Children() bool { return c.ChildrenDepth != nil }

// HasGraphOperators reports whether any graph-relative flag is set.
func (c *Criteria) HasGraphOperators() bool {
	return c.ChildrensParents || c.Parents() || c.Children()
}

// Depth returns a pointer to d, for filling ParentsDepth and ChildrenDepth.
func Depth(d uint32) *uint32 { return &d }

// NewAtom returns an atom with the given method and value.
func NewAtom(method MethodName, value string) *Atom {
	return &Atom{Criteria: Criteria{Method: method, Value: value}}
}

// NewAnd returns the intersection of exprs.
func NewAnd(exprs ...Expression) *And {
	if exprs == nil {
		exprs = []Expression{}
	}
	return &And{Exprs: exprs}
}

// NewOr returns the union of exprs.
func NewOr(exprs ...Expression) *Or {
	if exprs == nil {
		exprs = []Expression{}
	}
	return &Or{Exprs: exprs}
}

// NewExclude wraps inner as a removal set.
func NewExclude(inner Expression) *Exclude {
	return &Exclude{Inner: inner}
}

// WithExclude attaches a nested exclude to the atom and returns it.
func (a *Atom) WithExclude(exclude Expression) *Atom {
	a.Criteria.Exclude = exclude
	return a
}

// Clone returns a deep copy of expr.
func Clone(expr Expression) Expression {
	switch e := expr.(type) {
	case *Atom:
		c := e.Criteria
		if c.MethodArgs != nil {
			c.MethodArgs = append([]string(nil), c.MethodArgs...)
		}
		if c.ParentsDepth != nil {
			c.ParentsDepth = Depth(*c.ParentsDepth)
		}
		if c.ChildrenDepth != nil {
			c.ChildrenDepth = Depth(*c.ChildrenDepth)
		}
		if c.Indirect != nil {
			mode := *c.Indirect
			c.Indirect = &mode
		}
		if c.Exclude != nil {
			c.Exclude = Clone(c.Exclude)
		}
		return &Atom{Criteria: c}
	case *And:
		return &And{Exprs: cloneAll(e.Exprs)}
	case *Or:
		return &Or{Exprs: cloneAll(e.Exprs)}
	case *Exclude:
		return &Exclude{Inner: Clone(e.Inner)}
	default:
		return nil
	}
}

func cloneAll(exprs []Expression) []Expression {
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		out[i] = Clone(e)
	}
	return out
}

// Walk visits expr depth-first in pre-order, including nested atom
// excludes. Returning false from fn stops descent below that node.
func Walk(expr Expression, fn func(Expression) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *Atom:
		if e.Criteria.Exclude != nil {
			Walk(e.Criteria.Exclude, fn)
		}
	case *And:
		for _, sub := range e.Exprs {
			Walk(sub, fn)
		}
	case *Or:
		for _, sub := range e.Exprs {
			Walk(sub, fn)
		}
	case *Exclude:
		Walk(e.Inner, fn)
	}
}
