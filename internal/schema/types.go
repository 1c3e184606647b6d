// Package schema defines the surface syntax of selector definitions as they
// appear in selectors.yml (or the equivalent CUE/JSON), before the parser
// normalizes them into selector expressions.
//
// A definition value is one of:
//
//	"tag:nightly +orders"              StringValue, resolved by the bare-string grammar
//	{union: [...]} / {intersection: [...]}   *Composite
//	{method: tag, value: nightly, ...}  *MethodAtom
//	{tag: nightly}                      MethodKey shorthand
//	{exclude: [...]}                    *ExcludeAtom, only valid inside a composite
package schema

import "github.com/yu-iskw/dbt-fusion/internal/selector"

// Value is a surface definition value.
//
// This is a sealed interface - only types in this package implement it.
type Value interface {
	surfaceValue() // Marker method - seals interface to this package
}

// StringValue is a bare selection string.
type StringValue string

// CompositeKind is the operator of a composite block.
type CompositeKind int

const (
	// CompositeNone marks a composite with no operator key.
	CompositeNone CompositeKind = iota
	CompositeUnion
	CompositeIntersection
)

func (k CompositeKind) String() string {
	switch k {
	case CompositeUnion:
		return "union"
	case CompositeIntersection:
		return "intersection"
	default:
		return "none"
	}
}

// Composite combines sub-definitions with union or intersection.
type Composite struct {
	Kind   CompositeKind
	Values []Value
	Line   int
}

// MethodAtom is the long form of a single method call.
type MethodAtom struct {
	Method            string
	Value             string
	ChildrensParents  bool
	Parents           bool
	Children          bool
	ParentsDepth      *uint32
	ChildrenDepth     *uint32
	IndirectSelection *selector.IndirectSelection
	Exclude           []Value
	Line              int
}

// HasGraphOperators reports whether any graph-relative flag is set.
func (m *MethodAtom) HasGraphOperators() bool {
	return m.ChildrensParents || m.Parents || m.Children || m.ParentsDepth != nil || m.ChildrenDepth != nil
}

// MethodKey is the {method: value} shorthand. Exactly one pair is valid;
// other sizes are kept so the parser can report them.
type MethodKey []KeyValue

// KeyValue is one shorthand pair.
type KeyValue struct {
	Key   string
	Value string
}

// ExcludeAtom is a standalone exclude block.
type ExcludeAtom struct {
	Values []Value
	Line   int
}

func (StringValue) surfaceValue()  {}
func (*Composite) surfaceValue()   {}
func (*MethodAtom) surfaceValue()  {}
func (MethodKey) surfaceValue()    {}
func (*ExcludeAtom) surfaceValue() {}

// Definition is one named selector.
type Definition struct {
	Name        string
	Description string
	Default     bool
	Definition  Value
	Line        int
}

// References returns the names of selectors referenced anywhere in v via
// {method: selector, value: name}, in document order.
func References(v Value) []string {
	var refs []string
	var walk func(Value)
	walkAll := func(vals []Value) {
		for _, sub := range vals {
			walk(sub)
		}
	}
	walk = func(v Value) {
		switch x := v.(type) {
		case *Composite:
			walkAll(x.Values)
		case *ExcludeAtom:
			walkAll(x.Values)
		case *MethodAtom:
			if x.Method == selector.MethodSelector {
				refs = append(refs, x.Value)
			}
			walkAll(x.Exclude)
		case MethodKey:
			for _, kv := range x {
				if kv.Key == selector.MethodSelector {
					refs = append(refs, kv.Value)
				}
			}
		}
	}
	walk(v)
	return refs
}
