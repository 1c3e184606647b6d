// Package selector provides the canonical expression model for node selection.
//
// Every surface syntax (bare strings, union/intersection composites, exclude
// blocks, named-selector references) is normalized into an Expression tree
// before evaluation. The tree is built once, optionally stamped with an
// indirect-selection mode, evaluated once, then discarded.
//
// SEALED INTERFACE:
//
// Expression is sealed using the marker method pattern. Only *Atom, *And,
// *Or and *Exclude implement it, so consumers can write exhaustive type
// switches:
//
//	switch e := expr.(type) {
//	case *Atom:
//	case *And:
//	case *Or:
//	case *Exclude:
//	}
//
// EXCLUDE IS CONTEXTUAL:
//
// Exclude carries no implicit negation. It is a removal set only when it is
// a direct, non-first operand of an enclosing And. Anywhere else (top level,
// inside Or, evaluated alone) it denotes the raw matches of its inner
// expression. The per-atom Criteria.Exclude field is different: it is always
// subtracted from that atom's own matches.
//
// An And or Or with no operands denotes the empty set, never the universe.
//
// OWNERSHIP:
//
// Each sub-expression has exactly one owner. Constructors do not copy their
// arguments, so callers must not share a sub-tree between two parents. Use
// Clone when the same expression must appear twice.
package selector
