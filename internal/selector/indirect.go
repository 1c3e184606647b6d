package selector

import (
	"fmt"
	"strings"
)

// IndirectSelection governs whether tests attached to selected nodes are
// pulled in when they were not matched directly.
type IndirectSelection string

const (
	// IndirectEager selects a test when any of its parents is selected.
	IndirectEager IndirectSelection = "eager"
	// IndirectCautious selects a test only when all of its parents are selected.
	IndirectCautious IndirectSelection = "cautious"
	// IndirectBuildable selects a test when every parent is selected or is
	// an ancestor of the selection.
	IndirectBuildable IndirectSelection = "buildable"
	// IndirectEmpty never selects tests indirectly.
	IndirectEmpty IndirectSelection = "empty"
)

// DefaultIndirectSelection is the mode applied when nothing else is configured.
const DefaultIndirectSelection = IndirectEager

// ParseIndirectSelection parses a mode name, case-insensitively.
func ParseIndirectSelection(s string) (IndirectSelection, error) {
	switch mode := IndirectSelection(strings.ToLower(strings.TrimSpace(s))); mode {
	case IndirectEager, IndirectCautious, IndirectBuildable, IndirectEmpty:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown indirect selection mode %q (expected eager, cautious, buildable or empty)", s)
	}
}

// Ptr returns a pointer to a copy of m.
func (m IndirectSelection) Ptr() *IndirectSelection { return &m }

// SetIndirectSelection stamps mode onto every atom in expr.
//
// The overwrite is unconditional: a mode already set on an atom is replaced.
// And and Or recurse into every operand, Exclude into its inner expression,
// and atoms into their nested exclude, so the whole tree carries one mode.
func SetIndirectSelection(expr Expression, mode IndirectSelection) {
	Walk(expr, func(e Expression) bool {
		if atom, ok := e.(*Atom); ok {
			atom.Criteria.Indirect = mode.Ptr()
		}
		return true
	})
}
