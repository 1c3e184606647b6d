package selector

import "fmt"

// ValidationResult contains structural analysis of an expression.
type ValidationResult struct {
	// Clean is true when no warnings were raised.
	Clean bool

	// Warnings lists constructs that evaluate correctly but probably do not
	// mean what their author intended.
	Warnings []string
}

// Validate lints an expression tree.
//
// Every well-formed tree evaluates, so nothing here is an error. Warnings
// flag constructs whose meaning is easy to misread:
//  1. Exclude outside an And yields its inner matches, not a complement
//  2. Exclude as the first And operand seeds the result instead of subtracting
//  3. Empty And or Or is the empty set, unless it seeds an And of excludes
//  4. nil sub-expressions
//
// Validate is a pure function with no side effects.
func Validate(expr Expression) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validate(expr, "$", false)
	return ValidationResult{
		Clean:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(path, format string, args ...any) {
	v.warnings = append(v.warnings, path+": "+fmt.Sprintf(format, args...))
}

// validate walks expr. subtracting is true when expr is a non-first operand
// of an And.
func (v *validator) validate(expr Expression, path string, subtracting bool) {
	switch e := expr.(type) {
	case nil:
		v.addWarning(path, "nil expression")
	case *Atom:
		if e.Criteria.Value == "" {
			v.addWarning(path, "atom %s has an empty value", e.Criteria.Method)
		}
		if e.Criteria.Exclude != nil {
			v.validate(e.Criteria.Exclude, path+".exclude", false)
		}
	case *And:
		if len(e.Exprs) == 0 {
			v.addWarning(path, "empty and selects nothing")
		}
		for i, sub := range e.Exprs {
			subPath := fmt.Sprintf("%s.and[%d]", path, i)
			if i == 0 && isEmptyList(sub) && onlyExcludesAfterFirst(e.Exprs) {
				// exclude-only composite: the empty seed is intended
				continue
			}
			if _, ok := sub.(*Exclude); ok && i == 0 {
				v.addWarning(subPath, "exclude as first and operand seeds the result with its matches")
				v.validate(sub, subPath, true)
				continue
			}
			v.validate(sub, subPath, i > 0)
		}
	case *Or:
		if len(e.Exprs) == 0 {
			v.addWarning(path, "empty or selects nothing")
		}
		for i, sub := range e.Exprs {
			v.validate(sub, fmt.Sprintf("%s.or[%d]", path, i), false)
		}
	case *Exclude:
		if !subtracting {
			v.addWarning(path, "exclude outside an and selects its inner matches instead of removing them")
		}
		v.validate(e.Inner, path+".exclude", false)
	default:
		v.addWarning(path, "unknown expression type: %T", expr)
	}
}

func isEmptyList(expr Expression) bool {
	switch e := expr.(type) {
	case *Or:
		return len(e.Exprs) == 0
	case *And:
		return len(e.Exprs) == 0
	}
	return false
}

func onlyExcludesAfterFirst(exprs []Expression) bool {
	if len(exprs) < 2 {
		return false
	}
	for _, sub := range exprs[1:] {
		if _, ok := sub.(*Exclude); !ok {
			return false
		}
	}
	return true
}
