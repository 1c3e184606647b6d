package compiler

import (
	"fmt"

	"github.com/yu-iskw/dbt-fusion/internal/schema"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
	"github.com/yu-iskw/dbt-fusion/internal/specifier"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedValue = "E100" // unsupported definition value

	// Registry errors (E101-E104)
	ErrEmptyName        = "E101" // selector name is required
	ErrDuplicateName    = "E102" // duplicate selector name
	ErrMultipleDefaults = "E103" // more than one default selector
	ErrUnknownReference = "E104" // reference to an undefined selector

	// Definition errors (E105-E109)
	ErrEmptyList        = "E105" // composite without a list, or empty exclude list
	ErrMethodKeyArity   = "E106" // shorthand must have exactly one pair
	ErrTopLevelExclude  = "E107" // exclude block outside a composite
	ErrReferenceCycle   = "E108" // selector reference cycle
	ErrInvalidSelection = "E109" // bare string does not parse
)

// ValidationError represents a selector validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks selector definitions without resolving them.
// Returns all errors found (does not fail-fast), in document order, followed
// by reference cycles.
//
// Every error reported here would also make the parser fail for the
// affected selector.
func Validate(defs []schema.Definition) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(defs))
	var defaults []string
	for i, def := range defs {
		field := def.Name
		if field == "" {
			field = fmt.Sprintf("selectors[%d]", i)
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "selector name is required",
				Code:    ErrEmptyName,
				Line:    def.Line,
			})
		} else if names[def.Name] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate selector name %q", def.Name),
				Code:    ErrDuplicateName,
				Line:    def.Line,
			})
		}
		names[def.Name] = true
		if def.Default {
			defaults = append(defaults, def.Name)
		}
	}
	if len(defaults) > 1 {
		errs = append(errs, ValidationError{
			Field:   "default",
			Message: fmt.Sprintf("multiple default selectors: %v", defaults),
			Code:    ErrMultipleDefaults,
		})
	}

	for i, def := range defs {
		field := def.Name
		if field == "" {
			field = fmt.Sprintf("selectors[%d]", i)
		}
		v := &definitionValidator{names: names, line: def.Line}
		v.validateTop(def.Definition, field+".definition")
		errs = append(errs, v.errs...)
	}

	for _, c := range AnalyzeCycles(defs) {
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    ErrReferenceCycle,
		})
	}
	return errs
}

// definitionValidator accumulates errors for one definition.
type definitionValidator struct {
	names map[string]bool
	line  int
	errs  []ValidationError
}

func (v *definitionValidator) add(field, code string, line int, format string, args ...any) {
	if line == 0 {
		line = v.line
	}
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    line,
	})
}

// validateTop validates a value in a position where an exclude block is not
// allowed.
func (v *definitionValidator) validateTop(val schema.Value, field string) {
	if ex, ok := val.(*schema.ExcludeAtom); ok {
		v.add(field, ErrTopLevelExclude, ex.Line, "exclude block is only allowed inside union or intersection")
		return
	}
	v.validate(val, field)
}

func (v *definitionValidator) validate(val schema.Value, field string) {
	switch x := val.(type) {
	case nil:
		v.add(field, ErrUnsupportedValue, 0, "definition is empty")
	case schema.StringValue:
		if _, err := specifier.Parse([]string{string(x)}); err != nil {
			v.add(field, ErrInvalidSelection, 0, "%v", err)
		}
	case *schema.Composite:
		if x.Kind == schema.CompositeNone {
			v.add(field, ErrEmptyList, x.Line, "composite has no union or intersection list")
		}
		for i, sub := range x.Values {
			subField := fmt.Sprintf("%s.%s[%d]", field, x.Kind, i)
			if ex, ok := sub.(*schema.ExcludeAtom); ok {
				if len(ex.Values) == 0 {
					v.add(subField, ErrEmptyList, ex.Line, "exclude list is empty")
				}
				v.validateList(ex.Values, subField+".exclude")
				continue
			}
			v.validate(sub, subField)
		}
	case *schema.MethodAtom:
		v.validateMethod(x.Method, x.Value, field, x.Line)
		v.validateList(x.Exclude, field+".exclude")
	case schema.MethodKey:
		if len(x) != 1 {
			v.add(field, ErrMethodKeyArity, 0, "method shorthand must have exactly one key-value pair, got %d", len(x))
			return
		}
		v.validateMethod(x[0].Key, x[0].Value, field, 0)
	case *schema.ExcludeAtom:
		v.add(field, ErrTopLevelExclude, x.Line, "exclude block is only allowed inside union or intersection")
	default:
		v.add(field, ErrUnsupportedValue, 0, "unsupported definition value %T", val)
	}
}

func (v *definitionValidator) validateList(vals []schema.Value, field string) {
	for i, sub := range vals {
		v.validateTop(sub, fmt.Sprintf("%s[%d]", field, i))
	}
}

func (v *definitionValidator) validateMethod(method, value, field string, line int) {
	if method == selector.MethodSelector && !v.names[value] {
		v.add(field, ErrUnknownReference, line, "unknown selector %q", value)
	}
}
