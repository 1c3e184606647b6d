package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/yu-iskw/dbt-fusion/internal/schema"
)

// CompileSelectors reads the selectors list of a CUE value into definitions.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the document root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`selectors: [{name: "nightly", definition: "tag:nightly"}]`)
//	defs, err := CompileSelectors(v)
//
// Each definition body is exported as JSON and decoded with the same rules
// as selectors.yml, so both syntaxes accept exactly the same shapes.
func CompileSelectors(v cue.Value) ([]schema.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	listVal := v.LookupPath(cue.ParsePath("selectors"))
	if !listVal.Exists() {
		return nil, &CompileError{
			Field:   "selectors",
			Message: "selectors list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []schema.Definition
	for i := 0; iter.Next(); i++ {
		def, err := compileSelector(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func compileSelector(v cue.Value, index int) (schema.Definition, error) {
	var def schema.Definition
	field := fmt.Sprintf("selectors[%d]", index)

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return def, &CompileError{Field: field + ".name", Message: "name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Name = name
	def.Line = v.Pos().Line()
	field = fmt.Sprintf("selectors[%s]", name)

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		if def.Description, err = descVal.String(); err != nil {
			return def, formatCUEError(err)
		}
	}
	if defaultVal := v.LookupPath(cue.ParsePath("default")); defaultVal.Exists() {
		if def.Default, err = defaultVal.Bool(); err != nil {
			return def, formatCUEError(err)
		}
	}

	bodyVal := v.LookupPath(cue.ParsePath("definition"))
	if !bodyVal.Exists() {
		return def, &CompileError{Field: field + ".definition", Message: "definition is required", Pos: v.Pos()}
	}
	data, err := bodyVal.MarshalJSON()
	if err != nil {
		return def, formatCUEError(err)
	}
	if def.Definition, err = schema.UnmarshalValue(data); err != nil {
		return def, &CompileError{Field: field + ".definition", Message: err.Error(), Pos: bodyVal.Pos()}
	}
	return def, nil
}

// CompileError is a compile failure with CUE position info.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
