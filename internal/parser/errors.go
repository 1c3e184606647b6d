package parser

import (
	"errors"
	"fmt"
)

// ErrSelection matches every parse failure via errors.Is.
var ErrSelection = errors.New("selection error")

// SelectionError is the single error kind produced by the parser.
//
// Selector names the innermost named selector being resolved when the
// failure occurred; it is empty for inline definitions.
type SelectionError struct {
	Selector string
	Message  string
	Err      error
}

func (e *SelectionError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Selector != "" {
		return fmt.Sprintf("selector %q: %s", e.Selector, msg)
	}
	return msg
}

// Is reports whether target is ErrSelection.
func (e *SelectionError) Is(target error) bool {
	return target == ErrSelection
}

// Unwrap returns the underlying cause, if any.
func (e *SelectionError) Unwrap() error {
	return e.Err
}

func selErr(format string, args ...any) *SelectionError {
	return &SelectionError{Message: fmt.Sprintf(format, args...)}
}

// attach stamps name onto err unless a more deeply nested selector already
// claimed it.
func attach(err error, name string) error {
	var se *SelectionError
	if errors.As(err, &se) {
		if se.Selector == "" {
			se.Selector = name
		}
		return se
	}
	return &SelectionError{Selector: name, Message: "invalid definition", Err: err}
}
