package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Case     string // Case name
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "case %q: assertion failed: %s\n", e.Case, e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// Assertion types.
const (
	AssertSelection = "selection"
	AssertError     = "error"
	AssertWarnings  = "warnings"
	AssertBackends  = "backends_agree"
)

// assertSelection compares the selected ids with the expected ids as sets.
func assertSelection(caseName string, expected, actual []string) error {
	missing, unexpected := diff(expected, actual)
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+formatIDs(missing))
	}
	if len(unexpected) > 0 {
		parts = append(parts, "unexpected "+formatIDs(unexpected))
	}
	return &AssertionError{
		Case:     caseName,
		Type:     AssertSelection,
		Expected: formatIDs(expected),
		Actual:   formatIDs(actual) + " (" + strings.Join(parts, ", ") + ")",
	}
}

// assertError checks a resolution error against the expected substring.
func assertError(caseName, expected string, err error) error {
	switch {
	case expected == "" && err == nil:
		return nil
	case expected == "":
		return &AssertionError{Case: caseName, Type: AssertError, Expected: "no error", Actual: err.Error()}
	case err == nil:
		return &AssertionError{Case: caseName, Type: AssertError, Expected: fmt.Sprintf("error containing %q", expected), Actual: "no error"}
	case !strings.Contains(err.Error(), expected):
		return &AssertionError{Case: caseName, Type: AssertError, Expected: fmt.Sprintf("error containing %q", expected), Actual: err.Error()}
	default:
		return nil
	}
}

// assertWarnings checks that each expected substring matches the warning at
// the same position and that no extra warnings were logged.
func assertWarnings(caseName string, expected, actual []string) error {
	ok := len(expected) == len(actual)
	for i := 0; ok && i < len(expected); i++ {
		ok = strings.Contains(actual[i], expected[i])
	}
	if ok {
		return nil
	}
	return &AssertionError{
		Case:     caseName,
		Type:     AssertWarnings,
		Expected: fmt.Sprintf("%q", expected),
		Actual:   fmt.Sprintf("%q", actual),
	}
}

// assertBackendsAgree compares another backend's selection with the
// in-memory one.
func assertBackendsAgree(caseName, backend string, memory, other []string) error {
	missing, unexpected := diff(memory, other)
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	return &AssertionError{
		Case:     caseName,
		Type:     AssertBackends,
		Expected: BackendMemory + " " + formatIDs(memory),
		Actual:   backend + " " + formatIDs(other),
	}
}

// diff returns the ids only in want and the ids only in got, both sorted.
func diff(want, got []string) (missing, unexpected []string) {
	wantSet := make(map[string]bool, len(want))
	for _, id := range want {
		wantSet[id] = true
	}
	gotSet := make(map[string]bool, len(got))
	for _, id := range got {
		gotSet[id] = true
		if !wantSet[id] {
			unexpected = append(unexpected, id)
		}
	}
	for _, id := range want {
		if !gotSet[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return missing, unexpected
}

func formatIDs(ids []string) string {
	return "[" + strings.Join(ids, " ") + "]"
}
