package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertSelection(t *testing.T) {
	assert.NoError(t, assertSelection("c", []string{"a", "b"}, []string{"b", "a"}))
	assert.NoError(t, assertSelection("c", []string{}, nil))

	err := assertSelection("c", []string{"a", "b"}, []string{"b", "c"})
	require.Error(t, err)

	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertSelection, ae.Type)
	assert.Equal(t, "[a b]", ae.Expected)
	assert.Equal(t, "[b c] (missing [a], unexpected [c])", ae.Actual)
}

func TestAssertError(t *testing.T) {
	boom := errors.New("Unknown selector `x`")

	assert.NoError(t, assertError("c", "", nil))
	assert.NoError(t, assertError("c", "Unknown selector", boom))

	testCases := []struct {
		name     string
		expected string
		err      error
		actual   string
	}{
		{"unexpected error", "", boom, "Unknown selector `x`"},
		{"missing error", "cycle", nil, "no error"},
		{"wrong error", "cycle", boom, "Unknown selector `x`"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := assertError("c", tc.expected, tc.err)
			var ae *AssertionError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, AssertError, ae.Type)
			assert.Equal(t, tc.actual, ae.Actual)
		})
	}
}

func TestAssertWarnings(t *testing.T) {
	actual := []string{"Graph operators are ignored selector=base"}

	assert.NoError(t, assertWarnings("c", nil, nil))
	assert.NoError(t, assertWarnings("c", []string{"selector=base"}, actual))
	assert.Error(t, assertWarnings("c", nil, actual), "unexpected warnings fail")
	assert.Error(t, assertWarnings("c", []string{"selector=other"}, actual))
	assert.Error(t, assertWarnings("c", []string{"a", "b"}, actual))
}

func TestAssertBackendsAgree(t *testing.T) {
	assert.NoError(t, assertBackendsAgree("c", BackendSQLite, []string{"a"}, []string{"a"}))

	err := assertBackendsAgree("c", BackendSQLite, []string{"a"}, []string{"a", "b"})
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertBackends, ae.Type)
	assert.Equal(t, "memory [a]", ae.Expected)
	assert.Equal(t, "sqlite [a b]", ae.Actual)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Case: "c", Type: AssertSelection, Expected: "[a]", Actual: "[]"}
	assert.Equal(t, "case \"c\": assertion failed: selection\n  Expected: [a]\n  Actual: []", err.Error())
}

func TestDiff(t *testing.T) {
	missing, unexpected := diff([]string{"c", "a", "b"}, []string{"d", "b"})
	assert.Equal(t, []string{"a", "c"}, missing)
	assert.Equal(t, []string{"d"}, unexpected)
}
