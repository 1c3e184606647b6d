package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
)

func testNodes() []*node.Node {
	return []*node.Node{
		{
			UniqueID:     "model.p.a",
			Name:         "a",
			ResourceType: node.ResourceModel,
			PackageName:  "p",
			FQN:          []string{"p", "a"},
			Path:         "models/a.sql",
			Tags:         []string{"keep"},
		},
		{
			UniqueID:     "model.p.b",
			Name:         "b",
			ResourceType: node.ResourceModel,
			PackageName:  "p",
			FQN:          []string{"p", "b"},
			Path:         "models/b.sql",
			Tags:         []string{"keep", "drop"},
			DependsOn:    []string{"model.p.a"},
		},
		{
			UniqueID:     "test.p.not_null_a_id",
			Name:         "not_null_a_id",
			ResourceType: node.ResourceTest,
			PackageName:  "p",
			FQN:          []string{"p", "not_null_a_id"},
			TestName:     "not_null",
			DependsOn:    []string{"model.p.a"},
		},
	}
}

func mustSelectors(t *testing.T, data string) []schema.Definition {
	t.Helper()
	f, err := schema.ParseFile([]byte(data))
	require.NoError(t, err)
	return f.Selectors
}

func TestRun_PassingScenario(t *testing.T) {
	scenario := &Scenario{
		Name:  "passing",
		Nodes: testNodes(),
		Selectors: mustSelectors(t, `
selectors:
  - name: kept
    definition:
      intersection:
        - "tag:keep"
        - exclude: ["tag:drop"]
`),
		Cases: []Case{
			{Name: "kept", Selector: "kept", Expect: []string{"model.p.a"}},
			{Name: "cli", Select: []string{"tag:keep"}, Expect: []string{"model.p.a", "model.p.b"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Cases, 2)
	assert.Equal(t, "and(and(tag:keep), exclude(tag:drop))", result.Cases[0].Expression)
	assert.Equal(t, []string{"model.p.a"}, result.Cases[0].Selected)
	assert.Equal(t, "tag:keep", result.Cases[1].Expression)
}

func TestRun_SelectionMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:  "mismatch",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "wrong", Select: []string{"tag:drop"}, Expect: []string{"model.p.a"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `case "wrong": assertion failed: selection`)
	assert.Contains(t, result.Errors[0], "missing [model.p.a]")
	assert.Contains(t, result.Errors[0], "unexpected [model.p.b]")
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:  "unexpected_error",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "missing", Selector: "nope", Expect: []string{}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "Unknown selector `nope`", result.Cases[0].Error)
	assert.Empty(t, result.Cases[0].Expression)
	assert.NotNil(t, result.Cases[0].Selected)
}

func TestRun_ExpectedErrorPasses(t *testing.T) {
	scenario := &Scenario{
		Name:  "expected_error",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "missing", Selector: "nope", ExpectError: "Unknown selector"},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Warnings(t *testing.T) {
	selectors := mustSelectors(t, `
selectors:
  - name: base
    definition: "tag:keep"
  - name: derived
    definition:
      method: selector
      value: base
      parents: true
`)

	scenario := &Scenario{
		Name:      "warnings",
		Nodes:     testNodes(),
		Selectors: selectors,
		Cases: []Case{
			{Name: "derived", Selector: "derived", Expect: []string{"model.p.a", "model.p.b"}, ExpectWarnings: []string{"selector inheritance"}},
			{Name: "base", Selector: "base", Expect: []string{"model.p.a", "model.p.b"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Cases[0].Warnings, 1)
	assert.Contains(t, result.Cases[0].Warnings[0], "selector=base")
	assert.Empty(t, result.Cases[1].Warnings, "warnings must not leak into later cases")
}

func TestRun_MissingWarningFails(t *testing.T) {
	scenario := &Scenario{
		Name:  "missing_warning",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "plain", Select: []string{"tag:keep"}, Expect: []string{"model.p.a", "model.p.b"}, ExpectWarnings: []string{"anything"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], AssertWarnings)
}

func TestRun_GraphIndirectSelection(t *testing.T) {
	scenario := &Scenario{
		Name:  "graph",
		Graph: true,
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "eager", Select: []string{"p.a"}, Expect: []string{"model.p.a", "test.p.not_null_a_id"}},
			{Name: "empty", Select: []string{"p.a"}, IndirectSelection: "empty", Expect: []string{"model.p.a"}},
			{Name: "children", Select: []string{"p.a+"}, IndirectSelection: "empty", Expect: []string{"model.p.a", "model.p.b", "test.p.not_null_a_id"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithoutGraphIgnoresOperators(t *testing.T) {
	scenario := &Scenario{
		Name:  "no_graph",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "children", Select: []string{"p.a+"}, Backends: []string{BackendMemory}, Expect: []string{"model.p.a"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SQLiteUnsupportedReported(t *testing.T) {
	scenario := &Scenario{
		Name:  "sqlite_unsupported",
		Nodes: testNodes(),
		Cases: []Case{
			{Name: "children", Select: []string{"p.a+"}, Expect: []string{"model.p.a"}},
		},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `case "children": sqlite backend:`)
}

func TestRun_DuplicateSelectorNames(t *testing.T) {
	scenario := &Scenario{
		Name:  "dupes",
		Nodes: testNodes(),
		Selectors: []schema.Definition{
			{Name: "x", Definition: schema.StringValue("tag:keep")},
			{Name: "x", Definition: schema.StringValue("tag:drop")},
		},
		Cases: []Case{{Name: "x", Selector: "x", Expect: []string{}}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate selector name")
}
