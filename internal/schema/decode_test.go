package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

func TestUnmarshalValue_String(t *testing.T) {
	v, err := UnmarshalValue([]byte(`"tag:nightly +orders"`))
	require.NoError(t, err)
	assert.Equal(t, StringValue("tag:nightly +orders"), v)
}

func TestUnmarshalValue_Composite(t *testing.T) {
	v, err := UnmarshalValue([]byte(`
intersection:
  - path:models/x/bronze/bronze_*
  - exclude:
      - path:models/x/bronse/no_such_*
`))
	require.NoError(t, err)

	comp, ok := v.(*Composite)
	require.True(t, ok)
	assert.Equal(t, CompositeIntersection, comp.Kind)
	require.Len(t, comp.Values, 2)
	assert.Equal(t, StringValue("path:models/x/bronze/bronze_*"), comp.Values[0])

	ex, ok := comp.Values[1].(*ExcludeAtom)
	require.True(t, ok)
	assert.Equal(t, []Value{StringValue("path:models/x/bronse/no_such_*")}, ex.Values)
}

func TestUnmarshalValue_MethodAtom(t *testing.T) {
	v, err := UnmarshalValue([]byte(`
method: config.materialized
value: table
parents: true
children_depth: 2
childrens_parents: false
indirect_selection: cautious
exclude:
  - tag: wip
`))
	require.NoError(t, err)

	atom, ok := v.(*MethodAtom)
	require.True(t, ok)
	assert.Equal(t, "config.materialized", atom.Method)
	assert.Equal(t, "table", atom.Value)
	assert.True(t, atom.Parents)
	assert.False(t, atom.Children)
	assert.Nil(t, atom.ParentsDepth)
	require.NotNil(t, atom.ChildrenDepth)
	assert.Equal(t, uint32(2), *atom.ChildrenDepth)
	require.NotNil(t, atom.IndirectSelection)
	assert.Equal(t, selector.IndirectCautious, *atom.IndirectSelection)
	assert.Equal(t, []Value{MethodKey{{Key: "tag", Value: "wip"}}}, atom.Exclude)
	assert.True(t, atom.HasGraphOperators())
}

func TestUnmarshalValue_JSON(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"union":[{"method":"tag","value":"a"},"tag:b"]}`))
	require.NoError(t, err)
	comp, ok := v.(*Composite)
	require.True(t, ok)
	assert.Equal(t, CompositeUnion, comp.Kind)
	assert.Len(t, comp.Values, 2)
}

func TestUnmarshalValue_MethodKeyKeepsAllPairs(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{tag: nightly, path: models}`))
	require.NoError(t, err)
	assert.Equal(t, MethodKey{{"tag", "nightly"}, {"path", "models"}}, v)

	v, err = UnmarshalValue([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, MethodKey{}, v)
}

func TestUnmarshalValue_Errors(t *testing.T) {
	tests := []struct {
		name, doc, msg string
	}{
		{"null", `~`, "null"},
		{"list", `[a, b]`, "string or a mapping"},
		{"both composites", `{union: [a], intersection: [b]}`, "exactly one of union or intersection"},
		{"composite not list", `{union: a}`, "expected a list"},
		{"unknown atom key", `{method: tag, value: a, bogus: 1}`, `unknown key "bogus"`},
		{"atom without value", `{method: tag}`, "has no value"},
		{"bad depth", `{method: tag, value: a, parents_depth: -1}`, "parents_depth"},
		{"bad bool", `{method: tag, value: a, parents: maybe}`, "parents: expected a boolean"},
		{"bad indirect", `{method: tag, value: a, indirect_selection: lazy}`, "unknown indirect selection mode"},
		{"exclude with extra", `{exclude: [a], tag: b}`, "must not have other keys"},
		{"nested shorthand", `{tag: [a]}`, "must map to a scalar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalValue([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReferences(t *testing.T) {
	v, err := UnmarshalValue([]byte(`
union:
  - method: selector
    value: base
    exclude:
      - selector: excluded
  - exclude:
      - method: selector
        value: other
  - tag: x
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "excluded", "other"}, References(v))
}
