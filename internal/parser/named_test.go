package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

const inheritanceYAML = `
selectors:
  - name: base
    definition:
      union:
        - tag:nightly
        - exclude:
            - tag:deprecated
  - name: child
    definition:
      method: selector
      value: base
  - name: grandchild
    definition:
      method: selector
      value: child
  - name: with_graph
    definition:
      method: selector
      value: base
      parents: true
      children_depth: 1
  - name: with_exclude
    definition:
      method: selector
      value: base
      exclude:
        - tag:wip
  - name: shorthand_ref
    definition:
      selector: base
  - name: composed
    default: true
    definition:
      intersection:
        - method: selector
          value: base
        - resource_type:model
`

func TestParseNamed_InheritanceIsIdentity(t *testing.T) {
	p, h := newParser(t, inheritanceYAML)

	base, err := p.ParseNamed("base")
	require.NoError(t, err)
	assert.Equal(t, "and(or(tag:nightly), exclude(tag:deprecated))", selector.Format(base))

	for _, name := range []string{"child", "grandchild", "shorthand_ref"} {
		t.Run(name, func(t *testing.T) {
			expr, err := p.ParseNamed(name)
			require.NoError(t, err)
			assert.True(t, selector.Equal(base, expr), "got %s", selector.Format(expr))
		})
	}
	assert.Empty(t, h.Entries)
}

func TestParseNamed_GraphOperatorsOnReferenceWarn(t *testing.T) {
	p, h := newParser(t, inheritanceYAML)

	base, err := p.ParseNamed("base")
	require.NoError(t, err)
	expr, err := p.ParseNamed("with_graph")
	require.NoError(t, err)

	assert.True(t, selector.Equal(base, expr))
	require.Len(t, h.Entries, 1)
	assert.Equal(t, GraphOperatorsIgnored, h.Entries[0].Message)
	assert.Equal(t, "base", h.Entries[0].Fields.Get("selector"))
}

func TestParseNamed_ExcludeOnReferenceIsDropped(t *testing.T) {
	p, h := newParser(t, inheritanceYAML)

	base, err := p.ParseNamed("base")
	require.NoError(t, err)
	expr, err := p.ParseNamed("with_exclude")
	require.NoError(t, err)

	assert.True(t, selector.Equal(base, expr))
	assert.Empty(t, h.Entries)
}

func TestParseNamed_ReferenceInsideComposite(t *testing.T) {
	p, _ := newParser(t, inheritanceYAML)

	expr, err := p.ParseNamed("composed")
	require.NoError(t, err)
	assert.Equal(t,
		"and(and(or(tag:nightly), exclude(tag:deprecated)), resource_type:model)",
		selector.Format(expr))
}

func TestParseNamed_FreshTreePerResolution(t *testing.T) {
	p, _ := newParser(t, inheritanceYAML)

	a, err := p.ParseNamed("base")
	require.NoError(t, err)
	b, err := p.ParseNamed("base")
	require.NoError(t, err)

	selector.SetIndirectSelection(a, selector.IndirectEmpty)
	assert.False(t, selector.Equal(a, b), "trees must not share atoms")
}

func TestParseNamed_Unknown(t *testing.T) {
	p, _ := newParser(t, inheritanceYAML)

	_, err := p.ParseNamed("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSelection)
	assert.Equal(t, "Unknown selector `missing`", err.Error())
}

func TestParseNamed_ErrorNamesInnermostSelector(t *testing.T) {
	p, _ := newParser(t, `
selectors:
  - name: outer
    definition: {method: selector, value: middle}
  - name: middle
    definition: {union: [tag:a, {method: selector, value: ghost}]}
  - name: broken_leaf
    definition: {tag: a, path: b}
  - name: uses_broken
    definition: {method: selector, value: broken_leaf}
`)

	_, err := p.ParseNamed("outer")
	require.Error(t, err)
	var se *SelectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "middle", se.Selector)
	assert.Equal(t, "selector \"middle\": Unknown selector `ghost`", err.Error())

	_, err = p.ParseNamed("uses_broken")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken_leaf", se.Selector)
	assert.Contains(t, err.Error(), "MethodKey must have exactly one key-value pair")
}

func TestParseNamed_CycleFailsFast(t *testing.T) {
	p, _ := newParser(t, `
selectors:
  - name: a
    definition: {method: selector, value: b}
  - name: b
    definition: {union: [tag:x, {method: selector, value: a}]}
  - name: self
    definition: {selector: self}
`)

	_, err := p.ParseNamed("a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSelection)
	assert.Contains(t, err.Error(), "selector reference cycle: a -> b -> a")

	_, err = p.ParseNamed("self")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector reference cycle: self -> self")
}

func TestParseNamed_DiamondIsNotACycle(t *testing.T) {
	p, _ := newParser(t, `
selectors:
  - name: leaf
    definition: tag:a
  - name: left
    definition: {selector: leaf}
  - name: right
    definition: {selector: leaf}
  - name: top
    definition: {union: [{selector: left}, {selector: right}]}
`)

	expr, err := p.ParseNamed("top")
	require.NoError(t, err)
	assert.Equal(t, "or(tag:a, tag:a)", selector.Format(expr))
}

func TestParseDefault(t *testing.T) {
	p, _ := newParser(t, inheritanceYAML)
	expr, name, err := p.ParseDefault()
	require.NoError(t, err)
	assert.Equal(t, "composed", name)
	assert.NotNil(t, expr)

	p, _ = newParser(t, "selectors: [{name: a, definition: tag:a}]")
	_, _, err = p.ParseDefault()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no default selector")

	p, _ = newParser(t, "selectors: [{name: a, default: true, definition: tag:a}, {name: b, default: true, definition: tag:b}]")
	_, _, err = p.ParseDefault()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple default selectors: a, b")
}
