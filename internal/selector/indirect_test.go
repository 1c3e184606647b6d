package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectModes(expr Expression) []*IndirectSelection {
	var modes []*IndirectSelection
	Walk(expr, func(e Expression) bool {
		if a, ok := e.(*Atom); ok {
			modes = append(modes, a.Criteria.Indirect)
		}
		return true
	})
	return modes
}

func TestSetIndirectSelection_StampsEveryAtom(t *testing.T) {
	expr := NewAnd(
		NewOr(NewAtom(MethodTag, "a"), NewAtom(MethodTag, "b")),
		NewExclude(NewAnd(NewAtom(MethodTag, "c"))),
		NewAtom(MethodTag, "d").WithExclude(NewAtom(MethodTag, "e")),
	)

	SetIndirectSelection(expr, IndirectCautious)

	modes := collectModes(expr)
	require.Len(t, modes, 5)
	for _, m := range modes {
		require.NotNil(t, m)
		assert.Equal(t, IndirectCautious, *m)
	}
}

func TestSetIndirectSelection_OverwritesExisting(t *testing.T) {
	atom := NewAtom(MethodTag, "a")
	atom.Criteria.Indirect = IndirectEmpty.Ptr()

	SetIndirectSelection(atom, IndirectBuildable)

	assert.Equal(t, IndirectBuildable, *atom.Criteria.Indirect)
}

func TestSetIndirectSelection_AtomsDoNotShareMode(t *testing.T) {
	a, b := NewAtom(MethodTag, "a"), NewAtom(MethodTag, "b")
	SetIndirectSelection(NewOr(a, b), IndirectEager)

	*a.Criteria.Indirect = IndirectEmpty
	assert.Equal(t, IndirectEager, *b.Criteria.Indirect)
}

func TestSetIndirectSelection_EmptyComposites(t *testing.T) {
	assert.NotPanics(t, func() {
		SetIndirectSelection(NewAnd(), IndirectEager)
		SetIndirectSelection(NewOr(), IndirectEager)
		SetIndirectSelection(nil, IndirectEager)
	})
}

func TestParseIndirectSelection(t *testing.T) {
	for _, s := range []string{"eager", "Cautious", " buildable ", "EMPTY"} {
		_, err := ParseIndirectSelection(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseIndirectSelection("lazy")
	assert.Error(t, err)
	assert.Equal(t, IndirectEager, DefaultIndirectSelection)
}
