package graph

import (
	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// IndirectTests returns the tests not in selected that mode pulls in.
//
//   - eager: any parent of the test is selected
//   - cautious: every parent is selected
//   - buildable: every parent is selected or is an ancestor of the selection
//   - empty: nothing
//
// Tests without in-snapshot parents are never added indirectly.
func (g *Graph) IndirectTests(selected node.Set, mode selector.IndirectSelection) node.Set {
	return g.Admit(g.Candidates(selected), selected, mode)
}

// Candidates returns the tests not in selected that have at least one
// selected parent.
func (g *Graph) Candidates(selected node.Set) node.Set {
	candidates := node.NewSet()
	for id := range selected {
		for _, child := range g.children[id] {
			if n := g.nodes[child]; n != nil && n.IsTest() && !selected.Has(child) {
				candidates.Add(child)
			}
		}
	}
	return candidates
}

// Admit returns the candidates mode keeps given the final selection.
// Candidates already in selected are skipped.
func (g *Graph) Admit(candidates, selected node.Set, mode selector.IndirectSelection) node.Set {
	added := node.NewSet()
	if mode == selector.IndirectEmpty || len(candidates) == 0 || len(selected) == 0 {
		return added
	}

	var buildable node.Set
	if mode == selector.IndirectBuildable {
		buildable = selected.Clone()
		buildable.AddAll(g.Ancestors(selected, selector.DepthUnbounded))
	}

	for id := range candidates {
		if selected.Has(id) {
			continue
		}
		parents := g.parents[id]
		switch mode {
		case selector.IndirectCautious:
			if allIn(parents, selected) {
				added.Add(id)
			}
		case selector.IndirectBuildable:
			if allIn(parents, buildable) {
				added.Add(id)
			}
		default:
			added.Add(id)
		}
	}
	return added
}

func allIn(ids []string, s node.Set) bool {
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}
