// Package graph answers ancestor and descendant queries over the node
// dependency graph built from depends_on edges.
package graph

import (
	"sort"

	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/selector"
)

// Graph is an immutable adjacency index over a node snapshot.
// Edges to ids outside the snapshot are dropped.
type Graph struct {
	nodes    map[string]*node.Node
	parents  map[string][]string
	children map[string][]string
}

// New indexes nodes by their depends_on edges.
func New(nodes []*node.Node) *Graph {
	g := &Graph{
		nodes:    make(map[string]*node.Node, len(nodes)),
		parents:  make(map[string][]string, len(nodes)),
		children: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		g.nodes[n.UniqueID] = n
	}
	for _, n := range nodes {
		seen := make(map[string]bool, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; !ok || seen[dep] {
				continue
			}
			seen[dep] = true
			g.parents[n.UniqueID] = append(g.parents[n.UniqueID], dep)
			g.children[dep] = append(g.children[dep], n.UniqueID)
		}
	}
	for id := range g.children {
		sort.Strings(g.children[id])
	}
	return g
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *node.Node {
	return g.nodes[id]
}

// Parents returns the direct in-snapshot dependencies of id.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct in-snapshot dependents of id.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// Ancestors returns every node reachable from seeds over parent edges within
// depth hops. Seeds are only included when reachable from another seed.
func (g *Graph) Ancestors(seeds node.Set, depth uint32) node.Set {
	return g.walk(seeds, depth, g.parents)
}

// Descendants returns every node reachable from seeds over child edges within
// depth hops.
func (g *Graph) Descendants(seeds node.Set, depth uint32) node.Set {
	return g.walk(seeds, depth, g.children)
}

// walk is a level-by-level BFS so depth limits are exact.
func (g *Graph) walk(seeds node.Set, depth uint32, edges map[string][]string) node.Set {
	result := node.NewSet()
	visited := seeds.Clone()
	frontier := seeds.Sorted()

	for level := uint32(0); len(frontier) > 0 && (depth == selector.DepthUnbounded || level < depth); level++ {
		var next []string
		for _, id := range frontier {
			for _, adj := range edges[id] {
				result.Add(adj)
				if !visited.Has(adj) {
					visited.Add(adj)
					next = append(next, adj)
				}
			}
		}
		frontier = next
	}
	return result
}

// Expand applies the graph operators of c to the directly matched ids.
//
// parents and children add ancestors and descendants within their depth.
// childrens_parents (@) adds all descendants and then every ancestor of the
// selection plus those descendants.
func (g *Graph) Expand(direct node.Set, c *selector.Criteria) node.Set {
	result := direct.Clone()
	if c.ParentsDepth != nil {
		result.AddAll(g.Ancestors(direct, *c.ParentsDepth))
	}
	if c.ChildrenDepth != nil {
		result.AddAll(g.Descendants(direct, *c.ChildrenDepth))
	}
	if c.ChildrensParents {
		desc := g.Descendants(direct, selector.DepthUnbounded)
		result.AddAll(desc)
		seeds := direct.Clone()
		seeds.AddAll(desc)
		result.AddAll(g.Ancestors(seeds, selector.DepthUnbounded))
	}
	return result
}
