package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yu-iskw/dbt-fusion/internal/schema"
)

// CycleWarning represents a selector reference cycle.
//
// The parser refuses to resolve any selector on a cycle, so callers treat
// these as errors. The type keeps the warning shape for reporting.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error"
}

// AnalyzeCycles finds selector reference cycles.
//
// The algorithm:
//  1. Build a name → referenced names graph from selector: references
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-reference as a cycle
//
// References to undefined selectors are ignored here; Validate reports them
// separately. Output is sorted by the first name on each cycle.
func AnalyzeCycles(defs []schema.Definition) []CycleWarning {
	graph := buildReferenceGraph(defs)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// referenceGraph maps selector name → names it references.
type referenceGraph map[string][]string

func buildReferenceGraph(defs []schema.Definition) referenceGraph {
	defined := make(map[string]bool, len(defs))
	for _, d := range defs {
		defined[d.Name] = true
	}
	graph := make(referenceGraph, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			continue
		}
		seen := map[string]bool{}
		edges := []string{}
		for _, ref := range schema.References(d.Definition) {
			if defined[ref] && !seen[ref] {
				seen[ref] = true
				edges = append(edges, ref)
			}
		}
		sort.Strings(edges)
		graph[d.Name] = edges
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph referenceGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph referenceGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// Root node: pop the stack into an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning starting at its
// smallest name.
func cycleSCCToWarning(scc []string, graph referenceGraph) CycleWarning {
	sorted := append([]string(nil), scc...)
	sort.Strings(sorted)

	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(sorted, graph)
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("selector reference cycle: %s", strings.Join(path, " -> ")),
		Level:   "error",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph referenceGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{}

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if neighbor == start && len(path) > 1 {
				next = neighbor
				break
			}
			if members[neighbor] && !visited[neighbor] && next == "" {
				next = neighbor
			}
		}
		if next == "" {
			path = append(path, start)
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
