package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/planir/internal/ir"
)

// CycleWarning represents a cycle in the graph's data and control edges.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - while loops built from Enter/Merge/NextIteration frames
//   - graphs that are still being rewritten
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on a graph.
//
// The algorithm:
//  1. Build producer → consumer edges from every node's inputs
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Inputs that reference undefined nodes are ignored; Validate reports them.
// Warnings are ordered by the graph position of their first node. A DAG
// returns an empty warning list.
func AnalyzeCycles(g *ir.GraphDef) []CycleWarning {
	if g == nil || len(g.Node) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildDependencyGraph(g)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, order))
		}
	}
	return warnings
}

// dependencyGraph maps node → nodes consuming one of its outputs.
type dependencyGraph map[string][]string

// buildDependencyGraph returns the edge map and node names in graph order.
func buildDependencyGraph(g *ir.GraphDef) (dependencyGraph, []string) {
	graph := make(dependencyGraph, len(g.Node))
	order := make([]string, 0, len(g.Node))
	for _, n := range g.Node {
		if n == nil {
			continue
		}
		if _, ok := graph[n.Name]; !ok {
			graph[n.Name] = []string{}
			order = append(order, n.Name)
		}
	}

	for _, n := range g.Node {
		if n == nil {
			continue
		}
		seen := make(map[string]bool, len(n.Input))
		for _, in := range n.Input {
			src := ir.NodeName(in)
			if _, ok := graph[src]; !ok || seen[src] {
				continue
			}
			seen[src] = true
			graph[src] = append(graph[src], n.Name)
		}
	}
	return graph, order
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Roots are visited in order, which keeps the result deterministic.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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

		// v is a root: pop its component
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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning. The path starts at
// the SCC member that comes first in the graph.
func cycleSCCToWarning(scc []string, graph dependencyGraph, order []string) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-loop detected: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(firstInOrder(scc, order), scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Cycle detected: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

func firstInOrder(scc []string, order []string) string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	for _, n := range order {
		if members[n] {
			return n
		}
	}
	return scc[0]
}

// reconstructCyclePath follows edges inside the SCC from start until it
// returns to start.
func reconstructCyclePath(start string, scc []string, graph dependencyGraph) []string {
	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if neighbor == start && len(path) > 1 {
				next = neighbor
				break
			}
			if sccSet[neighbor] && !visited[neighbor] && next == "" {
				next = neighbor
			}
		}
		if next == "" {
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
