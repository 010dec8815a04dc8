package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/planir/internal/ir"
)

// TopologicalOrder returns node names so that every node follows the
// producers of its data and control inputs. Among ready nodes the one
// declared first goes first, so a graph already in dependency order is
// returned unchanged.
//
// A graph with a cycle has no such order; the error names the first cycle
// AnalyzeCycles reports.
func TopologicalOrder(g *ir.GraphDef) ([]string, error) {
	if g == nil {
		return []string{}, nil
	}

	graph, order := buildDependencyGraph(g)
	position := make(map[string]int, len(order))
	for i, name := range order {
		position[name] = i
	}

	indegree := make(map[string]int, len(order))
	for _, consumers := range graph {
		for _, c := range consumers {
			indegree[c]++
		}
	}

	// ready holds positions, ascending.
	var ready []int
	for i, name := range order {
		if indegree[name] == 0 {
			ready = append(ready, i)
		}
	}

	sorted := make([]string, 0, len(order))
	for len(ready) > 0 {
		name := order[ready[0]]
		ready = ready[1:]
		sorted = append(sorted, name)

		for _, c := range graph[name] {
			indegree[c]--
			if indegree[c] == 0 {
				pos := position[c]
				i, _ := slices.BinarySearch(ready, pos)
				ready = slices.Insert(ready, i, pos)
			}
		}
	}

	if len(sorted) < len(order) {
		if warnings := AnalyzeCycles(g); len(warnings) > 0 {
			return nil, fmt.Errorf("graph has no topological order: %s", warnings[0].Message)
		}
		return nil, fmt.Errorf("graph has no topological order")
	}
	return sorted, nil
}
