package testutil

import "github.com/roach88/planir/internal/ir"

// NDef builds a node definition with the given inputs.
//
//	NDef("c", "Add", "a", "b:1", "^d")
func NDef(name, op string, inputs ...string) *ir.NodeDef {
	return &ir.NodeDef{Name: name, Op: op, Input: inputs}
}

// NDefOn builds a node definition with a device and attributes.
func NDefOn(name, op, device string, attr ir.AttrMap, inputs ...string) *ir.NodeDef {
	return &ir.NodeDef{Name: name, Op: op, Device: device, Attr: attr, Input: inputs}
}

// GDef builds a graph from node definitions, in order.
func GDef(nodes ...*ir.NodeDef) *ir.GraphDef {
	return &ir.GraphDef{Node: nodes}
}

// Inputs returns the input list of every node, keyed by name. Tests use it
// to prove a failed mutation changed nothing.
func Inputs(g *ir.GraphDef) map[string][]string {
	out := make(map[string][]string, len(g.Node))
	for _, n := range g.Node {
		out[n.Name] = append([]string{}, n.Input...)
	}
	return out
}
