package graphview

import (
	"github.com/roach88/planir/internal/ir"
)

// Node wraps a node definition owned by a View. Pointers stay valid until
// the node is deleted.
type Node struct {
	def  *ir.NodeDef
	kind Kind

	// maxOutput is the highest regular output port read by any consumer,
	// or -1 when no consumer reads a regular output.
	maxOutput int
}

func newNode(def *ir.NodeDef) *Node {
	return &Node{def: def, kind: KindOf(def.Op), maxOutput: -1}
}

// Name returns the node name.
func (n *Node) Name() string { return n.def.Name }

// Op returns the op type.
func (n *Node) Op() string { return n.def.Op }

// Device returns the assigned device, possibly empty.
func (n *Node) Device() string { return n.def.Device }

// Kind returns the control-flow kind resolved from the op.
func (n *Node) Kind() Kind { return n.kind }

// Def returns the underlying definition. Callers must not modify Input
// directly; use the View mutation methods so the index stays consistent.
func (n *Node) Def() *ir.NodeDef { return n.def }

// Inputs returns a copy of the node's input list.
func (n *Node) Inputs() []string {
	return append([]string(nil), n.def.Input...)
}

// MaxRegularOutputPort returns the highest regular output index consumed
// by any node, or -1. Outputs above it are unused.
func (n *Node) MaxRegularOutputPort() int { return n.maxOutput }

// numRegularInputs counts the leading regular inputs.
func (n *Node) numRegularInputs() int {
	for i, in := range n.def.Input {
		if ir.IsControlInput(in) {
			return i
		}
	}
	return len(n.def.Input)
}

// firstControl returns the position of the first control input, which is
// also where the next regular input is inserted.
func (n *Node) firstControl() int {
	return n.numRegularInputs()
}

// hasControlFrom reports whether the node has a control input on source.
func (n *Node) hasControlFrom(source string) bool {
	target := ir.AsControlDependency(source)
	for _, in := range n.def.Input[n.numRegularInputs():] {
		if in == target {
			return true
		}
	}
	return false
}

// hasRegularFrom reports whether any regular input reads source.
func (n *Node) hasRegularFrom(source string) bool {
	for _, in := range n.def.Input[:n.numRegularInputs()] {
		if ir.NodeName(in) == source {
			return true
		}
	}
	return false
}

// removeControlAt drops the control input at pos by swapping in the last
// input. Control order is not significant.
func (n *Node) removeControlAt(pos int) {
	last := len(n.def.Input) - 1
	n.def.Input[pos] = n.def.Input[last]
	n.def.Input = n.def.Input[:last]
}

// removeControlFrom removes the control input on source, if present.
func (n *Node) removeControlFrom(source string) bool {
	target := ir.AsControlDependency(source)
	for i := n.numRegularInputs(); i < len(n.def.Input); i++ {
		if n.def.Input[i] == target {
			n.removeControlAt(i)
			return true
		}
	}
	return false
}

// insertRegular appends a regular input after the existing regular inputs.
// The displaced control moves to the end.
func (n *Node) insertRegular(input string) {
	pos := n.firstControl()
	n.def.Input = append(n.def.Input, input)
	last := len(n.def.Input) - 1
	n.def.Input[pos], n.def.Input[last] = n.def.Input[last], n.def.Input[pos]
}
