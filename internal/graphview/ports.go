package graphview

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/roach88/planir/internal/ir"
)

// OutputPort is an output slot of a node. ID is a regular output index or
// ir.ControlSlot.
type OutputPort struct {
	Node *Node
	ID   int
}

// InputPort is an input slot of a node. ID is the position of a regular
// input or ir.ControlSlot for every control input.
type InputPort struct {
	Node *Node
	ID   int
}

// Edge connects a producing output port to a consuming input port.
type Edge struct {
	Src OutputPort
	Dst InputPort
}

// Valid reports whether the port refers to a node.
func (p OutputPort) Valid() bool { return p.Node != nil }

// Valid reports whether the port refers to a node.
func (p InputPort) Valid() bool { return p.Node != nil }

// TensorID returns the address of the port in TensorID form.
func (p OutputPort) TensorID() ir.TensorID {
	return ir.NewTensorID(portNodeName(p.Node), p.ID)
}

func (p OutputPort) String() string {
	return p.TensorID().DebugString()
}

func (p InputPort) String() string {
	return ir.NewTensorID(portNodeName(p.Node), p.ID).DebugString()
}

func (e Edge) String() string {
	return fmt.Sprintf("%s->%s", e.Src, e.Dst)
}

func portNodeName(n *Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Name()
}

func compareOutputPorts(a, b OutputPort) int {
	return cmp.Or(cmp.Compare(a.Node.Name(), b.Node.Name()), cmp.Compare(a.ID, b.ID))
}

func compareInputPorts(a, b InputPort) int {
	return cmp.Or(cmp.Compare(a.Node.Name(), b.Node.Name()), cmp.Compare(a.ID, b.ID))
}

func compareEdges(a, b Edge) int {
	return cmp.Or(compareOutputPorts(a.Src, b.Src), compareInputPorts(a.Dst, b.Dst))
}

func sortedOutputs(set map[OutputPort]struct{}) []OutputPort {
	out := make([]OutputPort, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, compareOutputPorts)
	return out
}

func sortedInputs(set map[InputPort]struct{}) []InputPort {
	out := make([]InputPort, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, compareInputPorts)
	return out
}

func sortedEdges(set map[Edge]struct{}) []Edge {
	out := make([]Edge, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	slices.SortFunc(out, compareEdges)
	return out
}
