package graphview

import (
	"github.com/roach88/planir/internal/ir"
)

// View is a mutable view over a GraphDef with a fanin/fanout index.
//
// The view takes ownership of the graph it is built from and edits it in
// place. It is not safe for concurrent use; a graph-rewriting pass owns it
// for the duration of the pass.
type View struct {
	graph *ir.GraphDef
	nodes map[string]*Node
	idx   *index
}

// New builds a view over graph in one pass.
//
// Every entry must be non-null, every input must name an existing node and
// regular inputs must precede control inputs. A control input on a branch
// selector is rejected. Redundant control inputs are removed from the
// graph: repeated controls on the same source, and controls on a source the
// node already reads through a regular input (unless the source forwards a
// branch, see canFoldControl).
func New(graph *ir.GraphDef) (*View, error) {
	if graph == nil {
		graph = &ir.GraphDef{}
	}
	v := &View{
		graph: graph,
		nodes: make(map[string]*Node, len(graph.Node)),
		idx:   newIndex(),
	}
	oe := newOpError("New")

	for i, def := range graph.Node {
		if def == nil {
			return nil, oe.err(ErrCodeMalformedInput, "node[%d] is null", i)
		}
		if _, dup := v.nodes[def.Name]; dup {
			return nil, oe.err(ErrCodeDuplicateNode, "node '%s' is defined more than once", def.Name)
		}
		v.nodes[def.Name] = newNode(def)
	}
	for _, def := range graph.Node {
		if err := v.checkInputs(oe, def); err != nil {
			return nil, err
		}
	}

	all := make([]*Node, 0, len(graph.Node))
	for _, def := range graph.Node {
		n := v.nodes[def.Name]
		v.dedupControls(n)
		all = append(all, n)
	}
	v.reindex(all...)
	return v, nil
}

// checkInputs validates that every input of def resolves, that control
// inputs come last and that no control input names a branch selector.
func (v *View) checkInputs(oe opError, def *ir.NodeDef) error {
	seenControl := false
	for _, in := range def.Input {
		t := ir.ParseTensorName(in)
		src, ok := v.nodes[t.Node]
		if !ok {
			return oe.notFound(t.Node)
		}
		if t.IsControl() {
			if IsBranchSelector(src) {
				return switchControlError(oe, in)
			}
			seenControl = true
		} else if seenControl {
			return oe.err(ErrCodeMalformedInput,
				"node '%s' has regular input '%s' after a control input", def.Name, in)
		}
	}
	return nil
}

// dedupControls removes redundant control inputs of n. Removed entries
// are swapped with the tail, so control order may change.
func (v *View) dedupControls(n *Node) {
	in := n.def.Input
	regular := make(map[string]struct{})
	control := make(map[string]struct{})
	pos, last := 0, len(in)-1
	for pos <= last {
		t := ir.ParseTensorName(in[pos])
		if !t.IsControl() {
			regular[t.Node] = struct{}{}
			pos++
			continue
		}
		_, dupControl := control[t.Node]
		_, hasRegular := regular[t.Node]
		if dupControl || (hasRegular && v.canFoldControl(t.Node)) {
			in[pos], in[last] = in[last], in[pos]
			last--
			continue
		}
		control[t.Node] = struct{}{}
		pos++
	}
	n.def.Input = in[:last+1]
}

// Graph returns the underlying graph. It reflects every mutation applied
// through the view.
func (v *View) Graph() *ir.GraphDef { return v.graph }

// NumNodes returns the number of nodes in the view.
func (v *View) NumNodes() int { return len(v.graph.Node) }

// GetNode returns the node named name, or nil.
func (v *View) GetNode(name string) *Node { return v.nodes[name] }

// Nodes returns all nodes in graph order.
func (v *View) Nodes() []*Node {
	out := make([]*Node, 0, len(v.graph.Node))
	for _, def := range v.graph.Node {
		out = append(out, v.nodes[def.Name])
	}
	return out
}

// GetOutputPort returns the output port of the named node. The port has a
// nil Node if the node does not exist.
func (v *View) GetOutputPort(name string, port int) OutputPort {
	return OutputPort{Node: v.nodes[name], ID: port}
}

// GetInputPort returns the input port of the named node. The port has a
// nil Node if the node does not exist.
func (v *View) GetInputPort(name string, port int) InputPort {
	return InputPort{Node: v.nodes[name], ID: port}
}

// owns reports whether n is a live node of this view.
func (v *View) owns(n *Node) bool {
	return n != nil && v.nodes[n.Name()] == n
}

// GetRegularFanin returns the output port feeding a regular input port,
// or a zero OutputPort if there is none.
func (v *View) GetRegularFanin(p InputPort) OutputPort {
	if !v.owns(p.Node) || p.ID < 0 {
		return OutputPort{}
	}
	edges := v.idx.fanins[p.Node]
	if p.ID >= len(edges) || edges[p.ID].Dst.ID != p.ID {
		return OutputPort{}
	}
	return edges[p.ID].Src
}

// GetFanin returns the ports feeding an input port: at most one for a
// regular input, every controlling node for ir.ControlSlot.
func (v *View) GetFanin(p InputPort) []OutputPort {
	if !v.owns(p.Node) {
		return nil
	}
	if p.ID >= 0 {
		if src := v.GetRegularFanin(p); src.Valid() {
			return []OutputPort{src}
		}
		return nil
	}
	if p.ID != ir.ControlSlot {
		return nil
	}
	set := make(map[OutputPort]struct{})
	for _, e := range v.idx.fanins[p.Node] {
		if e.Dst.ID == ir.ControlSlot {
			set[e.Src] = struct{}{}
		}
	}
	return sortedOutputs(set)
}

// GetFanout returns the input ports consuming an output port.
func (v *View) GetFanout(p OutputPort) []InputPort {
	if !v.owns(p.Node) {
		return nil
	}
	return sortedInputs(v.idx.fanouts[p])
}

// GetFanins returns the distinct output ports feeding n. Control fanins
// are included when includeControlling is set.
func (v *View) GetFanins(n *Node, includeControlling bool) []OutputPort {
	if !v.owns(n) {
		return nil
	}
	set := make(map[OutputPort]struct{})
	for _, e := range v.idx.fanins[n] {
		if e.Dst.ID == ir.ControlSlot && !includeControlling {
			continue
		}
		set[e.Src] = struct{}{}
	}
	return sortedOutputs(set)
}

// GetFanouts returns the input ports consuming any output of n. Control
// fanouts are included when includeControlled is set.
func (v *View) GetFanouts(n *Node, includeControlled bool) []InputPort {
	if !v.owns(n) {
		return nil
	}
	set := make(map[InputPort]struct{})
	for port := range v.idx.outputs[n] {
		if port == ir.ControlSlot && !includeControlled {
			continue
		}
		for dst := range v.idx.fanouts[OutputPort{Node: n, ID: port}] {
			set[dst] = struct{}{}
		}
	}
	return sortedInputs(set)
}

// NumFanins returns the number of input edges of n.
func (v *View) NumFanins(n *Node, includeControlling bool) int {
	if !v.owns(n) {
		return 0
	}
	if includeControlling {
		return len(v.idx.fanins[n])
	}
	return n.numRegularInputs()
}

// NumFanouts returns the number of output edges of n.
func (v *View) NumFanouts(n *Node, includeControlled bool) int {
	if !v.owns(n) {
		return 0
	}
	count := 0
	for port, edges := range v.idx.outputs[n] {
		if port == ir.ControlSlot && !includeControlled {
			continue
		}
		count += edges
	}
	return count
}

// GetFaninEdges returns the edges entering n.
func (v *View) GetFaninEdges(n *Node, includeControlling bool) []Edge {
	if !v.owns(n) {
		return nil
	}
	set := make(map[Edge]struct{})
	for _, e := range v.idx.fanins[n] {
		if e.Dst.ID == ir.ControlSlot && !includeControlling {
			continue
		}
		set[e] = struct{}{}
	}
	return sortedEdges(set)
}

// GetFanoutEdges returns the edges leaving n.
func (v *View) GetFanoutEdges(n *Node, includeControlled bool) []Edge {
	if !v.owns(n) {
		return nil
	}
	set := make(map[Edge]struct{})
	for port := range v.idx.outputs[n] {
		if port == ir.ControlSlot && !includeControlled {
			continue
		}
		src := OutputPort{Node: n, ID: port}
		for dst := range v.idx.fanouts[src] {
			set[Edge{Src: src, Dst: dst}] = struct{}{}
		}
	}
	return sortedEdges(set)
}

// HasFanin reports whether n reads fanin. A regular id matches a regular
// input of that exact port, a control id matches a control input.
func (v *View) HasFanin(n *Node, fanin ir.TensorID) bool {
	if !v.owns(n) || fanin.Index < ir.ControlSlot {
		return false
	}
	for _, in := range n.def.Input {
		if ir.ParseTensorName(in) == fanin {
			return true
		}
	}
	return false
}
