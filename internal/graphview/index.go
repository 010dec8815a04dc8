package graphview

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/planir/internal/ir"
)

// index is the derived fanin/fanout adjacency. It is never authoritative:
// every entry can be recomputed from the node input lists.
type index struct {
	// fanouts maps each producing port to the ports consuming it.
	fanouts map[OutputPort]map[InputPort]struct{}

	// fanins records the edges registered for each consumer, in input
	// order, so reindexing can unlink exactly what was linked.
	fanins map[*Node][]Edge

	// outputs counts edges per producer and output port.
	outputs map[*Node]map[int]int
}

func newIndex() *index {
	return &index{
		fanouts: make(map[OutputPort]map[InputPort]struct{}),
		fanins:  make(map[*Node][]Edge),
		outputs: make(map[*Node]map[int]int),
	}
}

func (ix *index) link(e Edge) {
	set, ok := ix.fanouts[e.Src]
	if !ok {
		set = make(map[InputPort]struct{})
		ix.fanouts[e.Src] = set
	}
	set[e.Dst] = struct{}{}

	ports, ok := ix.outputs[e.Src.Node]
	if !ok {
		ports = make(map[int]int)
		ix.outputs[e.Src.Node] = ports
	}
	ports[e.Src.ID]++
}

func (ix *index) unlink(e Edge) {
	if set, ok := ix.fanouts[e.Src]; ok {
		delete(set, e.Dst)
		if len(set) == 0 {
			delete(ix.fanouts, e.Src)
		}
	}
	if ports, ok := ix.outputs[e.Src.Node]; ok {
		ports[e.Src.ID]--
		if ports[e.Src.ID] <= 0 {
			delete(ports, e.Src.ID)
		}
		if len(ports) == 0 {
			delete(ix.outputs, e.Src.Node)
		}
	}
}

// maxRegular returns the highest regular output port of n with a consumer.
func (ix *index) maxRegular(n *Node) int {
	best := -1
	for port := range ix.outputs[n] {
		best = max(best, port)
	}
	return best
}

// edgesOf resolves a node's input list into edges. Regular inputs map to
// their position, control inputs to ir.ControlSlot.
func (v *View) edgesOf(n *Node) ([]Edge, error) {
	edges := make([]Edge, 0, len(n.def.Input))
	seenControl := false
	for i, in := range n.def.Input {
		t := ir.ParseTensorName(in)
		src, ok := v.nodes[t.Node]
		if !ok {
			return nil, fmt.Errorf("node '%s' was not found", t.Node)
		}
		if t.IsControl() {
			seenControl = true
			edges = append(edges, Edge{
				Src: OutputPort{Node: src, ID: ir.ControlSlot},
				Dst: InputPort{Node: n, ID: ir.ControlSlot},
			})
			continue
		}
		if seenControl {
			return nil, fmt.Errorf("regular input '%s' follows a control input", in)
		}
		edges = append(edges, Edge{
			Src: OutputPort{Node: src, ID: t.Index},
			Dst: InputPort{Node: n, ID: i},
		})
	}
	return edges, nil
}

// reindex reconciles the index entries of the given consumers with their
// current input lists. Consumers no longer in the view are dropped from
// the index. Producers whose consumers changed get their max regular
// output port recomputed.
//
// Every mutation validates before changing anything, so an unresolvable
// input here is a programming error.
func (v *View) reindex(nodes ...*Node) {
	touched := make(map[*Node]struct{})
	for _, n := range nodes {
		for _, e := range v.idx.fanins[n] {
			v.idx.unlink(e)
			touched[e.Src.Node] = struct{}{}
		}
		delete(v.idx.fanins, n)

		if v.nodes[n.Name()] != n {
			delete(v.idx.outputs, n)
			continue
		}
		edges, err := v.edgesOf(n)
		if err != nil {
			panic(fmt.Sprintf("graphview: reindex %q: %v", n.Name(), err))
		}
		for _, e := range edges {
			v.idx.link(e)
			touched[e.Src.Node] = struct{}{}
		}
		v.idx.fanins[n] = edges
	}
	for src := range touched {
		src.maxOutput = v.idx.maxRegular(src)
	}
}

// CheckConsistency rebuilds the index from scratch and compares it with
// the incrementally maintained one. It returns an error describing the
// first divergence found.
func (v *View) CheckConsistency() error {
	fresh := newIndex()
	for _, def := range v.graph.Node {
		n, ok := v.nodes[def.Name]
		if !ok || n.def != def {
			return fmt.Errorf("node %q is not registered in the view", def.Name)
		}
		edges, err := v.edgesOf(n)
		if err != nil {
			return fmt.Errorf("node %q: %w", def.Name, err)
		}
		for _, e := range edges {
			fresh.link(e)
		}
		fresh.fanins[n] = edges
	}
	if len(v.nodes) != len(v.graph.Node) {
		return fmt.Errorf("view tracks %d nodes, graph has %d", len(v.nodes), len(v.graph.Node))
	}

	for _, src := range sortedKeys(fresh.fanouts) {
		want := fresh.fanouts[src]
		got := v.idx.fanouts[src]
		if !maps.Equal(want, got) {
			return fmt.Errorf("fanout of %s: index has %v, inputs imply %v",
				src, sortedInputs(got), sortedInputs(want))
		}
	}
	for _, src := range sortedKeys(v.idx.fanouts) {
		if _, ok := fresh.fanouts[src]; !ok {
			return fmt.Errorf("fanout of %s: stale entry %v", src, sortedInputs(v.idx.fanouts[src]))
		}
	}
	for _, def := range v.graph.Node {
		n := v.nodes[def.Name]
		if !slices.Equal(fresh.fanins[n], v.idx.fanins[n]) {
			return fmt.Errorf("fanins of %q: index has %v, inputs imply %v", def.Name, v.idx.fanins[n], fresh.fanins[n])
		}
		if want := fresh.maxRegular(n); n.maxOutput != want {
			return fmt.Errorf("max regular output port of %q: tracked %d, actual %d", def.Name, n.maxOutput, want)
		}
	}
	return nil
}

func sortedKeys(m map[OutputPort]map[InputPort]struct{}) []OutputPort {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, compareOutputPorts)
	return keys
}
