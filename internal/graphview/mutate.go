package graphview

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/planir/internal/ir"
)

// forwardingPrefix names the identity nodes materialized to carry a
// control dependency on one branch of a selector.
const forwardingPrefix = "ConstantFoldingCtrl/"

// maxListedNames bounds node lists in error messages.
const maxListedNames = 5

// ForwardingNodeName returns the name of the identity node that forwards
// output port of selector for control purposes.
func ForwardingNodeName(selector string, port int) string {
	return fmt.Sprintf("%s%s_%d", forwardingPrefix, selector, port)
}

// AddNode adds def to the graph and returns its node. The name must be new
// and every input must resolve to an existing node other than def itself.
// Redundant control inputs of def are dropped.
func (v *View) AddNode(def *ir.NodeDef) (*Node, error) {
	if def == nil {
		return nil, newOpError("AddNode").err(ErrCodeMalformedInput, "node definition is null")
	}
	oe := newOpError("AddNode", "node_name", def.Name)
	if _, exists := v.nodes[def.Name]; exists {
		return nil, oe.err(ErrCodeDuplicateNode, "node '%s' already exists", def.Name)
	}
	if err := checkSelfInput(oe, def); err != nil {
		return nil, err
	}
	if err := v.checkInputs(oe, def); err != nil {
		return nil, err
	}
	return v.addNode(def), nil
}

// checkSelfInput rejects an input of def that names def itself.
func checkSelfInput(oe opError, def *ir.NodeDef) error {
	for _, in := range def.Input {
		if ir.NodeName(in) == def.Name {
			return oe.err(ErrCodeSelfLoop, "can't add node with input '%s' from self", in)
		}
	}
	return nil
}

// switchControlError rejects a control dependency on a branch selector as a
// whole.
func switchControlError(oe opError, fanin string) error {
	return oe.err(ErrCodeSwitchControl,
		"can't add controlling fanin '%s' as it will become a Switch control dependency", fanin)
}

// addNode registers a validated definition.
func (v *View) addNode(def *ir.NodeDef) *Node {
	n := newNode(def)
	v.graph.Node = append(v.graph.Node, def)
	v.nodes[def.Name] = n
	v.dedupControls(n)
	v.reindex(n)
	return n
}

// AddSubgraph merges the nodes of subgraph into the view. Subgraph inputs
// may refer to existing nodes or to other subgraph nodes. Graphs carrying a
// function library are rejected: merging libraries is not supported.
func (v *View) AddSubgraph(subgraph *ir.GraphDef) error {
	if subgraph == nil {
		return nil
	}
	oe := opError{op: "AddSubgraph", params: "subgraph_nodes=" + formatNameSet(subgraph.NodeNames())}
	if !subgraph.Library.Empty() {
		return oe.err(ErrCodeLibraryMerge, "can't add a subgraph with non-empty function library")
	}

	incoming := make(map[string]*ir.NodeDef, len(subgraph.Node))
	for i, def := range subgraph.Node {
		if def == nil {
			return oe.err(ErrCodeMalformedInput, "node[%d] is null", i)
		}
		if _, exists := v.nodes[def.Name]; exists {
			return oe.err(ErrCodeDuplicateNode, "node '%s' already exists", def.Name)
		}
		if _, dup := incoming[def.Name]; dup {
			return oe.err(ErrCodeDuplicateNode, "node '%s' is defined more than once", def.Name)
		}
		incoming[def.Name] = def
	}
	for _, def := range subgraph.Node {
		if err := checkSelfInput(oe, def); err != nil {
			return err
		}
		seenControl := false
		for _, in := range def.Input {
			t := ir.ParseTensorName(in)
			src, inView := v.nodes[t.Node]
			subDef, inSub := incoming[t.Node]
			if !inView && !inSub {
				return oe.notFound(t.Node)
			}
			if t.IsControl() {
				if IsBranchSelector(src) || (inSub && KindOf(subDef.Op) == KindBranchSelector) {
					return switchControlError(oe, in)
				}
				seenControl = true
			} else if seenControl {
				return oe.err(ErrCodeMalformedInput,
					"node '%s' has regular input '%s' after a control input", def.Name, in)
			}
		}
	}

	added := make([]*Node, 0, len(subgraph.Node))
	for _, def := range subgraph.Node {
		n := newNode(def)
		v.graph.Node = append(v.graph.Node, def)
		v.nodes[def.Name] = n
		added = append(added, n)
	}
	for _, n := range added {
		v.dedupControls(n)
	}
	v.reindex(added...)
	return nil
}

// UpdateFanouts moves every consumer of from onto to. A consumer reading
// from:k reads to:k afterwards, a control consumer of from becomes a
// control consumer of to. The node to keeps its own inputs, so it may
// still read from.
//
// Moving control consumers onto a branch selector is rejected.
func (v *View) UpdateFanouts(from, to string) error {
	oe := newOpError("UpdateFanouts", "from_node_name", from, "to_node_name", to)
	fromNode := v.nodes[from]
	if fromNode == nil {
		return oe.notFound(from)
	}
	toNode := v.nodes[to]
	if toNode == nil {
		return oe.notFound(to)
	}
	if from == to {
		return nil
	}

	controlled := v.idx.fanouts[OutputPort{Node: fromNode, ID: ir.ControlSlot}]
	if IsBranchSelector(toNode) {
		for dst := range controlled {
			if dst.Node != toNode {
				return oe.err(ErrCodeSwitchControl,
					"can't update fanouts to node '%s' as it will become a Switch control dependency", to)
			}
		}
	}

	foldable := v.canFoldControl(to)
	var affected []*Node
	for _, consumer := range v.consumersOf(fromNode) {
		if consumer == toNode {
			continue
		}
		in := consumer.def.Input
		for i := 0; i < consumer.numRegularInputs(); i++ {
			t := ir.ParseTensorName(in[i])
			if t.Node == from {
				in[i] = ir.NewTensorID(to, t.Index).String()
			}
		}
		readsTo := consumer.hasRegularFrom(to)
		if consumer.hasControlFrom(from) {
			if consumer.hasControlFrom(to) || (readsTo && foldable) {
				consumer.removeControlFrom(from)
			} else {
				for i := consumer.numRegularInputs(); i < len(consumer.def.Input); i++ {
					if consumer.def.Input[i] == ir.AsControlDependency(from) {
						consumer.def.Input[i] = ir.AsControlDependency(to)
					}
				}
			}
		}
		if readsTo && foldable {
			consumer.removeControlFrom(to)
		}
		affected = append(affected, consumer)
	}
	v.reindex(affected...)
	return nil
}

// consumersOf returns the distinct nodes reading any output of n, in
// graph order.
func (v *View) consumersOf(n *Node) []*Node {
	seen := make(map[*Node]struct{})
	for port := range v.idx.outputs[n] {
		for dst := range v.idx.fanouts[OutputPort{Node: n, ID: port}] {
			seen[dst.Node] = struct{}{}
		}
	}
	out := make([]*Node, 0, len(seen))
	for _, def := range v.graph.Node {
		if c := v.nodes[def.Name]; c != nil {
			if _, ok := seen[c]; ok {
				out = append(out, c)
			}
		}
	}
	return out
}

// checkRegularFanin runs the shared validation of the regular fanin
// mutations. selfMsg is the self-loop message.
func (v *View) checkRegularFanin(oe opError, node string, fanin ir.TensorID, selfMsg string) (*Node, error) {
	if !fanin.IsRegular() {
		return nil, oe.err(ErrCodeInvalidTensorID, "fanin '%s' must be a regular tensor id", fanin.DebugString())
	}
	if node == fanin.Node {
		return nil, oe.err(ErrCodeSelfLoop, selfMsg, fanin.DebugString())
	}
	n := v.nodes[node]
	if n == nil {
		return nil, oe.notFound(node)
	}
	if v.nodes[fanin.Node] == nil {
		return nil, oe.notFound(fanin.Node)
	}
	return n, nil
}

// AddRegularFanin appends fanin after the existing regular inputs of node.
// A control input on the same source becomes redundant and is dropped.
func (v *View) AddRegularFanin(node string, fanin ir.TensorID) error {
	oe := newOpError("AddRegularFanin", "node_name", node, "fanin", fanin.DebugString())
	n, err := v.checkRegularFanin(oe, node, fanin, "can't add regular fanin '%s' to self")
	if err != nil {
		return err
	}
	n.insertRegular(fanin.String())
	if v.canFoldControl(fanin.Node) {
		n.removeControlFrom(fanin.Node)
	}
	v.reindex(n)
	return nil
}

// RemoveRegularFanin removes every regular input of node equal to fanin.
// Later inputs shift down, keeping their relative order.
func (v *View) RemoveRegularFanin(node string, fanin ir.TensorID) error {
	oe := newOpError("RemoveRegularFanin", "node_name", node, "fanin", fanin.DebugString())
	n, err := v.checkRegularFanin(oe, node, fanin, "can't remove regular fanin '%s' from self")
	if err != nil {
		return err
	}
	if !n.removeRegular(fanin) {
		return nil
	}
	v.reindex(n)
	return nil
}

// removeRegular drops the regular inputs equal to fanin and reports
// whether anything was removed.
func (n *Node) removeRegular(fanin ir.TensorID) bool {
	regular := n.numRegularInputs()
	kept := n.def.Input[:0]
	for i, in := range n.def.Input {
		if i < regular && ir.ParseTensorName(in) == fanin {
			continue
		}
		kept = append(kept, in)
	}
	removed := len(kept) != len(n.def.Input)
	n.def.Input = kept
	return removed
}

// RemoveAllFanins removes every regular input of node, and every control
// input unless keepControlling is set.
func (v *View) RemoveAllFanins(node string, keepControlling bool) error {
	oe := opError{
		op:     "RemoveAllFanins",
		params: fmt.Sprintf("node_name='%s', keep_controlling_fanins=%t", node, keepControlling),
	}
	n := v.nodes[node]
	if n == nil {
		return oe.notFound(node)
	}
	if keepControlling {
		n.def.Input = slices.Delete(n.def.Input, 0, n.numRegularInputs())
	} else {
		n.def.Input = nil
	}
	v.reindex(n)
	return nil
}

// AddControllingFanin makes node wait on fanin.
//
// A regular port of a branch selector cannot be a control source by
// itself: the control is routed through an identity node reading that
// port. An existing identity consumer of the port is reused; otherwise
// the node named ForwardingNodeName(selector, port) is reused or created
// with the selector's device and "T" attribute.
//
// For any other source the port is ignored and a plain control input is
// added, unless node already depends on the source.
func (v *View) AddControllingFanin(node string, fanin ir.TensorID) error {
	oe := newOpError("AddControllingFanin", "node_name", node, "fanin", fanin.DebugString())
	if fanin.Index < ir.ControlSlot {
		return oe.err(ErrCodeInvalidTensorID, "fanin '%s' must be a valid tensor id", fanin.DebugString())
	}
	n := v.nodes[node]
	if n == nil {
		return oe.notFound(node)
	}
	src := v.nodes[fanin.Node]
	if src == nil {
		return oe.notFound(fanin.Node)
	}
	if node == fanin.Node {
		return oe.err(ErrCodeSelfLoop, "can't add controlling fanin '%s' to self", ir.AsControlDependency(fanin.Node))
	}

	if !IsBranchSelector(src) {
		if v.addControl(n, fanin.Node) {
			v.reindex(n)
		}
		return nil
	}
	if fanin.IsControl() {
		return switchControlError(oe, fanin.DebugString())
	}

	if fwd := v.findIdentityConsumer(OutputPort{Node: src, ID: fanin.Index}); fwd != nil {
		if fwd == n {
			return oe.err(ErrCodeSelfLoop, "can't add found controlling fanin '%s' to self", ir.AsControlDependency(fwd.Name()))
		}
		if v.addControl(n, fwd.Name()) {
			v.reindex(n)
		}
		return nil
	}

	name := ForwardingNodeName(src.Name(), fanin.Index)
	if name == node {
		return oe.err(ErrCodeSelfLoop, "can't add generated controlling fanin '%s' to self", ir.AsControlDependency(name))
	}
	if v.nodes[name] == nil {
		def := &ir.NodeDef{
			Name:   name,
			Op:     "Identity",
			Device: src.Device(),
			Input:  []string{fanin.String()},
		}
		if t, ok := src.def.Attr["T"]; ok {
			def.Attr = ir.AttrMap{"T": t.Clone()}
		}
		v.addNode(def)
	}
	if v.addControl(n, name) {
		v.reindex(n)
	}
	return nil
}

// AddControllingFaninByName adds a control dependency on the whole of
// source. Branch selectors are rejected; use AddControllingFanin with a
// port instead.
func (v *View) AddControllingFaninByName(node, source string) error {
	return v.AddControllingFanin(node, ir.ControlID(source))
}

// findIdentityConsumer returns the first identity node, in name order,
// reading output port p.
func (v *View) findIdentityConsumer(p OutputPort) *Node {
	for _, dst := range sortedInputs(v.idx.fanouts[p]) {
		if IsIdentity(dst.Node) {
			return dst.Node
		}
	}
	return nil
}

// addControl appends a control input on source to n unless n already
// depends on source. It reports whether the input list changed.
func (v *View) addControl(n *Node, source string) bool {
	if n.hasControlFrom(source) {
		return false
	}
	if n.hasRegularFrom(source) && v.canFoldControl(source) {
		return false
	}
	n.def.Input = append(n.def.Input, ir.AsControlDependency(source))
	return true
}

// RemoveControllingFanin removes the control input of node on source.
// Removing a control that is not present succeeds without change.
func (v *View) RemoveControllingFanin(node, source string) error {
	oe := newOpError("RemoveControllingFanin", "node_name", node, "fanin_node_name", source)
	if node == source {
		return oe.err(ErrCodeSelfLoop, "can't remove controlling fanin '%s' from self", ir.AsControlDependency(source))
	}
	n := v.nodes[node]
	if n == nil {
		return oe.notFound(node)
	}
	if v.nodes[source] == nil {
		return oe.notFound(source)
	}
	if n.removeControlFrom(source) {
		v.reindex(n)
	}
	return nil
}

// UpdateFanin replaces the input from of node with to.
//
// A regular from replaces every matching regular input. A control from
// replaces the single control input. When to is a control the result is
// deduplicated against existing dependencies on the same source.
func (v *View) UpdateFanin(node string, from, to ir.TensorID) error {
	oe := newOpError("UpdateFanin", "node_name", node, "from_fanin", from.DebugString(), "to_fanin", to.DebugString())
	for _, t := range []ir.TensorID{from, to} {
		if t.Index < ir.ControlSlot {
			return oe.err(ErrCodeInvalidTensorID, "fanin '%s' must be a valid tensor id", t.DebugString())
		}
	}
	n := v.nodes[node]
	if n == nil {
		return oe.notFound(node)
	}
	if from == to {
		return nil
	}
	if node == from.Node || node == to.Node {
		return oe.err(ErrCodeSelfLoop, "can't update fanin to or from self")
	}
	if v.nodes[from.Node] == nil {
		return oe.notFound(from.Node)
	}
	toNode := v.nodes[to.Node]
	if toNode == nil {
		return oe.notFound(to.Node)
	}
	if to.IsControl() && IsBranchSelector(toNode) {
		return oe.err(ErrCodeSwitchControl,
			"can't update to fanin '%s' as it will become a Switch control dependency", to.DebugString())
	}

	if from.IsControl() {
		if !n.removeControlFrom(from.Node) {
			return nil
		}
	} else {
		if !n.hasRegular(from) {
			return nil
		}
		if !to.IsControl() {
			n.replaceRegular(from, to)
			if v.canFoldControl(to.Node) {
				n.removeControlFrom(to.Node)
			}
			v.reindex(n)
			return nil
		}
		n.removeRegular(from)
	}

	if to.IsControl() {
		v.addControl(n, to.Node)
	} else {
		n.insertRegular(to.String())
		if v.canFoldControl(to.Node) {
			n.removeControlFrom(to.Node)
		}
	}
	v.reindex(n)
	return nil
}

func (n *Node) hasRegular(t ir.TensorID) bool {
	for _, in := range n.def.Input[:n.numRegularInputs()] {
		if ir.ParseTensorName(in) == t {
			return true
		}
	}
	return false
}

func (n *Node) replaceRegular(from, to ir.TensorID) {
	for i := 0; i < n.numRegularInputs(); i++ {
		if ir.ParseTensorName(n.def.Input[i]) == from {
			n.def.Input[i] = to.String()
		}
	}
}

// DeleteNodes removes the named nodes. Names not in the view are ignored.
// If any node to delete is still consumed by a node that stays, nothing is
// deleted and the offending names are reported.
func (v *View) DeleteNodes(names []string) error {
	requested := slices.Clone(names)
	slices.Sort(requested)
	requested = slices.Compact(requested)
	oe := opError{op: "DeleteNodes", params: "nodes_to_delete=" + formatNameSet(requested)}

	doomed := make(map[*Node]struct{}, len(requested))
	for _, name := range requested {
		if n := v.nodes[name]; n != nil {
			doomed[n] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return nil
	}

	var retained []string
	for n := range doomed {
		for _, c := range v.consumersOf(n) {
			if _, ok := doomed[c]; !ok {
				retained = append(retained, n.Name())
				break
			}
		}
	}
	if len(retained) > 0 {
		slices.Sort(retained)
		return oe.err(ErrCodeRetainedFanout,
			"can't delete node(s) with retained fanouts(s) %s", formatNameList(retained))
	}

	removed := make([]*Node, 0, len(doomed))
	for n := range doomed {
		delete(v.nodes, n.Name())
		removed = append(removed, n)
	}
	v.graph.Node = slices.DeleteFunc(v.graph.Node, func(def *ir.NodeDef) bool {
		_, keep := v.nodes[def.Name]
		return !keep
	})
	v.reindex(removed...)
	return nil
}

// truncateNames bounds a sorted name list for error messages.
func truncateNames(names []string) string {
	if len(names) > maxListedNames {
		names = append(slices.Clone(names[:maxListedNames]), "...")
	}
	return strings.Join(names, ", ")
}

func formatNameSet(names []string) string {
	return "{" + truncateNames(names) + "}"
}

func formatNameList(names []string) string {
	return "[" + truncateNames(names) + "]"
}
