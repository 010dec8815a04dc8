package ir

import "slices"

// GraphDef is the serialized form of a dataflow graph.
type GraphDef struct {
	Node    []*NodeDef       `json:"node" yaml:"node"`
	Library *FunctionLibrary `json:"library,omitempty" yaml:"library,omitempty"`
}

// NodeDef is a single serialized node.
//
// Input lists regular inputs first, then control inputs. Attr carries
// op-specific attributes; "T" names the element type.
type NodeDef struct {
	Name   string   `json:"name" yaml:"name"`
	Op     string   `json:"op" yaml:"op"`
	Device string   `json:"device,omitempty" yaml:"device,omitempty"`
	Input  []string `json:"input,omitempty" yaml:"input,omitempty"`
	Attr   AttrMap  `json:"attr,omitempty" yaml:"attr,omitempty"`
}

// FunctionLibrary holds function definitions referenced by a graph.
type FunctionLibrary struct {
	Function []FunctionDef `json:"function,omitempty" yaml:"function,omitempty"`
}

// FunctionDef is a named function body.
type FunctionDef struct {
	Name string     `json:"name" yaml:"name"`
	Node []*NodeDef `json:"node,omitempty" yaml:"node,omitempty"`
}

// Empty reports whether the library defines nothing. A nil library is empty.
func (l *FunctionLibrary) Empty() bool {
	return l == nil || len(l.Function) == 0
}

// Clone returns a deep copy of the node.
func (n *NodeDef) Clone() *NodeDef {
	if n == nil {
		return nil
	}
	out := &NodeDef{
		Name:   n.Name,
		Op:     n.Op,
		Device: n.Device,
		Input:  slices.Clone(n.Input),
	}
	if n.Attr != nil {
		out.Attr = n.Attr.Clone().(AttrMap)
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *GraphDef) Clone() *GraphDef {
	if g == nil {
		return nil
	}
	out := &GraphDef{Node: make([]*NodeDef, len(g.Node))}
	for i, n := range g.Node {
		out.Node[i] = n.Clone()
	}
	if g.Library != nil {
		lib := &FunctionLibrary{Function: make([]FunctionDef, len(g.Library.Function))}
		for i, fn := range g.Library.Function {
			body := make([]*NodeDef, len(fn.Node))
			for j, n := range fn.Node {
				body[j] = n.Clone()
			}
			lib.Function[i] = FunctionDef{Name: fn.Name, Node: body}
		}
		out.Library = lib
	}
	return out
}

// NodeNames returns node names in declaration order. A null entry
// yields an empty name.
func (g *GraphDef) NodeNames() []string {
	names := make([]string, len(g.Node))
	for i, n := range g.Node {
		if n != nil {
			names[i] = n.Name
		}
	}
	return names
}

// FindNode returns the first node named name, or nil.
func (g *GraphDef) FindNode(name string) *NodeDef {
	for _, n := range g.Node {
		if n != nil && n.Name == name {
			return n
		}
	}
	return nil
}
