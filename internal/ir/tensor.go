package ir

import (
	"strconv"
	"strings"
)

// ControlSlot is the port index reserved for control dependencies.
const ControlSlot = -1

// controlPrefix marks a control input in the TensorID text form.
const controlPrefix = "^"

// TensorID addresses one output of a node: Index >= 0 is a regular output
// port, Index == ControlSlot is a control dependency.
type TensorID struct {
	Node  string `json:"node"`
	Index int    `json:"index"`
}

// NewTensorID builds a TensorID for node at index.
func NewTensorID(node string, index int) TensorID {
	return TensorID{Node: node, Index: index}
}

// ControlID builds the control TensorID for node.
func ControlID(node string) TensorID {
	return TensorID{Node: node, Index: ControlSlot}
}

// ParseTensorName parses the TensorID text form.
//
// "^name" yields (name, ControlSlot), "name:k" yields (name, k) when k is
// a non-empty decimal suffix, and anything else yields (s, 0). A colon
// followed by something other than digits stays part of the name.
func ParseTensorName(s string) TensorID {
	if strings.HasPrefix(s, controlPrefix) {
		return TensorID{Node: s[len(controlPrefix):], Index: ControlSlot}
	}
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 || colon == len(s)-1 {
		return TensorID{Node: s}
	}
	suffix := s[colon+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return TensorID{Node: s}
		}
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return TensorID{Node: s}
	}
	return TensorID{Node: s[:colon], Index: idx}
}

// IsControl reports whether the id addresses the control slot.
func (t TensorID) IsControl() bool {
	return t.Index == ControlSlot
}

// IsRegular reports whether the id addresses a data output port.
func (t TensorID) IsRegular() bool {
	return t.Index >= 0
}

// String returns the canonical input form: "name" for port 0, "name:k" for
// other ports, "^name" for the control slot.
func (t TensorID) String() string {
	switch {
	case t.Index == ControlSlot:
		return controlPrefix + t.Node
	case t.Index == 0:
		return t.Node
	default:
		return t.Node + ":" + strconv.Itoa(t.Index)
	}
}

// DebugString always spells out the port, "name:0" included. Diagnostics
// use this form so the port is never ambiguous.
func (t TensorID) DebugString() string {
	if t.Index == ControlSlot {
		return controlPrefix + t.Node
	}
	return t.Node + ":" + strconv.Itoa(t.Index)
}

// AsControlDependency returns the control input string for a node name.
// A name that already carries the control prefix is returned unchanged.
func AsControlDependency(name string) string {
	if strings.HasPrefix(name, controlPrefix) {
		return name
	}
	return controlPrefix + name
}

// IsControlInput reports whether an input string is a control dependency.
func IsControlInput(input string) bool {
	return strings.HasPrefix(input, controlPrefix)
}

// NodeName returns the node portion of an input string.
func NodeName(input string) string {
	return ParseTensorName(input).Node
}
