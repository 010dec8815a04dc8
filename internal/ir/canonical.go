package ir

import (
	"bytes"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for an attribute value.
// This is the only encoding used for fingerprints.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping and no escaping of U+2028/U+2029
//  3. Strings are NFC normalized
func MarshalCanonical(v AttrValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v AttrValue) error {
	switch val := v.(type) {
	case AttrString:
		writeCanonicalString(buf, string(val))
	case AttrInt:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case AttrBool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case AttrList:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case AttrMap:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString escapes only quote, backslash and C0 controls.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// CanonicalNode converts a node to its canonical attribute form. Empty
// device, input and attr fields are omitted.
func CanonicalNode(n *NodeDef) AttrMap {
	m := AttrMap{
		"name": AttrString(n.Name),
		"op":   AttrString(n.Op),
	}
	if n.Device != "" {
		m["device"] = AttrString(n.Device)
	}
	if len(n.Input) > 0 {
		in := make(AttrList, len(n.Input))
		for i, s := range n.Input {
			in[i] = AttrString(s)
		}
		m["input"] = in
	}
	if len(n.Attr) > 0 {
		m["attr"] = n.Attr
	}
	return m
}

// CanonicalGraph converts a graph to its canonical attribute form. Node
// order is significant and preserved.
func CanonicalGraph(g *GraphDef) AttrMap {
	nodes := make(AttrList, len(g.Node))
	for i, n := range g.Node {
		nodes[i] = CanonicalNode(n)
	}
	m := AttrMap{"node": nodes}
	if !g.Library.Empty() {
		fns := make(AttrList, len(g.Library.Function))
		for i, fn := range g.Library.Function {
			body := make(AttrList, len(fn.Node))
			for j, n := range fn.Node {
				body[j] = CanonicalNode(n)
			}
			fns[i] = AttrMap{"name": AttrString(fn.Name), "node": body}
		}
		m["library"] = fns
	}
	return m
}

// MarshalCanonicalGraph returns the canonical JSON encoding of a graph.
func MarshalCanonicalGraph(g *GraphDef) ([]byte, error) {
	return MarshalCanonical(CanonicalGraph(g))
}
