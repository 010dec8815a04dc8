package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeGraphJSON reads a JSON-encoded graph.
func DecodeGraphJSON(r io.Reader) (*GraphDef, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var g GraphDef
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode graph json: %w", err)
	}
	return &g, nil
}

// EncodeGraphJSON writes a graph as indented JSON.
func EncodeGraphJSON(w io.Writer, g *GraphDef) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode graph json: %w", err)
	}
	return nil
}

// DecodeGraphYAML parses a YAML-encoded graph.
func DecodeGraphYAML(data []byte) (*GraphDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var g GraphDef
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("decode graph yaml: %w", err)
	}
	return &g, nil
}

// EncodeGraphYAML renders a graph as YAML.
func EncodeGraphYAML(g *GraphDef) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(g); err != nil {
		return nil, fmt.Errorf("encode graph yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
