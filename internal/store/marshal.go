package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/planir/internal/ir"
)

// marshalGraph converts a graph to compact JSON TEXT for storage.
// Attr maps serialize with sorted keys, so equal graphs store equal text.
func marshalGraph(g *ir.GraphDef) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(g); err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalGraph parses stored JSON TEXT back to a graph.
func unmarshalGraph(data string) (*ir.GraphDef, error) {
	g, err := ir.DecodeGraphJSON(strings.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return g, nil
}
