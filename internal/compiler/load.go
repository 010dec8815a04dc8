package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/planir/internal/ir"
)

// LoadGraphFile reads a graph from disk. The format follows the extension:
// .cue (a top-level graph field, or the file root), .json, .yaml or .yml.
func LoadGraphFile(path string) (*ir.GraphDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return CompileGraphSource(path, data)
	case ".json":
		return ir.DecodeGraphJSON(bytes.NewReader(data))
	case ".yaml", ".yml":
		return ir.DecodeGraphYAML(data)
	default:
		return nil, fmt.Errorf("unsupported graph format %q (want .cue, .json, .yaml)", ext)
	}
}

// CompileGraphSource compiles CUE source text. filename is used for error
// positions only.
func CompileGraphSource(filename string, src []byte) (*ir.GraphDef, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if gv := v.LookupPath(cue.ParsePath("graph")); gv.Exists() {
		return CompileGraph(gv)
	}
	return CompileGraph(v)
}
