package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/planir/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestGraph creates a small graph with an attr, a port and a control edge.
func createTestGraph() *ir.GraphDef {
	return &ir.GraphDef{Node: []*ir.NodeDef{
		{Name: "a", Op: "Const", Attr: ir.AttrMap{"dtype": ir.AttrString("DT_INT32"), "value": ir.AttrInt(7)}},
		{Name: "b", Op: "Switch", Input: []string{"a", "a"}},
		{Name: "c", Op: "Identity", Device: "/device:CPU:0", Input: []string{"b:1", "^a"}},
	}}
}
