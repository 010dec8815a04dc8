package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/planir/internal/ir"
)

func TestNDef(t *testing.T) {
	n := NDef("c", "Add", "a", "^b")
	assert.Equal(t, "c", n.Name)
	assert.Equal(t, "Add", n.Op)
	assert.Equal(t, []string{"a", "^b"}, n.Input)
}

func TestNDefOn(t *testing.T) {
	n := NDefOn("s", "Switch", "/gpu:0", ir.AttrMap{"T": ir.AttrString("DT_FLOAT")}, "x", "p")
	assert.Equal(t, "/gpu:0", n.Device)
	assert.Equal(t, ir.AttrString("DT_FLOAT"), n.Attr["T"])
}

func TestInputsIsACopy(t *testing.T) {
	g := GDef(NDef("a", "NoOp"), NDef("b", "NoOp", "a"))
	snapshot := Inputs(g)
	g.Node[1].Input[0] = "z"

	assert.Equal(t, []string{"a"}, snapshot["b"])
	assert.Equal(t, []string{}, snapshot["a"])
}
