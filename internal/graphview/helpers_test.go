package graphview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planir/internal/ir"
	"github.com/roach88/planir/internal/testutil"
)

// mustView builds a view and fails the test on error.
func mustView(t *testing.T, g *ir.GraphDef) *View {
	t.Helper()
	v, err := New(g)
	require.NoError(t, err)
	return v
}

// checkNode asserts the exact input list of a node and the set of input
// ports consuming it. Fanouts are written in DebugString form ("c:1",
// "^c").
func checkNode(t *testing.T, v *View, name string, fanins, fanouts []string) {
	t.Helper()
	n := v.GetNode(name)
	require.NotNil(t, n, "node %q", name)

	got := n.Inputs()
	if len(fanins) == 0 {
		assert.Empty(t, got, "inputs of %q", name)
	} else {
		assert.Equal(t, fanins, got, "inputs of %q", name)
	}

	for i, in := range fanins {
		id := ir.ParseTensorName(in)
		port := i
		if id.IsControl() {
			port = ir.ControlSlot
		}
		dst := InputPort{Node: n, ID: port}
		src := v.GetOutputPort(id.Node, id.Index)
		assert.Contains(t, v.GetFanin(dst), src, "fanin %s of %q", in, name)
		assert.Contains(t, v.GetFanout(src), dst, "fanout of %s", src)
	}

	var gotFanouts []string
	for _, p := range v.GetFanouts(n, true) {
		gotFanouts = append(gotFanouts, p.String())
	}
	assert.ElementsMatch(t, fanouts, gotFanouts, "fanouts of %q", name)
}

// checkGraph asserts the incremental index matches a fresh rebuild.
func checkGraph(t *testing.T, v *View) {
	t.Helper()
	require.NoError(t, v.CheckConsistency())

	fresh, err := New(v.Graph().Clone())
	require.NoError(t, err)
	assert.Equal(t, testutil.Inputs(v.Graph()), testutil.Inputs(fresh.Graph()),
		"a rebuilt view must not rewrite any input list")
}

// requireMutationError asserts err is a MutationError with the given
// rendering.
func requireMutationError(t *testing.T, err error, code ErrorCode, msg string) {
	t.Helper()
	require.Error(t, err)
	var me *MutationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, code, me.Code)
	assert.Equal(t, msg, err.Error())
}

// simpleMutateFaninGraph is the graph shared by the fanin mutation tests.
func simpleMutateFaninGraph() *ir.GraphDef {
	nd := testutil.NDef
	return testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant"),
		nd("c", "NotImportant"),
		nd("d", "NotImportant"),
		nd("foo_1", "NotImportant", "a"),
		nd("foo_2", "NotImportant", "b", "^a", "^c"),
		nd("foo_3", "NotImportant", "b", "a:1", "a:1"),
		nd("foo_4", "NotImportant", "a", "b:2", "b:2", "^c", "^d"),
		nd("foo_5", "NotImportant"),
		nd("foo_6", "NotImportant", "^a", "^b"),
	)
}

// simpleDeleteNodeGraph is the graph shared by the deletion tests.
func simpleDeleteNodeGraph() *ir.GraphDef {
	nd := testutil.NDef
	return testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "a:2"),
		nd("c", "NotImportant", "a:5", "^b"),
		nd("d", "NotImportant"),
		nd("e", "NotImportant", "d:2"),
		nd("f", "NotImportant", "d:3", "^e"),
	)
}

// inputsExcept snapshots every input list but the named node's.
func inputsExcept(g *ir.GraphDef, name string) map[string][]string {
	m := testutil.Inputs(g)
	delete(m, name)
	return m
}
