package graphview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planir/internal/ir"
	"github.com/roach88/planir/internal/testutil"
)

func TestAddNode(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(nd("a", "X"), nd("b", "X")))

	n, err := v.AddNode(nd("c", "X", "a:1", "^b", "^b", "^a"))
	require.NoError(t, err)
	assert.Equal(t, "c", n.Name())
	assert.Same(t, n, v.GetNode("c"))
	checkNode(t, v, "c", []string{"a:1", "^b"}, nil)
	checkNode(t, v, "a", nil, []string{"c:0"})
	checkGraph(t, v)
}

func TestAddNode_Errors(t *testing.T) {
	nd := testutil.NDef
	tests := []struct {
		name string
		def  *ir.NodeDef
		code ErrorCode
		msg  string
	}{
		{"duplicate", nd("a", "X"), ErrCodeDuplicateNode,
			"AddNode(node_name='a') error: node 'a' already exists."},
		{"self input", nd("c", "X", "^c"), ErrCodeSelfLoop,
			"AddNode(node_name='c') error: can't add node with input '^c' from self."},
		{"missing input", nd("c", "X", "z"), ErrCodeNodeNotFound,
			"AddNode(node_name='c') error: node 'z' was not found."},
		{"malformed", nd("c", "X", "^a", "b"), ErrCodeMalformedInput,
			"AddNode(node_name='c') error: node 'c' has regular input 'b' after a control input."},
		{"control on switch", nd("c", "X", "sw:1", "^sw"), ErrCodeSwitchControl,
			"AddNode(node_name='c') error: can't add controlling fanin '^sw' as it will become a Switch control dependency."},
		{"null", nil, ErrCodeMalformedInput,
			"AddNode() error: node definition is null."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustView(t, testutil.GDef(nd("a", "X"), nd("b", "X"), nd("sw", "Switch")))
			before := testutil.Inputs(v.Graph())

			_, err := v.AddNode(tt.def)
			requireMutationError(t, err, tt.code, tt.msg)
			assert.Equal(t, 3, v.NumNodes())
			assert.Equal(t, before, testutil.Inputs(v.Graph()))
			checkGraph(t, v)
		})
	}
}

func TestAddSubgraph(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("foo", "NotImportant"),
		nd("bar", "NotImportant"),
		nd("baz", "NotImportant", "foo", "bar"),
	))

	sub := testutil.GDef(
		nd("s/n0", "NotImportant"),
		nd("s/n1", "NotImportant", "bar", "s/n0"),
	)
	require.NoError(t, v.AddSubgraph(sub))

	assert.Equal(t, 5, v.NumNodes())
	checkNode(t, v, "bar", nil, []string{"baz:1", "s/n1:0"})
	checkNode(t, v, "s/n1", []string{"bar", "s/n0"}, nil)
	checkGraph(t, v)
}

func TestAddSubgraph_ForwardReferenceWithinSubgraph(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(nd("a", "X")))

	require.NoError(t, v.AddSubgraph(testutil.GDef(
		nd("s/late", "X", "s/early:1", "^a"),
		nd("s/early", "X", "a"),
	)))
	checkNode(t, v, "s/late", []string{"s/early:1", "^a"}, nil)
	checkNode(t, v, "s/early", []string{"a"}, []string{"s/late:0"})
	checkGraph(t, v)
}

func TestAddSubgraph_Nil(t *testing.T) {
	v := mustView(t, simpleMutateFaninGraph())
	require.NoError(t, v.AddSubgraph(nil))
	assert.Equal(t, 10, v.NumNodes())
}

func TestAddSubgraph_Errors(t *testing.T) {
	nd := testutil.NDef
	withLibrary := testutil.GDef(nd("s/n0", "X"), nd("s/n1", "X", "bar", "s/n0"))
	withLibrary.Library = &ir.FunctionLibrary{Function: []ir.FunctionDef{{
		Name: "XTimesTwo",
		Node: []*ir.NodeDef{nd("two", "Const"), nd("y", "Mul", "x", "two")},
	}}}

	tests := []struct {
		name string
		sub  *ir.GraphDef
		code ErrorCode
		msg  string
	}{
		{"function library", withLibrary, ErrCodeLibraryMerge,
			"AddSubgraph(subgraph_nodes={s/n0, s/n1}) error: can't add a subgraph with non-empty function library."},
		{"existing name", testutil.GDef(nd("s/n0", "X"), nd("bar", "X")), ErrCodeDuplicateNode,
			"AddSubgraph(subgraph_nodes={s/n0, bar}) error: node 'bar' already exists."},
		{"repeated name", testutil.GDef(nd("s/n0", "X"), nd("s/n0", "X")), ErrCodeDuplicateNode,
			"AddSubgraph(subgraph_nodes={s/n0, s/n0}) error: node 's/n0' is defined more than once."},
		{"missing input", testutil.GDef(nd("s/n0", "X", "nowhere")), ErrCodeNodeNotFound,
			"AddSubgraph(subgraph_nodes={s/n0}) error: node 'nowhere' was not found."},
		{"self input", testutil.GDef(nd("s/n0", "X"), nd("s", "X", "s:1")), ErrCodeSelfLoop,
			"AddSubgraph(subgraph_nodes={s/n0, s}) error: can't add node with input 's:1' from self."},
		{"self control", testutil.GDef(nd("s/n0", "X", "^s/n0")), ErrCodeSelfLoop,
			"AddSubgraph(subgraph_nodes={s/n0}) error: can't add node with input '^s/n0' from self."},
		{"control on existing switch", testutil.GDef(nd("s/n0", "X", "sw:1", "^sw")), ErrCodeSwitchControl,
			"AddSubgraph(subgraph_nodes={s/n0}) error: can't add controlling fanin '^sw' as it will become a Switch control dependency."},
		{"control on incoming switch", testutil.GDef(nd("s/n0", "X", "^s/sw"), nd("s/sw", "Switch")), ErrCodeSwitchControl,
			"AddSubgraph(subgraph_nodes={s/n0, s/sw}) error: can't add controlling fanin '^s/sw' as it will become a Switch control dependency."},
		{"null node", &ir.GraphDef{Node: []*ir.NodeDef{nd("s/n0", "X"), nil}}, ErrCodeMalformedInput,
			"AddSubgraph(subgraph_nodes={s/n0, }) error: node[1] is null."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustView(t, testutil.GDef(
				nd("foo", "NotImportant"),
				nd("bar", "NotImportant"),
				nd("baz", "NotImportant", "foo", "bar"),
				nd("sw", "Switch"),
			))
			before := testutil.Inputs(v.Graph())

			err := v.AddSubgraph(tt.sub)
			requireMutationError(t, err, tt.code, tt.msg)
			assert.Equal(t, 4, v.NumNodes())
			assert.Equal(t, before, testutil.Inputs(v.Graph()))
			assert.Nil(t, v.GetNode("s/n0"))
			checkGraph(t, v)
		})
	}
}

func TestUpdateFanouts(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("bar", "NotImportant"),
		nd("other", "NotImportant"),
		nd("foo_1", "NotImportant", "bar", "other", "bar:1", "^bar"),
		nd("foo_2", "NotImportant", "other:1", "bar:2", "^bar"),
		nd("foo_3", "NotImportant", "other:2", "^bar"),
	))
	_, err := v.AddNode(nd("new_bar", "NotImportant"))
	require.NoError(t, err)

	require.NoError(t, v.UpdateFanouts("bar", "new_bar"))

	checkNode(t, v, "bar", nil, nil)
	checkNode(t, v, "other", nil, []string{"foo_1:1", "foo_2:0", "foo_3:0"})
	checkNode(t, v, "foo_1", []string{"new_bar", "other", "new_bar:1"}, nil)
	checkNode(t, v, "foo_2", []string{"other:1", "new_bar:2"}, nil)
	checkNode(t, v, "foo_3", []string{"other:2", "^new_bar"}, nil)
	checkNode(t, v, "new_bar", nil, []string{"foo_1:0", "foo_1:2", "foo_2:1", "^foo_3"})
	assert.Equal(t, -1, v.GetNode("bar").MaxRegularOutputPort())
	assert.Equal(t, 2, v.GetNode("new_bar").MaxRegularOutputPort())
	checkGraph(t, v)
}

func TestUpdateFanouts_KeepsControlsOnBranchForwarder(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("bar_1", "Switch"),
		nd("bar_2", "Identity", "bar_1:1"),
		nd("other", "NotImportant"),
		nd("foo_1", "NotImportant", "bar_2", "other", "bar_2:1", "^bar_2"),
		nd("foo_2", "NotImportant", "other:1", "bar_2:2", "^bar_2"),
	))
	_, err := v.AddNode(nd("new_bar", "Identity", "bar_1:2"))
	require.NoError(t, err)

	require.NoError(t, v.UpdateFanouts("bar_2", "new_bar"))

	checkNode(t, v, "bar_1", nil, []string{"bar_2:0", "new_bar:0"})
	checkNode(t, v, "bar_2", []string{"bar_1:1"}, nil)
	checkNode(t, v, "other", nil, []string{"foo_1:1", "foo_2:0"})
	checkNode(t, v, "foo_1", []string{"new_bar", "other", "new_bar:1", "^new_bar"}, nil)
	checkNode(t, v, "foo_2", []string{"other:1", "new_bar:2", "^new_bar"}, nil)
	checkNode(t, v, "new_bar", []string{"bar_1:2"},
		[]string{"foo_1:0", "foo_1:2", "^foo_1", "foo_2:1", "^foo_2"})
	checkGraph(t, v)
}

func TestUpdateFanouts_WithoutSelfLoops(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("bar", "NotImportant"),
		nd("foo_1", "NotImportant", "bar", "^bar"),
		nd("foo_2", "NotImportant", "^bar"),
	))
	_, err := v.AddNode(nd("new_bar", "NewBar", "bar"))
	require.NoError(t, err)

	require.NoError(t, v.UpdateFanouts("bar", "new_bar"))

	checkNode(t, v, "bar", nil, []string{"new_bar:0"})
	checkNode(t, v, "foo_1", []string{"new_bar"}, nil)
	checkNode(t, v, "foo_2", []string{"^new_bar"}, nil)
	checkNode(t, v, "new_bar", []string{"bar"}, []string{"foo_1:0", "^foo_2"})
	checkGraph(t, v)
}

func switchFanoutGraph() *ir.GraphDef {
	nd := testutil.NDef
	return testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "Switch"),
		nd("c", "NotImportant"),
		nd("d", "NotImportant"),
		nd("e", "NotImportant", "c", "b", "^a", "^d"),
	)
}

func TestUpdateFanouts_ToSwitchWithControlConsumers(t *testing.T) {
	v := mustView(t, switchFanoutGraph())
	before := testutil.Inputs(v.Graph())

	err := v.UpdateFanouts("a", "b")
	requireMutationError(t, err, ErrCodeSwitchControl,
		"UpdateFanouts(from_node_name='a', to_node_name='b') error: can't update fanouts to node 'b' as it will become a Switch control dependency.")
	assert.True(t, IsSwitchControl(err))

	err = v.UpdateFanouts("d", "b")
	requireMutationError(t, err, ErrCodeSwitchControl,
		"UpdateFanouts(from_node_name='d', to_node_name='b') error: can't update fanouts to node 'b' as it will become a Switch control dependency.")

	assert.Equal(t, before, testutil.Inputs(v.Graph()))
	checkNode(t, v, "a", nil, []string{"^e"})
	checkNode(t, v, "b", nil, []string{"e:1"})
	checkNode(t, v, "e", []string{"c", "b", "^a", "^d"}, nil)
	checkGraph(t, v)
}

func TestUpdateFanouts_ToSwitchWithoutControlConsumers(t *testing.T) {
	v := mustView(t, switchFanoutGraph())

	require.NoError(t, v.UpdateFanouts("c", "b"))

	checkNode(t, v, "a", nil, []string{"^e"})
	checkNode(t, v, "b", nil, []string{"e:0", "e:1"})
	checkNode(t, v, "c", nil, nil)
	checkNode(t, v, "d", nil, []string{"^e"})
	checkNode(t, v, "e", []string{"b", "b", "^a", "^d"}, nil)
	checkGraph(t, v)
}

func TestUpdateFanouts_MissingAndSame(t *testing.T) {
	v := mustView(t, simpleMutateFaninGraph())

	err := v.UpdateFanouts("nope", "a")
	requireMutationError(t, err, ErrCodeNodeNotFound,
		"UpdateFanouts(from_node_name='nope', to_node_name='a') error: node 'nope' was not found.")
	assert.True(t, IsNotFound(err))

	err = v.UpdateFanouts("a", "nope")
	requireMutationError(t, err, ErrCodeNodeNotFound,
		"UpdateFanouts(from_node_name='a', to_node_name='nope') error: node 'nope' was not found.")

	before := testutil.Inputs(v.Graph())
	require.NoError(t, v.UpdateFanouts("a", "a"))
	assert.Equal(t, before, testutil.Inputs(v.Graph()))
	checkGraph(t, v)
}

func TestAddRegularFanin(t *testing.T) {
	tests := []struct {
		name     string
		node     string
		fanin    ir.TensorID
		wantErr  string
		code     ErrorCode
		expected []string
	}{
		{name: "no fanins has regular", node: "foo_1", fanin: ir.NewTensorID("b", 1),
			expected: []string{"a", "b:1"}},
		{name: "duplicate regular", node: "foo_3", fanin: ir.NewTensorID("b", 2),
			expected: []string{"b", "a:1", "a:1", "b:2"}},
		{name: "replaces control", node: "foo_2", fanin: ir.NewTensorID("a", 0),
			expected: []string{"b", "a", "^c"}},
		{name: "regular and controls", node: "foo_4", fanin: ir.NewTensorID("a", 1),
			expected: []string{"a", "b:2", "b:2", "a:1", "^d", "^c"}},
		{name: "empty node", node: "foo_5", fanin: ir.NewTensorID("a", 1),
			expected: []string{"a:1"}},
		{name: "controls only", node: "foo_6", fanin: ir.NewTensorID("c", 1),
			expected: []string{"c:1", "^b", "^a"}},
		{name: "control id", node: "foo_4", fanin: ir.ControlID("b"), code: ErrCodeInvalidTensorID,
			wantErr:  "AddRegularFanin(node_name='foo_4', fanin='^b') error: fanin '^b' must be a regular tensor id.",
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "missing fanin", node: "foo_6", fanin: ir.NewTensorID("d_missing", 0), code: ErrCodeNodeNotFound,
			wantErr:  "AddRegularFanin(node_name='foo_6', fanin='d_missing:0') error: node 'd_missing' was not found.",
			expected: []string{"^a", "^b"}},
		{name: "self", node: "foo_6", fanin: ir.NewTensorID("foo_6", 2), code: ErrCodeSelfLoop,
			wantErr:  "AddRegularFanin(node_name='foo_6', fanin='foo_6:2') error: can't add regular fanin 'foo_6:2' to self.",
			expected: []string{"^a", "^b"}},
		{name: "missing node", node: "foo_missing", fanin: ir.NewTensorID("a", 0), code: ErrCodeNodeNotFound,
			wantErr: "AddRegularFanin(node_name='foo_missing', fanin='a:0') error: node 'foo_missing' was not found."},
		{name: "missing node and fanin", node: "foo_missing", fanin: ir.NewTensorID("bar_missing", 0), code: ErrCodeNodeNotFound,
			wantErr: "AddRegularFanin(node_name='foo_missing', fanin='bar_missing:0') error: node 'foo_missing' was not found."},
		{name: "invalid id", node: "foo_missing", fanin: ir.NewTensorID("a", -2), code: ErrCodeInvalidTensorID,
			wantErr: "AddRegularFanin(node_name='foo_missing', fanin='a:-2') error: fanin 'a:-2' must be a regular tensor id."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustView(t, simpleMutateFaninGraph())
			others := inputsExcept(v.Graph(), tt.node)

			err := v.AddRegularFanin(tt.node, tt.fanin)
			if tt.wantErr != "" {
				requireMutationError(t, err, tt.code, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if v.GetNode(tt.node) != nil {
				checkNode(t, v, tt.node, tt.expected, nil)
			}
			assert.Equal(t, others, inputsExcept(v.Graph(), tt.node))
			checkGraph(t, v)
		})
	}
}

func TestRemoveRegularFanin(t *testing.T) {
	tests := []struct {
		name     string
		node     string
		fanin    ir.TensorID
		wantErr  string
		code     ErrorCode
		expected []string
	}{
		{name: "only fanin", node: "foo_1", fanin: ir.NewTensorID("a", 0),
			expected: []string{}},
		{name: "duplicates removed", node: "foo_3", fanin: ir.NewTensorID("a", 1),
			expected: []string{"b"}},
		{name: "controls kept", node: "foo_2", fanin: ir.NewTensorID("b", 0),
			expected: []string{"^a", "^c"}},
		{name: "middle duplicates", node: "foo_4", fanin: ir.NewTensorID("b", 2),
			expected: []string{"a", "^c", "^d"}},
		{name: "first", node: "foo_4", fanin: ir.NewTensorID("a", 0),
			expected: []string{"b:2", "b:2", "^c", "^d"}},
		{name: "absent on empty", node: "foo_5", fanin: ir.NewTensorID("a", 1),
			expected: []string{}},
		{name: "absent among controls", node: "foo_6", fanin: ir.NewTensorID("a", 1),
			expected: []string{"^a", "^b"}},
		{name: "control id", node: "foo_6", fanin: ir.ControlID("a"), code: ErrCodeInvalidTensorID,
			wantErr:  "RemoveRegularFanin(node_name='foo_6', fanin='^a') error: fanin '^a' must be a regular tensor id.",
			expected: []string{"^a", "^b"}},
		{name: "self", node: "foo_6", fanin: ir.NewTensorID("foo_6", 2), code: ErrCodeSelfLoop,
			wantErr:  "RemoveRegularFanin(node_name='foo_6', fanin='foo_6:2') error: can't remove regular fanin 'foo_6:2' from self.",
			expected: []string{"^a", "^b"}},
		{name: "missing fanin", node: "foo_6", fanin: ir.NewTensorID("bar_missing", 0), code: ErrCodeNodeNotFound,
			wantErr:  "RemoveRegularFanin(node_name='foo_6', fanin='bar_missing:0') error: node 'bar_missing' was not found.",
			expected: []string{"^a", "^b"}},
		{name: "missing node", node: "foo_missing", fanin: ir.NewTensorID("a", 0), code: ErrCodeNodeNotFound,
			wantErr: "RemoveRegularFanin(node_name='foo_missing', fanin='a:0') error: node 'foo_missing' was not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustView(t, simpleMutateFaninGraph())
			others := inputsExcept(v.Graph(), tt.node)

			err := v.RemoveRegularFanin(tt.node, tt.fanin)
			if tt.wantErr != "" {
				requireMutationError(t, err, tt.code, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if v.GetNode(tt.node) != nil {
				checkNode(t, v, tt.node, tt.expected, nil)
			}
			assert.Equal(t, others, inputsExcept(v.Graph(), tt.node))
			checkGraph(t, v)
		})
	}
}

func TestRemoveRegularFanin_UpdatesMaxOutputPort(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "a:1"),
		nd("c", "NotImportant", "a:2"),
	))
	require.Equal(t, 2, v.GetNode("a").MaxRegularOutputPort())

	require.NoError(t, v.RemoveRegularFanin("b", ir.NewTensorID("a", 1)))
	assert.Equal(t, 2, v.GetNode("a").MaxRegularOutputPort())

	require.NoError(t, v.RemoveRegularFanin("c", ir.NewTensorID("a", 2)))
	assert.Equal(t, -1, v.GetNode("a").MaxRegularOutputPort())
	checkNode(t, v, "a", nil, nil)
	checkGraph(t, v)
}

func TestRemoveAllFanins(t *testing.T) {
	tests := []struct {
		node     string
		keep     bool
		expected []string
	}{
		{"foo_1", false, nil},
		{"foo_2", false, nil},
		{"foo_3", false, nil},
		{"foo_4", false, nil},
		{"foo_4", true, []string{"^c", "^d"}},
		{"foo_5", false, nil},
		{"foo_5", true, nil},
		{"foo_6", false, nil},
		{"foo_6", true, []string{"^a", "^b"}},
	}
	for _, tt := range tests {
		name := tt.node
		if tt.keep {
			name += "/keep"
		}
		t.Run(name, func(t *testing.T) {
			v := mustView(t, simpleMutateFaninGraph())
			others := inputsExcept(v.Graph(), tt.node)

			require.NoError(t, v.RemoveAllFanins(tt.node, tt.keep))
			checkNode(t, v, tt.node, tt.expected, nil)
			assert.Equal(t, others, inputsExcept(v.Graph(), tt.node))
			checkGraph(t, v)
		})
	}
}

func TestRemoveAllFanins_MissingNode(t *testing.T) {
	v := mustView(t, simpleMutateFaninGraph())
	err := v.RemoveAllFanins("foo_missing", false)
	requireMutationError(t, err, ErrCodeNodeNotFound,
		"RemoveAllFanins(node_name='foo_missing', keep_controlling_fanins=false) error: node 'foo_missing' was not found.")
}

func TestUpdateFanin(t *testing.T) {
	tests := []struct {
		name     string
		node     string
		from, to ir.TensorID
		wantErr  string
		code     ErrorCode
		expected []string
	}{
		{name: "regular to regular", node: "foo_4", from: ir.NewTensorID("b", 2), to: ir.NewTensorID("b", 3),
			expected: []string{"a", "b:3", "b:3", "^c", "^d"}},
		{name: "regular to control", node: "foo_4", from: ir.NewTensorID("b", 2), to: ir.ControlID("b"),
			expected: []string{"a", "^c", "^d", "^b"}},
		{name: "control to regular", node: "foo_4", from: ir.ControlID("d"), to: ir.NewTensorID("d", 1),
			expected: []string{"a", "b:2", "b:2", "d:1", "^c"}},
		{name: "control to control folded", node: "foo_4", from: ir.ControlID("c"), to: ir.ControlID("b"),
			expected: []string{"a", "b:2", "b:2", "^d"}},
		{name: "control to existing control", node: "foo_4", from: ir.ControlID("c"), to: ir.ControlID("d"),
			expected: []string{"a", "b:2", "b:2", "^d"}},
		{name: "absent from", node: "foo_4", from: ir.NewTensorID("b", 5), to: ir.NewTensorID("a", 1),
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "same", node: "foo_4", from: ir.NewTensorID("a", 0), to: ir.NewTensorID("a", 0),
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "self", node: "foo_4", from: ir.NewTensorID("a", 0), to: ir.NewTensorID("foo_4", 1), code: ErrCodeSelfLoop,
			wantErr:  "UpdateFanin(node_name='foo_4', from_fanin='a:0', to_fanin='foo_4:1') error: can't update fanin to or from self.",
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "missing from", node: "foo_4", from: ir.NewTensorID("x", 0), to: ir.NewTensorID("a", 1), code: ErrCodeNodeNotFound,
			wantErr:  "UpdateFanin(node_name='foo_4', from_fanin='x:0', to_fanin='a:1') error: node 'x' was not found.",
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "missing to", node: "foo_4", from: ir.NewTensorID("a", 0), to: ir.NewTensorID("y", 1), code: ErrCodeNodeNotFound,
			wantErr:  "UpdateFanin(node_name='foo_4', from_fanin='a:0', to_fanin='y:1') error: node 'y' was not found.",
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "invalid to", node: "foo_4", from: ir.NewTensorID("a", 0), to: ir.NewTensorID("a", -2), code: ErrCodeInvalidTensorID,
			wantErr:  "UpdateFanin(node_name='foo_4', from_fanin='a:0', to_fanin='a:-2') error: fanin 'a:-2' must be a valid tensor id.",
			expected: []string{"a", "b:2", "b:2", "^c", "^d"}},
		{name: "missing node", node: "foo_missing", from: ir.NewTensorID("a", 0), to: ir.NewTensorID("b", 0), code: ErrCodeNodeNotFound,
			wantErr: "UpdateFanin(node_name='foo_missing', from_fanin='a:0', to_fanin='b:0') error: node 'foo_missing' was not found."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustView(t, simpleMutateFaninGraph())
			others := inputsExcept(v.Graph(), tt.node)

			err := v.UpdateFanin(tt.node, tt.from, tt.to)
			if tt.wantErr != "" {
				requireMutationError(t, err, tt.code, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if v.GetNode(tt.node) != nil {
				checkNode(t, v, tt.node, tt.expected, nil)
			}
			assert.Equal(t, others, inputsExcept(v.Graph(), tt.node))
			checkGraph(t, v)
		})
	}
}

func TestUpdateFanin_ToSwitchControl(t *testing.T) {
	for _, from := range []ir.TensorID{ir.NewTensorID("a", 0), ir.NewTensorID("a", 1), ir.ControlID("a")} {
		t.Run(from.DebugString(), func(t *testing.T) {
			nd := testutil.NDef
			v := mustView(t, testutil.GDef(
				nd("a", "NotImportant"),
				nd("b", "Switch"),
				nd("c", "NotImportant", from.String()),
			))

			err := v.UpdateFanin("c", from, ir.ControlID("b"))
			requireMutationError(t, err, ErrCodeSwitchControl,
				"UpdateFanin(node_name='c', from_fanin='"+from.DebugString()+
					"', to_fanin='^b') error: can't update to fanin '^b' as it will become a Switch control dependency.")

			fanout := "c:0"
			if from.IsControl() {
				fanout = "^c"
			}
			checkNode(t, v, "a", nil, []string{fanout})
			checkNode(t, v, "b", nil, nil)
			checkNode(t, v, "c", []string{from.String()}, nil)
			checkGraph(t, v)
		})
	}
}

func TestUpdateFanin_DedupsControls(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant"),
		nd("c", "NotImportant", "a:1", "^b"),
	))

	require.NoError(t, v.UpdateFanin("c", ir.NewTensorID("a", 1), ir.NewTensorID("b", 2)))

	checkNode(t, v, "a", nil, nil)
	checkNode(t, v, "b", nil, []string{"c:0"})
	checkNode(t, v, "c", []string{"b:2"}, nil)
	checkGraph(t, v)
}

func TestUpdateFanin_KeepsBranchForwarderControls(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "Switch"),
		nd("b", "Identity", "a:1"),
		nd("c", "Identity", "a:2"),
		nd("d", "NotImportant", "c", "^b"),
		nd("e", "NotImportant", "b", "^c"),
	))

	require.NoError(t, v.UpdateFanin("d", ir.ControlID("b"), ir.ControlID("c")))
	checkNode(t, v, "d", []string{"c", "^c"}, nil)

	require.NoError(t, v.UpdateFanin("e", ir.NewTensorID("b", 0), ir.NewTensorID("c", 3)))
	checkNode(t, v, "e", []string{"c:3", "^c"}, nil)

	require.NoError(t, v.UpdateFanin("e", ir.NewTensorID("c", 3), ir.ControlID("c")))
	checkNode(t, v, "e", []string{"^c"}, nil)
	checkGraph(t, v)
}

func TestUpdateFanin_UpdatesMaxOutputPort(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "a:1"),
		nd("c", "NotImportant", "a:2"),
	))

	require.NoError(t, v.UpdateFanin("c", ir.NewTensorID("a", 2), ir.NewTensorID("b", 3)))

	checkNode(t, v, "a", nil, []string{"b:0"})
	checkNode(t, v, "b", []string{"a:1"}, []string{"c:0"})
	checkNode(t, v, "c", []string{"b:3"}, nil)
	assert.Equal(t, 1, v.GetNode("a").MaxRegularOutputPort())
	assert.Equal(t, 3, v.GetNode("b").MaxRegularOutputPort())
	checkGraph(t, v)
}

func TestAddRegularFanin_DedupsControls(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "^a"),
		nd("c", "NotImportant", "a:1"),
	))

	require.NoError(t, v.AddRegularFanin("b", ir.NewTensorID("a", 2)))
	checkNode(t, v, "b", []string{"a:2"}, nil)

	require.NoError(t, v.AddControllingFanin("c", ir.ControlID("a")))
	checkNode(t, v, "c", []string{"a:1"}, nil)
	checkNode(t, v, "a", nil, []string{"b:0", "c:0"})
	checkGraph(t, v)
}

func TestAddRegularFanin_KeepsBranchForwarderControls(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "Switch"),
		nd("b", "Identity", "a:1"),
		nd("c", ""),
		nd("d", ""),
	))

	require.NoError(t, v.AddRegularFanin("c", ir.NewTensorID("b", 2)))
	checkNode(t, v, "c", []string{"b:2"}, nil)

	for range 2 {
		require.NoError(t, v.AddControllingFanin("c", ir.ControlID("b")))
		checkNode(t, v, "c", []string{"b:2", "^b"}, nil)
	}
	for range 2 {
		require.NoError(t, v.AddControllingFanin("d", ir.ControlID("b")))
		checkNode(t, v, "d", []string{"^b"}, nil)
	}
	checkGraph(t, v)
}

func TestAddRegularFanin_UpdatesMaxOutputPort(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "a:1"),
		nd("c", "NotImportant", "^b"),
	))

	require.NoError(t, v.AddRegularFanin("c", ir.NewTensorID("a", 3)))

	checkNode(t, v, "a", nil, []string{"b:0", "c:0"})
	checkNode(t, v, "b", []string{"a:1"}, []string{"^c"})
	checkNode(t, v, "c", []string{"a:3", "^b"}, nil)
	assert.Equal(t, 3, v.GetNode("a").MaxRegularOutputPort())
	checkGraph(t, v)
}

func TestAddControllingFanin_Missing(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(nd("a", "NotImportant"), nd("b", "NotImportant")))

	tests := []struct {
		node  string
		fanin ir.TensorID
		msg   string
	}{
		{"a", ir.ControlID("c"),
			"AddControllingFanin(node_name='a', fanin='^c') error: node 'c' was not found."},
		{"d", ir.ControlID("a"),
			"AddControllingFanin(node_name='d', fanin='^a') error: node 'd' was not found."},
		{"c", ir.ControlID("d"),
			"AddControllingFanin(node_name='c', fanin='^d') error: node 'c' was not found."},
	}
	for _, tt := range tests {
		err := v.AddControllingFanin(tt.node, tt.fanin)
		requireMutationError(t, err, ErrCodeNodeNotFound, tt.msg)
	}

	err := v.AddControllingFanin("a", ir.NewTensorID("b", -2))
	requireMutationError(t, err, ErrCodeInvalidTensorID,
		"AddControllingFanin(node_name='a', fanin='b:-2') error: fanin 'b:-2' must be a valid tensor id.")

	assert.Equal(t, 2, v.NumNodes())
	checkNode(t, v, "a", nil, nil)
	checkNode(t, v, "b", nil, nil)
	checkGraph(t, v)
}

func TestAddControllingFanin_Idempotent(t *testing.T) {
	for _, fanin := range []ir.TensorID{ir.ControlID("b"), ir.NewTensorID("b", 2)} {
		t.Run(fanin.DebugString(), func(t *testing.T) {
			nd := testutil.NDef
			v := mustView(t, testutil.GDef(nd("a", "NotImportant"), nd("b", "NotImportant")))

			require.NoError(t, v.AddControllingFanin("a", fanin))
			require.NoError(t, v.AddControllingFanin("a", fanin))

			assert.Equal(t, 2, v.NumNodes())
			checkNode(t, v, "a", []string{"^b"}, nil)
			checkNode(t, v, "b", nil, []string{"^a"})
			checkGraph(t, v)
		})
	}
}

func TestAddControllingFanin_ByName(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(nd("a", "NotImportant"), nd("b", "NotImportant"), nd("s", "Switch")))

	require.NoError(t, v.AddControllingFaninByName("a", "b"))
	checkNode(t, v, "a", []string{"^b"}, nil)

	err := v.AddControllingFaninByName("a", "s")
	assert.True(t, IsSwitchControl(err))
	checkGraph(t, v)
}

func TestAddControllingFanin_Switch(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(nd("a", "NotImportant"), nd("b", "Switch")))

	err := v.AddControllingFanin("a", ir.ControlID("b"))
	requireMutationError(t, err, ErrCodeSwitchControl,
		"AddControllingFanin(node_name='a', fanin='^b') error: can't add controlling fanin '^b' as it will become a Switch control dependency.")

	assert.Equal(t, 2, v.NumNodes())
	checkNode(t, v, "a", nil, nil)
	checkNode(t, v, "b", nil, nil)
	checkGraph(t, v)
}

func TestAddControllingFanin_SwitchWithIdentity(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("switch", "Switch"),
		nd("identity", "Identity", "switch"),
	))

	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))
	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))

	assert.Equal(t, 3, v.NumNodes())
	checkNode(t, v, "a", []string{"^identity"}, nil)
	checkNode(t, v, "switch", nil, []string{"identity:0"})
	checkNode(t, v, "identity", []string{"switch"}, []string{"^a"})
	checkGraph(t, v)
}

func TestAddControllingFanin_SwitchWithNoExistingIdentity(t *testing.T) {
	const device = "/device:foo:0"
	attr := ir.AttrMap{"T": ir.AttrString("DT_FLOAT")}
	v := mustView(t, testutil.GDef(
		testutil.NDef("a", "NotImportant"),
		testutil.NDefOn("switch", "Switch", device, attr),
	))

	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))
	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))

	const fwd = "ConstantFoldingCtrl/switch_0"
	assert.Equal(t, fwd, ForwardingNodeName("switch", 0))
	assert.Equal(t, 3, v.NumNodes())
	checkNode(t, v, "a", []string{"^" + fwd}, nil)
	checkNode(t, v, "switch", nil, []string{fwd + ":0"})
	checkNode(t, v, fwd, []string{"switch"}, []string{"^a"})

	n := v.GetNode(fwd)
	assert.Equal(t, "Identity", n.Op())
	assert.Equal(t, device, n.Device())
	assert.Equal(t, attr, n.Def().Attr)
	checkGraph(t, v)
}

func TestAddControllingFanin_SwitchWithExistingAddedIdentity(t *testing.T) {
	nd := testutil.NDef
	const fwd = "ConstantFoldingCtrl/switch_0"
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("switch", "Switch"),
		nd(fwd, "Identity", "switch"),
	))

	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))
	require.NoError(t, v.AddControllingFanin("a", ir.NewTensorID("switch", 0)))

	assert.Equal(t, 3, v.NumNodes())
	checkNode(t, v, "a", []string{"^" + fwd}, nil)
	checkNode(t, v, "switch", nil, []string{fwd + ":0"})
	checkNode(t, v, fwd, []string{"switch"}, []string{"^a"})
	checkGraph(t, v)
}

func TestAddControllingFanin_SelfLoops(t *testing.T) {
	tests := []struct {
		node  string
		fanin ir.TensorID
		msg   string
	}{
		{"a", ir.ControlID("a"),
			"AddControllingFanin(node_name='a', fanin='^a') error: can't add controlling fanin '^a' to self."},
		{"c", ir.NewTensorID("b", 0),
			"AddControllingFanin(node_name='c', fanin='b:0') error: can't add found controlling fanin '^c' to self."},
		{"d", ir.NewTensorID("b", 1),
			"AddControllingFanin(node_name='d', fanin='b:1') error: can't add found controlling fanin '^d' to self."},
	}
	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			nd := testutil.NDef
			v := mustView(t, testutil.GDef(
				nd("a", "NotImportant"),
				testutil.NDefOn("b", "Switch", "", ir.AttrMap{"T": ir.AttrString("DT_FLOAT")}),
				nd("c", "Identity", "b"),
				nd("d", "Identity", "b:1"),
				nd("e", "NotImportant", "^a"),
			))

			err := v.AddControllingFanin(tt.node, tt.fanin)
			requireMutationError(t, err, ErrCodeSelfLoop, tt.msg)
			assert.True(t, IsSelfLoop(err))

			assert.Equal(t, 5, v.NumNodes())
			checkNode(t, v, "a", nil, []string{"^e"})
			checkNode(t, v, "b", nil, []string{"c:0", "d:0"})
			checkNode(t, v, "c", []string{"b"}, nil)
			checkNode(t, v, "d", []string{"b:1"}, nil)
			checkNode(t, v, "e", []string{"^a"}, nil)
			checkGraph(t, v)
		})
	}
}

func TestAddControllingFanin_SelfLoopsGeneratedIdentity(t *testing.T) {
	nd := testutil.NDef
	const fwd = "ConstantFoldingCtrl/b_1"
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		testutil.NDefOn("b", "Switch", "", ir.AttrMap{"T": ir.AttrString("DT_FLOAT")}),
		nd("c", "NotImportant"),
		nd(fwd, "Identity"),
	))

	err := v.AddControllingFanin(fwd, ir.NewTensorID("b", 1))
	requireMutationError(t, err, ErrCodeSelfLoop,
		"AddControllingFanin(node_name='ConstantFoldingCtrl/b_1', fanin='b:1') error: can't add generated controlling fanin '^ConstantFoldingCtrl/b_1' to self.")

	assert.Equal(t, 4, v.NumNodes())
	checkNode(t, v, "b", nil, nil)
	checkNode(t, v, fwd, nil, nil)
	checkGraph(t, v)
}

func TestRemoveControllingFanin(t *testing.T) {
	nd := testutil.NDef

	t.Run("missing control", func(t *testing.T) {
		v := mustView(t, testutil.GDef(
			nd("a", "NotImportant"), nd("b", "NotImportant"), nd("c", "NotImportant"),
			nd("d", "NotImportant", "^a", "^b"),
		))
		require.NoError(t, v.RemoveControllingFanin("d", "c"))
		checkNode(t, v, "a", nil, []string{"^d"})
		checkNode(t, v, "b", nil, []string{"^d"})
		checkNode(t, v, "c", nil, nil)
		checkNode(t, v, "d", []string{"^a", "^b"}, nil)
		checkGraph(t, v)
	})

	t.Run("existing control", func(t *testing.T) {
		v := mustView(t, testutil.GDef(
			nd("a", "NotImportant"), nd("b", "NotImportant"), nd("c", "NotImportant"),
			nd("d", "NotImportant", "^a", "^b", "^c"),
		))
		require.NoError(t, v.RemoveControllingFanin("d", "a"))
		require.NoError(t, v.RemoveControllingFanin("d", "a"))
		checkNode(t, v, "a", nil, nil)
		checkNode(t, v, "b", nil, []string{"^d"})
		checkNode(t, v, "c", nil, []string{"^d"})
		checkNode(t, v, "d", []string{"^c", "^b"}, nil)
		checkGraph(t, v)
	})

	t.Run("regular fanin untouched", func(t *testing.T) {
		v := mustView(t, testutil.GDef(
			nd("a", "NotImportant"), nd("b", "NotImportant", "a"), nd("c", "NotImportant", "a", "b"),
		))
		require.NoError(t, v.RemoveControllingFanin("c", "a"))
		require.NoError(t, v.RemoveControllingFanin("c", "b"))
		checkNode(t, v, "a", nil, []string{"b:0", "c:0"})
		checkNode(t, v, "b", []string{"a"}, []string{"c:1"})
		checkNode(t, v, "c", []string{"a", "b"}, nil)
		checkGraph(t, v)
	})

	t.Run("self", func(t *testing.T) {
		v := mustView(t, testutil.GDef(
			nd("a", "NotImportant"), nd("b", "NotImportant", "a"), nd("c", "NotImportant", "a", "b"),
		))
		err := v.RemoveControllingFanin("c", "c")
		requireMutationError(t, err, ErrCodeSelfLoop,
			"RemoveControllingFanin(node_name='c', fanin_node_name='c') error: can't remove controlling fanin '^c' from self.")
		checkNode(t, v, "c", []string{"a", "b"}, nil)
		checkGraph(t, v)
	})

	t.Run("missing nodes", func(t *testing.T) {
		v := mustView(t, testutil.GDef(nd("a", "NotImportant")))
		err := v.RemoveControllingFanin("x", "a")
		requireMutationError(t, err, ErrCodeNodeNotFound,
			"RemoveControllingFanin(node_name='x', fanin_node_name='a') error: node 'x' was not found.")
		err = v.RemoveControllingFanin("a", "y")
		requireMutationError(t, err, ErrCodeNodeNotFound,
			"RemoveControllingFanin(node_name='a', fanin_node_name='y') error: node 'y' was not found.")
	})
}

func TestDeleteNodes(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("bar", "NotImportant"),
		nd("other", "NotImportant"),
		nd("foo_1", "NotImportant", "bar", "other", "bar:1", "^bar"),
		nd("foo_2", "NotImportant", "other:1", "bar:2", "^bar"),
	))

	require.NoError(t, v.DeleteNodes([]string{"foo_1"}))

	assert.Equal(t, 3, v.NumNodes())
	assert.Nil(t, v.GetNode("foo_1"))
	assert.Equal(t, []string{"bar", "other", "foo_2"}, v.Graph().NodeNames())
	checkNode(t, v, "bar", nil, []string{"foo_2:1"})
	checkNode(t, v, "other", nil, []string{"foo_2:0"})
	checkNode(t, v, "foo_2", []string{"other:1", "bar:2"}, nil)
	assert.Equal(t, 2, v.GetNode("bar").MaxRegularOutputPort())
	checkGraph(t, v)
}

func TestDeleteNodes_WithFanoutsBeingDeleted(t *testing.T) {
	v := mustView(t, simpleDeleteNodeGraph())

	require.NoError(t, v.DeleteNodes([]string{"c", "a", "b"}))

	assert.Equal(t, 3, v.NumNodes())
	for _, name := range []string{"a", "b", "c"} {
		assert.Nil(t, v.GetNode(name))
	}
	checkNode(t, v, "d", nil, []string{"e:0", "f:0"})
	checkNode(t, v, "e", []string{"d:2"}, []string{"^f"})
	checkNode(t, v, "f", []string{"d:3", "^e"}, nil)
	checkGraph(t, v)
}

func TestDeleteNodes_MissingNames(t *testing.T) {
	v := mustView(t, simpleDeleteNodeGraph())
	require.NoError(t, v.DeleteNodes([]string{"g", "h"}))
	assert.Equal(t, 6, v.NumNodes())
	checkGraph(t, v)

	require.NoError(t, v.DeleteNodes([]string{"d", "e", "f", "g", "h"}))
	assert.Equal(t, []string{"a", "b", "c"}, v.Graph().NodeNames())
	checkNode(t, v, "a", nil, []string{"b:0", "c:0"})
	checkNode(t, v, "b", []string{"a:2"}, []string{"^c"})
	checkNode(t, v, "c", []string{"a:5", "^b"}, nil)
	checkGraph(t, v)
}

func TestDeleteNodes_RetainedFanouts(t *testing.T) {
	v := mustView(t, simpleDeleteNodeGraph())
	before := testutil.Inputs(v.Graph())

	err := v.DeleteNodes([]string{"b", "a"})
	requireMutationError(t, err, ErrCodeRetainedFanout,
		"DeleteNodes(nodes_to_delete={a, b}) error: can't delete node(s) with retained fanouts(s) [a, b].")
	assert.True(t, IsRetainedFanout(err))

	assert.Equal(t, 6, v.NumNodes())
	assert.Equal(t, before, testutil.Inputs(v.Graph()))
	checkNode(t, v, "a", nil, []string{"b:0", "c:0"})
	checkNode(t, v, "b", []string{"a:2"}, []string{"^c"})
	checkGraph(t, v)
}

func TestDeleteNodes_SingleRetained(t *testing.T) {
	v := mustView(t, simpleDeleteNodeGraph())

	err := v.DeleteNodes([]string{"a"})
	requireMutationError(t, err, ErrCodeRetainedFanout,
		"DeleteNodes(nodes_to_delete={a}) error: can't delete node(s) with retained fanouts(s) [a].")
	assert.NotNil(t, v.GetNode("a"))
	checkGraph(t, v)
}

func TestDeleteNodes_LargeError(t *testing.T) {
	nd := testutil.NDef
	v := mustView(t, testutil.GDef(
		nd("a", "NotImportant"),
		nd("b", "NotImportant", "a:2"),
		nd("c", "NotImportant", "^b"),
		nd("d", "NotImportant", "c:6"),
		nd("e", "NotImportant", "d:2"),
		nd("f", "NotImportant", "d:3", "^e"),
		nd("g", "NotImportant", "f"),
		nd("h", "NotImportant", "a"),
		nd("i", "NotImportant", "b"),
		nd("j", "NotImportant", "c"),
		nd("k", "NotImportant", "d"),
		nd("l", "NotImportant", "e"),
		nd("m", "NotImportant", "f"),
	))

	err := v.DeleteNodes([]string{"a", "b", "c", "d", "e", "f"})
	requireMutationError(t, err, ErrCodeRetainedFanout,
		"DeleteNodes(nodes_to_delete={a, b, c, d, e, ...}) error: can't delete node(s) with retained fanouts(s) [a, b, c, d, e, ...].")

	assert.Equal(t, 13, v.NumNodes())
	checkNode(t, v, "a", nil, []string{"b:0", "h:0"})
	checkNode(t, v, "f", []string{"d:3", "^e"}, []string{"g:0", "m:0"})
	checkGraph(t, v)
}
