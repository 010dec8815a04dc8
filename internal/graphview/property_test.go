package graphview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/planir/internal/ir"
	"github.com/roach88/planir/internal/testutil"
)

// genGraph draws a DAG whose inputs only reference earlier nodes. Control
// inputs never name a Switch, which New rejects.
func genGraph(t *rapid.T) *ir.GraphDef {
	count := rapid.IntRange(1, 8).Draw(t, "nodes")
	g := &ir.GraphDef{}
	for i := 0; i < count; i++ {
		op := rapid.SampledFrom([]string{"Op", "Op", "Switch", "Identity"}).Draw(t, "op")
		def := &ir.NodeDef{Name: fmt.Sprintf("n%d", i), Op: op}
		if i > 0 {
			regular := rapid.IntRange(0, 3).Draw(t, "regular")
			for j := 0; j < regular; j++ {
				src := rapid.IntRange(0, i-1).Draw(t, "src")
				port := rapid.IntRange(0, 2).Draw(t, "port")
				def.Input = append(def.Input, ir.NewTensorID(fmt.Sprintf("n%d", src), port).String())
			}
			control := rapid.IntRange(0, 2).Draw(t, "control")
			for j := 0; j < control; j++ {
				src := rapid.IntRange(0, i-1).Draw(t, "ctl")
				if g.Node[src].Op == "Switch" {
					continue
				}
				def.Input = append(def.Input, ir.AsControlDependency(fmt.Sprintf("n%d", src)))
			}
		}
		g.Node = append(g.Node, def)
	}
	return g
}

func drawName(t *rapid.T, v *View, label string) string {
	names := v.Graph().NodeNames()
	names = append(names, "ghost")
	return rapid.SampledFrom(names).Draw(t, label)
}

func drawTensor(t *rapid.T, v *View, label string) ir.TensorID {
	name := drawName(t, v, label)
	return ir.NewTensorID(name, rapid.IntRange(-1, 3).Draw(t, label+"_port"))
}

// TestView_MutationsKeepIndexConsistent applies random mutation sequences
// and checks after every step that the index matches a rebuild, and that
// a rejected mutation left the graph untouched.
func TestView_MutationsKeepIndexConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v, err := New(genGraph(t))
		require.NoError(t, err)
		require.NoError(t, v.CheckConsistency())

		added := 0
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			before := testutil.Inputs(v.Graph())
			beforeCount := v.NumNodes()

			var err error
			switch rapid.IntRange(0, 8).Draw(t, "mutation") {
			case 0:
				err = v.AddRegularFanin(drawName(t, v, "node"), drawTensor(t, v, "fanin"))
			case 1:
				err = v.RemoveRegularFanin(drawName(t, v, "node"), drawTensor(t, v, "fanin"))
			case 2:
				err = v.AddControllingFanin(drawName(t, v, "node"), drawTensor(t, v, "fanin"))
			case 3:
				err = v.RemoveControllingFanin(drawName(t, v, "node"), drawName(t, v, "fanin"))
			case 4:
				err = v.RemoveAllFanins(drawName(t, v, "node"), rapid.Bool().Draw(t, "keep"))
			case 5:
				err = v.UpdateFanin(drawName(t, v, "node"), drawTensor(t, v, "from"), drawTensor(t, v, "to"))
			case 6:
				err = v.UpdateFanouts(drawName(t, v, "from"), drawName(t, v, "to"))
			case 7:
				err = v.DeleteNodes([]string{drawName(t, v, "delete")})
			case 8:
				added++
				def := &ir.NodeDef{Name: fmt.Sprintf("new%d", added), Op: "Op"}
				if rapid.Bool().Draw(t, "with_input") {
					def.Input = []string{drawTensor(t, v, "input").String()}
				}
				_, err = v.AddNode(def)
			}

			if err != nil {
				var me *MutationError
				require.ErrorAs(t, err, &me)
				require.Equal(t, before, testutil.Inputs(v.Graph()), "rejected mutation changed the graph: %v", err)
				require.Equal(t, beforeCount, v.NumNodes())
			}
			require.NoError(t, v.CheckConsistency(), "after step %d", step)
		}
	})
}

// TestView_ControlDedupInvariant checks that no node ends up with two
// controls on one source, whatever the mutation sequence.
func TestView_ControlDedupInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v, err := New(genGraph(t))
		require.NoError(t, err)

		steps := rapid.IntRange(1, 15).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			node := drawName(t, v, "node")
			if rapid.Bool().Draw(t, "regular") {
				_ = v.AddRegularFanin(node, drawTensor(t, v, "fanin"))
			} else {
				_ = v.AddControllingFanin(node, drawTensor(t, v, "fanin"))
			}
		}

		for _, n := range v.Nodes() {
			seen := make(map[string]bool)
			for _, in := range n.Inputs() {
				if !ir.IsControlInput(in) {
					continue
				}
				require.False(t, seen[in], "node %q has control %s twice: %v", n.Name(), in, n.Inputs())
				seen[in] = true
			}
		}
		require.NoError(t, v.CheckConsistency())
	})
}
