package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/planir/internal/ir"
)

// Snapshot captures a scenario's trace and final graph.
// It serializes through canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	Trace        []StepEvent
	Graph        *ir.GraphDef
}

// toCanonical converts a Snapshot to an attr map for canonical JSON.
func (s *Snapshot) toCanonical() ir.AttrMap {
	trace := make(ir.AttrList, len(s.Trace))
	for i, ev := range s.Trace {
		m := ir.AttrMap{
			"seq": ir.AttrInt(ev.Seq),
			"op":  ir.AttrString(ev.Op),
		}
		if ev.Target != "" {
			m["target"] = ir.AttrString(ev.Target)
		}
		if ev.Error != "" {
			m["error"] = ir.AttrString(ev.Error)
		}
		trace[i] = m
	}

	out := ir.AttrMap{
		"scenario_name": ir.AttrString(s.ScenarioName),
		"trace":         trace,
	}
	if s.Graph != nil {
		out["graph"] = ir.CanonicalGraph(s.Graph)
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace and final graph
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := CanonicalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// CanonicalSnapshot returns the bytes a golden file holds for result.
func CanonicalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := Snapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Graph:        result.Graph,
	}
	return ir.MarshalCanonical(snapshot.toCanonical())
}
