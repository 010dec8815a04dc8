package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/planir/internal/compiler"
	"github.com/roach88/planir/internal/ir"
)

// Scenario defines a graph rewriting scenario.
// A scenario starts from a graph, applies mutation steps in order, and
// asserts on the resulting fanins, fanouts and node set.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the inline starting graph.
	Graph *ir.GraphDef `yaml:"graph,omitempty"`

	// GraphFile is a .cue, .json or .yaml graph, relative to the scenario
	// file. Exactly one of Graph and GraphFile is set.
	GraphFile string `yaml:"graph_file,omitempty"`

	// Steps are the mutations, applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final graph.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one mutation. Which fields apply depends on Op.
type Step struct {
	// Op names the mutation, one of the Op* constants.
	Op string `yaml:"op"`

	// Node is the node being mutated.
	Node string `yaml:"node,omitempty"`

	// Fanin is a TensorID text form: "a", "a:1" or "^a".
	Fanin string `yaml:"fanin,omitempty"`

	// From and To are node names for update_fanouts and TensorIDs for
	// update_fanin.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// KeepControlling applies to remove_all_fanins.
	KeepControlling bool `yaml:"keep_controlling,omitempty"`

	// Nodes applies to delete_nodes.
	Nodes []string `yaml:"nodes,omitempty"`

	// Def applies to add_node.
	Def *ir.NodeDef `yaml:"def,omitempty"`

	// Subgraph applies to add_subgraph.
	Subgraph *ir.GraphDef `yaml:"subgraph,omitempty"`

	// ExpectError, if set, is a substring the step's error must contain.
	// A step without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operation constants.
const (
	OpAddNode                = "add_node"
	OpAddSubgraph            = "add_subgraph"
	OpUpdateFanouts          = "update_fanouts"
	OpAddRegularFanin        = "add_regular_fanin"
	OpRemoveRegularFanin     = "remove_regular_fanin"
	OpAddControllingFanin    = "add_controlling_fanin"
	OpRemoveControllingFanin = "remove_controlling_fanin"
	OpRemoveAllFanins        = "remove_all_fanins"
	OpUpdateFanin            = "update_fanin"
	OpDeleteNodes            = "delete_nodes"
)

// Assertion validates the final graph.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fanins": node's input list equals Expect exactly
	// - "fanouts": node's fanout ports ("x:0", "^y") equal Expect as a set
	// - "node_count": graph has exactly Count nodes
	// - "missing": none of Nodes exist
	Type string `yaml:"type"`

	// Node is the node under test (fanins, fanouts).
	Node string `yaml:"node,omitempty"`

	// Expect is the expected list (fanins, fanouts).
	Expect []string `yaml:"expect,omitempty"`

	// Count is the expected node count (node_count).
	Count int `yaml:"count,omitempty"`

	// Nodes lists names that must not exist (missing).
	Nodes []string `yaml:"nodes,omitempty"`
}

// Assertion type constants.
const (
	AssertFanins    = "fanins"
	AssertFanouts   = "fanouts"
	AssertNodeCount = "node_count"
	AssertMissing   = "missing"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// graph_file is resolved relative to the scenario file and loaded.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.GraphFile != "" {
		graphPath := scenario.GraphFile
		if !filepath.IsAbs(graphPath) {
			graphPath = filepath.Join(filepath.Dir(path), graphPath)
		}
		g, err := compiler.LoadGraphFile(graphPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load scenario graph: %w", err)
		}
		scenario.Graph = g
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. graph_file is not loaded.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if (s.Graph == nil) == (s.GraphFile == "") {
		return fmt.Errorf("exactly one of graph and graph_file is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields each op needs.
func validateStep(index int, s *Step) error {
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("steps[%d]: %s is required for %s", index, field, s.Op)
		}
		return nil
	}

	switch s.Op {
	case OpAddNode:
		return need(s.Def != nil, "def")
	case OpAddSubgraph:
		return need(s.Subgraph != nil, "subgraph")
	case OpUpdateFanouts, OpUpdateFanin:
		if err := need(s.From != "", "from"); err != nil {
			return err
		}
		if err := need(s.To != "", "to"); err != nil {
			return err
		}
		if s.Op == OpUpdateFanin {
			return need(s.Node != "", "node")
		}
		return nil
	case OpAddRegularFanin, OpRemoveRegularFanin, OpAddControllingFanin, OpRemoveControllingFanin:
		if err := need(s.Node != "", "node"); err != nil {
			return err
		}
		return need(s.Fanin != "", "fanin")
	case OpRemoveAllFanins:
		return need(s.Node != "", "node")
	case OpDeleteNodes:
		return need(len(s.Nodes) > 0, "nodes")
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFanins, AssertFanouts:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
	case AssertNodeCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for node_count", index)
		}
	case AssertMissing:
		if len(a.Nodes) == 0 {
			return fmt.Errorf("assertions[%d]: nodes list is required for missing", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
