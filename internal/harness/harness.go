package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/planir/internal/graphview"
	"github.com/roach88/planir/internal/ir"
)

// Harness applies scenario steps to a graph view.
// Every applied step, failed or not, takes the next sequence number, so a
// trace is reproducible and its seq values run 1..len(steps).
type Harness struct {
	view   *graphview.View
	seq    int64
	logger *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the step logger.
//
// Default: discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// The scenario graph is cloned, so the scenario can be run again.
// Execution flow:
//  1. Build a graph view over the starting graph
//  2. Apply each step, checking expect_error and index consistency
//  3. Evaluate assertions against the final graph
//
// A step that fails or succeeds against expectation is recorded in
// Result.Errors. An index inconsistency is a harness error and is returned
// as err.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	if scenario.Graph == nil {
		return nil, fmt.Errorf("scenario %q has no graph", scenario.Name)
	}

	view, err := graphview.New(scenario.Graph.Clone())
	if err != nil {
		return nil, fmt.Errorf("failed to build graph view: %w", err)
	}

	h := &Harness{
		view:   view,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		seq := h.nextSeq()
		stepErr := h.apply(step)

		errMsg := ""
		if stepErr != nil {
			errMsg = stepErr.Error()
		}
		result.AddStepTrace(seq, step.Op, stepTarget(step), errMsg)
		h.logger.Debug("step applied",
			"scenario", scenario.Name,
			"seq", seq,
			"op", step.Op,
			"error", errMsg,
		)

		switch {
		case step.ExpectError == "" && stepErr != nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, stepErr))
		case step.ExpectError != "" && stepErr == nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got success", i, step.Op, step.ExpectError))
		case step.ExpectError != "" && !strings.Contains(errMsg, step.ExpectError):
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error containing %q, got %q", i, step.Op, step.ExpectError, errMsg))
		}

		if err := h.view.CheckConsistency(); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: index inconsistent: %w", i, step.Op, err)
		}
	}

	for _, msg := range EvaluateAssertions(h.view, scenario.Assertions) {
		result.AddError(msg)
	}

	result.Graph = h.view.Graph()
	return result, nil
}

// nextSeq stamps the next step.
func (h *Harness) nextSeq() int64 {
	h.seq++
	return h.seq
}

// apply dispatches one step to the view.
func (h *Harness) apply(s Step) error {
	v := h.view
	switch s.Op {
	case OpAddNode:
		if s.Def == nil {
			return fmt.Errorf("add_node: def is required")
		}
		_, err := v.AddNode(s.Def.Clone())
		return err
	case OpAddSubgraph:
		return v.AddSubgraph(s.Subgraph.Clone())
	case OpUpdateFanouts:
		return v.UpdateFanouts(s.From, s.To)
	case OpAddRegularFanin:
		return v.AddRegularFanin(s.Node, ir.ParseTensorName(s.Fanin))
	case OpRemoveRegularFanin:
		return v.RemoveRegularFanin(s.Node, ir.ParseTensorName(s.Fanin))
	case OpAddControllingFanin:
		return v.AddControllingFanin(s.Node, ir.ParseTensorName(s.Fanin))
	case OpRemoveControllingFanin:
		return v.RemoveControllingFanin(s.Node, ir.NodeName(s.Fanin))
	case OpRemoveAllFanins:
		return v.RemoveAllFanins(s.Node, s.KeepControlling)
	case OpUpdateFanin:
		return v.UpdateFanin(s.Node, ir.ParseTensorName(s.From), ir.ParseTensorName(s.To))
	case OpDeleteNodes:
		return v.DeleteNodes(s.Nodes)
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

// stepTarget names what a step touched, for the trace.
func stepTarget(s Step) string {
	switch s.Op {
	case OpAddNode:
		if s.Def == nil {
			return ""
		}
		return s.Def.Name
	case OpAddSubgraph:
		if s.Subgraph == nil {
			return ""
		}
		return strings.Join(s.Subgraph.NodeNames(), ",")
	case OpUpdateFanouts:
		return s.From + "->" + s.To
	case OpDeleteNodes:
		return strings.Join(s.Nodes, ",")
	default:
		return s.Node
	}
}
