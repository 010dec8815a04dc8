package harness

import "github.com/roach88/planir/internal/ir"

// StepEvent records one applied step for the trace.
type StepEvent struct {
	Seq    int64  `json:"seq"`
	Op     string `json:"op"`
	Target string `json:"target,omitempty"` // node or node set the step touched
	Error  string `json:"error,omitempty"`  // set when the step was rejected
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step behaved as expected and
	// every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []StepEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Graph is the final graph.
	Graph *ir.GraphDef `json:"graph"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends a step event.
func (r *Result) AddStepTrace(seq int64, op, target, errMsg string) {
	r.Trace = append(r.Trace, StepEvent{
		Seq:    seq,
		Op:     op,
		Target: target,
		Error:  errMsg,
	})
}
