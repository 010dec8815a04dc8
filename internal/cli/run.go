package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/compiler"
	"github.com/roach88/planir/internal/executor"
	"github.com/roach88/planir/internal/ir"
)

// FailOp is the op type whose units always fail. Graphs use it to exercise
// error propagation.
const FailOp = "Fail"

// Task statuses reported by the run command.
const (
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
	TaskStatusAborted = "aborted"
	TaskStatusPending = "pending"
)

// TaskRecord is the outcome of one node.
type TaskRecord struct {
	ID     uint64 `json:"id,omitempty"` // 0 when the node was never admitted
	Node   string `json:"node"`
	Op     string `json:"op"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunResult is the outcome of executing a graph.
type RunResult struct {
	Graph string       `json:"graph"`
	Async bool         `json:"async"`
	Tasks []TaskRecord `json:"tasks"`
	Error string       `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Execute a graph's nodes through the task executor",
		Long: `Submit every node of a graph, in topological order, to the task executor.

Each node becomes a unit that records its completion. Nodes with op "Fail"
fail; the first failure becomes the executor's sticky error and every
node not yet started is aborted.

With --async (or PLANIR_ASYNC=true) units are queued to the executor's
coordinator goroutine; otherwise each runs inline as it is submitted.

Exit codes:
  0 - Every node ran
  1 - A node failed or the graph is invalid
  2 - Command error (unreadable graph, cyclic graph, etc.)

Example:
  planir run ./model.cue
  planir run ./model.cue --async --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().Bool("async", false, "run units on the executor's coordinator goroutine")

	return cmd
}

func runGraph(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	g, err := LoadGraph(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.fail(ExitCommandError, code, message)
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Nodes: len(g.Node), Errors: errs})
	}
	order, err := compiler.TopologicalOrder(g)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidGraph, err.Error())
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := executeGraph(ctx, g, order, opts.Async, logger)
	result.Graph = path

	if runErr != nil {
		result.Error = runErr.Error()
		if err := outputRunFailure(formatter, result); err != nil {
			return err
		}
		return WrapExitError(ExitFailure, "execution failed", runErr)
	}
	return outputRunSuccess(formatter, result)
}

// executeGraph submits the nodes named in order and shuts the executor
// down. Cancelling ctx closes the executor, aborting queued units.
func executeGraph(ctx context.Context, g *ir.GraphDef, order []string, async bool, logger *slog.Logger) (RunResult, error) {
	exec := executor.New(async, executor.WithLogger(logger))
	rec := newRunRecorder()

	finished := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			logger.Warn("run interrupted, closing executor", "reason", ctx.Err())
			exec.Close()
		case <-finished:
		}
	}()

	logger.Info("executing graph", "nodes", len(order), "async", async)
	for _, name := range order {
		def := g.FindNode(name)
		u := &nodeUnit{name: def.Name, op: def.Op, rec: rec}
		rec.add(u)

		id, err := exec.AddOrExecute(u)
		if id != 0 {
			rec.setID(name, id)
		}
		if err != nil {
			// The executor already recorded the failure; later units are
			// still submitted so each one reports its abort.
			logger.Debug("unit not completed", "node", name, "error", err)
		}
	}

	err := exec.ShutDown()
	close(finished)
	<-watcherDone

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	logger.Info("graph executed", "async", async, "error", err)
	return RunResult{Async: async, Tasks: rec.records(order)}, err
}

// nodeUnit executes one graph node. Validation has already rejected nodes
// without an op, so Prepare always succeeds.
type nodeUnit struct {
	executor.BaseUnit
	name string
	op   string
	rec  *runRecorder
}

// Run completes the node, failing for FailOp.
func (u *nodeUnit) Run() error {
	if u.op == FailOp {
		err := fmt.Errorf("node %s: op %s failed", u.name, u.op)
		u.rec.finish(u.name, TaskStatusFailed, err)
		return err
	}
	u.rec.finish(u.name, TaskStatusDone, nil)
	return nil
}

// Abort records that the node will never run.
func (u *nodeUnit) Abort(err error) {
	u.rec.finish(u.name, TaskStatusAborted, err)
}

func (u *nodeUnit) String() string {
	return u.name
}

// runRecorder collects task outcomes from any goroutine.
type runRecorder struct {
	mu    sync.Mutex
	tasks map[string]*TaskRecord
}

func newRunRecorder() *runRecorder {
	return &runRecorder{tasks: make(map[string]*TaskRecord)}
}

func (r *runRecorder) add(u *nodeUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[u.name] = &TaskRecord{Node: u.name, Op: u.op, Status: TaskStatusPending}
}

func (r *runRecorder) setID(name string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name].ID = id
}

func (r *runRecorder) finish(name, status string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.tasks[name]
	t.Status = status
	if err != nil {
		t.Error = err.Error()
	}
}

// records returns the outcomes in submission order.
func (r *runRecorder) records(order []string) []TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskRecord, 0, len(order))
	for _, name := range order {
		if t, ok := r.tasks[name]; ok {
			out = append(out, *t)
		}
	}
	return out
}

func outputRunSuccess(formatter *OutputFormatter, result RunResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	printTasks(formatter, result.Tasks)
	fmt.Fprintf(formatter.Writer, "✓ Executed %d node(s)\n", len(result.Tasks))
	return nil
}

func outputRunFailure(formatter *OutputFormatter, result RunResult) error {
	if formatter.IsJSON() {
		return formatter.Failure(ErrCodeGeneric, result.Error, result)
	}
	printTasks(formatter, result.Tasks)
	fmt.Fprintf(formatter.Writer, "✗ Execution failed: %s\n", result.Error)
	return nil
}

func printTasks(formatter *OutputFormatter, tasks []TaskRecord) {
	for _, t := range tasks {
		id := "-"
		if t.ID != 0 {
			id = fmt.Sprint(t.ID)
		}
		if t.Error != "" {
			fmt.Fprintf(formatter.Writer, "  [%s] %s %s %s: %s\n", id, t.Node, t.Op, t.Status, t.Error)
			continue
		}
		fmt.Fprintf(formatter.Writer, "  [%s] %s %s %s\n", id, t.Node, t.Op, t.Status)
	}
}
