package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/harness"
	"github.com/roach88/planir/internal/ir"
	"github.com/roach88/planir/internal/store"
)

// MutateOptions holds flags for the mutate command.
type MutateOptions struct {
	*RootOptions
	Output string // final graph JSON path
	Save   string // snapshot label; requires --db
}

// MutateResult is the outcome of one scenario.
type MutateResult struct {
	Scenario string              `json:"scenario"`
	Pass     bool                `json:"pass"`
	Trace    []harness.StepEvent `json:"trace"`
	Errors   []string            `json:"errors,omitempty"`
	Nodes    int                 `json:"nodes"`
	Output   string              `json:"output,omitempty"`
	Snapshot *store.Snapshot     `json:"snapshot,omitempty"`
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mutate <scenario>",
		Short: "Apply a scenario's mutation steps to its graph",
		Long: `Apply the steps of a YAML scenario to its graph and check its assertions.

Every step is applied through the indexed graph view; the index is
rebuilt and compared after each step. The resulting graph can be written
as JSON or saved as a snapshot.

Exit codes:
  0 - Every step behaved as expected and every assertion held
  1 - A step or assertion failed
  2 - Command error (unreadable scenario, store error, etc.)

Examples:
  planir mutate ./scenarios/fold.yaml
  planir mutate ./scenarios/fold.yaml -o folded.json
  planir mutate ./scenarios/fold.yaml --db ./planir.db --save folded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the final graph as JSON to this path")
	cmd.Flags().StringVar(&opts.Save, "save", "", "save the final graph as a snapshot with this label")
	cmd.Flags().String("db", "", "path to SQLite database (for --save)")

	return cmd
}

func runMutate(opts *MutateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	if opts.Save != "" && opts.Database == "" {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, "--save requires --db (or PLANIR_DB)")
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoadFailed, err.Error())
	}

	result, err := harness.Run(scenario, harness.WithLogger(logger))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	out := MutateResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
		Nodes:    len(result.Graph.Node),
		Output:   opts.Output,
	}

	if opts.Output != "" {
		if err := writeGraphFile(opts.Output, result.Graph); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err.Error())
		}
	}

	if opts.Save != "" {
		snap, err := saveSnapshot(cmd.Context(), opts.Database, opts.Save, result.Graph)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
		}
		snap.Graph = nil
		out.Snapshot = &snap
		logger.Info("saved snapshot", "id", snap.ID, "label", snap.Label, "seq", snap.Seq)
	}

	if err := outputMutateResult(formatter, out); err != nil {
		return err
	}
	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", out.Scenario, len(out.Errors)))
	}
	return nil
}

func outputMutateResult(formatter *OutputFormatter, out MutateResult) error {
	if formatter.IsJSON() {
		if !out.Pass {
			return formatter.Failure(ErrCodeGeneric, fmt.Sprintf("scenario %s failed", out.Scenario), out)
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	for _, ev := range out.Trace {
		if ev.Error != "" {
			fmt.Fprintf(w, "  [%d] %s %s: %s\n", ev.Seq, ev.Op, ev.Target, ev.Error)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.Op, ev.Target)
	}
	if out.Pass {
		fmt.Fprintf(w, "✓ %s (%d nodes)\n", out.Scenario, out.Nodes)
	} else {
		fmt.Fprintf(w, "✗ %s\n", out.Scenario)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if out.Output != "" {
		fmt.Fprintf(w, "Wrote graph to %s\n", out.Output)
	}
	if out.Snapshot != nil {
		fmt.Fprintf(w, "Saved snapshot %s (%s #%d)\n", out.Snapshot.ID, out.Snapshot.Label, out.Snapshot.Seq)
	}
	return nil
}

// writeGraphFile writes g as indented JSON.
func writeGraphFile(path string, g *ir.GraphDef) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := ir.EncodeGraphJSON(f, g); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	return f.Close()
}

// saveSnapshot opens the store at dbPath just long enough to save g.
func saveSnapshot(ctx context.Context, dbPath, label string, g *ir.GraphDef) (store.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()
	return st.SaveSnapshot(ctx, label, g)
}
