package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/graphview"
)

// NodeReport describes one node and its edges.
type NodeReport struct {
	Name           string   `json:"name"`
	Op             string   `json:"op"`
	Device         string   `json:"device,omitempty"`
	Kind           string   `json:"kind"`
	Inputs         []string `json:"inputs"`
	Fanins         []string `json:"fanins"`
	Fanouts        []string `json:"fanouts"`
	MaxOutputPort  int      `json:"max_output_port"`
	BranchForward  bool     `json:"branch_forwarder,omitempty"`
	RegularFanins  int      `json:"regular_fanins"`
	RegularFanouts int      `json:"regular_fanouts"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <graph> <node>",
		Short: "Show a node's fanins and fanouts",
		Long: `Index a graph and print one node's inputs, the output ports feeding it
and the input ports it feeds. Control edges are written "^name".

Example:
  planir inspect ./model.cue sw
  planir inspect ./model.json sw --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, path, name string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	view, verrs, err := LoadView(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.fail(ExitCommandError, code, message)
	}
	if len(verrs) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Errors: verrs})
	}

	n := view.GetNode(name)
	if n == nil {
		return formatter.fail(ExitCommandError, ErrCodeNodeNotFound, fmt.Sprintf("node '%s' was not found", name))
	}

	report := buildNodeReport(view, n)
	if formatter.IsJSON() {
		return formatter.Success(report)
	}
	printNodeReport(formatter, report)
	return nil
}

// buildNodeReport collects the node's edges from the view's index.
func buildNodeReport(view *graphview.View, n *graphview.Node) NodeReport {
	report := NodeReport{
		Name:           n.Name(),
		Op:             n.Op(),
		Device:         n.Device(),
		Kind:           n.Kind().String(),
		Inputs:         n.Inputs(),
		Fanins:         []string{},
		Fanouts:        []string{},
		MaxOutputPort:  n.MaxRegularOutputPort(),
		BranchForward:  view.IsBranchForwarder(n),
		RegularFanins:  view.NumFanins(n, false),
		RegularFanouts: view.NumFanouts(n, false),
	}
	if report.Inputs == nil {
		report.Inputs = []string{}
	}
	for _, p := range view.GetFanins(n, true) {
		report.Fanins = append(report.Fanins, p.String())
	}
	for _, p := range view.GetFanouts(n, true) {
		report.Fanouts = append(report.Fanouts, p.String())
	}
	return report
}

func printNodeReport(formatter *OutputFormatter, r NodeReport) {
	w := formatter.Writer
	fmt.Fprintf(w, "%s (%s, %s)\n", r.Name, r.Op, r.Kind)
	if r.Device != "" {
		fmt.Fprintf(w, "  device:  %s\n", r.Device)
	}
	if r.BranchForward {
		fmt.Fprintln(w, "  forwards one branch of a Switch")
	}
	fmt.Fprintf(w, "  inputs:  %s\n", joinOrNone(r.Inputs))
	fmt.Fprintf(w, "  fanins:  %s\n", joinOrNone(r.Fanins))
	fmt.Fprintf(w, "  fanouts: %s\n", joinOrNone(r.Fanouts))
	fmt.Fprintf(w, "  max output port: %d\n", r.MaxOutputPort)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
