package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Nodes    int                        `json:"nodes"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Validate a graph without indexing it",
		Long: `Validate a .cue, .json or .yaml graph.

Reports every structural problem (empty or duplicate names, malformed or
unknown inputs, regular inputs after control inputs, self references) and
warns about cycles, which are legal in control-flow frames.

Exit codes:
  0 - Graph is valid (cycle warnings allowed)
  1 - Graph has validation errors
  2 - Graph could not be read or compiled`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	g, err := LoadGraph(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.fail(ExitCommandError, code, message)
	}
	formatter.VerboseLog("Loaded %d node(s) from %s", len(g.Node), path)

	result := ValidationResult{
		Nodes:    len(g.Node),
		Errors:   compiler.Validate(g),
		Warnings: compiler.AnalyzeCycles(g),
	}
	result.Valid = len(result.Errors) == 0

	opts.logger().Debug("graph validated",
		"path", path,
		"nodes", result.Nodes,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
	)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	printCycleWarnings(formatter, result.Warnings)
	fmt.Fprintf(formatter.Writer, "✓ Graph valid (%d nodes)\n", result.Nodes)
	return nil
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		if err := formatter.Failure(errs[0].Code, errs[0].Message, result); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	printCycleWarnings(formatter, result.Warnings)

	return exitErr
}

func printCycleWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
}
