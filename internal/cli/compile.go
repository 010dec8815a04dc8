package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/compiler"
	"github.com/roach88/planir/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult summarizes a compiled graph.
type CompilationResult struct {
	Nodes       int    `json:"nodes"`
	Functions   int    `json:"functions"`
	Fingerprint string `json:"fingerprint"`
	IRVersion   string `json:"ir_version"`
	Output      string `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a graph to canonical JSON",
		Long: `Compile a .cue, .json or .yaml graph to canonical JSON.

Canonical JSON has sorted keys, no insignificant whitespace and omits empty
fields, so equal graphs produce equal bytes. The fingerprint printed is the
hash of those bytes and is what snapshots use to detect duplicates.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	g, err := LoadGraph(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.fail(ExitCommandError, code, message)
	}

	if errs := compiler.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Nodes: len(g.Node), Errors: errs})
	}

	data, err := ir.MarshalCanonicalGraph(g)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("marshaling graph: %v", err))
	}
	fp, err := ir.GraphFingerprint(g)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	result := CompilationResult{
		Nodes:       len(g.Node),
		Fingerprint: fp,
		IRVersion:   ir.IRVersion,
		Output:      opts.Output,
	}
	if g.Library != nil {
		result.Functions = len(g.Library.Function)
	}

	// Write to file if --output specified, otherwise the graph goes to stdout
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		opts.logger().Info("wrote canonical graph", "path", opts.Output, "fingerprint", fp)
	}

	return outputCompileSuccess(formatter, result, data)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult, data []byte) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	if result.Output == "" {
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d node(s), %d function(s)\n", result.Nodes, result.Functions)
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", result.Fingerprint)
	fmt.Fprintf(formatter.Writer, "Wrote canonical graph to %s\n", result.Output)
	return nil
}
