package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/planir/internal/compiler"
	"github.com/roach88/planir/internal/ir"
	"github.com/roach88/planir/internal/store"
)

// SnapshotOptions holds flags shared by the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	Label  string
	Latest string
	Nodes  bool
}

// SnapshotDetail is the show output: the snapshot and, on request, its
// per-node fingerprints.
type SnapshotDetail struct {
	store.Snapshot
	Nodes []store.SnapshotNode `json:"nodes,omitempty"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and browse graph snapshots",
		Long: `Save graphs to a SQLite snapshot store and read them back.

Snapshots are numbered by a store-wide sequence. Saving a graph whose
fingerprint already exists under the same label returns the existing
snapshot.

The database path comes from --db, PLANIR_DB or the db config key.`,
	}

	cmd.PersistentFlags().String("db", "", "path to SQLite database")

	save := &cobra.Command{
		Use:           "save <graph>",
		Short:         "Save a graph as a snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(opts, args[0], cmd)
		},
	}
	save.Flags().StringVarP(&opts.Label, "label", "l", "", "snapshot label (required)")
	_ = save.MarkFlagRequired("label")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List snapshots in sequence order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(opts, cmd)
		},
	}

	show := &cobra.Command{
		Use:           "show [id]",
		Short:         "Show a snapshot by id, or the latest for a label",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runSnapshotShow(opts, id, cmd)
		},
	}
	show.Flags().StringVar(&opts.Latest, "latest", "", "show the latest snapshot with this label")
	show.Flags().BoolVar(&opts.Nodes, "nodes", false, "include per-node fingerprints")

	cmd.AddCommand(save, list, show)
	return cmd
}

// openStore opens the configured database or reports a command error.
func openStore(opts *SnapshotOptions, formatter *OutputFormatter) (*store.Store, error) {
	if opts.Database == "" {
		return nil, formatter.fail(ExitCommandError, ErrCodeStoreFailed, "database path is required (--db or PLANIR_DB)")
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, formatter.fail(ExitCommandError, ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err))
	}
	opts.logger().Debug("store opened", "path", opts.Database)
	return st, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runSnapshotSave(opts *SnapshotOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	g, err := LoadGraph(path)
	if err != nil {
		code, message := loadErrorCode(err)
		return formatter.fail(ExitCommandError, code, message)
	}
	if errs := compiler.Validate(g); len(errs) > 0 {
		return outputValidationErrors(formatter, ValidationResult{Nodes: len(g.Node), Errors: errs})
	}

	st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.SaveSnapshot(commandContext(cmd), opts.Label, g)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}
	snap.Graph = nil
	opts.logger().Info("snapshot saved", "id", snap.ID, "label", snap.Label, "seq", snap.Seq)

	if formatter.IsJSON() {
		return formatter.Success(snap)
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved %s #%d (%d nodes)\n", snap.Label, snap.Seq, snap.NodeCount)
	fmt.Fprintf(formatter.Writer, "  id:          %s\n", snap.ID)
	fmt.Fprintf(formatter.Writer, "  fingerprint: %s\n", snap.Fingerprint)
	return nil
}

func runSnapshotList(opts *SnapshotOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	snaps, err := st.ListSnapshots(commandContext(cmd))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}

	if formatter.IsJSON() {
		return formatter.Success(snaps)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(formatter.Writer, "No snapshots.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tLABEL\tNODES\tID")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", s.Seq, s.Label, s.NodeCount, s.ID)
	}
	return tw.Flush()
}

func runSnapshotShow(opts *SnapshotOptions, id string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if (id == "") == (opts.Latest == "") {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "give exactly one of <id> and --latest <label>")
	}

	st, err := openStore(opts, formatter)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	var snap store.Snapshot
	if id != "" {
		snap, err = st.LoadSnapshot(ctx, id)
	} else {
		snap, err = st.LatestSnapshot(ctx, opts.Latest)
	}
	if errors.Is(err, store.ErrNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error())
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
	}

	detail := SnapshotDetail{Snapshot: snap}
	if opts.Nodes {
		detail.Nodes, err = st.SnapshotNodes(ctx, snap.ID)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStoreFailed, err.Error())
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s #%d (%d nodes)\n", snap.Label, snap.Seq, snap.NodeCount)
	fmt.Fprintf(w, "  id:          %s\n", snap.ID)
	fmt.Fprintf(w, "  fingerprint: %s\n", snap.Fingerprint)
	fmt.Fprintf(w, "  ir version:  %s (tool %s)\n", snap.IRVersion, snap.ToolVersion)
	for _, n := range detail.Nodes {
		fmt.Fprintf(w, "  %4d %s (%s) %s\n", n.Position, n.Name, n.Op, n.Fingerprint)
	}
	if snap.Graph != nil {
		data, err := ir.MarshalCanonicalGraph(snap.Graph)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error())
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}
