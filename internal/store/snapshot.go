package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/planir/internal/ir"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is a stored graph version.
type Snapshot struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Seq         int64  `json:"seq"`
	Fingerprint string `json:"fingerprint"`
	NodeCount   int    `json:"node_count"`
	IRVersion   string `json:"ir_version"`
	ToolVersion string `json:"tool_version"`

	// Graph is set by SaveSnapshot, LoadSnapshot and LatestSnapshot.
	// ListSnapshots leaves it nil.
	Graph *ir.GraphDef `json:"graph,omitempty"`
}

// SnapshotNode is one row of a snapshot's node table.
type SnapshotNode struct {
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Op          string `json:"op"`
	Fingerprint string `json:"fingerprint"`
}

const snapshotColumns = `id, label, seq, fingerprint, node_count, ir_version, tool_version`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// SaveSnapshot stores g under label and returns the stored snapshot.
//
// Saving a graph whose fingerprint already exists under label is a no-op
// that returns the existing snapshot, so retries never create duplicates.
// seq is assigned as max(seq)+1 inside the write transaction.
func (s *Store) SaveSnapshot(ctx context.Context, label string, g *ir.GraphDef) (Snapshot, error) {
	if strings.TrimSpace(label) == "" {
		return Snapshot{}, fmt.Errorf("save snapshot: label is required")
	}
	if g == nil {
		return Snapshot{}, fmt.Errorf("save snapshot: graph is nil")
	}

	fp, err := ir.GraphFingerprint(g)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	graphJSON, err := marshalGraph(g)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanSnapshot(tx.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE label = ? AND fingerprint = ?`,
		label, fp))
	switch {
	case err == nil:
		existing.Graph = g.Clone()
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots`).Scan(&seq); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: next seq: %w", err)
	}

	snap := Snapshot{
		ID:          s.ids.Generate(),
		Label:       label,
		Seq:         seq,
		Fingerprint: fp,
		NodeCount:   len(g.Node),
		IRVersion:   ir.IRVersion,
		ToolVersion: ir.ToolVersion,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(id, label, seq, fingerprint, node_count, graph, ir_version, tool_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID,
		snap.Label,
		snap.Seq,
		snap.Fingerprint,
		snap.NodeCount,
		graphJSON,
		snap.IRVersion,
		snap.ToolVersion,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: insert: %w", err)
	}

	for i, n := range g.Node {
		nodeFP, err := ir.NodeFingerprint(n)
		if err != nil {
			return Snapshot{}, fmt.Errorf("save snapshot: node %q: %w", n.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshot_nodes (snapshot_id, position, name, op, fingerprint)
			VALUES (?, ?, ?, ?, ?)
		`, snap.ID, i, n.Name, n.Op, nodeFP)
		if err != nil {
			return Snapshot{}, fmt.Errorf("save snapshot: insert node %q: %w", n.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: commit: %w", err)
	}

	snap.Graph = g.Clone()
	return snap, nil
}

// LoadSnapshot returns the snapshot with the given id, graph included.
// Returns ErrNotFound if no snapshot has that id.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	snap, graphJSON, err := s.loadWithGraph(ctx,
		`SELECT `+snapshotColumns+`, graph FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	snap.Graph, err = unmarshalGraph(graphJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recently saved snapshot for label.
// Returns ErrNotFound if the label has no snapshots.
func (s *Store) LatestSnapshot(ctx context.Context, label string) (Snapshot, error) {
	snap, graphJSON, err := s.loadWithGraph(ctx, `
		SELECT `+snapshotColumns+`, graph FROM snapshots
		WHERE label = ?
		ORDER BY seq DESC
		LIMIT 1
	`, label)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot %q: %w", label, err)
	}
	snap.Graph, err = unmarshalGraph(graphJSON)
	if err != nil {
		return Snapshot{}, fmt.Errorf("latest snapshot %q: %w", label, err)
	}
	return snap, nil
}

func (s *Store) loadWithGraph(ctx context.Context, query string, arg any) (Snapshot, string, error) {
	var snap Snapshot
	var graphJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&snap.ID,
		&snap.Label,
		&snap.Seq,
		&snap.Fingerprint,
		&snap.NodeCount,
		&snap.IRVersion,
		&snap.ToolVersion,
		&graphJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, "", ErrNotFound
	}
	if err != nil {
		return Snapshot{}, "", err
	}
	return snap, graphJSON, nil
}

// ListSnapshots returns every snapshot without graphs, ordered by seq.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY seq ASC, id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// SnapshotNodes returns the node table of a snapshot in graph order.
func (s *Store) SnapshotNodes(ctx context.Context, id string) ([]SnapshotNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, name, op, fingerprint
		FROM snapshot_nodes
		WHERE snapshot_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot nodes: %w", err)
	}
	defer rows.Close()

	nodes := []SnapshotNode{}
	for rows.Next() {
		var n SnapshotNode
		if err := rows.Scan(&n.Position, &n.Name, &n.Op, &n.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan snapshot node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot nodes: %w", err)
	}
	return nodes, nil
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var snap Snapshot
	err := row.Scan(
		&snap.ID,
		&snap.Label,
		&snap.Seq,
		&snap.Fingerprint,
		&snap.NodeCount,
		&snap.IRVersion,
		&snap.ToolVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	return snap, nil
}
