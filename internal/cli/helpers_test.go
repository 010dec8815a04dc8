package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// chainGraphCUE is a valid four-node graph in the CUE struct form.
const chainGraphCUE = `graph: node: {
	a: op: "Const"
	b: {op: "Identity", input: ["a"]}
	c: {op: "Add", input: ["a", "b"]}
	d: {op: "NoOp", input: ["^c"]}
}
`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// executeRoot runs the full root command so flags, environment and config
// files are resolved exactly as in the binary.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
