package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/planir/internal/graphview"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Node     string // Node under test, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Node != "" {
		fmt.Fprintf(&buf, " (node %s)", e.Node)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the view and returns
// one message per failure.
func EvaluateAssertions(v *graphview.View, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(v, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(v *graphview.View, a Assertion) error {
	switch a.Type {
	case AssertFanins:
		return assertFanins(v, a)
	case AssertFanouts:
		return assertFanouts(v, a)
	case AssertNodeCount:
		return assertNodeCount(v, a)
	case AssertMissing:
		return assertMissing(v, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertFanins compares the node's input list exactly, order included.
func assertFanins(v *graphview.View, a Assertion) error {
	n := v.GetNode(a.Node)
	if n == nil {
		return &AssertionError{Type: a.Type, Node: a.Node, Expected: "node exists", Actual: "node not found"}
	}
	got := n.Inputs()
	if !slices.Equal(got, a.Expect) {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: formatList(a.Expect),
			Actual:   formatList(got),
		}
	}
	return nil
}

// assertFanouts compares the node's fanout ports as a set, controls included.
func assertFanouts(v *graphview.View, a Assertion) error {
	n := v.GetNode(a.Node)
	if n == nil {
		return &AssertionError{Type: a.Type, Node: a.Node, Expected: "node exists", Actual: "node not found"}
	}

	var got []string
	for _, p := range v.GetFanouts(n, true) {
		got = append(got, p.String())
	}
	slices.Sort(got)
	want := slices.Clone(a.Expect)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Node:     a.Node,
			Expected: formatList(want),
			Actual:   formatList(got),
		}
	}
	return nil
}

func assertNodeCount(v *graphview.View, a Assertion) error {
	if got := v.NumNodes(); got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d nodes", a.Count),
			Actual:   fmt.Sprintf("%d nodes", got),
		}
	}
	return nil
}

func assertMissing(v *graphview.View, a Assertion) error {
	var present []string
	for _, name := range a.Nodes {
		if v.GetNode(name) != nil {
			present = append(present, name)
		}
	}
	if len(present) > 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: "absent: " + formatList(a.Nodes),
			Actual:   "present: " + formatList(present),
		}
	}
	return nil
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
