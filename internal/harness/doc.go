// Package harness runs graph rewriting scenarios against a graphview.View.
//
// A scenario is a YAML file with a starting graph, a list of mutation steps
// and assertions on the final graph:
//
//	name: forward_through_identity
//	description: move b's consumers onto c
//	graph:
//	  node:
//	    - {name: a, op: Const}
//	    - {name: b, op: Identity, input: [a]}
//	    - {name: c, op: Identity, input: [a]}
//	    - {name: d, op: Add, input: [b, b]}
//	steps:
//	  - {op: update_fanouts, from: b, to: c}
//	assertions:
//	  - {type: fanins, node: d, expect: [c, c]}
//
// After every step the view's incremental index is compared against a
// fresh rebuild; a mismatch aborts the run. Steps that are expected to be
// rejected carry expect_error, a substring of the error text.
//
// RunWithGolden additionally compares the canonical step trace and final
// graph against testdata/golden/<name>.golden using goldie.
package harness
