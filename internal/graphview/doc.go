// Package graphview provides a mutable, indexed view over an ir.GraphDef.
//
// A View keeps the authoritative node list (the GraphDef itself) and a
// derived fanin/fanout index. Graph-rewriting passes query the index and
// mutate the graph only through View methods:
//
//	AddNode, AddSubgraph, DeleteNodes
//	AddRegularFanin, RemoveRegularFanin, RemoveAllFanins
//	AddControllingFanin, RemoveControllingFanin
//	UpdateFanin, UpdateFanouts
//
// INVARIANTS:
//
// Every mutation validates all of its preconditions before touching the
// graph. A returned error means the graph is byte-for-byte unchanged.
//
// After every mutation the index equals the one a fresh View would build
// from the same graph. Mutations edit input lists, then call reindex on
// the consumers they touched; CheckConsistency verifies the equality.
//
// Control inputs are deduplicated. A node has at most one control input
// per source, and none on a source it already reads through a regular
// input. Branch selectors (Switch) and identities reading one of their
// outputs are exempt from the second rule: a regular edge from them only
// fires on one branch, so the control edge is not implied by it.
//
// A branch selector as a whole is never a control source. Control on one
// of its branches goes through an identity node reading that branch,
// named ConstantFoldingCtrl/<selector>_<port> when it has to be created.
//
// A View is not safe for concurrent use.
package graphview
