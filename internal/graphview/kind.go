package graphview

import "github.com/roach88/planir/internal/ir"

// Kind classifies a node by the role its op plays in control flow.
// Only the distinctions the mutation rules depend on are modeled.
type Kind int

const (
	// KindOther is any op without special control-flow handling.
	KindOther Kind = iota
	// KindBranchSelector routes its input to one of several mutually
	// exclusive outputs at run time (Switch and friends).
	KindBranchSelector
	// KindIdentity forwards its single input unchanged.
	KindIdentity
	// KindIdentityN forwards each of its inputs unchanged.
	KindIdentityN
)

var kindByOp = map[string]Kind{
	"Switch":      KindBranchSelector,
	"RefSwitch":   KindBranchSelector,
	"_SwitchN":    KindBranchSelector,
	"Identity":    KindIdentity,
	"RefIdentity": KindIdentity,
	"IdentityN":   KindIdentityN,
}

// KindOf resolves the kind of an op type.
func KindOf(op string) Kind {
	return kindByOp[op]
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBranchSelector:
		return "branch_selector"
	case KindIdentity:
		return "identity"
	case KindIdentityN:
		return "identity_n"
	default:
		return "other"
	}
}

// IsBranchSelector reports whether n is a branch selector. A nil node is not.
func IsBranchSelector(n *Node) bool {
	return n != nil && n.kind == KindBranchSelector
}

// IsIdentity reports whether n is a single-value forwarder: an Identity,
// or an IdentityN with exactly one regular input.
func IsIdentity(n *Node) bool {
	if n == nil {
		return false
	}
	switch n.kind {
	case KindIdentity:
		return true
	case KindIdentityN:
		return n.numRegularInputs() == 1
	default:
		return false
	}
}

// IsBranchForwarder reports whether n is an identity whose first input is
// a regular output of a branch selector. Such a node stands for exactly
// one branch of the selector.
func (v *View) IsBranchForwarder(n *Node) bool {
	if !IsIdentity(n) || len(n.def.Input) == 0 {
		return false
	}
	first := ir.ParseTensorName(n.def.Input[0])
	if first.IsControl() {
		return false
	}
	return IsBranchSelector(v.nodes[first.Node])
}

// canFoldControl reports whether a control dependency on the named source
// is redundant when the consumer already reads a regular output of it.
// Branch selectors and their forwarders are excluded: the regular edge
// only fires on one branch, the control edge carries its own ordering.
func (v *View) canFoldControl(source string) bool {
	n := v.nodes[source]
	if n == nil {
		return true
	}
	return !IsBranchSelector(n) && !v.IsBranchForwarder(n)
}
