package graphview

import (
	"errors"
	"fmt"
	"strings"
)

// MutationError reports a rejected graph query or mutation.
//
// A MutationError is always returned before any state changes: the graph
// and its index are exactly as they were before the call.
type MutationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed, e.g. "AddRegularFanin".
	Op string

	// Params are the call arguments rendered as key='value' pairs.
	Params string

	// Message is the human-readable reason, without trailing period.
	Message string
}

// ErrorCode categorizes mutation errors.
type ErrorCode string

const (
	// ErrCodeNodeNotFound indicates a referenced node does not exist.
	ErrCodeNodeNotFound ErrorCode = "NODE_NOT_FOUND"

	// ErrCodeInvalidTensorID indicates a malformed or wrong-kind TensorID.
	ErrCodeInvalidTensorID ErrorCode = "INVALID_TENSOR_ID"

	// ErrCodeSelfLoop indicates the mutation would connect a node to itself.
	ErrCodeSelfLoop ErrorCode = "SELF_LOOP"

	// ErrCodeSwitchControl indicates a control dependency on a branch
	// selector as a whole.
	ErrCodeSwitchControl ErrorCode = "SWITCH_CONTROL"

	// ErrCodeDuplicateNode indicates a node name is already taken.
	ErrCodeDuplicateNode ErrorCode = "DUPLICATE_NODE"

	// ErrCodeLibraryMerge indicates a subgraph carried a function library.
	ErrCodeLibraryMerge ErrorCode = "LIBRARY_MERGE"

	// ErrCodeRetainedFanout indicates deleted nodes are still consumed.
	ErrCodeRetainedFanout ErrorCode = "RETAINED_FANOUT"

	// ErrCodeMalformedInput indicates an input list that cannot be indexed.
	ErrCodeMalformedInput ErrorCode = "MALFORMED_INPUT"
)

// Error renders "Op(params) error: message.".
func (e *MutationError) Error() string {
	return fmt.Sprintf("%s(%s) error: %s.", e.Op, e.Params, e.Message)
}

// IsNotFound returns true if err is a missing-node error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNodeNotFound)
}

// IsSelfLoop returns true if err is a self-loop rejection.
func IsSelfLoop(err error) bool {
	return hasCode(err, ErrCodeSelfLoop)
}

// IsSwitchControl returns true if err rejects a branch selector control.
func IsSwitchControl(err error) bool {
	return hasCode(err, ErrCodeSwitchControl)
}

// IsRetainedFanout returns true if err rejects a deletion.
func IsRetainedFanout(err error) bool {
	return hasCode(err, ErrCodeRetainedFanout)
}

func hasCode(err error, code ErrorCode) bool {
	var me *MutationError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// opError binds an operation name and its rendered parameters so each
// validation step can produce a MutationError with one call.
type opError struct {
	op     string
	params string
}

func newOpError(op string, kv ...string) opError {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		parts = append(parts, fmt.Sprintf("%s='%s'", kv[i], kv[i+1]))
	}
	return opError{op: op, params: strings.Join(parts, ", ")}
}

func (o opError) err(code ErrorCode, format string, args ...any) *MutationError {
	return &MutationError{
		Code:    code,
		Op:      o.op,
		Params:  o.params,
		Message: fmt.Sprintf(format, args...),
	}
}

func (o opError) notFound(name string) *MutationError {
	return o.err(ErrCodeNodeNotFound, "node '%s' was not found", name)
}
