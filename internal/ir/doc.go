// Package ir provides the serialized graph representation shared by every
// planir package.
//
// A GraphDef is an ordered list of NodeDefs plus an optional function
// library. Node inputs are plain strings in the TensorID text form:
//
//	name      output 0 of node "name"
//	name:k    output k of node "name"
//	^name     control dependency on node "name"
//
// This package contains type definitions, the TensorID contract and the
// canonical encoding used for fingerprints. All other internal packages
// import ir; ir imports nothing internal.
//
// Key constraints:
//   - Attribute values have no float type; numbers are int64
//   - All JSON tags use snake_case
//   - Canonical JSON follows RFC 8785 with NFC-normalized strings
package ir
