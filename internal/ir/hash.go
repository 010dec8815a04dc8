package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// allows the algorithm to change without colliding with old values.
const (
	DomainGraph = "planir/graph/v1"
	DomainNode  = "planir/node/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator
// removes ambiguity at the domain/data boundary.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphFingerprint returns a stable identity for a graph's content.
// Graphs with the same nodes in the same order and the same library hash
// equal regardless of attribute map iteration order.
func GraphFingerprint(g *GraphDef) (string, error) {
	canonical, err := MarshalCanonicalGraph(g)
	if err != nil {
		return "", fmt.Errorf("GraphFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// NodeFingerprint returns a stable identity for a single node.
func NodeFingerprint(n *NodeDef) (string, error) {
	canonical, err := MarshalCanonical(CanonicalNode(n))
	if err != nil {
		return "", fmt.Errorf("NodeFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNode, canonical), nil
}

// MustGraphFingerprint is like GraphFingerprint but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustGraphFingerprint(g *GraphDef) string {
	fp, err := GraphFingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}
