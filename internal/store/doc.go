// Package store provides SQLite-backed durable storage for graph snapshots.
//
// A snapshot is a labeled graph version with:
//   - the graph as JSON text, decodable back to an ir.GraphDef
//   - the graph fingerprint (domain-separated SHA-256 of canonical JSON)
//   - a node table with one fingerprint per node, for cross-snapshot lookups
//
// # Ordering and Identity
//
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//   - Ids are UUIDv7 by default; tests inject a FixedGenerator
//   - UNIQUE(label, fingerprint) makes saving an unchanged graph idempotent
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
