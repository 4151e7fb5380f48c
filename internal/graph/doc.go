// Package graph provides a generic mutable directed acyclic graph used as the
// dependency backbone of orchestrations.
//
// The package supports:
//   - Idempotent node and edge insertion with insertion order preserved
//   - Node and edge removal without dangling adjacency entries
//   - Cycle detection, level and depth computation, subgraph extraction
//   - Cheap structural copies and an ordered dict-of-lists serialization
//
// Graph does not reject cycles on insertion. Callers that need a DAG build
// a trial copy, apply the proposed edges and check IsCyclic before touching
// the real graph.
//
// A Graph is not safe for concurrent mutation. Read-only queries may run
// concurrently with each other but not with a mutation.
package graph
