// Package query defines the primitive operations a connector executes:
// reads (one record, many records, related records, aggregates), writes
// (create, update, delete and their many variants, many-to-many connect and
// disconnect) and raw statements.
//
// Read and Write are sealed interfaces. Query values are owned by the graph
// node that carries them and are mutated in place when incoming edges are
// applied during interpretation (a parent's id injected into write args, a
// selector ANDed into a filter).
package query
