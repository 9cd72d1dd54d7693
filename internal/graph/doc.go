// Package graph holds the query graph: an arena of nodes addressed by
// stable NodeIDs and an ordered list of edges carrying data-only
// dependencies.
//
// The builder creates nodes and edges for one operation, designates
// result nodes and marks parent/child pairs to flip, then calls Finalize.
// Finalize performs the flips (reverse marking order), computes whether
// the graph needs a transaction and validates the invariants:
//
//   - exactly one root
//   - no cycles
//   - at least one result node
//   - the parents of every node lie on one ancestry chain
//
// A flip reverses the edge between the pair, keeping its dependency, and
// gives every parent of the old parent an edge to the old child. Edges are
// detached, never deleted, so ids held elsewhere stay valid.
//
// The interpreter lowers a finalized graph into an expression tree; edge
// dependencies are applied there with a switch over the sink kind.
package graph
