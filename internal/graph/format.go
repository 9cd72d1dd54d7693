package graph

import (
	"fmt"
	"strings"
)

// String renders the graph deterministically: nodes in arena order, then
// live edges in insertion order.
//
//	transactional: true
//	results: [2]
//	nodes:
//	  0: Create User {email: "a@x"}
//	  1: Create Post {title: "t"}
//	  2: ReadOne User where id = 1
//	edges:
//	  0 -> 1: data [id] -> args [authorId] one
//	  0 -> 2: data [id] -> selector [id] one expect nonEmpty else RecordNotFound
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transactional: %t\n", g.transactional)
	fmt.Fprintf(&b, "results: %v\n", g.results)
	b.WriteString("nodes:\n")
	for i, n := range g.nodes {
		marker := ""
		if g.IsResult(NodeID(i)) {
			marker = " *"
		}
		fmt.Fprintf(&b, "  %d: %s%s\n", i, n, marker)
	}
	b.WriteString("edges:\n")
	for _, e := range g.liveEdges() {
		fmt.Fprintf(&b, "  %d -> %d: %s\n", e.Source, e.Target, e.Dep)
	}
	return b.String()
}
