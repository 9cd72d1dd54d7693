// Package interpreter evaluates query graphs.
//
// A finalized graph is first lowered (Lower) into a tree of expressions:
// Query, Sequence, Let, Get, GetFirstNonEmpty, If, Func and Return. The
// tree is then evaluated against one connector.Queryable, strictly in
// order, threading results through an Env:
//
//	let node_0 = query 0: Create User {email: "a@x"}
//	in
//	  func 1                         // Post.authorId <- node_0.id
//	    query 1: Create Post {...}
//	  let result_2 = func 2          // read the created user back
//	  in
//	    get result_2
//
// Edge dependencies are data (see graph.Dependency); a node's incoming
// edges are applied by a Func just before the node runs, in insertion
// order. A failed expectation on an edge surfaces as a DataError, a wiring
// bug as an Error. Either aborts evaluation.
//
// Reads resolve their nested relation reads here: one connector call per
// nested selection for all parents, grouped by parent link and paginated
// per parent in memory.
package interpreter
