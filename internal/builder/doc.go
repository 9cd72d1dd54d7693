// Package builder turns validated request selections into query graphs.
//
// A QuerySchema derives the operation names of a data model
// (findUniqueUser, createOnePost, queryRaw, ...) and builds one Plan per
// top-level selection: a finalized graph plus the response shape its
// result is serialized with. Raw operations carry a query.Raw instead of
// a graph.
//
// Nested writes attach to their parent write according to where the
// foreign key lives:
//
//	many-to-many      parent -> child, then Connect(parent, child)
//	key on the child  parent -> child, parent ids land in the child's key
//	key on the parent child must run first: the pair is marked and
//	                  swapped on Finalize, the child's ids land in the
//	                  parent's key
//
// Nested calls are attached innermost first, so marked pairs are always
// recorded before the pair enclosing them.
//
// Upserts and connectOrCreate read the record first and branch on it:
//
//	read -> If -then-> update | connect
//	          -else-> create
//
// Every check that can fail the request is an edge expectation, either on
// a data edge or on an Empty node hanging off the write it guards.
package builder
