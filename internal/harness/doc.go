// Package harness runs request scenarios end to end.
//
// A scenario names a schema, optional setup requests and a list of steps.
// Each run gets a fresh SQLite database, a fixed clock and fixed uuid
// sequences, so the same scenario always produces the same trace:
//
//	step 0  statement  BEGIN
//	step 0  statement  Create User {...}
//	step 0  statement  Create Post {...}
//	step 0  statement  COMMIT
//	step 0  response   {"email": "a@x", ...}
//	step 1  error      P2002
//
// Steps carry expectations (an error code, or a response subset) and the
// scenario carries assertions over the statement trace and the final data.
// Failures of either are collected in the Result rather than stopping the
// run.
//
// Golden files (testdata/golden) hold the outcome of every step of a
// scenario and are compared with goldie.
package harness
