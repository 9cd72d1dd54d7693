// Package engine executes requests end to end.
//
// For every top-level operation the engine builds a plan, picks a
// connection, runs the plan's graph through the interpreter and renders
// the result:
//
//	selection -> builder.Build -> Plan
//	          -> connection (transaction when the graph writes more than once)
//	          -> interpreter.Interpret -> response.Serialize
//
// Building happens before any connection is checked out, so a request
// that fails validation never touches storage.
//
// Batches run either inside one transaction, where the first failure rolls
// back every item, or as independent requests executed concurrently whose
// failures are reported per item.
//
// Every failure leaving the engine is an *Error carrying a stable code:
//
//	P2002 unique constraint     P2014 required relation violated
//	P2003 foreign key           P2015 related record not found
//	P2009 invalid request       P2018 records not connected
//	P2010 raw query failed      P2025 record not found
//	P2011 null constraint       P5000 internal error
package engine
