// Package connector defines the storage capability the engine runs
// against: connections, transactions and the primitive query calls, plus
// the StorageError taxonomy connectors report constraint failures with.
//
// Backends live in subpackages (see connector/sqlite).
package connector
