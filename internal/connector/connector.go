package connector

import (
	"context"

	"github.com/roach88/qgraph/internal/query"
)

// Queryable runs primitive queries. Both connections and transactions
// implement it; the interpreter only ever sees a Queryable.
type Queryable interface {
	// Query runs a read. Related reads return ParentLinks aligned with
	// the records.
	Query(ctx context.Context, q query.Read) (*query.RecordSet, error)

	// Execute runs a write.
	Execute(ctx context.Context, q query.Write) (*query.WriteResult, error)

	// QueryRaw runs a literal read statement.
	QueryRaw(ctx context.Context, raw query.Raw) (*query.RecordSet, error)

	// ExecuteRaw runs a literal write statement and returns the number of
	// affected rows.
	ExecuteRaw(ctx context.Context, raw query.Raw) (int64, error)
}

// Connection is one checked-out storage connection.
type Connection interface {
	Queryable

	// Begin starts a transaction on this connection. The connection must
	// not be used directly until the transaction ends.
	Begin(ctx context.Context) (Transaction, error)

	// Close returns the connection.
	Close() error
}

// Transaction is an open storage transaction.
type Transaction interface {
	Queryable
	Commit() error
	Rollback() error
}

// Connector hands out connections. Implementations must be safe for
// concurrent use; connections and transactions need not be.
type Connector interface {
	Connection(ctx context.Context) (Connection, error)
	Name() string
	Close() error
}
