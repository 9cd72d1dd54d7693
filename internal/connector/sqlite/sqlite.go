package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/qgraph/internal/connector"
)

// Connector hands out connections to one SQLite database file.
type Connector struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger statements are logged to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = l
	}
}

var _ connector.Connector = (*Connector)(nil)

// Open creates or opens the database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - foreign key enforcement
//
// SQLite allows one writer at a time, so the pool holds one connection;
// callers acquiring a second connection wait for the first to be closed.
func Open(path string, opts ...Option) (*Connector, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &connector.StorageError{Kind: connector.ErrConnection, Cause: err}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	c := &Connector{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Name identifies the backend.
func (c *Connector) Name() string { return "sqlite" }

// Close closes the database.
func (c *Connector) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Connection checks out a connection. Close it to return it to the pool.
func (c *Connector) Connection(ctx context.Context) (connector.Connection, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrConnection, Cause: err}
	}
	return &Conn{executor: executor{q: conn, logger: c.logger}, conn: conn}, nil
}

// Conn is one checked-out connection.
type Conn struct {
	executor
	conn *sql.Conn
}

// Begin starts a transaction on the connection.
func (c *Conn) Begin(ctx context.Context) (connector.Transaction, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrConnection, Cause: err}
	}
	return &Tx{executor: executor{q: tx, logger: c.logger}, tx: tx}, nil
}

// Close returns the connection to the pool.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Tx is an open transaction.
type Tx struct {
	executor
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &connector.StorageError{Kind: connector.ErrConnection, Cause: err}
	}
	return nil
}

func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return &connector.StorageError{Kind: connector.ErrConnection, Cause: err}
	}
	return nil
}
