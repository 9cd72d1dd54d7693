package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/query"
)

// Recorder wraps a connector and logs every statement and transaction
// boundary passing through it. Tests use it to check that a request
// touched storage in the expected order, or not at all.
type Recorder struct {
	inner connector.Connector

	mu  sync.Mutex
	log []string
}

var _ connector.Connector = (*Recorder)(nil)

// NewRecorder wraps c.
func NewRecorder(c connector.Connector) *Recorder {
	return &Recorder{inner: c}
}

// Log returns a copy of the recorded entries.
func (r *Recorder) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

// Reset clears the log.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}

func (r *Recorder) record(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, entry)
}

// Name returns the wrapped connector's name.
func (r *Recorder) Name() string { return r.inner.Name() }

// Close closes the wrapped connector.
func (r *Recorder) Close() error { return r.inner.Close() }

// Connection checks out a recorded connection.
func (r *Recorder) Connection(ctx context.Context) (connector.Connection, error) {
	c, err := r.inner.Connection(ctx)
	if err != nil {
		return nil, err
	}
	return &recordedConn{recordedQueryable: recordedQueryable{q: c, r: r}, conn: c}, nil
}

type recordedQueryable struct {
	q connector.Queryable
	r *Recorder
}

func (q recordedQueryable) Query(ctx context.Context, rq query.Read) (*query.RecordSet, error) {
	q.r.record(fmt.Sprint(rq))
	return q.q.Query(ctx, rq)
}

func (q recordedQueryable) Execute(ctx context.Context, w query.Write) (*query.WriteResult, error) {
	q.r.record(fmt.Sprint(w))
	return q.q.Execute(ctx, w)
}

func (q recordedQueryable) QueryRaw(ctx context.Context, raw query.Raw) (*query.RecordSet, error) {
	q.r.record(raw.String())
	return q.q.QueryRaw(ctx, raw)
}

func (q recordedQueryable) ExecuteRaw(ctx context.Context, raw query.Raw) (int64, error) {
	q.r.record(raw.String())
	return q.q.ExecuteRaw(ctx, raw)
}

type recordedConn struct {
	recordedQueryable
	conn connector.Connection
}

func (c *recordedConn) Begin(ctx context.Context) (connector.Transaction, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	c.r.record("BEGIN")
	return &recordedTx{recordedQueryable: recordedQueryable{q: tx, r: c.r}, tx: tx}, nil
}

func (c *recordedConn) Close() error {
	return c.conn.Close()
}

type recordedTx struct {
	recordedQueryable
	tx connector.Transaction
}

func (t *recordedTx) Commit() error {
	t.r.record("COMMIT")
	return t.tx.Commit()
}

func (t *recordedTx) Rollback() error {
	t.r.record("ROLLBACK")
	return t.tx.Rollback()
}
