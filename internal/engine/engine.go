package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	mnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/interpreter"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
)

// DefaultMaxConcurrency bounds how many items of a non-transactional batch
// run at once.
const DefaultMaxConcurrency = 4

// Engine executes requests against one connector.
//
// Thread-safety: Execute and ExecuteMany are safe for concurrent use. Each
// request checks out its own connection.
type Engine struct {
	conn   connector.Connector
	qs     *builder.QuerySchema
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
	inst   *instruments
	ids    RequestIDGenerator

	forceTx        bool
	maxConcurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithForceTransactions runs every request in a transaction, even those
// whose graph writes at most once.
func WithForceTransactions(force bool) Option {
	return func(e *Engine) { e.forceTx = force }
}

// WithMaxConcurrency bounds non-transactional batches. Values below 1 are
// ignored.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMeter records operation counts, durations and in-flight operations
// on m.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// WithRequestIDs replaces the UUIDv7 request id generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// New creates an engine over conn for the operations of qs.
func New(conn connector.Connector, qs *builder.QuerySchema, opts ...Option) *Engine {
	e := &Engine{
		conn:           conn,
		qs:             qs,
		logger:         slog.Default(),
		tracer:         noop.NewTracerProvider().Tracer("qgraph"),
		meter:          mnoop.NewMeterProvider().Meter("qgraph"),
		ids:            UUIDv7Generator{},
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.inst = newInstruments(e.meter, e.logger)
	return e
}

// QuerySchema returns the operations the engine serves.
func (e *Engine) QuerySchema() *builder.QuerySchema {
	return e.qs
}

// Outcome is the result of one batch item. Exactly one of Value and Err
// is set.
type Outcome struct {
	Key   string
	Value response.Value
	Err   *Error
}

// Execute runs a single top-level operation.
func (e *Engine) Execute(ctx context.Context, sel *request.Selection) (response.Value, error) {
	id := e.ids.Generate()
	ctx, span := e.tracer.Start(ctx, "qgraph.request", trace.WithAttributes(
		attribute.String("qgraph.request_id", id),
		attribute.String("qgraph.operation", sel.Name)))
	defer span.End()

	shape := shapeOf(sel)
	span.SetAttributes(attribute.String("qgraph.shape", shape))

	start := time.Now()
	done := e.inst.track(ctx, sel.Name)
	v, tx, err := e.execute(ctx, sel, id)
	done(err != nil)
	log := e.logger.With("request_id", id, "operation", sel.Name, "shape", shape,
		"transactional", tx, "duration", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Code))
		log.Info("request failed", "code", err.Code, "error", err.Message)
		return nil, err
	}
	log.Info("request completed")
	return v, nil
}

// execute builds and runs one operation. It reports whether a transaction
// was used.
func (e *Engine) execute(ctx context.Context, sel *request.Selection, id string) (response.Value, bool, *Error) {
	plan, err := e.qs.Build(sel, builder.LogTo(e.logger.With("request_id", id)))
	if err != nil {
		return nil, false, translate(err, id)
	}
	conn, err := e.conn.Connection(ctx)
	if err != nil {
		return nil, false, translate(err, id)
	}
	defer conn.Close()

	if !plan.Transactional() && !e.forceTx {
		v, err := e.run(ctx, conn, plan, id)
		if err != nil {
			return nil, false, translate(err, id)
		}
		return v, false, nil
	}
	var v response.Value
	err = e.inTransaction(ctx, conn, func(tx connector.Queryable) error {
		var runErr error
		v, runErr = e.run(ctx, tx, plan, id)
		return runErr
	})
	if err != nil {
		return nil, true, translate(err, id)
	}
	return v, true, nil
}

// ExecuteMany runs a batch.
//
// A transactional batch runs every item on one transaction in order; the
// first failure rolls everything back and is returned as the error, with
// BatchIndex set. Otherwise items run concurrently and independently, and
// each failure is reported in its Outcome.
func (e *Engine) ExecuteMany(ctx context.Context, sels []*request.Selection, transactional bool) ([]Outcome, error) {
	id := e.ids.Generate()
	ctx, span := e.tracer.Start(ctx, "qgraph.batch", trace.WithAttributes(
		attribute.String("qgraph.request_id", id),
		attribute.Int("qgraph.batch_size", len(sels)),
		attribute.Bool("qgraph.transactional", transactional)))
	defer span.End()

	start := time.Now()
	log := e.logger.With("request_id", id, "batch_size", len(sels), "transactional", transactional)
	if !transactional {
		out := e.executeIsolated(ctx, sels)
		log.Info("batch completed", "duration", time.Since(start))
		return out, nil
	}

	out, err := e.executeTransactional(ctx, sels, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Code))
		log.Info("batch rolled back", "index", err.BatchIndex, "code", err.Code,
			"error", err.Message, "duration", time.Since(start))
		return nil, err
	}
	log.Info("batch committed", "duration", time.Since(start))
	return out, nil
}

func (e *Engine) executeIsolated(ctx context.Context, sels []*request.Selection) []Outcome {
	out := make([]Outcome, len(sels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, sel := range sels {
		g.Go(func() error {
			out[i].Key = sel.Key()
			v, err := e.Execute(gctx, sel)
			if err != nil {
				out[i].Err = translate(err, "")
				return nil
			}
			out[i].Value = v
			return nil
		})
	}
	// Items never fail the group.
	_ = g.Wait()
	return out
}

func (e *Engine) executeTransactional(ctx context.Context, sels []*request.Selection, id string) ([]Outcome, *Error) {
	plans := make([]*builder.Plan, len(sels))
	buildLog := builder.LogTo(e.logger.With("request_id", id))
	for i, sel := range sels {
		plan, err := e.qs.Build(sel, buildLog)
		if err != nil {
			e.inst.track(ctx, sel.Name)(true)
			return nil, atIndex(translate(err, id), i)
		}
		plans[i] = plan
	}

	conn, err := e.conn.Connection(ctx)
	if err != nil {
		return nil, translate(err, id)
	}
	defer conn.Close()

	out := make([]Outcome, len(sels))
	failed := -1
	err = e.inTransaction(ctx, conn, func(tx connector.Queryable) error {
		for i, plan := range plans {
			done := e.inst.track(ctx, sels[i].Name)
			v, err := e.run(ctx, tx, plan, id)
			done(err != nil)
			if err != nil {
				failed = i
				return err
			}
			out[i] = Outcome{Key: sels[i].Key(), Value: v}
		}
		return nil
	})
	if err != nil {
		return nil, atIndex(translate(err, id), failed)
	}
	return out, nil
}

func atIndex(err *Error, i int) *Error {
	err.BatchIndex = i
	return err
}

// run executes a plan on q and renders its result.
func (e *Engine) run(ctx context.Context, q connector.Queryable, plan *builder.Plan, id string) (response.Value, error) {
	if plan.Raw != nil {
		if plan.Raw.Kind == query.RawExecute {
			n, err := q.ExecuteRaw(ctx, *plan.Raw)
			if err != nil {
				return nil, err
			}
			return response.SerializeAffected(n), nil
		}
		rs, err := q.QueryRaw(ctx, *plan.Raw)
		if err != nil {
			return nil, err
		}
		return response.SerializeRaw(rs), nil
	}

	in := interpreter.New(q,
		interpreter.WithLogger(e.logger.With("request_id", id)),
		interpreter.WithTracer(e.tracer))
	res, err := in.Interpret(ctx, plan.Graph)
	if err != nil {
		return nil, err
	}
	return response.Serialize(res, plan.Shape)
}

// inTransaction runs fn on a new transaction of conn, committing when fn
// succeeds and rolling back otherwise.
func (e *Engine) inTransaction(ctx context.Context, conn connector.Connection, fn func(connector.Queryable) error) (err error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("rollback failed", "error", rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
