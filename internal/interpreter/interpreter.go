package interpreter

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/graph"
)

// Interpreter evaluates expression trees against one Queryable.
//
// Evaluation is strictly sequential: every node runs to completion before
// the next starts, and the first failure aborts the rest of the tree. The
// caller owns the transaction and rolls it back on error.
type Interpreter struct {
	conn   connector.Queryable
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the logger used for node-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = l
	}
}

// WithTracer sets the tracer node spans are recorded with.
func WithTracer(t trace.Tracer) Option {
	return func(in *Interpreter) {
		in.tracer = t
	}
}

// New returns an interpreter running queries on conn.
func New(conn connector.Queryable, opts ...Option) *Interpreter {
	in := &Interpreter{
		conn:   conn,
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("qgraph"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Interpret lowers and evaluates a finalized graph.
func (in *Interpreter) Interpret(ctx context.Context, g *graph.Graph) (Result, error) {
	expr, err := Lower(g)
	if err != nil {
		return nil, fmt.Errorf("lower graph: %w", err)
	}
	return in.Run(ctx, expr, NewEnv())
}

// Run evaluates expr in env.
func (in *Interpreter) Run(ctx context.Context, expr Expression, env *Env) (Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch e := expr.(type) {
	case *Query:
		return in.query(ctx, e)

	case *Sequence:
		return in.sequence(ctx, e.Exprs, env)

	case *Let:
		inner := env.Clone()
		for _, b := range e.Bindings {
			r, err := in.Run(ctx, b.Expr, inner)
			if err != nil {
				return nil, err
			}
			inner.Insert(b.Name, r)
		}
		return in.sequence(ctx, e.Exprs, inner)

	case *Get:
		return env.Remove(e.Name)

	case *GetFirstNonEmpty:
		var found Result
		for _, name := range e.Names {
			r, err := env.Get(name)
			if err != nil {
				continue
			}
			if !IsEmpty(r) {
				return r, nil
			}
			if found == nil {
				found = r
			}
		}
		if found == nil {
			return nil, &Error{Kind: ErrEnvVarNotFound, Message: fmt.Sprintf("none of %v bound", e.Names)}
		}
		return found, nil

	case *If:
		in.logger.Debug("branch", "node", e.Node, "then", e.Cond)
		if e.Cond {
			return in.sequence(ctx, e.Then, env)
		}
		return in.sequence(ctx, e.Else, env)

	case *Func:
		next, err := e.Fn(env)
		if err != nil {
			return nil, err
		}
		return in.Run(ctx, next, env)

	case *Return:
		return e.Result, nil

	default:
		return nil, &Error{Kind: ErrInvariant, Message: fmt.Sprintf("unsupported expression %T", expr)}
	}
}

func (in *Interpreter) sequence(ctx context.Context, exprs []Expression, env *Env) (Result, error) {
	var last Result = Empty{}
	for _, x := range exprs {
		r, err := in.Run(ctx, x, env)
		if err != nil {
			return nil, err
		}
		last = r
	}
	return last, nil
}

func (in *Interpreter) query(ctx context.Context, e *Query) (Result, error) {
	kind, model := graph.Kind(e.Op), graph.ModelName(e.Op)
	ctx, span := in.tracer.Start(ctx, "qgraph.node", trace.WithAttributes(
		attribute.Int("qgraph.node.id", int(e.Node)),
		attribute.String("qgraph.node.kind", kind),
		attribute.String("qgraph.model", model),
	))
	defer span.End()

	in.logger.Debug("execute node", "node", e.Node, "kind", kind, "model", model, "op", e.Op.String())

	var (
		r   Result
		err error
	)
	switch n := e.Op.(type) {
	case *graph.Read:
		r, err = in.read(ctx, n.Query)
	case *graph.Write:
		r, err = in.write(ctx, n)
	default:
		err = &Error{Kind: ErrInvariant, Node: e.Node, Message: fmt.Sprintf("query expression over %T", e.Op)}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("node %d (%s %s): %w", e.Node, kind, model, err)
	}
	return r, nil
}

func (in *Interpreter) write(ctx context.Context, n *graph.Write) (Result, error) {
	res, err := in.conn.Execute(ctx, n.Query)
	if err != nil {
		return nil, err
	}
	return &Written{Model: n.Query.TargetModel(), Result: res}, nil
}
