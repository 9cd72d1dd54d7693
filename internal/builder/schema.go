package builder

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
	"github.com/roach88/qgraph/internal/schema"
)

// OpKind is the kind of a top-level operation.
type OpKind int

const (
	FindUnique OpKind = iota
	FindUniqueOrThrow
	FindFirst
	FindFirstOrThrow
	FindMany
	Aggregate
	CreateOne
	CreateMany
	UpdateOne
	UpdateMany
	UpsertOne
	DeleteOne
	DeleteMany
	QueryRaw
	ExecuteRaw
)

// opDescriptors lists the model operations with their name prefix and
// accepted arguments.
var opDescriptors = []struct {
	kind   OpKind
	prefix string
	args   []string
}{
	{FindUnique, "findUnique", []string{"where"}},
	{FindUniqueOrThrow, "findUniqueOrThrow", []string{"where"}},
	{FindFirst, "findFirst", []string{"where", "orderBy", "skip", "take", "cursor"}},
	{FindFirstOrThrow, "findFirstOrThrow", []string{"where", "orderBy", "skip", "take", "cursor"}},
	{FindMany, "findMany", []string{"where", "orderBy", "skip", "take", "cursor"}},
	{Aggregate, "aggregate", []string{"where", "orderBy", "skip", "take"}},
	{CreateOne, "createOne", []string{"data"}},
	{CreateMany, "createMany", []string{"data", "skipDuplicates"}},
	{UpdateOne, "updateOne", []string{"where", "data"}},
	{UpdateMany, "updateMany", []string{"where", "data"}},
	{UpsertOne, "upsertOne", []string{"where", "create", "update"}},
	{DeleteOne, "deleteOne", []string{"where"}},
	{DeleteMany, "deleteMany", []string{"where"}},
}

var rawArgs = []string{"query", "parameters"}

// Operation describes one operation of the query schema.
type Operation struct {
	Name string
	Kind OpKind

	// Model is nil for raw operations.
	Model *schema.Model

	// Args are the accepted argument names.
	Args []string
}

// Raw reports whether the operation bypasses the graph.
func (o *Operation) Raw() bool {
	return o.Kind == QueryRaw || o.Kind == ExecuteRaw
}

// Write reports whether the operation modifies data.
func (o *Operation) Write() bool {
	switch o.Kind {
	case CreateOne, CreateMany, UpdateOne, UpdateMany, UpsertOne, DeleteOne, DeleteMany, ExecuteRaw:
		return true
	}
	return false
}

// QuerySchema maps operation names to descriptors over a data model and
// builds query graphs for them.
type QuerySchema struct {
	schema *schema.Schema
	ops    map[string]*Operation
	order  []*Operation

	now     func() time.Time
	newUUID func() string
	logger  *slog.Logger
}

// Option configures a QuerySchema.
type Option func(*QuerySchema)

// WithClock sets the clock used for `now` defaults.
func WithClock(now func() time.Time) Option {
	return func(qs *QuerySchema) { qs.now = now }
}

// WithUUIDs sets the generator used for `uuid` defaults.
func WithUUIDs(gen func() string) Option {
	return func(qs *QuerySchema) { qs.newUUID = gen }
}

// WithLogger sets the logger Build reports built graphs to.
func WithLogger(l *slog.Logger) Option {
	return func(qs *QuerySchema) { qs.logger = l }
}

// BuildOption configures a single Build call.
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger *slog.Logger
}

// LogTo sends the logs of one Build call to l, usually the schema's
// logger tagged with a request id.
func LogTo(l *slog.Logger) BuildOption {
	return func(c *buildConfig) { c.logger = l }
}

// NewQuerySchema derives the operations of every model in s.
func NewQuerySchema(s *schema.Schema, opts ...Option) *QuerySchema {
	qs := &QuerySchema{
		schema:  s,
		ops:     make(map[string]*Operation),
		now:     time.Now,
		newUUID: uuid.NewString,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(qs)
	}
	for _, m := range s.Models {
		for _, d := range opDescriptors {
			qs.add(&Operation{Name: d.prefix + m.Name, Kind: d.kind, Model: m, Args: d.args})
		}
	}
	qs.add(&Operation{Name: "queryRaw", Kind: QueryRaw, Args: rawArgs})
	qs.add(&Operation{Name: "executeRaw", Kind: ExecuteRaw, Args: rawArgs})
	return qs
}

func (qs *QuerySchema) add(op *Operation) {
	qs.ops[op.Name] = op
	qs.order = append(qs.order, op)
}

// Schema returns the underlying data model.
func (qs *QuerySchema) Schema() *schema.Schema {
	return qs.schema
}

// Operation looks up an operation by name.
func (qs *QuerySchema) Operation(name string) (*Operation, bool) {
	op, ok := qs.ops[name]
	return op, ok
}

// Operations returns all operations, per model in declaration order, raw
// operations last.
func (qs *QuerySchema) Operations() []*Operation {
	return slices.Clone(qs.order)
}

// Plan is a built operation: a finalized graph for model operations or a
// raw query, plus the shape the response is rendered with.
type Plan struct {
	Operation *Operation
	Graph     *graph.Graph
	Raw       *query.Raw
	Shape     *response.Shape
}

// Transactional reports whether the plan must run in a transaction.
func (p *Plan) Transactional() bool {
	return p.Graph != nil && p.Graph.Transactional()
}

// Build turns one top-level selection into a plan. Every validation error
// surfaces here, before anything is executed.
func (qs *QuerySchema) Build(sel *request.Selection, opts ...BuildOption) (*Plan, error) {
	cfg := buildConfig{logger: qs.logger}
	for _, opt := range opts {
		opt(&cfg)
	}
	op, ok := qs.ops[sel.Name]
	if !ok {
		return nil, errorf(ErrUnknownOperation, "", "", "unknown operation %q", sel.Name)
	}
	for _, name := range sel.ArgNames() {
		if !slices.Contains(op.Args, name) {
			return nil, errorf(ErrInvalidArgument, "", "", "%s: unknown argument %q", op.Name, name)
		}
	}
	if op.Raw() {
		return buildRaw(op, sel)
	}

	b := &builder{qs: qs, op: op, g: graph.New()}
	shape, err := b.build(sel)
	if err != nil {
		return nil, err
	}
	if err := b.g.Finalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}
	cfg.logger.Debug("graph built",
		"operation", op.Name,
		"nodes", b.g.Len(),
		"edges", b.g.EdgeCount(),
		"transactional", b.g.Transactional())
	return &Plan{Operation: op, Graph: b.g, Shape: shape}, nil
}

func buildRaw(op *Operation, sel *request.Selection) (*Plan, error) {
	v, ok := sel.Arg("query")
	sql, isString := v.(ir.IRString)
	if !ok || !isString || sql == "" {
		return nil, errorf(ErrInvalidArgument, "", "", "%s: query must be a non-empty string", op.Name)
	}
	raw := &query.Raw{Kind: query.RawQuery, SQL: string(sql)}
	shape := &response.Shape{Key: sel.Key(), Kind: response.RawRows}
	if op.Kind == ExecuteRaw {
		raw.Kind = query.RawExecute
		shape.Kind = response.RawCount
	}
	if p, ok := sel.Arg("parameters"); ok {
		params, isList := p.(ir.IRArray)
		if !isList {
			return nil, errorf(ErrInvalidArgument, "", "", "%s: parameters must be a list", op.Name)
		}
		raw.Params = params
	}
	return &Plan{Operation: op, Raw: raw, Shape: shape}, nil
}
