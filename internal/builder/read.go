package builder

import (
	"slices"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
	"github.com/roach88/qgraph/internal/schema"
)

// builder holds the graph under construction for one operation. The
// first edge error sticks and is returned by build.
type builder struct {
	qs  *QuerySchema
	op  *Operation
	g   *graph.Graph
	err error
}

func (b *builder) node(n graph.Node) graph.NodeID {
	return b.g.CreateNode(n)
}

func (b *builder) edge(src, tgt graph.NodeID, dep graph.Dependency) {
	if b.err != nil {
		return
	}
	if _, err := b.g.CreateEdge(src, tgt, dep); err != nil {
		b.err = err
	}
}

func (b *builder) build(sel *request.Selection) (*response.Shape, error) {
	var (
		shape *response.Shape
		err   error
	)
	switch b.op.Kind {
	case FindUnique, FindUniqueOrThrow:
		shape, err = b.findUnique(sel)
	case FindFirst, FindFirstOrThrow, FindMany:
		shape, err = b.findMany(sel)
	case Aggregate:
		shape, err = b.aggregate(sel)
	case CreateOne:
		shape, err = b.createOne(sel)
	case CreateMany:
		shape, err = b.createMany(sel)
	case UpdateOne:
		shape, err = b.updateOne(sel)
	case UpdateMany:
		shape, err = b.updateMany(sel)
	case UpsertOne:
		shape, err = b.upsertOne(sel)
	case DeleteOne:
		shape, err = b.deleteOne(sel)
	case DeleteMany:
		shape, err = b.deleteMany(sel)
	default:
		return nil, errorf(ErrUnknownOperation, "", "", "%s cannot be built into a graph", b.op.Name)
	}
	if err != nil {
		return nil, err
	}
	return shape, b.err
}

// violation returns a violation raised by the current operation.
func (b *builder) violation(kind graph.ViolationKind, m *schema.Model, relation string) graph.Violation {
	return graph.Violation{Kind: kind, Model: m.Name, Relation: relation, Operation: b.op.Name}
}

func nonEmpty() graph.Rule {
	return graph.Rule{Kind: graph.RuleNonEmpty}
}

func empty() graph.Rule {
	return graph.Rule{Kind: graph.RuleEmpty}
}

func count(n int) graph.Rule {
	return graph.Rule{Kind: graph.RuleCount, Count: n}
}

func pkOf(m *schema.Model) []string {
	return m.PrimaryKey
}

// check adds an Empty node after src that fails unless src's rows satisfy
// rule.
func (b *builder) check(src graph.NodeID, m *schema.Model, rule graph.Rule, v graph.Violation) graph.NodeID {
	e := b.node(&graph.Empty{})
	b.edge(src, e, graph.Data(pkOf(m), graph.Sink{Kind: graph.SinkCheck}).Expecting(rule, v))
	return e
}

// selection is a parsed field selection over one model.
type selection struct {
	columns []string
	nested  []*query.RelatedRecordsQuery
	fields  []*response.Field
}

// parseSelection resolves the selected fields of m. No selection means
// every scalar field. The primary key and the linking fields of every
// nested relation are always read.
func parseSelection(m *schema.Model, sels []*request.Selection) (*selection, error) {
	out := &selection{}
	if len(sels) == 0 {
		for _, f := range m.Fields {
			out.columns = append(out.columns, f.Name)
			out.fields = append(out.fields, response.ScalarField(f.Name, f.Name))
		}
		return out, nil
	}

	seen := make(map[string]bool, len(sels))
	for _, s := range sels {
		if seen[s.Key()] {
			return nil, errorf(ErrInvalidArgument, m.Name, s.Key(), "selected twice")
		}
		seen[s.Key()] = true

		if f := m.Scalar(s.Name); f != nil {
			if len(s.Selections) > 0 || len(s.Arguments) > 0 {
				return nil, errorf(ErrInvalidArgument, m.Name, s.Name, "scalar field takes no arguments or selection")
			}
			out.columns = query.WithColumns(out.columns, f.Name)
			out.fields = append(out.fields, response.ScalarField(s.Key(), f.Name))
			continue
		}

		rf := m.Relation(s.Name)
		if rf == nil {
			return nil, errorf(ErrUnknownField, m.Name, s.Name, "unknown field in selection")
		}
		nq, field, err := relationSelection(rf, s)
		if err != nil {
			return nil, err
		}
		out.columns = query.WithColumns(out.columns, rf.LinkingFields()...)
		out.nested = append(out.nested, nq)
		out.fields = append(out.fields, field)
	}
	out.columns = query.WithColumns(out.columns, m.PrimaryKey...)
	return out, nil
}

func relationSelection(rf *schema.RelationField, s *request.Selection) (*query.RelatedRecordsQuery, *response.Field, error) {
	related := rf.RelatedModel()
	var args query.QueryArguments
	if len(s.Arguments) > 0 {
		if !rf.List {
			return nil, nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "to-one relation takes no arguments")
		}
		for _, name := range s.ArgNames() {
			if !slices.Contains([]string{"where", "orderBy", "skip", "take", "cursor"}, name) {
				return nil, nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "unknown argument %q", name)
			}
		}
		var err error
		if args, err = queryArgs(related, s); err != nil {
			return nil, nil, err
		}
	}

	sub, err := parseSelection(related, s.Selections)
	if err != nil {
		return nil, nil, err
	}
	cols := query.WithColumns(sub.columns, rf.RelatedField().LinkingFields()...)
	cols = query.WithColumns(cols, args.Cursor.Fields()...)
	nq := &query.RelatedRecordsQuery{
		Key:         s.Key(),
		ParentField: rf,
		Args:        args,
		Columns:     cols,
		Nested:      sub.nested,
	}
	return nq, response.RelationField(s.Key(), rf.List, sub.fields...), nil
}

// queryArgs parses where, orderBy, skip, take and cursor.
func queryArgs(m *schema.Model, s *request.Selection) (query.QueryArguments, error) {
	var args query.QueryArguments
	var err error
	if v, ok := s.Arg("where"); ok {
		if args.Filter, err = Filter(m, v); err != nil {
			return args, err
		}
	}
	if v, ok := s.Arg("orderBy"); ok {
		if args.OrderBy, err = parseOrderBy(m, v); err != nil {
			return args, err
		}
	}
	if v, ok := s.Arg("skip"); ok {
		if args.Skip, err = intArg(m, "skip", v); err != nil {
			return args, err
		}
		if args.Skip < 0 {
			return args, errorf(ErrInvalidArgument, m.Name, "", "skip must not be negative")
		}
	}
	if v, ok := s.Arg("take"); ok {
		take, err := intArg(m, "take", v)
		if err != nil {
			return args, err
		}
		args.Take = &take
	}
	if v, ok := s.Arg("cursor"); ok {
		cursor, rest, err := uniqueSelection(m, v)
		if err != nil {
			return args, err
		}
		if len(rest) > 0 {
			return args, errorf(ErrInvalidArgument, m.Name, "", "cursor takes only unique fields")
		}
		args.Cursor = cursor
	}
	return args, nil
}

// resultRead returns a record read of m rendering sel, addressed later
// by a selector edge.
func resultRead(m *schema.Model, sel *request.Selection, f filter.Filter) (*query.RecordQuery, *response.Shape, error) {
	s, err := parseSelection(m, sel.Selections)
	if err != nil {
		return nil, nil, err
	}
	q := &query.RecordQuery{Key: sel.Key(), Model: m, Filter: f, Columns: s.columns, Nested: s.nested}
	return q, &response.Shape{Key: sel.Key(), Kind: response.One, Fields: s.fields}, nil
}

// attachResult reads back the record written by src and makes it the
// result of the graph.
func (b *builder) attachResult(src graph.NodeID, m *schema.Model, sel *request.Selection) (*response.Shape, error) {
	q, shape, err := resultRead(m, sel, filter.Empty{})
	if err != nil {
		return nil, err
	}
	res := b.node(&graph.Read{Query: q})
	b.edge(src, res, graph.Data(pkOf(m), graph.Sink{Kind: graph.SinkSelector, One: true}).
		Expecting(nonEmpty(), b.violation(graph.RecordNotFound, m, "")))
	b.g.AddResult(res)
	return shape, nil
}

func (b *builder) findUnique(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	where, ok := sel.Arg("where")
	if !ok {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "%s requires where", b.op.Name)
	}
	f, err := ExtractUniqueFilter(m, where)
	if err != nil {
		return nil, err
	}
	q, shape, err := resultRead(m, sel, f)
	if err != nil {
		return nil, err
	}
	r := b.node(&graph.Read{Query: q})
	b.g.AddResult(r)
	if b.op.Kind == FindUniqueOrThrow {
		b.check(r, m, nonEmpty(), b.violation(graph.RecordNotFound, m, ""))
	}
	return shape, nil
}

// findMany builds findMany and findFirst. A cursor becomes a separate
// read of the cursor record whose ordering values feed the list read.
func (b *builder) findMany(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	args, err := queryArgs(m, sel)
	if err != nil {
		return nil, err
	}
	s, err := parseSelection(m, sel.Selections)
	if err != nil {
		return nil, err
	}

	kind := response.Many
	if b.op.Kind != FindMany {
		kind = response.One
		take := 1
		if args.Take != nil && *args.Take < 0 {
			take = -1
		}
		args.Take = &take
	}

	q := &query.ManyRecordsQuery{Key: sel.Key(), Model: m, Args: args, Columns: s.columns, Nested: s.nested}
	var r graph.NodeID
	if len(args.Cursor) > 0 {
		ordering := args.OrderingFields(m)
		cur := b.node(&graph.Read{Query: &query.RecordQuery{
			Model:   m,
			Filter:  filter.FromSelection(args.Cursor),
			Columns: ordering,
		}})
		r = b.node(&graph.Read{Query: q})
		b.edge(cur, r, graph.Data(ordering, graph.Sink{Kind: graph.SinkCursor}))
	} else {
		r = b.node(&graph.Read{Query: q})
	}
	b.g.AddResult(r)
	if b.op.Kind == FindFirstOrThrow {
		b.check(r, m, nonEmpty(), b.violation(graph.RecordNotFound, m, ""))
	}
	return &response.Shape{Key: sel.Key(), Kind: kind, Fields: s.fields}, nil
}

var aggregateKinds = []query.AggregateKind{query.AggCount, query.AggSum, query.AggAvg, query.AggMin, query.AggMax}

func (b *builder) aggregate(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	args, err := queryArgs(m, sel)
	if err != nil {
		return nil, err
	}
	if len(sel.Selections) == 0 {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "%s requires a selection", b.op.Name)
	}

	q := &query.AggregateRecordsQuery{Key: sel.Key(), Model: m, Args: args}
	shape := &response.Shape{Key: sel.Key(), Kind: response.Aggregate}
	for _, s := range sel.Selections {
		kind := query.AggregateKind(s.Name)
		if !slices.Contains(aggregateKinds, kind) {
			return nil, errorf(ErrUnknownField, m.Name, s.Name, "unknown aggregation")
		}
		if len(s.Selections) == 0 {
			return nil, errorf(ErrInvalidArgument, m.Name, s.Name, "aggregation requires fields")
		}
		agg := query.AggregateSelection{Kind: kind}
		group := response.GroupField(s.Key())
		for _, fs := range s.Selections {
			if err := checkAggregateField(m, kind, fs.Name); err != nil {
				return nil, err
			}
			agg.Fields = append(agg.Fields, fs.Name)
			group.Fields = append(group.Fields, response.ScalarField(fs.Key(), agg.Column(fs.Name)))
		}
		q.Selections = append(q.Selections, agg)
		shape.Fields = append(shape.Fields, group)
	}
	b.g.AddResult(b.node(&graph.Read{Query: q}))
	return shape, nil
}

func checkAggregateField(m *schema.Model, kind query.AggregateKind, name string) error {
	if name == query.AllField {
		if kind != query.AggCount {
			return errorf(ErrInvalidArgument, m.Name, name, "%s only applies to %s", query.AllField, query.AggCount)
		}
		return nil
	}
	f := m.Scalar(name)
	if f == nil {
		return errorf(ErrUnknownField, m.Name, name, "unknown field in %s", kind)
	}
	if (kind == query.AggSum || kind == query.AggAvg) && f.Type != schema.TypeInt && f.Type != schema.TypeFloat {
		return errorf(ErrInvalidArgument, m.Name, name, "%s requires a numeric field", kind)
	}
	return nil
}
