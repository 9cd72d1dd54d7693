package builder

import (
	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
	"github.com/roach88/qgraph/internal/schema"
)

// requireArg returns a mandatory argument of the current operation.
func (b *builder) requireArg(sel *request.Selection, name string) (ir.IRValue, error) {
	v, ok := sel.Arg(name)
	if !ok {
		return nil, errorf(ErrInvalidArgument, b.op.Model.Name, "", "%s requires %s", b.op.Name, name)
	}
	return v, nil
}

// createRecord adds a create of m and its nested writes. back is the
// relation the record is created through, nil at the top level.
func (b *builder) createRecord(m *schema.Model, data ir.IRValue, back *schema.RelationField) (graph.NodeID, error) {
	ws, err := b.parseData(m, data, true, back)
	if err != nil {
		return 0, err
	}
	c := b.node(&graph.Write{Query: &query.CreateRecord{Model: m, Args: ws.args}})
	if err := b.nestedWrites(parentWrite{id: c, model: m, args: ws.args, create: true}, ws.nested); err != nil {
		return 0, err
	}
	return c, nil
}

// updateNode adds an update of the record matched by f. The caller wires
// its incoming edges and checks, then attaches the nested writes.
func (b *builder) updateNode(m *schema.Model, f filter.Filter, data ir.IRValue, back *schema.RelationField) (parentWrite, []nestedWrite, error) {
	ws, err := b.parseData(m, data, false, back)
	if err != nil {
		return parentWrite{}, nil, err
	}
	u := b.node(&graph.Write{Query: &query.UpdateRecord{Model: m, Filter: f, Args: ws.args}})
	return parentWrite{id: u, model: m, args: ws.args}, ws.nested, nil
}

func (b *builder) createOne(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	data, err := b.requireArg(sel, "data")
	if err != nil {
		return nil, err
	}
	c, err := b.createRecord(m, data, nil)
	if err != nil {
		return nil, err
	}
	return b.attachResult(c, m, sel)
}

func (b *builder) createMany(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	data, err := b.requireArg(sel, "data")
	if err != nil {
		return nil, err
	}
	q := &query.CreateManyRecords{Model: m}
	if v, ok := sel.Arg("skipDuplicates"); ok {
		if q.SkipDuplicates, err = boolArg(m, "skipDuplicates", v); err != nil {
			return nil, err
		}
	}
	for _, item := range listOf(data) {
		args, err := b.parsePlainData(m, item, true)
		if err != nil {
			return nil, err
		}
		q.Args = append(q.Args, args)
	}
	b.g.AddResult(b.node(&graph.Write{Query: q}))
	return &response.Shape{Key: sel.Key(), Kind: response.Count}, nil
}

// updateOne: the update runs first, a check fails the request when no
// record matched, then nested writes and the result read follow.
func (b *builder) updateOne(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	where, err := b.requireArg(sel, "where")
	if err != nil {
		return nil, err
	}
	data, err := b.requireArg(sel, "data")
	if err != nil {
		return nil, err
	}
	f, err := ExtractUniqueFilter(m, where)
	if err != nil {
		return nil, err
	}
	p, nested, err := b.updateNode(m, f, data, nil)
	if err != nil {
		return nil, err
	}
	b.check(p.id, m, nonEmpty(), b.violation(graph.RecordNotFound, m, ""))
	if err := b.nestedWrites(p, nested); err != nil {
		return nil, err
	}
	return b.attachResult(p.id, m, sel)
}

func (b *builder) updateMany(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	data, err := b.requireArg(sel, "data")
	if err != nil {
		return nil, err
	}
	var f filter.Filter = filter.Empty{}
	if where, ok := sel.Arg("where"); ok {
		if f, err = Filter(m, where); err != nil {
			return nil, err
		}
	}
	args, err := b.parsePlainData(m, data, false)
	if err != nil {
		return nil, err
	}
	b.g.AddResult(b.node(&graph.Write{Query: &query.UpdateManyRecords{Model: m, Filter: f, Args: args}}))
	return &response.Shape{Key: sel.Key(), Kind: response.Count}, nil
}

// upsertOne reads the record, then branches: Then updates it, Else
// creates it. Each branch ends in its own result read; only one runs.
func (b *builder) upsertOne(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	where, err := b.requireArg(sel, "where")
	if err != nil {
		return nil, err
	}
	createData, err := b.requireArg(sel, "create")
	if err != nil {
		return nil, err
	}
	updateData, err := b.requireArg(sel, "update")
	if err != nil {
		return nil, err
	}
	f, err := ExtractUniqueFilter(m, where)
	if err != nil {
		return nil, err
	}

	r := b.node(&graph.Read{Query: &query.RecordQuery{Model: m, Filter: f, Columns: pkOf(m)}})
	i := b.node(&graph.If{})
	b.edge(r, i, graph.Data(pkOf(m), graph.Sink{Kind: graph.SinkIf}))

	p, nested, err := b.updateNode(m, filter.Empty{}, updateData, nil)
	if err != nil {
		return nil, err
	}
	b.edge(i, p.id, graph.ThenBranch())
	b.edge(r, p.id, graph.Data(pkOf(m), graph.Sink{Kind: graph.SinkSelector, One: true}))
	if err := b.nestedWrites(p, nested); err != nil {
		return nil, err
	}
	shape, err := b.attachResult(p.id, m, sel)
	if err != nil {
		return nil, err
	}

	c, err := b.createRecord(m, createData, nil)
	if err != nil {
		return nil, err
	}
	b.edge(i, c, graph.ElseBranch())
	if _, err := b.attachResult(c, m, sel); err != nil {
		return nil, err
	}
	return shape, nil
}

// deleteOne reads the record for the response, then deletes it.
func (b *builder) deleteOne(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	where, err := b.requireArg(sel, "where")
	if err != nil {
		return nil, err
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
	d := b.node(&graph.Write{Query: &query.DeleteRecord{Model: m, Filter: filter.Empty{}}})
	b.edge(r, d, graph.Data(pkOf(m), graph.Sink{Kind: graph.SinkSelector, One: true}).
		Expecting(nonEmpty(), b.violation(graph.RecordNotFound, m, "")))
	return shape, nil
}

func (b *builder) deleteMany(sel *request.Selection) (*response.Shape, error) {
	m := b.op.Model
	var f filter.Filter = filter.Empty{}
	if where, ok := sel.Arg("where"); ok {
		var err error
		if f, err = Filter(m, where); err != nil {
			return nil, err
		}
	}
	b.g.AddResult(b.node(&graph.Write{Query: &query.DeleteManyRecords{Model: m, Filter: f}}))
	return &response.Shape{Key: sel.Key(), Kind: response.Count}, nil
}
