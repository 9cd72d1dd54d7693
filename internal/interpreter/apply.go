package interpreter

import (
	"fmt"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// applyEdges applies the data edges into id in insertion order, each one
// seeing the node as left by the previous one.
func applyEdges(g *graph.Graph, id graph.NodeID, env *Env) error {
	node := g.Node(id)
	for _, e := range g.IncomingEdges(id) {
		if e.Dep.Kind != graph.ProjectedData {
			continue
		}
		parent, err := env.Get(bindingName(e.Source))
		if err != nil {
			return err
		}
		rows, err := parent.Projections(e.Dep.Projection)
		if err != nil {
			return &Error{Kind: ErrInvariant, Node: id, Message: fmt.Sprintf("edge %d -> %d: %v", e.Source, id, err)}
		}
		if x := e.Dep.Expect; x != nil && !x.Rule.Holds(len(rows)) {
			return &DataError{Violation: x.Violation, Rule: x.Rule, Rows: len(rows), Node: id}
		}
		if e.Dep.Sink.One && len(rows) != 1 {
			return &Error{Kind: ErrInvariant, Node: id, Message: fmt.Sprintf(
				"edge %d -> %d: %s sink takes exactly one row, got %d", e.Source, id, e.Dep.Sink.Kind, len(rows))}
		}
		if len(e.Dep.Sink.Fields) > 0 {
			for i, r := range rows {
				if rows[i], err = r.Rename(e.Dep.Sink.Fields); err != nil {
					return &Error{Kind: ErrInvariant, Node: id, Message: err.Error()}
				}
			}
		}
		if err := applySink(node, e.Dep.Sink, rows); err != nil {
			return &Error{Kind: ErrInvariant, Node: id, Message: fmt.Sprintf("edge %d -> %d: %v", e.Source, id, err)}
		}
	}
	return nil
}

func applySink(node graph.Node, sink graph.Sink, rows []ir.SelectionResult) error {
	switch sink.Kind {
	case graph.SinkWriteArgs:
		return injectArgs(node, sink.Fields, rows)
	case graph.SinkSelector:
		return injectSelector(node, sink, rows)
	case graph.SinkConnectParent, graph.SinkConnectChildren:
		return injectConnect(node, sink.Kind, rows)
	case graph.SinkIf:
		n, ok := node.(*graph.If)
		if !ok {
			return fmt.Errorf("if sink on %T", node)
		}
		n.Data = rows
	case graph.SinkReturn:
		n, ok := node.(*graph.Return)
		if !ok {
			return fmt.Errorf("return sink on %T", node)
		}
		n.Data = rows
	case graph.SinkDiffLeft, graph.SinkDiffRight:
		n, ok := node.(*graph.Diff)
		if !ok {
			return fmt.Errorf("diff sink on %T", node)
		}
		if sink.Kind == graph.SinkDiffLeft {
			n.Left = rows
		} else {
			n.Right = rows
		}
	case graph.SinkCursor:
		r, ok := node.(*graph.Read)
		if !ok {
			return fmt.Errorf("cursor sink on %T", node)
		}
		q, ok := r.Query.(*query.ManyRecordsQuery)
		if !ok {
			return fmt.Errorf("cursor sink on %T", r.Query)
		}
		if len(rows) == 0 {
			q.Args.CursorNotFound = true
		} else {
			q.Args.CursorRow = rows[0]
		}
	case graph.SinkCheck:
	default:
		return fmt.Errorf("unknown sink %s", sink.Kind)
	}
	return nil
}

func injectArgs(node graph.Node, fields []string, rows []ir.SelectionResult) error {
	w, ok := node.(*graph.Write)
	if !ok {
		return fmt.Errorf("args sink on %T", node)
	}
	if len(rows) != 1 {
		return fmt.Errorf("args sink needs one row, got %d", len(rows))
	}
	switch q := w.Query.(type) {
	case *query.CreateRecord:
		return q.Args.Inject(fields, rows[0])
	case *query.UpdateRecord:
		return q.Args.Inject(fields, rows[0])
	case *query.UpdateManyRecords:
		return q.Args.Inject(fields, rows[0])
	case *query.CreateManyRecords:
		for _, a := range q.Args {
			if err := a.Inject(fields, rows[0]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("args sink on %T", w.Query)
	}
}

func selectorFilter(node graph.Node, sink graph.Sink, rows []ir.SelectionResult) (filter.Filter, error) {
	f := filter.FromSelections(rows)
	if sink.Relation == "" {
		return f, nil
	}
	model := modelOf(node)
	if model == nil {
		return nil, fmt.Errorf("relation selector on %T", node)
	}
	rf := model.Relation(sink.Relation)
	if rf == nil {
		return nil, fmt.Errorf("unknown relation %s.%s", model.Name, sink.Relation)
	}
	cond := filter.RelIs
	if rf.List {
		cond = filter.RelSome
	}
	return filter.Relation{Field: rf.Name, Cond: cond, Nested: f}, nil
}

func injectSelector(node graph.Node, sink graph.Sink, rows []ir.SelectionResult) error {
	sel, err := selectorFilter(node, sink, rows)
	if err != nil {
		return err
	}
	switch n := node.(type) {
	case *graph.Read:
		switch q := n.Query.(type) {
		case *query.RecordQuery:
			q.Filter = filter.AndOf(q.Filter, sel)
		case *query.ManyRecordsQuery:
			q.Args.Filter = filter.AndOf(q.Args.Filter, sel)
		case *query.AggregateRecordsQuery:
			q.Args.Filter = filter.AndOf(q.Args.Filter, sel)
		default:
			return fmt.Errorf("selector sink on %T", n.Query)
		}
	case *graph.Write:
		switch q := n.Query.(type) {
		case *query.UpdateRecord:
			q.Filter = filter.AndOf(q.Filter, sel)
		case *query.UpdateManyRecords:
			q.Filter = filter.AndOf(q.Filter, sel)
		case *query.DeleteRecord:
			q.Filter = filter.AndOf(q.Filter, sel)
		case *query.DeleteManyRecords:
			q.Filter = filter.AndOf(q.Filter, sel)
		default:
			return fmt.Errorf("selector sink on %T", n.Query)
		}
	default:
		return fmt.Errorf("selector sink on %T", node)
	}
	return nil
}

func injectConnect(node graph.Node, kind graph.SinkKind, rows []ir.SelectionResult) error {
	w, ok := node.(*graph.Write)
	if !ok {
		return fmt.Errorf("%s sink on %T", kind, node)
	}
	var parent *ir.SelectionResult
	var children *[]ir.SelectionResult
	switch q := w.Query.(type) {
	case *query.ConnectRecords:
		parent, children = &q.Parent, &q.Children
	case *query.DisconnectRecords:
		parent, children = &q.Parent, &q.Children
	default:
		return fmt.Errorf("%s sink on %T", kind, w.Query)
	}
	if kind == graph.SinkConnectParent {
		if len(rows) != 1 {
			return fmt.Errorf("connect parent needs one row, got %d", len(rows))
		}
		*parent = rows[0]
		return nil
	}
	*children = rows
	return nil
}

func modelOf(node graph.Node) *schema.Model {
	switch n := node.(type) {
	case *graph.Read:
		return n.Query.TargetModel()
	case *graph.Write:
		return n.Query.TargetModel()
	default:
		return nil
	}
}
