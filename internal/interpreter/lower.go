package interpreter

import (
	"fmt"
	"slices"

	"github.com/roach88/qgraph/internal/graph"
)

// Lower turns a finalized graph into an expression tree.
//
// Every node is placed under its deepest parent, so all of its parents'
// results are bound in an enclosing Let when its incoming edges are
// applied. For each node:
//   - children whose subgraph has no result node run first, for effect
//   - children leading to a result node are bound last and fetched with
//     Get (one) or GetFirstNonEmpty (several)
//   - a result node without such children is fetched with Get
//   - Then/Else children of an If node become its branches
func Lower(g *graph.Graph) (Expression, error) {
	root, err := g.Root()
	if err != nil {
		return nil, err
	}
	l := &lowerer{g: g, done: make(map[graph.NodeID]bool)}
	expr, err := l.node(root)
	if err != nil {
		return nil, err
	}
	if len(l.done) != g.Len() {
		return nil, &Error{Kind: ErrInvariant, Message: fmt.Sprintf("lowered %d of %d nodes", len(l.done), g.Len())}
	}
	return expr, nil
}

// bindingName returns the environment name of a node's result.
func bindingName(id graph.NodeID) string {
	return fmt.Sprintf("node_%d", id)
}

func resultBinding(id graph.NodeID) string {
	return fmt.Sprintf("result_%d", id)
}

type lowerer struct {
	g    *graph.Graph
	done map[graph.NodeID]bool
}

type child struct {
	id   graph.NodeID
	kind graph.DependencyKind
}

// directChildren returns the children placed under id, with the kind of
// the first edge linking them.
func (l *lowerer) directChildren(id graph.NodeID) ([]child, error) {
	var out []child
	seen := make(map[graph.NodeID]bool)
	for _, e := range l.g.OutgoingEdges(id) {
		if seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		deepest, err := l.g.DeepestParent(e.Target)
		if err != nil {
			return nil, err
		}
		if deepest == id {
			out = append(out, child{id: e.Target, kind: e.Dep.Kind})
		}
	}
	return out, nil
}

func (l *lowerer) node(id graph.NodeID) (Expression, error) {
	if l.done[id] {
		return nil, &Error{Kind: ErrInvariant, Node: id, Message: fmt.Sprintf("node %d lowered twice", id)}
	}
	l.done[id] = true

	kids, err := l.directChildren(id)
	if err != nil {
		return nil, err
	}

	var thenKids, elseKids, effect, results []graph.NodeID
	for _, c := range kids {
		switch {
		case c.kind == graph.Then:
			thenKids = append(thenKids, c.id)
		case c.kind == graph.Else:
			elseKids = append(elseKids, c.id)
		case l.g.SubgraphContainsResult(c.id):
			results = append(results, c.id)
		default:
			effect = append(effect, c.id)
		}
	}

	self, err := l.nodeExpr(id, thenKids, elseKids)
	if err != nil {
		return nil, err
	}

	isResult := l.g.IsResult(id)
	if len(effect) == 0 && len(results) == 0 {
		return self, nil
	}

	name := bindingName(id)
	let := &Let{Bindings: []Binding{{Name: name, Expr: self}}}
	for _, k := range effect {
		e, err := l.node(k)
		if err != nil {
			return nil, err
		}
		let.Exprs = append(let.Exprs, e)
	}

	switch {
	case len(results) == 0:
		if isResult {
			let.Exprs = append(let.Exprs, &Get{Name: name})
		}
	default:
		inner := &Let{}
		var names []string
		if isResult {
			names = append(names, name)
		}
		for _, k := range results {
			e, err := l.node(k)
			if err != nil {
				return nil, err
			}
			inner.Bindings = append(inner.Bindings, Binding{Name: resultBinding(k), Expr: e})
			names = append(names, resultBinding(k))
		}
		if len(names) == 1 {
			inner.Exprs = []Expression{&Get{Name: names[0]}}
		} else {
			inner.Exprs = []Expression{&GetFirstNonEmpty{Names: names}}
		}
		let.Exprs = append(let.Exprs, inner)
	}
	return let, nil
}

// nodeExpr builds the expression of the node itself: its incoming edges
// applied, then its operation.
func (l *lowerer) nodeExpr(id graph.NodeID, thenKids, elseKids []graph.NodeID) (Expression, error) {
	n := l.g.Node(id)

	var next func() Expression
	switch v := n.(type) {
	case *graph.Read, *graph.Write:
		next = func() Expression { return &Query{Node: id, Op: n} }
	case *graph.If:
		then, err := l.branch(thenKids)
		if err != nil {
			return nil, err
		}
		els, err := l.branch(elseKids)
		if err != nil {
			return nil, err
		}
		next = func() Expression {
			return &If{Node: id, Cond: len(v.Data) > 0, Then: then, Else: els}
		}
	case *graph.Return:
		next = func() Expression { return &Return{Result: &Rows{Data: v.Data}} }
	case *graph.Diff:
		next = func() Expression { return &Return{Result: &Rows{Data: v.Result()}} }
	case *graph.Empty:
		next = func() Expression { return &Return{Result: Empty{}} }
	default:
		return nil, &Error{Kind: ErrInvariant, Node: id, Message: fmt.Sprintf("unsupported node %T", n)}
	}

	incoming := l.g.IncomingEdges(id)
	if len(incoming) == 0 {
		return next(), nil
	}
	var reads []string
	for _, e := range incoming {
		if e.Dep.Kind == graph.ProjectedData && !slices.Contains(reads, bindingName(e.Source)) {
			reads = append(reads, bindingName(e.Source))
		}
	}
	return &Func{
		Node: id,
		Fn: func(env *Env) (Expression, error) {
			if err := applyEdges(l.g, id, env); err != nil {
				return nil, err
			}
			return next(), nil
		},
		Reads: reads,
		Next:  next(),
	}, nil
}

func (l *lowerer) branch(ids []graph.NodeID) ([]Expression, error) {
	out := make([]Expression, 0, len(ids))
	for _, id := range ids {
		e, err := l.node(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
