package graph

import (
	"fmt"

	"github.com/roach88/qgraph/internal/query"
)

// EdgeID is the stable index of an edge.
type EdgeID int

// Edge is a directed dependency between two nodes.
type Edge struct {
	ID     EdgeID
	Source NodeID
	Target NodeID
	Dep    Dependency

	detached bool
}

// Graph is the arena of nodes and edges built for one logical operation.
//
// Nodes are never deleted; removing an edge detaches it so every NodeID
// and EdgeID stays valid. Incoming edges of a node are applied in edge
// insertion order.
type Graph struct {
	nodes   []Node
	edges   []*Edge
	results []NodeID

	// marked holds (parent, child) pairs to swap on Finalize.
	marked [][2]NodeID

	transactional bool
	finalized     bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// CreateNode adds n to the arena.
func (g *Graph) CreateNode(n Node) NodeID {
	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes) - 1)
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges still attached.
func (g *Graph) EdgeCount() int {
	return len(g.liveEdges())
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

// CreateEdge adds a dependency from source to target.
func (g *Graph) CreateEdge(source, target NodeID, dep Dependency) (EdgeID, error) {
	if !g.valid(source) || !g.valid(target) {
		return 0, &Error{Kind: ErrInvalidNode, Message: fmt.Sprintf("edge %d -> %d references a missing node", source, target)}
	}
	if source == target {
		return 0, &Error{Kind: ErrCycle, Message: fmt.Sprintf("self edge on node %d", source)}
	}
	if dep.IsBranch() {
		if _, ok := g.nodes[source].(*If); !ok {
			return 0, &Error{Kind: ErrInvalidEdge, Message: fmt.Sprintf("%s edge from non-If node %d", dep.Kind, source)}
		}
	}
	e := &Edge{ID: EdgeID(len(g.edges)), Source: source, Target: target, Dep: dep}
	g.edges = append(g.edges, e)
	return e.ID, nil
}

// Edge returns a copy of the edge with the given id.
func (g *Graph) Edge(id EdgeID) Edge {
	return *g.edges[id]
}

// RemoveEdge detaches an edge and returns its dependency.
func (g *Graph) RemoveEdge(id EdgeID) Dependency {
	e := g.edges[id]
	e.detached = true
	return e.Dep
}

// FindEdge returns the live edge from source to target.
func (g *Graph) FindEdge(source, target NodeID) (EdgeID, bool) {
	for _, e := range g.edges {
		if !e.detached && e.Source == source && e.Target == target {
			return e.ID, true
		}
	}
	return 0, false
}

// IncomingEdges returns the live edges into id in insertion order.
func (g *Graph) IncomingEdges(id NodeID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if !e.detached && e.Target == id {
			out = append(out, *e)
		}
	}
	return out
}

// OutgoingEdges returns the live edges out of id in insertion order.
func (g *Graph) OutgoingEdges(id NodeID) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if !e.detached && e.Source == id {
			out = append(out, *e)
		}
	}
	return out
}

// Parents returns the distinct sources of id's incoming edges.
func (g *Graph) Parents(id NodeID) []NodeID {
	return distinct(g.IncomingEdges(id), func(e Edge) NodeID { return e.Source })
}

// Children returns the distinct targets of id's outgoing edges.
func (g *Graph) Children(id NodeID) []NodeID {
	return distinct(g.OutgoingEdges(id), func(e Edge) NodeID { return e.Target })
}

func distinct(edges []Edge, pick func(Edge) NodeID) []NodeID {
	seen := make(map[NodeID]bool, len(edges))
	var out []NodeID
	for _, e := range edges {
		id := pick(e)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// IsAncestor reports whether a reaches b through live edges.
func (g *Graph) IsAncestor(a, b NodeID) bool {
	seen := make(map[NodeID]bool)
	stack := []NodeID{a}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range g.Children(n) {
			if c == b {
				return true
			}
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}

// AddResult designates id as a result node. Several result nodes are
// allowed when only one of them can run (upsert branches).
func (g *Graph) AddResult(id NodeID) {
	for _, r := range g.results {
		if r == id {
			return
		}
	}
	g.results = append(g.results, id)
}

// Results returns the result nodes.
func (g *Graph) Results() []NodeID {
	return append([]NodeID(nil), g.results...)
}

// IsResult reports whether id is a result node.
func (g *Graph) IsResult(id NodeID) bool {
	for _, r := range g.results {
		if r == id {
			return true
		}
	}
	return false
}

// SubgraphContainsResult reports whether id or any descendant is a
// result node.
func (g *Graph) SubgraphContainsResult(id NodeID) bool {
	if g.IsResult(id) {
		return true
	}
	for _, r := range g.results {
		if g.IsAncestor(id, r) {
			return true
		}
	}
	return false
}

// MarkNodes records that parent and child swap roles on Finalize: the
// edge between them is reversed and parent's parents also become
// parents of child. Used when the foreign key lives on the node that is
// syntactically the parent.
func (g *Graph) MarkNodes(parent, child NodeID) {
	g.marked = append(g.marked, [2]NodeID{parent, child})
}

// Transactional reports whether the graph must run in a transaction.
// Valid after Finalize.
func (g *Graph) Transactional() bool {
	return g.transactional
}

// Finalize swaps marked pairs, computes the transaction flag and checks
// the structural invariants. It is idempotent.
func (g *Graph) Finalize() error {
	if g.finalized {
		return nil
	}
	if err := g.swapMarked(); err != nil {
		return err
	}
	if len(g.results) == 0 {
		return &Error{Kind: ErrNoResult, Message: "graph has no result node"}
	}
	if _, err := g.TopoOrder(); err != nil {
		return err
	}
	if _, err := g.Root(); err != nil {
		return err
	}
	if err := g.checkParentOrder(); err != nil {
		return err
	}

	g.transactional = g.needsTransaction()
	g.finalized = true
	return nil
}

// swapMarked processes marked pairs in reverse marking order.
func (g *Graph) swapMarked() error {
	marked := g.marked
	g.marked = nil
	for i := len(marked) - 1; i >= 0; i-- {
		parent, child := marked[i][0], marked[i][1]

		for _, in := range g.IncomingEdges(parent) {
			// Nodes below the child already run after it.
			if in.Source == child || g.IsAncestor(child, in.Source) {
				continue
			}
			if _, exists := g.FindEdge(in.Source, child); exists {
				continue
			}
			dep := Order()
			if in.Dep.IsBranch() {
				dep = Dependency{Kind: in.Dep.Kind}
			}
			if _, err := g.CreateEdge(in.Source, child, dep); err != nil {
				return err
			}
		}

		if id, ok := g.FindEdge(parent, child); ok {
			dep := g.RemoveEdge(id)
			if _, err := g.CreateEdge(child, parent, dep); err != nil {
				return err
			}
		}
	}
	return nil
}

// needsTransaction: more than one node, or a single write spanning
// several statements.
func (g *Graph) needsTransaction() bool {
	if len(g.nodes) > 1 {
		return true
	}
	if w, ok := g.nodes[0].(*Write); ok {
		return query.MultiStatement(w.Query)
	}
	return false
}

// Root returns the single node without incoming edges.
func (g *Graph) Root() (NodeID, error) {
	var roots []NodeID
	for i := range g.nodes {
		if len(g.IncomingEdges(NodeID(i))) == 0 {
			roots = append(roots, NodeID(i))
		}
	}
	if len(roots) != 1 {
		return 0, &Error{Kind: ErrRoot, Message: fmt.Sprintf("graph has %d roots %v, want 1", len(roots), roots)}
	}
	return roots[0], nil
}

// TopoOrder returns the nodes in a topological order (ties broken by
// NodeID), or an error on a cycle.
func (g *Graph) TopoOrder() ([]NodeID, error) {
	indeg := make([]int, len(g.nodes))
	for _, e := range g.liveEdges() {
		indeg[e.Target]++
	}
	var ready, order []NodeID
	for i, d := range indeg {
		if d == 0 {
			ready = append(ready, NodeID(i))
		}
	}
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, e := range g.OutgoingEdges(n) {
			indeg[e.Target]--
			if indeg[e.Target] == 0 {
				ready = insertSorted(ready, e.Target)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, &Error{Kind: ErrCycle, Message: "graph contains a cycle"}
	}
	return order, nil
}

func insertSorted(ids []NodeID, id NodeID) []NodeID {
	i := len(ids)
	for i > 0 && ids[i-1] > id {
		i--
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// checkParentOrder requires the parents of every node to lie on one
// ancestry chain, so lowering can nest the node under its deepest parent
// with every other parent's result already bound.
func (g *Graph) checkParentOrder() error {
	for i := range g.nodes {
		id := NodeID(i)
		if _, err := g.DeepestParent(id); err != nil {
			return err
		}
	}
	return nil
}

// DeepestParent returns the parent of id that descends from all its other
// parents. It returns -1 for the root.
func (g *Graph) DeepestParent(id NodeID) (NodeID, error) {
	parents := g.Parents(id)
	if len(parents) == 0 {
		return -1, nil
	}
	deepest := parents[0]
	for _, p := range parents[1:] {
		switch {
		case g.IsAncestor(deepest, p):
			deepest = p
		case g.IsAncestor(p, deepest):
		default:
			return 0, &Error{Kind: ErrParentOrder, Message: fmt.Sprintf("node %d has unordered parents %d and %d", id, deepest, p)}
		}
	}
	return deepest, nil
}

func (g *Graph) liveEdges() []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if !e.detached {
			out = append(out, e)
		}
	}
	return out
}
