package graph

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

const blog = `
model: User: {
	fields: {
		id:    {type: "Int", id: true, default: "autoincrement"}
		email: {type: "String", unique: true}
	}
	relations: posts: {model: "Post", list: true}
}
model: Post: {
	fields: {
		id:       {type: "Int", id: true, default: "autoincrement"}
		title:    {type: "String"}
		authorId: {type: "Int", optional: true}
	}
	relations: author: {model: "User", optional: true, fields: ["authorId"], references: ["id"]}
}`

func models(t *testing.T) (*schema.Model, *schema.Model) {
	t.Helper()
	s, err := schema.CompileString(blog)
	require.NoError(t, err)
	user, _ := s.Model("User")
	post, _ := s.Model("Post")
	return user, post
}

func create(m *schema.Model, field string, v string) *Write {
	args := query.NewWriteArgs()
	args.Set(field, ir.IRString(v))
	return &Write{Query: &query.CreateRecord{Model: m, Args: args}}
}

var notFound = Violation{Kind: RecordNotFound, Model: "Post"}

// flipGraph models `createOnePost { author: { create } }`: the post is the
// syntactic parent but holds the foreign key.
func flipGraph(t *testing.T) (*Graph, NodeID, NodeID, NodeID) {
	t.Helper()
	user, post := models(t)

	g := New()
	p := g.CreateNode(create(post, "title", "t"))
	u := g.CreateNode(create(user, "email", "a@x"))
	r := g.CreateNode(&Read{Query: &query.RecordQuery{Model: post, Filter: filter.Empty{}}})
	g.AddResult(r)

	_, err := g.CreateEdge(p, u, Data([]string{"id"}, Sink{Kind: SinkWriteArgs, Fields: []string{"authorId"}, One: true}))
	require.NoError(t, err)
	_, err = g.CreateEdge(p, r, Data([]string{"id"}, Sink{Kind: SinkSelector, Fields: []string{"id"}, One: true}).
		Expecting(Rule{Kind: RuleNonEmpty}, notFound))
	require.NoError(t, err)
	g.MarkNodes(p, u)
	return g, p, u, r
}

func TestFinalizeFlipsMarkedPair(t *testing.T) {
	g, p, u, r := flipGraph(t)
	require.NoError(t, g.Finalize())

	_, stale := g.FindEdge(p, u)
	assert.False(t, stale)

	id, ok := g.FindEdge(u, p)
	require.True(t, ok)
	e := g.Edge(id)
	assert.Equal(t, SinkWriteArgs, e.Dep.Sink.Kind)
	assert.Equal(t, []string{"authorId"}, e.Dep.Sink.Fields)

	root, err := g.Root()
	require.NoError(t, err)
	assert.Equal(t, u, root)

	order, err := g.TopoOrder()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{u, p, r}, order)
	assert.True(t, g.Transactional())

	live := 0
	for _, id := range order {
		live += len(g.IncomingEdges(id))
	}
	assert.Equal(t, live, g.EdgeCount(), "flipped edges are not counted twice")
}

func TestFinalizeFlipMovesGrandparents(t *testing.T) {
	user, post := models(t)

	g := New()
	gp := g.CreateNode(create(user, "email", "gp@x"))
	p := g.CreateNode(create(post, "title", "t"))
	c := g.CreateNode(create(user, "email", "c@x"))
	g.AddResult(gp)

	_, err := g.CreateEdge(gp, p, Order())
	require.NoError(t, err)
	_, err = g.CreateEdge(p, c, Data([]string{"id"}, Sink{Kind: SinkWriteArgs, Fields: []string{"authorId"}, One: true}))
	require.NoError(t, err)
	g.MarkNodes(p, c)

	require.NoError(t, g.Finalize())

	_, ok := g.FindEdge(gp, c)
	assert.True(t, ok, "grandparent must gain an edge to the flipped child")
	_, ok = g.FindEdge(gp, p)
	assert.True(t, ok, "grandparent edge to the old parent is kept")
	_, ok = g.FindEdge(c, p)
	assert.True(t, ok)

	deepest, err := g.DeepestParent(p)
	require.NoError(t, err)
	assert.Equal(t, c, deepest)
}

func TestFinalizeFlipKeepsBranchKind(t *testing.T) {
	user, post := models(t)

	g := New()
	cond := g.CreateNode(&If{})
	p := g.CreateNode(create(post, "title", "t"))
	c := g.CreateNode(create(user, "email", "c@x"))
	g.AddResult(cond)

	_, err := g.CreateEdge(cond, p, ThenBranch())
	require.NoError(t, err)
	_, err = g.CreateEdge(p, c, Data([]string{"id"}, Sink{Kind: SinkWriteArgs, Fields: []string{"authorId"}, One: true}))
	require.NoError(t, err)
	g.MarkNodes(p, c)
	require.NoError(t, g.Finalize())

	id, ok := g.FindEdge(cond, c)
	require.True(t, ok)
	assert.Equal(t, Then, g.Edge(id).Dep.Kind)
}

func TestFinalizeRejectsBrokenGraphs(t *testing.T) {
	user, _ := models(t)

	t.Run("no result", func(t *testing.T) {
		g := New()
		g.CreateNode(&Empty{})
		assertKind(t, g.Finalize(), ErrNoResult)
	})

	t.Run("two roots", func(t *testing.T) {
		g := New()
		a := g.CreateNode(&Empty{})
		g.CreateNode(&Empty{})
		g.AddResult(a)
		assertKind(t, g.Finalize(), ErrRoot)
	})

	t.Run("cycle", func(t *testing.T) {
		g := New()
		a := g.CreateNode(&Empty{})
		b := g.CreateNode(&Empty{})
		c := g.CreateNode(&Empty{})
		g.AddResult(c)
		_, _ = g.CreateEdge(a, b, Order())
		_, _ = g.CreateEdge(b, c, Order())
		_, _ = g.CreateEdge(c, b, Order())
		assertKind(t, g.Finalize(), ErrCycle)
	})

	t.Run("unordered parents", func(t *testing.T) {
		g := New()
		root := g.CreateNode(create(user, "email", "r"))
		left := g.CreateNode(&Empty{})
		right := g.CreateNode(&Empty{})
		join := g.CreateNode(&Empty{})
		g.AddResult(join)
		_, _ = g.CreateEdge(root, left, Order())
		_, _ = g.CreateEdge(root, right, Order())
		_, _ = g.CreateEdge(left, join, Order())
		_, _ = g.CreateEdge(right, join, Order())
		assertKind(t, g.Finalize(), ErrParentOrder)
	})

	t.Run("branch edge from non-If", func(t *testing.T) {
		g := New()
		a := g.CreateNode(&Empty{})
		b := g.CreateNode(&Empty{})
		_, err := g.CreateEdge(a, b, ThenBranch())
		assertKind(t, err, ErrInvalidEdge)
	})
}

func assertKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, kind, gerr.Kind)
}

func TestTransactionInference(t *testing.T) {
	user, _ := models(t)

	single := New()
	r := single.CreateNode(&Read{Query: &query.ManyRecordsQuery{Model: user}})
	single.AddResult(r)
	require.NoError(t, single.Finalize())
	assert.False(t, single.Transactional())

	many := New()
	w := many.CreateNode(&Write{Query: &query.CreateManyRecords{Model: user, Args: []*query.WriteArgs{query.NewWriteArgs(), query.NewWriteArgs()}}})
	many.AddResult(w)
	require.NoError(t, many.Finalize())
	assert.True(t, many.Transactional())
}

func TestDiffNode(t *testing.T) {
	id := func(n int64) ir.SelectionResult { return ir.SelectionResult{{Field: "id", Value: ir.IRInt(n)}} }
	d := &Diff{Left: []ir.SelectionResult{id(1), id(2)}, Right: []ir.SelectionResult{id(2), id(3)}}

	assert.Equal(t, []ir.SelectionResult{id(1)}, d.Result())
	d.Direction = RightToLeft
	assert.Equal(t, []ir.SelectionResult{id(3)}, d.Result())
}

func TestRuleHolds(t *testing.T) {
	assert.True(t, Rule{Kind: RuleNonEmpty}.Holds(2))
	assert.False(t, Rule{Kind: RuleNonEmpty}.Holds(0))
	assert.True(t, Rule{Kind: RuleEmpty}.Holds(0))
	assert.True(t, Rule{Kind: RuleCount, Count: 3}.Holds(3))
	assert.False(t, Rule{Kind: RuleCount, Count: 3}.Holds(2))
}

func TestStringGolden(t *testing.T) {
	g, _, _, _ := flipGraph(t)
	require.NoError(t, g.Finalize())

	gold := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gold.Assert(t, "flip_create_post", []byte(g.String()))
}
