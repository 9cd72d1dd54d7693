package sqlite

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

const blogSchema = `
model: User: {
	fields: {
		id:    {type: "Int", id: true, default: "autoincrement"}
		email: {type: "String", unique: true}
		name:  {type: "String", optional: true}
	}
	relations: posts: {model: "Post", list: true}
}
model: Post: {
	fields: {
		id:       {type: "Int", id: true, default: "autoincrement"}
		title:    {type: "String"}
		views:    {type: "Int", default: 0}
		authorId: {type: "Int"}
	}
	relations: {
		author: {model: "User", fields: ["authorId"], references: ["id"]}
		tags:   {model: "Tag", list: true}
	}
}
model: Tag: {
	fields: {
		id:   {type: "Int", id: true, default: "autoincrement"}
		name: {type: "String", unique: true}
	}
	relations: posts: {model: "Post", list: true}
}
`

func blog(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.CompileString(blogSchema)
	require.NoError(t, err)
	return s
}

func model(t *testing.T, s *schema.Schema, name string) *schema.Model {
	t.Helper()
	m, ok := s.Model(name)
	require.True(t, ok, name)
	return m
}

func TestCompileManyRecords(t *testing.T) {
	s := blog(t)
	user := model(t, s, "User")
	take := 2

	plan, err := compileRead(&query.ManyRecordsQuery{Model: user, Args: query.QueryArguments{
		Filter:  filter.Scalar{Field: "email", Cond: filter.CondStartsWith, Value: ir.IRString("a_")},
		OrderBy: []query.OrderBy{{Field: "email", Desc: true}},
		Skip:    1,
		Take:    &take,
	}})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."id", t0."email", t0."name" FROM "User" t0 WHERE t0."email" LIKE ? ESCAPE '\' ORDER BY t0."email" DESC, t0."id" ASC LIMIT ? OFFSET ?`,
		plan.stmt.sql)
	assert.Equal(t, []any{`a\_%`, int64(2), int64(1)}, plan.stmt.args)
	assert.False(t, plan.reverse)
}

func TestCompileNegativeTakeWithCursor(t *testing.T) {
	s := blog(t)
	post := model(t, s, "Post")
	take := -2

	plan, err := compileRead(&query.ManyRecordsQuery{Model: post, Columns: []string{"id"}, Args: query.QueryArguments{
		Take:      &take,
		Cursor:    ir.SelectionResult{{Field: "id", Value: ir.IRInt(5)}},
		CursorRow: ir.SelectionResult{{Field: "id", Value: ir.IRInt(5)}},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."id" FROM "Post" t0 WHERE 1 = 1 AND ((t0."id" < ?) OR (t0."id" = ?)) ORDER BY t0."id" DESC LIMIT ?`,
		plan.stmt.sql)
	assert.Equal(t, []any{int64(5), int64(5), int64(2)}, plan.stmt.args)
	assert.True(t, plan.reverse)
}

func TestCompileRelationFilters(t *testing.T) {
	s := blog(t)
	user, post := model(t, s, "User"), model(t, s, "Post")

	tests := []struct {
		name  string
		model *schema.Model
		f     filter.Filter
		want  string
	}{
		{
			name:  "some",
			model: user,
			f:     filter.Relation{Field: "posts", Cond: filter.RelSome, Nested: filter.Equals("title", ir.IRString("x"))},
			want:  `EXISTS (SELECT 1 FROM "Post" t1 WHERE t1."authorId" = t0."id" AND t1."title" = ?)`,
		},
		{
			name:  "every",
			model: user,
			f:     filter.Relation{Field: "posts", Cond: filter.RelEvery, Nested: filter.Scalar{Field: "views", Cond: filter.CondGt, Value: ir.IRInt(1)}},
			want:  `NOT EXISTS (SELECT 1 FROM "Post" t1 WHERE t1."authorId" = t0."id" AND NOT (t1."views" > ?))`,
		},
		{
			name:  "to-one is",
			model: post,
			f:     filter.Relation{Field: "author", Cond: filter.RelIs, Nested: filter.Equals("email", ir.IRString("a@x"))},
			want:  `EXISTS (SELECT 1 FROM "User" t1 WHERE t1."id" = t0."authorId" AND t1."email" = ?)`,
		},
		{
			name:  "many-to-many none",
			model: post,
			f:     filter.Relation{Field: "tags", Cond: filter.RelNone, Nested: filter.Equals("name", ir.IRString("go"))},
			want:  `NOT EXISTS (SELECT 1 FROM "_PostToTag" t2 JOIN "Tag" t1 ON t1."id" = t2."B" WHERE t2."A" = t0."id" AND t1."name" = ?)`,
		},
		{
			name:  "matches nothing",
			model: user,
			f:     filter.FromSelections(nil),
			want:  `1 = 0`,
		},
		{
			name:  "null and or",
			model: user,
			f:     filter.OrOf(filter.Equals("name", ir.IRNull{}), filter.In("id", ir.IRInt(1), ir.IRInt(2))),
			want:  `(t0."name" IS NULL OR t0."id" IN (?, ?))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &compiler{}
			got, err := c.compileFilter(tt.model, root, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRelatedReads(t *testing.T) {
	s := blog(t)
	user, post := model(t, s, "User"), model(t, s, "Post")
	parents := []ir.SelectionResult{
		{{Field: "id", Value: ir.IRInt(1)}},
		{{Field: "id", Value: ir.IRInt(2)}},
	}

	plan, err := compileRead(&query.RelatedRecordsQuery{ParentField: user.Relation("posts"), Columns: []string{"title"}, ParentResults: parents})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."title", t0."authorId" FROM "Post" t0 WHERE t0."authorId" IN (?, ?) AND 1 = 1 ORDER BY t0."id" ASC`,
		plan.stmt.sql)
	assert.Equal(t, []string{"authorId"}, plan.childFields)
	assert.Equal(t, []string{"id"}, plan.parentFields)

	plan, err = compileRead(&query.RelatedRecordsQuery{ParentField: post.Relation("tags"), Columns: []string{"id", "name"}, ParentResults: parents})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT t0."id", t0."name", j."A" FROM "Tag" t0 JOIN "_PostToTag" j ON j."B" = t0."id" WHERE j."A" IN (?, ?) AND 1 = 1 ORDER BY t0."id" ASC`,
		plan.stmt.sql)
}

func TestCompileWrites(t *testing.T) {
	s := blog(t)
	post := model(t, s, "Post")

	args := query.NewWriteArgs()
	args.Insert("views", query.WriteExpr{Op: query.OpIncrement, Value: ir.IRInt(1)})
	args.Set("title", ir.IRString("t"))
	st, err := compileUpdate(post, filter.Equals("id", ir.IRInt(3)), args, pkFields(post))
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "Post" AS t0 SET "views" = "views" + ?, "title" = ? WHERE t0."id" = ? RETURNING "id"`, st.sql)
	assert.Equal(t, []any{int64(1), "t", int64(3)}, st.args)

	_, err = compileInsert(post, args, false, post.Fields)
	assert.ErrorContains(t, err, "increment is not allowed on create")

	st, err = compileInsert(post, query.NewWriteArgs(), true, pkFields(post))
	require.NoError(t, err)
	assert.Equal(t, `INSERT OR IGNORE INTO "Post" DEFAULT VALUES RETURNING "id"`, st.sql)

	links, err := compileLinks(post.Relation("tags"),
		ir.SelectionResult{{Field: "id", Value: ir.IRInt(1)}},
		[]ir.SelectionResult{{{Field: "id", Value: ir.IRInt(7)}}, {{Field: "id", Value: ir.IRInt(8)}}}, false)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, `DELETE FROM "_PostToTag" WHERE "A" = ? AND "B" IN (?, ?)`, links[0].sql)
}

func TestCompileAggregate(t *testing.T) {
	s := blog(t)
	post := model(t, s, "Post")

	plan, err := compileRead(&query.AggregateRecordsQuery{Model: post, Selections: []query.AggregateSelection{
		{Kind: query.AggCount, Fields: []string{query.AllField, "title"}},
		{Kind: query.AggAvg, Fields: []string{"views"}},
	}})
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT COUNT(*), COUNT("title"), AVG("views") FROM (SELECT t0.* FROM "Post" t0 WHERE 1 = 1 ORDER BY t0."id" ASC)`,
		plan.stmt.sql)
	assert.Equal(t, "_count._all", plan.aggregates[0].column)
}

func TestBootstrapSQL(t *testing.T) {
	stmts, err := BootstrapSQL(blog(t))
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "bootstrap", []byte(strings.Join(stmts, ";\n\n")+";\n"))
}
