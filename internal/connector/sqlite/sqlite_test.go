package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

func openTestDB(t *testing.T) (connector.Connection, *schema.Schema) {
	t.Helper()
	s := blog(t)
	c, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Bootstrap(context.Background(), s))

	conn, err := c.Connection(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, s
}

func args(kv ...any) *query.WriteArgs {
	a := query.NewWriteArgs()
	for i := 0; i < len(kv); i += 2 {
		v, err := ir.FromAny(kv[i+1])
		if err != nil {
			panic(err)
		}
		a.Set(kv[i].(string), v)
	}
	return a
}

func create(t *testing.T, q connector.Queryable, m *schema.Model, a *query.WriteArgs) ir.Record {
	t.Helper()
	res, err := q.Execute(context.Background(), &query.CreateRecord{Model: m, Args: a})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	return res.Records[0]
}

func TestCreateAndReadBack(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user, post := model(t, s, "User"), model(t, s, "Post")

	u := create(t, conn, user, args("email", "a@x"))
	assert.Equal(t, ir.IRInt(1), u["id"])
	assert.Equal(t, ir.IRNull{}, u["name"])

	p := create(t, conn, post, args("title", "hello", "authorId", int64(1)))
	assert.Equal(t, ir.IRInt(0), p["views"], "column default applies")

	rs, err := conn.Query(ctx, &query.RecordQuery{Model: user, Filter: filter.Equals("email", ir.IRString("a@x"))})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{"id", "email", "name"}, rs.Columns)
}

func TestRelatedReadsCarryParentLinks(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user, post := model(t, s, "User"), model(t, s, "Post")

	create(t, conn, user, args("email", "a@x"))
	create(t, conn, user, args("email", "b@x"))
	create(t, conn, post, args("title", "p1", "authorId", int64(2)))
	create(t, conn, post, args("title", "p2", "authorId", int64(1)))
	create(t, conn, post, args("title", "p3", "authorId", int64(2)))

	rs, err := conn.Query(ctx, &query.RelatedRecordsQuery{
		ParentField: user.Relation("posts"),
		Columns:     []string{"id", "title"},
		ParentResults: []ir.SelectionResult{
			{{Field: "id", Value: ir.IRInt(1)}},
			{{Field: "id", Value: ir.IRInt(2)}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	var got []string
	for i, rec := range rs.Records {
		got = append(got, string(rec["title"].(ir.IRString))+"->"+rs.ParentLinks[i].String())
	}
	assert.Equal(t, []string{"p1->id=2", "p2->id=1", "p3->id=2"}, got)
}

func TestManyToManyLinks(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user, post, tag := model(t, s, "User"), model(t, s, "Post"), model(t, s, "Tag")
	tags := post.Relation("tags")

	create(t, conn, user, args("email", "a@x"))
	create(t, conn, post, args("title", "p", "authorId", int64(1)))
	for _, name := range []string{"go", "sql", "db"} {
		create(t, conn, tag, args("name", name))
	}

	parent := ir.SelectionResult{{Field: "id", Value: ir.IRInt(1)}}
	ids := func(ns ...int64) []ir.SelectionResult {
		out := make([]ir.SelectionResult, len(ns))
		for i, n := range ns {
			out[i] = ir.SelectionResult{{Field: "id", Value: ir.IRInt(n)}}
		}
		return out
	}

	res, err := conn.Execute(ctx, &query.ConnectRecords{ParentField: tags, Parent: parent, Children: ids(1, 2, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count, "existing links are kept, not duplicated")

	res, err = conn.Execute(ctx, &query.DisconnectRecords{ParentField: tags, Parent: parent, Children: ids(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)

	rs, err := conn.Query(ctx, &query.RelatedRecordsQuery{ParentField: tags, Columns: []string{"id", "name"}, ParentResults: []ir.SelectionResult{parent}})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, ir.IRString("go"), rs.Records[0]["name"])
	assert.Equal(t, ir.IRString("db"), rs.Records[1]["name"])
	assert.Equal(t, parent, rs.ParentLinks[0])

	rs, err = conn.Query(ctx, &query.ManyRecordsQuery{Model: post, Args: query.QueryArguments{
		Filter: filter.Relation{Field: "tags", Cond: filter.RelSome, Nested: filter.Equals("name", ir.IRString("sql"))},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestConstraintErrors(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user, post := model(t, s, "User"), model(t, s, "Post")

	create(t, conn, user, args("email", "a@x"))

	_, err := conn.Execute(ctx, &query.CreateRecord{Model: user, Args: args("email", "a@x")})
	se, ok := connector.AsStorageError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, connector.ErrUniqueConstraint, se.Kind)
	assert.Equal(t, "User", se.Model)
	assert.Equal(t, []string{"email"}, se.Fields)

	_, err = conn.Execute(ctx, &query.CreateRecord{Model: post, Args: args("title", "x", "authorId", int64(99))})
	se, ok = connector.AsStorageError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, connector.ErrForeignKeyConstraint, se.Kind)

	_, err = conn.Execute(ctx, &query.CreateRecord{Model: post, Args: args("authorId", int64(1))})
	se, ok = connector.AsStorageError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, connector.ErrNullConstraint, se.Kind)
	assert.Equal(t, []string{"title"}, se.Fields)
}

func TestWritesReturnRecordsAndCounts(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user, post, tag := model(t, s, "User"), model(t, s, "Post"), model(t, s, "Tag")

	create(t, conn, user, args("email", "a@x"))
	res, err := conn.Execute(ctx, &query.CreateManyRecords{Model: tag, SkipDuplicates: true, Args: []*query.WriteArgs{
		args("name", "a"), args("name", "b"), args("name", "a"),
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)
	assert.Equal(t, []ir.Record{{"id": ir.IRInt(1)}, {"id": ir.IRInt(2)}}, res.Records)

	for i := 0; i < 3; i++ {
		create(t, conn, post, args("title", "t", "authorId", int64(1)))
	}
	inc := query.NewWriteArgs()
	inc.Insert("views", query.WriteExpr{Op: query.OpIncrement, Value: ir.IRInt(5)})
	res, err = conn.Execute(ctx, &query.UpdateManyRecords{Model: post, Filter: filter.Scalar{Field: "id", Cond: filter.CondGte, Value: ir.IRInt(2)}, Args: inc})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)

	res, err = conn.Execute(ctx, &query.UpdateRecord{Model: post, Filter: filter.Equals("id", ir.IRInt(9)), Args: args("title", "x")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Count, "missing record updates nothing")

	res, err = conn.Execute(ctx, &query.DeleteRecord{Model: post, Filter: filter.Equals("id", ir.IRInt(3))})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, ir.IRInt(5), res.Records[0]["views"])

	rs, err := conn.Query(ctx, &query.AggregateRecordsQuery{Model: post, Selections: []query.AggregateSelection{
		{Kind: query.AggCount, Fields: []string{query.AllField}},
		{Kind: query.AggSum, Fields: []string{"views"}},
		{Kind: query.AggAvg, Fields: []string{"views"}},
	}})
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	assert.Equal(t, ir.Record{
		"_count._all": ir.IRInt(2),
		"_sum.views":  ir.IRInt(5),
		"_avg.views":  ir.IRFloat(2.5),
	}, rs.Records[0])
}

func TestCursorPagination(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user := model(t, s, "User")
	for _, e := range []string{"a", "b", "c", "d", "e"} {
		create(t, conn, user, args("email", e))
	}

	read := func(take int, cursor int64) []int64 {
		rs, err := conn.Query(ctx, &query.ManyRecordsQuery{Model: user, Columns: []string{"id"}, Args: query.QueryArguments{
			Take:      &take,
			Cursor:    ir.SelectionResult{{Field: "id", Value: ir.IRInt(cursor)}},
			CursorRow: ir.SelectionResult{{Field: "id", Value: ir.IRInt(cursor)}},
		}})
		require.NoError(t, err)
		var out []int64
		for _, r := range rs.Records {
			out = append(out, int64(r["id"].(ir.IRInt)))
		}
		return out
	}

	assert.Equal(t, []int64{3, 4}, read(2, 3))
	assert.Equal(t, []int64{2, 3}, read(-2, 3))
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	user := model(t, s, "User")

	tx, err := conn.Begin(ctx)
	require.NoError(t, err)
	create(t, tx, user, args("email", "a@x"))
	require.NoError(t, tx.Rollback())

	rs, err := conn.Query(ctx, &query.ManyRecordsQuery{Model: user})
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestRawQueries(t *testing.T) {
	ctx := context.Background()
	conn, s := openTestDB(t)
	create(t, conn, model(t, s, "User"), args("email", "a@x"))

	n, err := conn.ExecuteRaw(ctx, query.Raw{Kind: query.RawExecute, SQL: `UPDATE "User" SET name = ?`, Params: []ir.IRValue{ir.IRString("Ann")}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rs, err := conn.QueryRaw(ctx, query.Raw{Kind: query.RawQuery, SQL: `SELECT name, id FROM "User"`})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "id"}, rs.Columns)
	assert.Equal(t, []ir.Record{{"name": ir.IRString("Ann"), "id": ir.IRInt(1)}}, rs.Records)

	_, err = conn.QueryRaw(ctx, query.Raw{Kind: query.RawQuery, SQL: `SELECT * FROM missing`})
	se, ok := connector.AsStorageError(err)
	require.True(t, ok)
	assert.Equal(t, connector.ErrRawQuery, se.Kind)
}
