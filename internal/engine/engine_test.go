package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/connector/sqlite"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
	"github.com/roach88/qgraph/internal/schema"
	"github.com/roach88/qgraph/internal/testutil"
)

const blogSchema = `
model: User: {
	fields: {
		id:    {type: "Int", id: true, default: "autoincrement"}
		email: {type: "String", unique: true}
		name:  {type: "String", optional: true}
	}
	relations: {
		posts:   {model: "Post", list: true}
		profile: {model: "Profile", optional: true}
	}
}
model: Profile: {
	fields: {
		id:     {type: "Int", id: true, default: "autoincrement"}
		bio:    {type: "String"}
		userId: {type: "Int", unique: true}
	}
	relations: user: {model: "User", fields: ["userId"], references: ["id"]}
}
model: Post: {
	fields: {
		id:       {type: "Int", id: true, default: "autoincrement"}
		title:    {type: "String"}
		authorId: {type: "Int"}
	}
	relations: author: {model: "User", fields: ["authorId"], references: ["id"]}
}
`

type fixture struct {
	engine *Engine
	rec    *testutil.Recorder
	logs   *bytes.Buffer
	spans  *tracetest.SpanRecorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := schema.CompileString(blogSchema)
	require.NoError(t, err)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Bootstrap(ctx, s))

	f := &fixture{
		rec:   testutil.NewRecorder(db),
		logs:  &bytes.Buffer{},
		spans: tracetest.NewSpanRecorder(),
	}
	qs := builder.NewQuerySchema(s,
		builder.WithClock(testutil.NewClock().Now),
		builder.WithUUIDs(testutil.NewIDs().Next))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans))
	opts = append([]Option{
		WithLogger(slog.New(slog.NewJSONHandler(f.logs, nil))),
		WithTracer(tp.Tracer("test")),
	}, opts...)
	f.engine = New(f.rec, qs, opts...)
	return f
}

func operations(t *testing.T, src string) *request.Document {
	t.Helper()
	doc, err := request.ParseDocument([]byte("operations:\n" + src))
	require.NoError(t, err)
	return doc
}

func (f *fixture) exec(t *testing.T, src string) (response.Value, error) {
	t.Helper()
	doc := operations(t, src)
	require.Len(t, doc.Operations, 1)
	return f.engine.Execute(context.Background(), doc.Operations[0])
}

func (f *fixture) mustExec(t *testing.T, src string) string {
	t.Helper()
	v, err := f.exec(t, src)
	require.NoError(t, err)
	return jsonOf(t, v)
}

func jsonOf(t *testing.T, v response.Value) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func requireCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	require.Error(t, err)
	ee, ok := AsError(err)
	require.True(t, ok, "not an engine error: %v", err)
	require.Equal(t, code, ee.Code, ee.Message)
	return ee
}

const createAlice = `
  - op: createOneUser
    args: {data: {email: alice@x, name: Alice}}
    select: [id, email]
`

func TestCreateWithNestedWrites(t *testing.T) {
	f := newFixture(t)
	got := f.mustExec(t, `
  - op: createOneUser
    args:
      data:
        email: alice@x
        posts: {create: [{title: first}, {title: second}]}
        profile: {create: {bio: hello}}
    select: [email, {posts: [title]}, {profile: [bio]}]
`)
	assert.JSONEq(t, `{
		"email": "alice@x",
		"posts": [{"title": "first"}, {"title": "second"}],
		"profile": {"bio": "hello"}
	}`, got)

	log := f.rec.Log()
	require.NotEmpty(t, log)
	assert.Equal(t, "BEGIN", log[0])
	assert.Equal(t, "COMMIT", log[len(log)-1])
}

func TestSingleNodeRunsWithoutTransaction(t *testing.T) {
	f := newFixture(t)
	assert.JSONEq(t, `{"id": 1, "email": "alice@x"}`, f.mustExec(t, createAlice))
	assert.Contains(t, f.rec.Log(), "BEGIN")

	f.rec.Reset()
	assert.JSONEq(t, `[{"id": 1, "email": "alice@x", "name": "Alice"}]`, f.mustExec(t, `
  - op: findManyUser
`))
	assert.NotContains(t, f.rec.Log(), "BEGIN")
}

func TestForceTransactions(t *testing.T) {
	f := newFixture(t, WithForceTransactions(true))
	f.mustExec(t, `
  - op: findManyUser
`)
	assert.Equal(t, "BEGIN", f.rec.Log()[0])
}

func TestUpsertTakesBothBranches(t *testing.T) {
	f := newFixture(t)
	upsert := `
  - op: upsertOneUser
    args:
      where: {email: bob@x}
      create: {email: bob@x, name: created}
      update: {name: updated}
    select: [email, name]
`
	assert.JSONEq(t, `{"email": "bob@x", "name": "created"}`, f.mustExec(t, upsert))
	assert.JSONEq(t, `{"email": "bob@x", "name": "updated"}`, f.mustExec(t, upsert))

	got := f.mustExec(t, `
  - op: aggregateUser
    select: [{_count: [_all]}]
`)
	assert.JSONEq(t, `{"_count": {"_all": 1}}`, got)
}

func TestNestedConnectAndRead(t *testing.T) {
	f := newFixture(t)
	f.mustExec(t, createAlice)
	got := f.mustExec(t, `
  - op: createOnePost
    args:
      data: {title: hello, author: {connect: {email: alice@x}}}
    select: [title, {author: [email]}]
`)
	assert.JSONEq(t, `{"title": "hello", "author": {"email": "alice@x"}}`, got)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		op   string
		code Code
	}{
		{"duplicate email", createAlice, CodeUniqueConstraint},
		{"update missing record", `
  - op: updateOneUser
    args: {where: {email: nobody@x}, data: {name: x}}
`, CodeRecordNotFound},
		{"connect missing author", `
  - op: createOnePost
    args: {data: {title: t, author: {connect: {email: nobody@x}}}}
`, CodeRelatedNotFound},
		{"nested update of unrelated post", `
  - op: updateOneUser
    args:
      where: {email: alice@x}
      data: {posts: {update: {where: {id: 999}, data: {title: x}}}}
`, CodeNotConnected},
		{"replace required profile", `
  - op: updateOneUser
    args:
      where: {email: alice@x}
      data: {profile: {create: {bio: second}}}
`, CodeRelationViolation},
		{"disconnect required relation", `
  - op: updateOnePost
    args: {where: {id: 1}, data: {author: {disconnect: true}}}
`, CodeRelationViolation},
		{"unknown operation", `
  - op: findUniqueComment
`, CodeInvalidRequest},
		{"bad raw query", `
  - op: queryRaw
    args: {query: "SELECT * FROM nope"}
`, CodeRawQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mustExec(t, `
  - op: createOneUser
    args:
      data:
        email: alice@x
        profile: {create: {bio: first}}
        posts: {create: {title: p}}
`)
			_, err := f.exec(t, tt.op)
			requireCode(t, err, tt.code)
		})
	}
}

func TestFailedRequestRollsBack(t *testing.T) {
	f := newFixture(t)
	f.mustExec(t, createAlice)

	// The user is created, then the nested connect fails.
	_, err := f.exec(t, `
  - op: createOneUser
    args:
      data:
        email: bob@x
        posts: {connect: {id: 42}}
`)
	require.Error(t, err)
	assert.Equal(t, "ROLLBACK", f.rec.Log()[len(f.rec.Log())-1])

	got := f.mustExec(t, `
  - op: findManyUser
    select: [email]
`)
	assert.JSONEq(t, `[{"email": "alice@x"}]`, got)
}

func TestValidationFailureTouchesNoStorage(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec(t, `
  - op: createOneUser
    args: {data: {email: a@x, nickname: z}}
`)
	ee := requireCode(t, err, CodeInvalidRequest)
	assert.Equal(t, "User", ee.Meta["model"])
	assert.Empty(t, f.rec.Log())
}

func TestRawOperations(t *testing.T) {
	f := newFixture(t)
	f.mustExec(t, createAlice)

	got := f.mustExec(t, `
  - op: executeRaw
    args: {query: 'UPDATE "User" SET name = ? WHERE email = ?', parameters: [Al, alice@x]}
`)
	assert.Equal(t, "1", got)

	got = f.mustExec(t, `
  - op: queryRaw
    args: {query: 'SELECT email, name FROM "User"'}
`)
	assert.JSONEq(t, `[{"email": "alice@x", "name": "Al"}]`, got)
}

const batch = `
  - op: createOneUser
    as: bob
    args: {data: {email: bob@x}}
    select: [email]
  - op: createOneUser
    args: {data: {email: alice@x}}
`

func TestTransactionalBatchAbortsOnFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.mustExec(t, createAlice)

	out, err := f.engine.ExecuteMany(context.Background(), operations(t, batch).Operations, true)
	assert.Nil(t, out)
	ee := requireCode(t, err, CodeUniqueConstraint)
	assert.Equal(t, 1, ee.BatchIndex)

	got := f.mustExec(t, `
  - op: findUniqueUser
    args: {where: {email: bob@x}}
`)
	assert.Equal(t, "null", got)
}

func TestTransactionalBatchValidatesBeforeRunning(t *testing.T) {
	f := newFixture(t)
	ops := operations(t, createAlice+`
  - op: deleteOneUser
`).Operations
	_, err := f.engine.ExecuteMany(context.Background(), ops, true)
	ee := requireCode(t, err, CodeInvalidRequest)
	assert.Equal(t, 1, ee.BatchIndex)
	assert.Empty(t, f.rec.Log())
}

func TestIsolatedBatchReportsPerItem(t *testing.T) {
	f := newFixture(t, WithMaxConcurrency(2))
	f.mustExec(t, createAlice)

	out, err := f.engine.ExecuteMany(context.Background(), operations(t, batch).Operations, false)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "bob", out[0].Key)
	require.Nil(t, out[0].Err)
	assert.JSONEq(t, `{"email": "bob@x"}`, jsonOf(t, out[0].Value))

	assert.Equal(t, "createOneUser", out[1].Key)
	require.NotNil(t, out[1].Err)
	assert.Equal(t, CodeUniqueConstraint, out[1].Err.Code)
	assert.Nil(t, out[1].Value)
}

func TestRequestsAreLoggedAndTraced(t *testing.T) {
	f := newFixture(t, WithRequestIDs(NewFixedGenerator("req-1", "req-2")))
	f.mustExec(t, createAlice)
	_, err := f.exec(t, createAlice)
	require.Error(t, err)

	var lines []map[string]any
	dec := json.NewDecoder(f.logs)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "request completed", lines[0]["msg"])
	assert.Equal(t, "req-2", lines[1]["request_id"])
	assert.Equal(t, string(CodeUniqueConstraint), lines[1]["code"])
	assert.NotEmpty(t, lines[0]["shape"])
	assert.Equal(t, lines[0]["shape"], lines[1]["shape"])

	var requests []sdktrace.ReadOnlySpan
	for _, s := range f.spans.Ended() {
		if s.Name() == "qgraph.request" {
			requests = append(requests, s)
		}
	}
	require.Len(t, requests, 2)
	assert.Equal(t, codes.Unset, requests[0].Status().Code)
	assert.Equal(t, codes.Error, requests[1].Status().Code)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7GeneratorIsSortable(t *testing.T) {
	var g UUIDv7Generator
	ids := make([]string, 5)
	for i := range ids {
		ids[i] = g.Generate()
	}
	assert.True(t, slices.IsSorted(ids))
}

func TestBuildLogsCarryRequestID(t *testing.T) {
	logs := &bytes.Buffer{}
	f := newFixture(t,
		WithLogger(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithRequestIDs(NewFixedGenerator("req-1")))
	f.mustExec(t, createAlice)

	var built map[string]any
	dec := json.NewDecoder(logs)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		if m["msg"] == "graph built" {
			built = m
		}
	}
	require.NotNil(t, built, "no build log recorded")
	assert.Equal(t, "req-1", built["request_id"])
	assert.Equal(t, "createOneUser", built["operation"])
}
