package harness

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/ir"
)

func TestScenarios(t *testing.T) {
	files, err := Discover("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			sc, err := LoadScenario(file)
			require.NoError(t, err)
			result, err := Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestNestedCreateGolden(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/nested_create.yaml")
	require.NoError(t, err)
	result, err := RunWithGolden(t, sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

const inlineSchema = `
model: Note: fields: {
	id:   {type: "Int", id: true, default: "autoincrement"}
	text: {type: "String"}
}
`

func inlineScenario(t *testing.T, body string) *Scenario {
	t.Helper()
	src := "name: inline\ndescription: inline\nschema_source: |\n" + indent(inlineSchema) + body
	sc, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return sc
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func TestFailedExpectationsAreReported(t *testing.T) {
	sc := inlineScenario(t, `
steps:
  - request:
      operations:
        - op: createOneNote
          args: {data: {text: hi}}
    expect:
      error: P2002
  - request:
      operations:
        - op: findManyNote
    expect:
      result: [{text: bye}]
  - request:
      operations:
        - op: updateOneNote
          args: {where: {id: 5}, data: {text: x}}
assertions:
  - type: trace_count
    statement: Create Note
    count: 2
`)
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected error P2002, got success")
	assert.Contains(t, result.Errors[1], `mismatch at $[0].text: got "hi", want "bye"`)
	assert.Contains(t, result.Errors[2], "unexpected error: P2025")
	assert.Contains(t, result.Errors[3], "trace_count")

	outcomes := result.Outcomes()
	require.Len(t, outcomes, 3)
	assert.Equal(t, EventResponse, outcomes[0].Type)
	assert.Equal(t, EventError, outcomes[2].Type)
	assert.Equal(t, "P2025", outcomes[2].Text)
}

func TestSetupFailureAbortsRun(t *testing.T) {
	sc := inlineScenario(t, `
setup:
  - operations:
      - op: createOneNote
        args: {data: {}}
steps:
  - request:
      operations: [{op: findManyNote}]
`)
	_, err := Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup[0]")
}

func TestSetupStatementsAreNotTraced(t *testing.T) {
	sc := inlineScenario(t, `
setup:
  - operations:
      - op: createOneNote
        args: {data: {text: seeded}}
steps:
  - request:
      operations: [{op: findManyNote, select: [text]}]
    expect:
      result: [{text: seeded}]
assertions:
  - type: trace_count
    statement: Create
    count: 0
`)
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	stmts := result.Statements()
	require.Len(t, stmts, 1)
	assert.True(t, strings.HasPrefix(stmts[0], "ReadMany Note"), stmts[0])
}

func TestParseScenarioErrors(t *testing.T) {
	step := "steps:\n  - request: {operations: [{op: findManyNote}]}\n"
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing name", "description: d\nschema: x.cue\n" + step, "name is required"},
		{"missing description", "name: n\nschema: x.cue\n" + step, "description is required"},
		{"no schema", "name: n\ndescription: d\n" + step, "exactly one of schema"},
		{"no steps", "name: n\ndescription: d\nschema: x.cue\n", "steps list is required"},
		{"unknown key", "name: n\ndescription: d\nschema: x.cue\nflow: []\n" + step, "field flow not found"},
		{"bad request", "name: n\ndescription: d\nschema: x.cue\nsteps:\n  - request: {operations: []}\n", "steps[0]"},
		{"error and result", "name: n\ndescription: d\nschema: x.cue\nsteps:\n  - request: {operations: [{op: a}]}\n    expect: {error: P2002, result: 1}\n", "exclusive"},
		{"unknown assertion", "name: n\ndescription: d\nschema: x.cue\n" + step + "assertions:\n  - type: bogus\n", `unknown assertion type "bogus"`},
		{"trace_count without statement", "name: n\ndescription: d\nschema: x.cue\n" + step + "assertions:\n  - type: trace_count\n", "statement is required"},
		{"final_state without model", "name: n\ndescription: d\nschema: x.cue\n" + step + "assertions:\n  - type: final_state\n", "model is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioResolvesSchemaPath(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/nested_create.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "schemas", "blog.cue"), sc.Schema)
	assert.Len(t, sc.Steps, 2)
	assert.Len(t, sc.Assertions, 3)
}

func TestMatchSubset(t *testing.T) {
	got := ir.IRObject{
		"id":   ir.IRInt(1),
		"tags": ir.IRArray{ir.IRObject{"name": ir.IRString("go"), "id": ir.IRInt(3)}},
		"bio":  ir.IRNull{},
	}
	tests := []struct {
		name string
		want ir.IRValue
		path string
	}{
		{"subset", ir.IRObject{"id": ir.IRInt(1)}, ""},
		{"int equals float", ir.IRObject{"id": ir.IRFloat(1)}, ""},
		{"nested subset", ir.IRObject{"tags": ir.IRArray{ir.IRObject{"name": ir.IRString("go")}}}, ""},
		{"explicit null", ir.IRObject{"bio": ir.IRNull{}, "missing": ir.IRNull{}}, ""},
		{"wrong scalar", ir.IRObject{"id": ir.IRInt(2)}, "$.id"},
		{"missing key", ir.IRObject{"email": ir.IRString("a")}, "$.email"},
		{"list length", ir.IRObject{"tags": ir.IRArray{}}, "$.tags"},
		{"nested mismatch", ir.IRObject{"tags": ir.IRArray{ir.IRObject{"name": ir.IRString("rust")}}}, "$.tags[0].name"},
		{"kind mismatch", ir.IRArray{}, "$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matchSubset(got, tt.want, "$")
			if tt.path == "" {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.path, m.Path)
		})
	}
}

func TestTraceAssertions(t *testing.T) {
	stmts := []string{"BEGIN", "Create User {}", "Create Post {}", "COMMIT"}

	assert.NoError(t, assertTraceContains(stmts, Assertion{Statement: "Create Post"}))
	assert.Error(t, assertTraceContains(stmts, Assertion{Statement: "Delete"}))

	assert.NoError(t, assertTraceOrder(stmts, Assertion{Statements: []string{"BEGIN", "Create Post", "COMMIT"}}))
	err := assertTraceOrder(stmts, Assertion{Statements: []string{"Create Post", "Create User"}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceOrder, ae.Type)
	assert.Contains(t, ae.Error(), "[2] Create User {}")

	assert.NoError(t, assertTraceCount(stmts, Assertion{Statement: "Create", Count: 2}))
	assert.Error(t, assertTraceCount(stmts, Assertion{Statement: "Create", Count: 1}))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", filepath.Join("sub", "c.yaml")} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	files, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
	}, files)

	single, err := Discover(files[0])
	require.NoError(t, err)
	assert.Equal(t, files[:1], single)

	_, err = Discover(t.TempDir())
	var nf *ScenarioNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestMarshalSnapshotSkipsStatements(t *testing.T) {
	r := NewResult()
	r.Trace = append(r.Trace,
		TraceEvent{Step: 0, Type: EventStatement, Text: "BEGIN"},
		TraceEvent{Step: 0, Type: EventError, Text: "P2002"})
	data, err := MarshalSnapshot("s", r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"scenario": "s", "outcomes": [{"step": 0, "type": "error", "text": "P2002"}]}`, string(data))
}
