package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainNestedCreate(t *testing.T) {
	f := newFixture(t)
	sel := operations(t, `
  - op: createOneUser
    args:
      data:
        email: a@x
        posts: {create: [{title: one}]}
    select: [id]
`).Operations[0]

	x, err := Explain(f.engine.QuerySchema(), sel)
	require.NoError(t, err)
	assert.Equal(t, "createOneUser", x.Operation)
	assert.True(t, x.Transactional)
	assert.Len(t, x.Fingerprint, 64)
	assert.Contains(t, x.Graph, "Create User")
	assert.Contains(t, x.Graph, "Create Post")
	assert.NotEmpty(t, x.Program)
	assert.Empty(t, x.Raw)
	assert.Contains(t, x.String(), "program:\n")

	assert.Empty(t, f.rec.Log(), "explain must not touch storage")
}

func TestExplainRaw(t *testing.T) {
	f := newFixture(t)
	sel := operations(t, `
  - op: queryRaw
    args: {query: "SELECT 1"}
`).Operations[0]

	x, err := Explain(f.engine.QuerySchema(), sel)
	require.NoError(t, err)
	assert.False(t, x.Transactional)
	assert.Contains(t, x.Raw, "SELECT 1")
	assert.Empty(t, x.Graph)
}

func TestExplainReportsBuildErrors(t *testing.T) {
	f := newFixture(t)
	sel := operations(t, `
  - op: findManyUser
    args: {where: {nope: 1}}
`).Operations[0]

	_, err := Explain(f.engine.QuerySchema(), sel)
	requireCode(t, err, CodeInvalidRequest)
}
