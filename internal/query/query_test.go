package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

func testModel(t *testing.T) *schema.Model {
	t.Helper()
	s, err := schema.CompileString(`
		model: Item: fields: {
			id:    {type: "Int", id: true}
			name:  {type: "String"}
			stock: {type: "Int"}
		}`)
	require.NoError(t, err)
	m, ok := s.Model("Item")
	require.True(t, ok)
	return m
}

func TestWriteArgsKeepsInsertionOrder(t *testing.T) {
	a := NewWriteArgs()
	a.Set("name", ir.IRString("a"))
	a.Insert("stock", WriteExpr{Op: OpIncrement, Value: ir.IRInt(2)})
	a.Set("name", ir.IRString("b"))

	assert.Equal(t, []string{"name", "stock"}, a.Fields())
	got, ok := a.Get("name")
	require.True(t, ok)
	assert.Equal(t, ir.IRString("b"), got.Value)
	assert.Equal(t, `{name: "b", stock: increment 2}`, a.String())

	a.Remove("name")
	assert.Equal(t, []string{"stock"}, a.Fields())
	assert.False(t, a.Has("name"))
}

func TestWriteArgsCloneIsIndependent(t *testing.T) {
	a := NewWriteArgs()
	a.Set("name", ir.IRString("a"))
	b := a.Clone()
	b.Set("stock", ir.IRInt(1))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestWriteArgsInject(t *testing.T) {
	a := NewWriteArgs()
	sel := ir.SelectionResult{{Field: "id", Value: ir.IRInt(7)}}

	require.NoError(t, a.Inject([]string{"ownerId"}, sel))
	got, _ := a.Get("ownerId")
	assert.Equal(t, ir.IRInt(7), got.Value)

	assert.Error(t, a.Inject([]string{"a", "b"}, sel))
}

func TestPlainValuesRejectsOperations(t *testing.T) {
	a := NewWriteArgs()
	a.Set("name", ir.IRString("a"))
	rec, err := a.PlainValues()
	require.NoError(t, err)
	assert.Equal(t, ir.Record{"name": ir.IRString("a")}, rec)

	a.Insert("stock", WriteExpr{Op: OpMultiply, Value: ir.IRInt(2)})
	_, err = a.PlainValues()
	assert.ErrorContains(t, err, "multiply is not allowed on create")
}

func TestOrderingAppendsPrimaryKey(t *testing.T) {
	m := testModel(t)

	args := QueryArguments{OrderBy: []OrderBy{{Field: "name", Desc: true}}}
	assert.Equal(t, []OrderBy{{Field: "name", Desc: true}, {Field: "id"}}, args.Ordering(m))

	args = QueryArguments{OrderBy: []OrderBy{{Field: "id", Desc: true}}}
	assert.Equal(t, []string{"id"}, args.OrderingFields(m))
}

func TestPagination(t *testing.T) {
	neg, pos := -2, 3

	assert.False(t, QueryArguments{}.Paginated())
	assert.Equal(t, -1, QueryArguments{}.Limit())

	a := QueryArguments{Take: &neg}
	assert.True(t, a.Reversed())
	assert.Equal(t, 2, a.Limit())

	a = QueryArguments{Take: &pos, Skip: 1}
	assert.False(t, a.Reversed())
	assert.Equal(t, 3, a.Limit())
	assert.True(t, a.Paginated())
}

func TestMultiStatement(t *testing.T) {
	m := testModel(t)

	assert.False(t, MultiStatement(&CreateRecord{Model: m, Args: NewWriteArgs()}))
	assert.False(t, MultiStatement(&CreateManyRecords{Model: m, Args: []*WriteArgs{NewWriteArgs()}}))
	assert.True(t, MultiStatement(&CreateManyRecords{Model: m, Args: []*WriteArgs{NewWriteArgs(), NewWriteArgs()}}))
	assert.False(t, MultiStatement(&UpdateManyRecords{Model: m}))
}

func TestWithColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "stock"}, WithColumns([]string{"id", "name"}, "name", "stock", "id"))
}
