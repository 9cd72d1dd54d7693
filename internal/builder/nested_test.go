package builder

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/interpreter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/schema"
)

// nestedCase is one nested operation on one relation field, under a
// create or an update of the enclosing model.
type nestedCase struct {
	name   string
	rf     *schema.RelationField
	op     string
	create bool
	sel    *request.Selection
}

func sampleCreate(model string) ir.IRObject {
	switch model {
	case "User":
		return ir.IRObject{"email": ir.IRString("n@x")}
	case "Profile":
		return ir.IRObject{"bio": ir.IRString("b")}
	case "Post":
		return ir.IRObject{"title": ir.IRString("t")}
	case "Tag":
		return ir.IRObject{"name": ir.IRString("go")}
	}
	panic("no sample data for " + model)
}

func sampleUpdate(model string) ir.IRObject {
	switch model {
	case "User":
		return ir.IRObject{"name": ir.IRString("n")}
	case "Profile":
		return ir.IRObject{"bio": ir.IRString("c")}
	case "Post":
		return ir.IRObject{"title": ir.IRString("u")}
	case "Tag":
		return ir.IRObject{"name": ir.IRString("rust")}
	}
	panic("no sample data for " + model)
}

// nestedPayload renders the argument of op on rf in its canonical form.
func nestedPayload(op string, rf *schema.RelationField) ir.IRValue {
	related := rf.RelatedModel().Name
	where := func() ir.IRObject { return ir.IRObject{"id": ir.IRInt(1)} }
	one := func(v ir.IRValue) ir.IRValue {
		if rf.List {
			return ir.IRArray{v}
		}
		return v
	}

	switch op {
	case "create":
		return one(sampleCreate(related))
	case "createMany":
		return ir.IRObject{"data": ir.IRArray{sampleCreate(related)}}
	case "connect":
		return one(where())
	case "connectOrCreate":
		return one(ir.IRObject{"where": where(), "create": sampleCreate(related)})
	case "disconnect", "delete":
		if rf.List {
			return ir.IRArray{where()}
		}
		return ir.IRBool(true)
	case "set", "deleteMany":
		return ir.IRArray{where()}
	case "update":
		if rf.List {
			return ir.IRArray{ir.IRObject{"where": where(), "data": sampleUpdate(related)}}
		}
		return sampleUpdate(related)
	case "updateMany":
		return ir.IRObject{"where": where(), "data": sampleUpdate(related)}
	case "upsert":
		v := ir.IRObject{"create": sampleCreate(related), "update": sampleUpdate(related)}
		if rf.List {
			v["where"] = where()
			return ir.IRArray{v}
		}
		return v
	}
	panic("unknown nested operation " + op)
}

// nestedCases enumerates every nested operation on every relation field
// of s, once under a create and once under an update of the enclosing
// model.
func nestedCases(s *schema.Schema) []nestedCase {
	var out []nestedCase
	for _, m := range s.Models {
		for _, rf := range m.Relations {
			for _, op := range nestedOrder {
				for _, create := range []bool{true, false} {
					relation := ir.IRObject{rf.Name: ir.IRObject{op: nestedPayload(op, rf)}}
					var sel *request.Selection
					parent := "update"
					if create {
						parent = "create"
						data := sampleCreate(m.Name)
						data[rf.Name] = relation[rf.Name]
						sel = request.Field("createOne" + m.Name).WithArgs(ir.IRObject{"data": data})
					} else {
						sel = request.Field("updateOne" + m.Name).WithArgs(ir.IRObject{
							"where": ir.IRObject{"id": ir.IRInt(1)},
							"data":  relation,
						})
					}
					out = append(out, nestedCase{
						name:   fmt.Sprintf("%s/%s.%s(%s)/%s", parent, m.Name, rf.Name, rf.Kind(), op),
						rf:     rf,
						op:     op,
						create: create,
						sel:    sel,
					})
				}
			}
		}
	}
	return out
}

// alwaysBuilds reports whether op must be accepted on any relation under
// the given parent.
func alwaysBuilds(op string, create bool) bool {
	if create {
		return slices.Contains([]string{"create", "connect", "connectOrCreate"}, op)
	}
	return slices.Contains([]string{"create", "connect", "connectOrCreate", "update", "upsert"}, op)
}

func TestNestedCasesCoverRelationShapes(t *testing.T) {
	qs := newQuerySchema(t)
	type shape struct {
		kind     schema.RelationKind
		enclosed bool
	}
	seen := map[shape]bool{}
	for _, c := range nestedCases(qs.Schema()) {
		seen[shape{c.rf.Kind(), c.rf.IsInlinedOnEnclosingModel()}] = true
	}
	assert.Equal(t, map[shape]bool{
		{schema.OneToOne, true}:    true,
		{schema.OneToOne, false}:   true,
		{schema.OneToMany, true}:   true,
		{schema.OneToMany, false}:  true,
		{schema.ManyToMany, false}: true,
	}, seen)
}

// Every nested write graph either fails validation with a builder error or
// lowers into an expression whose bindings are all in scope.
func TestNestedWriteGraphsLower(t *testing.T) {
	qs := newQuerySchema(t)
	built := 0
	for _, c := range nestedCases(qs.Schema()) {
		t.Run(c.name, func(t *testing.T) {
			plan, err := qs.Build(c.sel)
			if err != nil {
				_, isBuildErr := AsError(err)
				require.True(t, isBuildErr, "not a validation error: %v", err)
				assert.False(t, alwaysBuilds(c.op, c.create), "rejected: %v", err)
				return
			}
			built++
			expr, err := interpreter.Lower(plan.Graph)
			require.NoError(t, err, "%s", plan.Graph)
			assert.NoError(t, interpreter.CheckBindings(expr), "%s", interpreter.Format(expr))
		})
	}
	assert.Positive(t, built)
}

// Every foreign key written from another node's result is written by a
// node of the model holding it, after the node producing the value.
func TestNestedWriteGraphsOrderKeyHolders(t *testing.T) {
	qs := newQuerySchema(t)
	for _, c := range nestedCases(qs.Schema()) {
		t.Run(c.name, func(t *testing.T) {
			plan, err := qs.Build(c.sel)
			if err != nil {
				return
			}
			g := plan.Graph
			order, err := g.TopoOrder()
			require.NoError(t, err)
			pos := make(map[graph.NodeID]int, len(order))
			for i, id := range order {
				pos[id] = i
			}

			for _, id := range order {
				for _, e := range g.IncomingEdges(id) {
					if e.Dep.Sink.Kind != graph.SinkWriteArgs {
						continue
					}
					assert.Less(t, pos[e.Source], pos[e.Target], "edge %d -> %d in\n%s", e.Source, e.Target, g)
					w, ok := g.Node(e.Target).(*graph.Write)
					require.True(t, ok, "write args land on a write node")
					holder := w.Query.TargetModel()
					for _, f := range e.Dep.Sink.Fields {
						assert.NotNil(t, holder.Scalar(f), "%s does not hold %s", holder.Name, f)
					}
				}
			}

			// A create whose key lives on the enclosing model waits for
			// the related record.
			if c.create && c.rf.IsInlinedOnEnclosingModel() && (c.op == "create" || c.op == "connect") {
				parent := only(t, g, "Create "+c.rf.Model().Name)
				root, err := g.Root()
				require.NoError(t, err)
				assert.NotEqual(t, parent, root, "%s", g)
			}
		})
	}
}
