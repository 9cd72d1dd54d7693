package builder

import (
	"slices"
	"time"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// nestedOrder is the order nested operations of one relation field are
// attached in.
var nestedOrder = []string{
	"create", "connectOrCreate", "upsert", "createMany", "set", "disconnect",
	"delete", "connect", "update", "updateMany", "deleteMany",
}

var createNested = []string{"create", "connectOrCreate", "connect", "createMany"}

// nestedWrite is one nested operation on a relation field of a write.
type nestedWrite struct {
	rf    *schema.RelationField
	op    string
	value ir.IRValue
}

// writeSet is the parsed data argument of a create or update.
type writeSet struct {
	args   *query.WriteArgs
	nested []nestedWrite
}

var numericOps = map[string]query.WriteOp{
	"increment": query.OpIncrement,
	"decrement": query.OpDecrement,
	"multiply":  query.OpMultiply,
	"divide":    query.OpDivide,
}

// parseData parses the data of a create (create set) or update of m.
// Scalars are assigned in field declaration order, relation writes are
// returned per relation in declaration order. back is the relation that
// leads to the enclosing write, which nested data may not touch.
func (b *builder) parseData(m *schema.Model, data ir.IRValue, create bool, back *schema.RelationField) (*writeSet, error) {
	obj, ok := data.(ir.IRObject)
	if !ok {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "data must be an object, got %s", ir.String(data))
	}
	for _, k := range obj.SortedKeys() {
		if m.Scalar(k) == nil && m.Relation(k) == nil {
			return nil, errorf(ErrUnknownField, m.Name, k, "unknown field in data")
		}
	}

	ws := &writeSet{args: query.NewWriteArgs()}
	for _, f := range m.Fields {
		v, ok := obj[f.Name]
		if !ok {
			if create {
				b.applyDefault(ws.args, f)
			}
			continue
		}
		if create && f.IsAutoincrement() {
			return nil, errorf(ErrInvalidArgument, m.Name, f.Name, "autoincrement field cannot be set")
		}
		expr, err := writeExpr(f, v, create)
		if err != nil {
			return nil, err
		}
		ws.args.Insert(f.Name, expr)
	}

	for _, rf := range m.Relations {
		v, ok := obj[rf.Name]
		if !ok {
			continue
		}
		if back != nil && rf == back.RelatedField() {
			return nil, errorf(ErrInvalidNestedOperation, m.Name, rf.Name, "nested write cannot target the enclosing relation")
		}
		ops, isObj := v.(ir.IRObject)
		if !isObj || len(ops) == 0 {
			return nil, errorf(ErrInvalidArgument, m.Name, rf.Name, "relation write must be a non-empty object")
		}
		for _, fk := range rf.Fields {
			if ws.args.Has(fk) {
				return nil, errorf(ErrInvalidArgument, m.Name, rf.Name, "cannot write %s and the relation %s together", fk, rf.Name)
			}
		}
		for _, k := range ops.SortedKeys() {
			if !slices.Contains(nestedOrder, k) {
				return nil, errorf(ErrInvalidNestedOperation, m.Name, rf.Name, "unknown nested operation %q", k)
			}
			if create && !slices.Contains(createNested, k) {
				return nil, errorf(ErrInvalidNestedOperation, m.Name, rf.Name, "%s is not allowed inside a create", k)
			}
		}
		for _, op := range nestedOrder {
			if val, ok := ops[op]; ok {
				ws.nested = append(ws.nested, nestedWrite{rf: rf, op: op, value: val})
			}
		}
	}
	return ws, nil
}

// parsePlainData parses data that may not carry relation writes, as in
// createMany and updateMany.
func (b *builder) parsePlainData(m *schema.Model, data ir.IRValue, create bool) (*query.WriteArgs, error) {
	ws, err := b.parseData(m, data, create, nil)
	if err != nil {
		return nil, err
	}
	if len(ws.nested) > 0 {
		return nil, errorf(ErrInvalidNestedOperation, m.Name, ws.nested[0].rf.Name, "relation writes are not allowed in %s", b.op.Name)
	}
	return ws.args, nil
}

func writeExpr(f *schema.ScalarField, v ir.IRValue, create bool) (query.WriteExpr, error) {
	op := query.OpSet
	if obj, ok := v.(ir.IRObject); ok && f.Type != schema.TypeJSON {
		if len(obj) != 1 {
			return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "field operation must have exactly one key")
		}
		for k, inner := range obj {
			switch {
			case k == string(query.OpSet):
			case numericOps[k] != "":
				if create {
					return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "%s is not allowed on create", k)
				}
				if f.Type != schema.TypeInt && f.Type != schema.TypeFloat {
					return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "%s requires a numeric field", k)
				}
				if ir.IsNull(inner) {
					return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "%s cannot be null", k)
				}
				op = numericOps[k]
			default:
				return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "unknown field operation %q", k)
			}
			v = inner
		}
	}
	if ir.IsNull(v) && f.Required {
		return query.WriteExpr{}, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "required field cannot be null")
	}
	val, err := coerce(f, v)
	if err != nil {
		return query.WriteExpr{}, err
	}
	return query.WriteExpr{Op: op, Value: val}, nil
}

// applyDefault fills generated defaults. Literal defaults and
// autoincrement are left to the database.
func (b *builder) applyDefault(args *query.WriteArgs, f *schema.ScalarField) {
	if f.Default == nil {
		return
	}
	switch f.Default.Kind {
	case schema.DefaultUUID:
		args.Set(f.Name, ir.IRString(b.qs.newUUID()))
	case schema.DefaultNow:
		args.Set(f.Name, ir.IRString(b.qs.now().UTC().Format(time.RFC3339Nano)))
	}
}
