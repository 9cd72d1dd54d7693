package response

import (
	"fmt"

	"github.com/roach88/qgraph/internal/interpreter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
)

// Error reports a result that does not fit the requested shape.
type Error struct {
	Key     string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("serialize %s: %s", e.Key, e.Message)
}

// Serialize renders the root result of an operation. It only reads res;
// serializing the same result twice yields equal trees.
func Serialize(res interpreter.Result, shape *Shape) (Value, error) {
	switch shape.Kind {
	case One:
		recs, err := records(res, shape)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return Null{}, nil
		}
		return object(recs[0], shape.Fields, shape.Key)

	case Many:
		recs, err := records(res, shape)
		if err != nil {
			return nil, err
		}
		out := make(List, 0, len(recs))
		for _, it := range recs {
			m, err := object(it, shape.Fields, shape.Key)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil

	case Count:
		w, ok := res.(*interpreter.Written)
		if !ok {
			return nil, &Error{Key: shape.Key, Message: fmt.Sprintf("count of %T", res)}
		}
		m := NewMap()
		var n int64
		if w.Result != nil {
			n = w.Result.Count
		}
		m.Set("count", Scalar{Value: ir.IRInt(n)})
		return m, nil

	case Aggregate:
		a, ok := res.(*interpreter.Aggregate)
		if !ok {
			return nil, &Error{Key: shape.Key, Message: fmt.Sprintf("aggregate of %T", res)}
		}
		return object(&interpreter.Item{Record: a.Values}, shape.Fields, shape.Key)

	default:
		return nil, &Error{Key: shape.Key, Message: fmt.Sprintf("%s shape on a graph result", shape.Kind)}
	}
}

// records extracts the items of a record-producing result.
func records(res interpreter.Result, shape *Shape) ([]*interpreter.Item, error) {
	switch r := res.(type) {
	case nil, interpreter.Empty:
		return nil, nil
	case *interpreter.Records:
		return r.Items, nil
	case *interpreter.Written:
		if r.Result == nil {
			return nil, nil
		}
		items := make([]*interpreter.Item, len(r.Result.Records))
		for i, rec := range r.Result.Records {
			items[i] = &interpreter.Item{Record: rec}
		}
		return items, nil
	default:
		return nil, &Error{Key: shape.Key, Message: fmt.Sprintf("%s shape over %T", shape.Kind, res)}
	}
}

func object(it *interpreter.Item, fields []*Field, path string) (*Map, error) {
	m := NewMap()
	for _, f := range fields {
		v, err := field(it, f, path+"."+f.Key)
		if err != nil {
			return nil, err
		}
		m.Set(f.Key, v)
	}
	return m, nil
}

func field(it *interpreter.Item, f *Field, path string) (Value, error) {
	switch {
	case f.Relation:
		nested, ok := it.Related[f.Key]
		if !ok {
			return nil, &Error{Key: path, Message: "nested read missing"}
		}
		if !f.List {
			if len(nested) == 0 {
				return Null{}, nil
			}
			return object(nested[0], f.Fields, path)
		}
		out := make(List, 0, len(nested))
		for _, child := range nested {
			m, err := object(child, f.Fields, path)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil

	case f.Column != "":
		v, ok := it.Record[f.Column]
		if !ok {
			return nil, &Error{Key: path, Message: fmt.Sprintf("column %q not selected", f.Column)}
		}
		if ir.IsNull(v) {
			return Null{}, nil
		}
		return Scalar{Value: v}, nil

	default:
		return object(it, f.Fields, path)
	}
}

// SerializeRaw renders the rows of a raw query, columns in result order.
func SerializeRaw(rs *query.RecordSet) Value {
	out := make(List, 0, rs.Len())
	for _, rec := range rs.Records {
		m := NewMap()
		for _, c := range rs.Columns {
			v := rec.Get(c)
			if ir.IsNull(v) {
				m.Set(c, Null{})
				continue
			}
			m.Set(c, Scalar{Value: v})
		}
		out = append(out, m)
	}
	return out
}

// SerializeAffected renders a raw statement's affected row count.
func SerializeAffected(n int64) Value {
	return Scalar{Value: ir.IRInt(n)}
}
