package interpreter

import (
	"fmt"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// Result is the value of an evaluated expression.
//
// This is a sealed interface - only types in this package implement it.
type Result interface {
	// Projections projects every row of the result onto fields.
	Projections(fields []string) ([]ir.SelectionResult, error)
	result()
}

// Item is one read record with its nested relation reads, keyed by the
// nested selection's response key.
type Item struct {
	Record  ir.Record
	Related map[string][]*Item
}

// Records is the result of a record read.
type Records struct {
	Key   string
	Model *schema.Model
	Items []*Item
}

// Aggregate is the result of an aggregate read.
type Aggregate struct {
	Key    string
	Values ir.Record
}

// Written is the result of a write.
type Written struct {
	Model  *schema.Model
	Result *query.WriteResult
}

// Rows is a computed list of identifiers (Return and Diff nodes).
type Rows struct {
	Data []ir.SelectionResult
}

// Empty is the result of nodes that produce nothing.
type Empty struct{}

func (*Records) result()   {}
func (*Aggregate) result() {}
func (*Written) result()   {}
func (*Rows) result()      {}
func (Empty) result()      {}

func (r *Records) Projections(fields []string) ([]ir.SelectionResult, error) {
	out := make([]ir.SelectionResult, 0, len(r.Items))
	for _, it := range r.Items {
		sel, err := it.Record.Project(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func (r *Aggregate) Projections([]string) ([]ir.SelectionResult, error) {
	return nil, fmt.Errorf("aggregate %s cannot be projected", r.Key)
}

func (r *Written) Projections(fields []string) ([]ir.SelectionResult, error) {
	if r.Result == nil {
		return nil, nil
	}
	out := make([]ir.SelectionResult, 0, len(r.Result.Records))
	for _, rec := range r.Result.Records {
		sel, err := rec.Project(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

func (r *Rows) Projections(fields []string) ([]ir.SelectionResult, error) {
	out := make([]ir.SelectionResult, 0, len(r.Data))
	for _, row := range r.Data {
		sel := make(ir.SelectionResult, len(fields))
		for i, f := range fields {
			v, ok := row.Get(f)
			if !ok {
				return nil, fmt.Errorf("field %q missing from row (%s)", f, row)
			}
			sel[i] = ir.FieldValue{Field: f, Value: v}
		}
		out = append(out, sel)
	}
	return out, nil
}

func (Empty) Projections([]string) ([]ir.SelectionResult, error) {
	return nil, nil
}

// IsEmpty reports whether r carries no rows.
func IsEmpty(r Result) bool {
	switch v := r.(type) {
	case nil, Empty:
		return true
	case *Records:
		return len(v.Items) == 0
	case *Rows:
		return len(v.Data) == 0
	case *Written:
		return v.Result == nil || (v.Result.Count == 0 && len(v.Result.Records) == 0)
	default:
		return false
	}
}
