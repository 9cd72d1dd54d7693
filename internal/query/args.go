package query

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/ir"
)

// WriteOp is the operation applied to one scalar field by a write.
type WriteOp string

const (
	OpSet       WriteOp = "set"
	OpIncrement WriteOp = "increment"
	OpDecrement WriteOp = "decrement"
	OpMultiply  WriteOp = "multiply"
	OpDivide    WriteOp = "divide"
)

// WriteExpr is one field assignment.
type WriteExpr struct {
	Op    WriteOp
	Value ir.IRValue
}

// Set returns a plain assignment.
func Set(v ir.IRValue) WriteExpr {
	return WriteExpr{Op: OpSet, Value: v}
}

// WriteArgs is an insertion-ordered map of field assignments.
// Reassigning a field keeps its original position.
type WriteArgs struct {
	fields []string
	values map[string]WriteExpr
}

// NewWriteArgs returns empty write args.
func NewWriteArgs() *WriteArgs {
	return &WriteArgs{values: make(map[string]WriteExpr)}
}

// Insert assigns expr to field.
func (a *WriteArgs) Insert(field string, expr WriteExpr) {
	if _, ok := a.values[field]; !ok {
		a.fields = append(a.fields, field)
	}
	a.values[field] = expr
}

// Set assigns a plain value to field.
func (a *WriteArgs) Set(field string, v ir.IRValue) {
	a.Insert(field, Set(v))
}

// Get returns the assignment of field.
func (a *WriteArgs) Get(field string) (WriteExpr, bool) {
	if a == nil {
		return WriteExpr{}, false
	}
	e, ok := a.values[field]
	return e, ok
}

// Has reports whether field is assigned.
func (a *WriteArgs) Has(field string) bool {
	_, ok := a.Get(field)
	return ok
}

// Remove drops the assignment of field.
func (a *WriteArgs) Remove(field string) {
	if _, ok := a.values[field]; !ok {
		return
	}
	delete(a.values, field)
	for i, f := range a.fields {
		if f == field {
			a.fields = append(a.fields[:i:i], a.fields[i+1:]...)
			break
		}
	}
}

// Fields returns the assigned fields in insertion order.
func (a *WriteArgs) Fields() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.fields...)
}

// Len returns the number of assignments.
func (a *WriteArgs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.fields)
}

// Clone returns an independent copy.
func (a *WriteArgs) Clone() *WriteArgs {
	out := NewWriteArgs()
	if a == nil {
		return out
	}
	for _, f := range a.fields {
		out.Insert(f, a.values[f])
	}
	return out
}

// Inject assigns the values of sel to fields, positionally. It is how a
// parent's identifier lands in a child's foreign key.
func (a *WriteArgs) Inject(fields []string, sel ir.SelectionResult) error {
	if len(fields) != len(sel) {
		return fmt.Errorf("inject %d values into %d fields", len(sel), len(fields))
	}
	for i, f := range fields {
		a.Set(f, sel[i].Value)
	}
	return nil
}

// PlainValues returns the values of all OpSet assignments, used for
// inserts. Any other operation is an error.
func (a *WriteArgs) PlainValues() (ir.Record, error) {
	rec := make(ir.Record, a.Len())
	for _, f := range a.Fields() {
		e := a.values[f]
		if e.Op != OpSet {
			return nil, fmt.Errorf("field %q: %s is not allowed on create", f, e.Op)
		}
		rec[f] = e.Value
	}
	return rec, nil
}

func (a *WriteArgs) String() string {
	parts := make([]string, 0, a.Len())
	for _, f := range a.Fields() {
		e := a.values[f]
		if e.Op == OpSet {
			parts = append(parts, fmt.Sprintf("%s: %s", f, ir.String(e.Value)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s %s", f, e.Op, ir.String(e.Value)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
