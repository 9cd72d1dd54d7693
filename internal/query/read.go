package query

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

// Read is a primitive read against one model.
//
// This is a sealed interface - only types in this package implement it.
// Connectors switch exhaustively over:
//   - *RecordQuery: at most one record by filter
//   - *ManyRecordsQuery: filtered, ordered, paginated list
//   - *RelatedRecordsQuery: children of a set of parent records
//   - *AggregateRecordsQuery: count/sum/avg/min/max over a filtered set
type Read interface {
	TargetModel() *schema.Model
	readQuery()
}

// OrderBy is one ordering term.
type OrderBy struct {
	Field string
	Desc  bool
}

// QueryArguments carry the filtering and pagination of a list read.
type QueryArguments struct {
	Filter  filter.Filter
	OrderBy []OrderBy

	// Cursor is the unique selector of the cursor record as requested.
	Cursor ir.SelectionResult

	// CursorRow holds the ordering values of the cursor record once it has
	// been read. CursorNotFound is set when the cursor read came back
	// empty, in which case the list read yields nothing.
	CursorRow      ir.SelectionResult
	CursorNotFound bool

	Skip int
	Take *int
}

// Reversed reports whether a negative take reverses the read order.
func (a QueryArguments) Reversed() bool {
	return a.Take != nil && *a.Take < 0
}

// Limit returns the absolute take, or -1 when unbounded.
func (a QueryArguments) Limit() int {
	if a.Take == nil {
		return -1
	}
	if *a.Take < 0 {
		return -*a.Take
	}
	return *a.Take
}

// Paginated reports whether skip, take or a cursor apply.
func (a QueryArguments) Paginated() bool {
	return a.Skip > 0 || a.Take != nil || len(a.Cursor) > 0
}

// Ordering returns the effective ordering with the primary key appended as
// a tiebreaker, so every read has a total order.
func (a QueryArguments) Ordering(m *schema.Model) []OrderBy {
	out := append([]OrderBy(nil), a.OrderBy...)
	seen := make(map[string]bool, len(out))
	for _, o := range out {
		seen[o.Field] = true
	}
	for _, pk := range m.PrimaryKey {
		if !seen[pk] {
			out = append(out, OrderBy{Field: pk})
		}
	}
	return out
}

// OrderingFields lists the fields of Ordering in order.
func (a QueryArguments) OrderingFields(m *schema.Model) []string {
	ord := a.Ordering(m)
	out := make([]string, len(ord))
	for i, o := range ord {
		out[i] = o.Field
	}
	return out
}

// RecordQuery reads at most one record.
type RecordQuery struct {
	// Key is the response key (alias or operation name).
	Key     string
	Model   *schema.Model
	Filter  filter.Filter
	Columns []string
	Nested  []*RelatedRecordsQuery
}

// ManyRecordsQuery reads a list of records.
type ManyRecordsQuery struct {
	Key     string
	Model   *schema.Model
	Args    QueryArguments
	Columns []string
	Nested  []*RelatedRecordsQuery
}

// RelatedRecordsQuery reads the records related to a set of parents
// through ParentField. It is carried on its parent read, not as a
// separate graph node; the interpreter fills ParentResults before running
// it and applies pagination per parent in memory.
type RelatedRecordsQuery struct {
	Key         string
	ParentField *schema.RelationField
	Args        QueryArguments
	Columns     []string
	Nested      []*RelatedRecordsQuery

	// ParentResults are the parents' values for ParentField.LinkingFields().
	ParentResults []ir.SelectionResult
}

// AggregateKind names an aggregation.
type AggregateKind string

const (
	AggCount AggregateKind = "_count"
	AggSum   AggregateKind = "_sum"
	AggAvg   AggregateKind = "_avg"
	AggMin   AggregateKind = "_min"
	AggMax   AggregateKind = "_max"
)

// AllField is the pseudo field of `_count { _all }`.
const AllField = "_all"

// AggregateSelection is one aggregation over a set of fields. Result
// columns are named "<kind>.<field>".
type AggregateSelection struct {
	Kind   AggregateKind
	Fields []string
}

// Column returns the result column for field.
func (s AggregateSelection) Column(field string) string {
	return string(s.Kind) + "." + field
}

// AggregateRecordsQuery aggregates over a filtered set.
type AggregateRecordsQuery struct {
	Key        string
	Model      *schema.Model
	Args       QueryArguments
	Selections []AggregateSelection
}

func (q *RecordQuery) TargetModel() *schema.Model           { return q.Model }
func (q *ManyRecordsQuery) TargetModel() *schema.Model      { return q.Model }
func (q *RelatedRecordsQuery) TargetModel() *schema.Model   { return q.ParentField.RelatedModel() }
func (q *AggregateRecordsQuery) TargetModel() *schema.Model { return q.Model }

func (*RecordQuery) readQuery()           {}
func (*ManyRecordsQuery) readQuery()      {}
func (*RelatedRecordsQuery) readQuery()   {}
func (*AggregateRecordsQuery) readQuery() {}

// WithColumns adds fields to a column list, preserving order and skipping
// duplicates.
func WithColumns(cols []string, fields ...string) []string {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			cols = append(cols, f)
		}
	}
	return cols
}

func (q *RecordQuery) String() string {
	return fmt.Sprintf("ReadOne %s where %s%s", q.Model.Name, filter.Format(q.Filter), nestedString(q.Nested))
}

func (q *ManyRecordsQuery) String() string {
	return fmt.Sprintf("ReadMany %s where %s%s%s", q.Model.Name, filter.Format(q.Args.Filter), argsString(q.Args), nestedString(q.Nested))
}

func (q *RelatedRecordsQuery) String() string {
	return fmt.Sprintf("ReadRelated %s where %s%s%s", q.ParentField, filter.Format(q.Args.Filter), argsString(q.Args), nestedString(q.Nested))
}

func (q *AggregateRecordsQuery) String() string {
	parts := make([]string, len(q.Selections))
	for i, s := range q.Selections {
		parts[i] = fmt.Sprintf("%s(%s)", s.Kind, strings.Join(s.Fields, ","))
	}
	return fmt.Sprintf("Aggregate %s where %s [%s]", q.Model.Name, filter.Format(q.Args.Filter), strings.Join(parts, " "))
}

func argsString(a QueryArguments) string {
	var b strings.Builder
	if len(a.OrderBy) > 0 {
		terms := make([]string, len(a.OrderBy))
		for i, o := range a.OrderBy {
			terms[i] = o.Field
			if o.Desc {
				terms[i] += " desc"
			}
		}
		fmt.Fprintf(&b, " order by %s", strings.Join(terms, ", "))
	}
	if len(a.Cursor) > 0 {
		fmt.Fprintf(&b, " cursor (%s)", a.Cursor)
	}
	if a.Skip > 0 {
		fmt.Fprintf(&b, " skip %d", a.Skip)
	}
	if a.Take != nil {
		fmt.Fprintf(&b, " take %d", *a.Take)
	}
	return b.String()
}

func nestedString(nested []*RelatedRecordsQuery) string {
	if len(nested) == 0 {
		return ""
	}
	keys := make([]string, len(nested))
	for i, n := range nested {
		keys[i] = n.Key
	}
	return " with " + strings.Join(keys, ", ")
}
