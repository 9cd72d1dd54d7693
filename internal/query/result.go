package query

import (
	"fmt"

	"github.com/roach88/qgraph/internal/ir"
)

// RecordSet is what a connector returns for a read.
type RecordSet struct {
	// Columns are the fields present on every record, in select order.
	Columns []string
	Records []ir.Record

	// ParentLinks is aligned with Records for related reads: the linking
	// values of the parent each record belongs to, named after the parent
	// relation field's linking fields.
	ParentLinks []ir.SelectionResult
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// WriteResult is what a connector returns for a write.
type WriteResult struct {
	// Count is the number of affected records.
	Count int64

	// Records holds the written rows for record-returning writes and the
	// affected primary keys for multi-record writes.
	Records []ir.Record
}

// RawKind distinguishes raw reads from raw writes.
type RawKind string

const (
	RawQuery   RawKind = "queryRaw"
	RawExecute RawKind = "executeRaw"
)

// Raw is a literal statement that bypasses graph building.
type Raw struct {
	Kind   RawKind
	SQL    string
	Params []ir.IRValue
}

func (r Raw) String() string {
	return fmt.Sprintf("%s %q (%d params)", r.Kind, r.SQL, len(r.Params))
}
