package query

import (
	"fmt"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

// Write is a primitive write against one model.
//
// This is a sealed interface - only types in this package implement it.
// Record-returning writes (create, update, delete of one record) yield the
// full row; multi-record writes yield the affected primary keys and a count.
type Write interface {
	TargetModel() *schema.Model
	writeQuery()
}

// CreateRecord inserts one record.
type CreateRecord struct {
	Model *schema.Model
	Args  *WriteArgs
}

// CreateManyRecords inserts several records. Nested relation writes are
// not allowed inside it.
type CreateManyRecords struct {
	Model          *schema.Model
	Args           []*WriteArgs
	SkipDuplicates bool
}

// UpdateRecord updates the record matched by a unique Filter. With no
// args it only reads the record back.
type UpdateRecord struct {
	Model  *schema.Model
	Filter filter.Filter
	Args   *WriteArgs
}

// UpdateManyRecords updates every record matching Filter.
type UpdateManyRecords struct {
	Model  *schema.Model
	Filter filter.Filter
	Args   *WriteArgs
}

// DeleteRecord deletes the record matched by a unique Filter.
type DeleteRecord struct {
	Model  *schema.Model
	Filter filter.Filter
}

// DeleteManyRecords deletes every record matching Filter.
type DeleteManyRecords struct {
	Model  *schema.Model
	Filter filter.Filter
}

// ConnectRecords links Children to Parent through a many-to-many
// relation. Existing links are kept.
type ConnectRecords struct {
	ParentField *schema.RelationField
	Parent      ir.SelectionResult
	Children    []ir.SelectionResult
}

// DisconnectRecords unlinks Children from Parent through a many-to-many
// relation.
type DisconnectRecords struct {
	ParentField *schema.RelationField
	Parent      ir.SelectionResult
	Children    []ir.SelectionResult
}

func (q *CreateRecord) TargetModel() *schema.Model      { return q.Model }
func (q *CreateManyRecords) TargetModel() *schema.Model { return q.Model }
func (q *UpdateRecord) TargetModel() *schema.Model      { return q.Model }
func (q *UpdateManyRecords) TargetModel() *schema.Model { return q.Model }
func (q *DeleteRecord) TargetModel() *schema.Model      { return q.Model }
func (q *DeleteManyRecords) TargetModel() *schema.Model { return q.Model }
func (q *ConnectRecords) TargetModel() *schema.Model    { return q.ParentField.Model() }
func (q *DisconnectRecords) TargetModel() *schema.Model { return q.ParentField.Model() }

func (*CreateRecord) writeQuery()      {}
func (*CreateManyRecords) writeQuery() {}
func (*UpdateRecord) writeQuery()      {}
func (*UpdateManyRecords) writeQuery() {}
func (*DeleteRecord) writeQuery()      {}
func (*DeleteManyRecords) writeQuery() {}
func (*ConnectRecords) writeQuery()    {}
func (*DisconnectRecords) writeQuery() {}

// MultiStatement reports whether w needs more than one storage statement,
// which makes even a single-node graph transactional.
func MultiStatement(w Write) bool {
	switch q := w.(type) {
	case *CreateManyRecords:
		return len(q.Args) > 1
	case *ConnectRecords:
		return len(q.Children) > 1
	case *DisconnectRecords:
		return len(q.Children) > 1
	default:
		return false
	}
}

func (q *CreateRecord) String() string {
	return fmt.Sprintf("Create %s %s", q.Model.Name, q.Args)
}

func (q *CreateManyRecords) String() string {
	s := fmt.Sprintf("CreateMany %s (%d)", q.Model.Name, len(q.Args))
	if q.SkipDuplicates {
		s += " skip duplicates"
	}
	return s
}

func (q *UpdateRecord) String() string {
	return fmt.Sprintf("UpdateOne %s where %s set %s", q.Model.Name, filter.Format(q.Filter), q.Args)
}

func (q *UpdateManyRecords) String() string {
	return fmt.Sprintf("UpdateMany %s where %s set %s", q.Model.Name, filter.Format(q.Filter), q.Args)
}

func (q *DeleteRecord) String() string {
	return fmt.Sprintf("DeleteOne %s where %s", q.Model.Name, filter.Format(q.Filter))
}

func (q *DeleteManyRecords) String() string {
	return fmt.Sprintf("DeleteMany %s where %s", q.Model.Name, filter.Format(q.Filter))
}

func (q *ConnectRecords) String() string {
	return fmt.Sprintf("Connect %s", q.ParentField)
}

func (q *DisconnectRecords) String() string {
	return fmt.Sprintf("Disconnect %s", q.ParentField)
}
