package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/qgraph/internal/ir"
)

// ScalarType is the storage type of a scalar field.
type ScalarType string

const (
	TypeString   ScalarType = "String"
	TypeInt      ScalarType = "Int"
	TypeFloat    ScalarType = "Float"
	TypeBoolean  ScalarType = "Boolean"
	TypeDateTime ScalarType = "DateTime"
	TypeJSON     ScalarType = "Json"
)

// Valid reports whether t is a known scalar type.
func (t ScalarType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeBoolean, TypeDateTime, TypeJSON:
		return true
	}
	return false
}

// DefaultKind selects how a missing value is filled on create.
type DefaultKind string

const (
	DefaultAutoincrement DefaultKind = "autoincrement"
	DefaultUUID          DefaultKind = "uuid"
	DefaultNow           DefaultKind = "now"
	DefaultValue         DefaultKind = "value"
)

// Default describes a field default.
type Default struct {
	Kind  DefaultKind
	Value ir.IRValue // set for DefaultValue only
}

// RelationKind is derived from the arity of both relation sides.
type RelationKind int

const (
	OneToOne RelationKind = iota
	OneToMany
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "1:1"
	case OneToMany:
		return "1:m"
	case ManyToMany:
		return "m:n"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Schema is the resolved data model. Construct it with Compile, LoadDir
// or New; all cross references are linked and validated.
type Schema struct {
	Models []*Model

	byName map[string]*Model
}

// Model returns the model with the given name.
func (s *Schema) Model(name string) (*Model, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// Model is one table-backed record type.
type Model struct {
	Name   string
	Table  string
	Fields []*ScalarField

	// Relations are declared relation fields in declaration order.
	Relations []*RelationField

	// PrimaryKey holds the field names of the primary identifier.
	PrimaryKey []string

	// Uniques holds compound unique indexes in declaration order.
	// Single-field uniques are flagged on the field itself.
	Uniques []UniqueIndex

	schema *Schema
}

// UniqueIndex is a named set of fields that identify one record.
type UniqueIndex struct {
	Name   string
	Fields []string
}

// ScalarField is a column-backed field.
type ScalarField struct {
	Name     string
	Column   string
	Type     ScalarType
	Required bool
	Unique   bool
	ID       bool
	Default  *Default

	model *Model
}

// Model returns the owning model.
func (f *ScalarField) Model() *Model { return f.model }

// IsAutoincrement reports whether the database assigns the value.
func (f *ScalarField) IsAutoincrement() bool {
	return f.Default != nil && f.Default.Kind == DefaultAutoincrement
}

// RelationField is one side of a relation between two models.
type RelationField struct {
	Name string

	// Related is the name of the model on the other side.
	Related string

	// Relation is the relation name shared by both sides.
	Relation string

	List     bool
	Required bool

	// Fields and References are set on the side holding the foreign key:
	// Fields are scalars of this model, References are scalars of the
	// related model, paired by position.
	Fields     []string
	References []string

	model   *Model
	related *RelationField
}

// Model returns the model declaring this field.
func (rf *RelationField) Model() *Model { return rf.model }

// RelatedModel returns the model on the other side.
func (rf *RelationField) RelatedModel() *Model { return rf.related.model }

// RelatedField returns the opposite relation field.
func (rf *RelationField) RelatedField() *RelationField { return rf.related }

// Kind returns the relation kind.
func (rf *RelationField) Kind() RelationKind {
	switch {
	case rf.List && rf.related.List:
		return ManyToMany
	case rf.List || rf.related.List:
		return OneToMany
	default:
		return OneToOne
	}
}

// IsManyToMany reports whether the relation uses a join table.
func (rf *RelationField) IsManyToMany() bool { return rf.Kind() == ManyToMany }

// IsInlinedOnEnclosingModel reports whether the foreign key lives on the
// model declaring this field.
func (rf *RelationField) IsInlinedOnEnclosingModel() bool { return len(rf.Fields) > 0 }

// IsInlinedOnRelatedModel reports whether the foreign key lives on the
// other side.
func (rf *RelationField) IsInlinedOnRelatedModel() bool { return len(rf.related.Fields) > 0 }

// LinkingFields returns the fields of this field's model that link it to
// the related model. Paired by position with RelatedField().LinkingFields().
func (rf *RelationField) LinkingFields() []string {
	switch {
	case rf.IsInlinedOnEnclosingModel():
		return rf.Fields
	case rf.IsInlinedOnRelatedModel():
		return rf.related.References
	default:
		return rf.model.PrimaryKey
	}
}

// ForeignKeyRequired reports whether the inlined foreign key of this
// relation cannot be set to null.
func (rf *RelationField) ForeignKeyRequired() bool {
	holder := rf
	if !rf.IsInlinedOnEnclosingModel() {
		holder = rf.related
	}
	if !holder.IsInlinedOnEnclosingModel() {
		return false
	}
	for _, name := range holder.Fields {
		if f := holder.model.Scalar(name); f != nil && f.Required {
			return true
		}
	}
	return false
}

// JoinTable returns the implicit join table of a many-to-many relation.
func (rf *RelationField) JoinTable() string {
	return "_" + rf.Relation
}

// JoinColumns returns (own, other) join table columns: the column that
// references this field's model and the one referencing the related model.
// Column A references the model whose name sorts first; self relations
// order by field name.
func (rf *RelationField) JoinColumns() (string, string) {
	a, b := rf.model.Name, rf.related.model.Name
	if a == b {
		a, b = rf.Name, rf.related.Name
	}
	if a <= b {
		return "A", "B"
	}
	return "B", "A"
}

// String renders `Model.field`.
func (rf *RelationField) String() string {
	return rf.model.Name + "." + rf.Name
}

// Schema returns the schema this model belongs to.
func (m *Model) Schema() *Schema { return m.schema }

// Scalar returns the scalar field by name, or nil.
func (m *Model) Scalar(name string) *ScalarField {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Relation returns the relation field by name, or nil.
func (m *Model) Relation(name string) *RelationField {
	for _, rf := range m.Relations {
		if rf.Name == name {
			return rf
		}
	}
	return nil
}

// ScalarNames returns all scalar field names in declaration order.
func (m *Model) ScalarNames() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}

// Compound returns the compound unique criterion with the given name,
// including a compound primary key.
func (m *Model) Compound(name string) (UniqueIndex, bool) {
	for _, u := range m.compounds() {
		if u.Name == name {
			return u, true
		}
	}
	return UniqueIndex{}, false
}

// compounds lists multi-field unique criteria: the compound primary key
// first, then compound unique indexes in declaration order.
func (m *Model) compounds() []UniqueIndex {
	var out []UniqueIndex
	if len(m.PrimaryKey) > 1 {
		out = append(out, UniqueIndex{Name: strings.Join(m.PrimaryKey, "_"), Fields: m.PrimaryKey})
	}
	for _, u := range m.Uniques {
		if len(u.Fields) > 1 {
			out = append(out, u)
		}
	}
	return out
}

// UniqueCriteria returns every set of fields identifying one record in
// resolution order: single unique scalars in declaration order, then
// compound criteria.
func (m *Model) UniqueCriteria() []UniqueIndex {
	var out []UniqueIndex
	for _, f := range m.Fields {
		if (f.ID && len(m.PrimaryKey) == 1) || f.Unique {
			out = append(out, UniqueIndex{Name: f.Name, Fields: []string{f.Name}})
		}
	}
	for _, u := range m.Uniques {
		if len(u.Fields) == 1 && !slices.ContainsFunc(out, func(x UniqueIndex) bool { return x.Fields[0] == u.Fields[0] }) {
			out = append(out, u)
		}
	}
	return append(out, m.compounds()...)
}

// CompoundCriteria returns only the multi-field unique criteria.
func (m *Model) CompoundCriteria() []UniqueIndex {
	return m.compounds()
}

// IsUniqueCriterion reports whether fields (in any order) exactly match
// a unique criterion of the model.
func (m *Model) IsUniqueCriterion(fields []string) bool {
	for _, u := range m.UniqueCriteria() {
		if sameSet(u.Fields, fields) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}
