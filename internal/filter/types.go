package filter

import (
	"github.com/roach88/qgraph/internal/ir"
)

// Filter is a recursive boolean expression over the fields of one model.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in connector compilers.
//
// Filter types:
//   - Scalar: field <condition> value
//   - Relation: every/some/none/is/isNot over a relation field
//   - And, Or, Not: combinators
//   - Empty: matches every record
//
// Filters are values: builders construct them once, graph edges AND
// selectors into them, and connectors compile them. Nothing mutates a
// filter in place.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Condition is a scalar comparison operator.
type Condition string

const (
	CondEquals     Condition = "equals"
	CondNot        Condition = "not"
	CondIn         Condition = "in"
	CondNotIn      Condition = "notIn"
	CondLt         Condition = "lt"
	CondLte        Condition = "lte"
	CondGt         Condition = "gt"
	CondGte        Condition = "gte"
	CondContains   Condition = "contains"
	CondStartsWith Condition = "startsWith"
	CondEndsWith   Condition = "endsWith"
)

// ScalarConditions lists every scalar condition in a stable order.
var ScalarConditions = []Condition{
	CondEquals, CondNot, CondIn, CondNotIn, CondLt, CondLte,
	CondGt, CondGte, CondContains, CondStartsWith, CondEndsWith,
}

// IsScalarCondition reports whether name is a scalar condition keyword.
func IsScalarCondition(name string) bool {
	for _, c := range ScalarConditions {
		if string(c) == name {
			return true
		}
	}
	return false
}

// RelationCondition quantifies a nested filter over related records.
type RelationCondition string

const (
	// Every, Some and None apply to to-many relation fields.
	RelEvery RelationCondition = "every"
	RelSome  RelationCondition = "some"
	RelNone  RelationCondition = "none"

	// Is and IsNot apply to to-one relation fields. A nil nested filter
	// on Is means "no related record"; on IsNot it means "has one".
	RelIs    RelationCondition = "is"
	RelIsNot RelationCondition = "isNot"
)

// Scalar compares one scalar field against a value.
//
// For CondIn and CondNotIn, Value is an ir.IRArray. Comparing against
// IRNull with CondEquals/CondNot means IS NULL / IS NOT NULL.
type Scalar struct {
	Field string
	Cond  Condition
	Value ir.IRValue
}

func (Scalar) filterNode() {}

// Relation filters by the existence of related records matching Nested.
type Relation struct {
	Field  string
	Cond   RelationCondition
	Nested Filter
}

func (Relation) filterNode() {}

// And matches when every filter matches. An empty And matches everything.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}

// Or matches when any filter matches. An empty Or matches nothing.
type Or struct {
	Filters []Filter
}

func (Or) filterNode() {}

// Not matches when none of the filters match.
type Not struct {
	Filters []Filter
}

func (Not) filterNode() {}

// Empty matches every record.
type Empty struct{}

func (Empty) filterNode() {}
