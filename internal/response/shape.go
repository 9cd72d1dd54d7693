package response

// Kind selects how the root result of an operation is rendered.
type Kind int

const (
	// One renders a single record, or null when nothing was found.
	One Kind = iota
	// Many renders a list of records.
	Many
	// Count renders {count: n} from a multi-record write.
	Count
	// Aggregate renders one aggregate row as nested maps.
	Aggregate
	// RawRows renders a raw query's rows as a list of maps.
	RawRows
	// RawCount renders a raw statement's affected row count.
	RawCount
)

func (k Kind) String() string {
	switch k {
	case One:
		return "one"
	case Many:
		return "many"
	case Count:
		return "count"
	case Aggregate:
		return "aggregate"
	case RawRows:
		return "rawRows"
	case RawCount:
		return "rawCount"
	default:
		return "unknown"
	}
}

// Shape is the requested output of one operation.
type Shape struct {
	// Key is the response key: the operation alias or name.
	Key    string
	Kind   Kind
	Fields []*Field
}

// Field is one requested output field.
//
// A scalar field reads Column from the record. A relation field (Relation
// set) renders the nested read stored under Key, as a list when List is
// set and as a single value or null otherwise. A group field (neither
// set) renders its Fields as a nested map over the same record; aggregate
// selections use groups with columns such as "_count._all".
type Field struct {
	Key      string
	Column   string
	Relation bool
	List     bool
	Fields   []*Field
}

// ScalarField returns a field reading column under key.
func ScalarField(key, column string) *Field {
	return &Field{Key: key, Column: column}
}

// RelationField returns a relation field rendering the nested read key.
func RelationField(key string, list bool, fields ...*Field) *Field {
	return &Field{Key: key, Relation: true, List: list, Fields: fields}
}

// GroupField returns a nested map over the same record.
func GroupField(key string, fields ...*Field) *Field {
	return &Field{Key: key, Fields: fields}
}
