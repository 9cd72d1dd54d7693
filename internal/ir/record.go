package ir

import (
	"fmt"
	"strings"
)

// Record is one row keyed by model field name (not column name).
type Record map[string]IRValue

// Get returns the value of field, or IRNull when absent.
func (r Record) Get(field string) IRValue {
	if v, ok := r[field]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project extracts the given fields, in order, as a SelectionResult.
// Missing fields are an error: a projection that silently yields null
// would turn into a filter matching nothing.
func (r Record) Project(fields []string) (SelectionResult, error) {
	out := make(SelectionResult, 0, len(fields))
	for _, f := range fields {
		v, ok := r[f]
		if !ok {
			return nil, fmt.Errorf("record has no field %q", f)
		}
		out = append(out, FieldValue{Field: f, Value: v})
	}
	return out, nil
}

// FieldValue is a single (field, value) pair.
type FieldValue struct {
	Field string
	Value IRValue
}

// SelectionResult is an ordered list of (field, value) pairs identifying
// one record. It is the currency passed along graph edges.
type SelectionResult []FieldValue

// Fields returns the field names in order.
func (s SelectionResult) Fields() []string {
	out := make([]string, len(s))
	for i, fv := range s {
		out[i] = fv.Field
	}
	return out
}

// Values returns the values in order.
func (s SelectionResult) Values() []IRValue {
	out := make([]IRValue, len(s))
	for i, fv := range s {
		out[i] = fv.Value
	}
	return out
}

// Get returns the value for field.
func (s SelectionResult) Get(field string) (IRValue, bool) {
	for _, fv := range s {
		if fv.Field == field {
			return fv.Value, true
		}
	}
	return nil, false
}

// Key returns the canonical key of the values, ignoring field names.
// Two results over positionally paired fields (a parent id and a child
// foreign key) share a key when their values are equal.
func (s SelectionResult) Key() string {
	return MustCanonicalKey(s.Values()...)
}

// HasNull reports whether any value is null.
func (s SelectionResult) HasNull() bool {
	for _, fv := range s {
		if IsNull(fv.Value) {
			return true
		}
	}
	return false
}

// Rename maps the values onto a different set of field names, position
// by position. Used to turn a parent's id into a child's foreign key.
func (s SelectionResult) Rename(fields []string) (SelectionResult, error) {
	if len(fields) != len(s) {
		return nil, fmt.Errorf("cannot map %d values onto %d fields (%s)",
			len(s), len(fields), strings.Join(fields, ", "))
	}
	out := make(SelectionResult, len(s))
	for i, fv := range s {
		out[i] = FieldValue{Field: fields[i], Value: fv.Value}
	}
	return out, nil
}

// String renders the selection as `field=value, ...`.
func (s SelectionResult) String() string {
	parts := make([]string, len(s))
	for i, fv := range s {
		parts[i] = fv.Field + "=" + String(fv.Value)
	}
	return strings.Join(parts, ", ")
}

// Dedup removes selections with duplicate keys, keeping first occurrence.
func Dedup(sels []SelectionResult) []SelectionResult {
	seen := make(map[string]bool, len(sels))
	out := make([]SelectionResult, 0, len(sels))
	for _, s := range sels {
		k := s.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// Difference returns the elements of left whose key does not appear in
// right, preserving left's order.
func Difference(left, right []SelectionResult) []SelectionResult {
	exclude := make(map[string]bool, len(right))
	for _, s := range right {
		exclude[s.Key()] = true
	}
	out := make([]SelectionResult, 0, len(left))
	for _, s := range left {
		if !exclude[s.Key()] {
			out = append(out, s)
		}
	}
	return out
}
