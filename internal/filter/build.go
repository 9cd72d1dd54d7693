package filter

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/ir"
)

// Equals returns `field = value`.
func Equals(field string, value ir.IRValue) Scalar {
	return Scalar{Field: field, Cond: CondEquals, Value: value}
}

// In returns `field IN (values...)`.
func In(field string, values ...ir.IRValue) Scalar {
	return Scalar{Field: field, Cond: CondIn, Value: ir.IRArray(values)}
}

// AndOf conjoins filters, flattening nested Ands and dropping Empty ones.
func AndOf(filters ...Filter) Filter {
	out := flattenAnd(nil, filters)
	switch len(out) {
	case 0:
		return Empty{}
	case 1:
		return out[0]
	default:
		return And{Filters: out}
	}
}

func flattenAnd(out, filters []Filter) []Filter {
	for _, f := range filters {
		switch v := f.(type) {
		case nil, Empty:
		case And:
			out = flattenAnd(out, v.Filters)
		default:
			out = append(out, f)
		}
	}
	return out
}

// OrOf disjoins filters, flattening nested Ors. Zero filters yield an Or
// that matches nothing.
func OrOf(filters ...Filter) Filter {
	var out []Filter
	for _, f := range filters {
		if v, ok := f.(Or); ok {
			out = append(out, v.Filters...)
			continue
		}
		if f == nil {
			f = Empty{}
		}
		out = append(out, f)
	}
	if len(out) == 1 {
		return out[0]
	}
	return Or{Filters: out}
}

// IsEmpty reports whether f matches everything without constraints.
func IsEmpty(f Filter) bool {
	switch v := f.(type) {
	case nil, Empty:
		return true
	case And:
		for _, inner := range v.Filters {
			if !IsEmpty(inner) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MatchesNothing reports whether f is statically unsatisfiable.
func MatchesNothing(f Filter) bool {
	switch v := f.(type) {
	case Or:
		for _, inner := range v.Filters {
			if !MatchesNothing(inner) {
				return false
			}
		}
		return true
	case Scalar:
		arr, ok := v.Value.(ir.IRArray)
		return v.Cond == CondIn && ok && len(arr) == 0
	case And:
		for _, inner := range v.Filters {
			if MatchesNothing(inner) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// FromSelection returns the equality filter identifying one record.
func FromSelection(sel ir.SelectionResult) Filter {
	parts := make([]Filter, len(sel))
	for i, fv := range sel {
		parts[i] = Equals(fv.Field, fv.Value)
	}
	return AndOf(parts...)
}

// FromSelections returns a filter matching exactly the given records.
//
// Single-field selections over the same field compile to IN; compound
// selections to an OR of ANDs. No selections yield a filter matching
// nothing, never Empty.
func FromSelections(sels []ir.SelectionResult) Filter {
	if len(sels) == 0 {
		return In("")
	}

	single := true
	field := ""
	for _, s := range sels {
		if len(s) != 1 || (field != "" && s[0].Field != field) {
			single = false
			break
		}
		field = s[0].Field
	}

	if single {
		vals := make([]ir.IRValue, len(sels))
		for i, s := range sels {
			vals[i] = s[0].Value
		}
		if len(vals) == 1 {
			return Equals(field, vals[0])
		}
		return In(field, vals...)
	}

	parts := make([]Filter, len(sels))
	for i, s := range sels {
		parts[i] = FromSelection(s)
	}
	return OrOf(parts...)
}

// Size estimates how many records a selector addresses: the number of
// OR branches or IN values, otherwise one.
func Size(f Filter) int {
	switch v := f.(type) {
	case Or:
		return len(v.Filters)
	case Scalar:
		if arr, ok := v.Value.(ir.IRArray); ok && v.Cond == CondIn {
			return len(arr)
		}
		return 1
	default:
		return 1
	}
}

// Format renders a filter as a compact, deterministic string.
func Format(f Filter) string {
	switch v := f.(type) {
	case nil, Empty:
		return "true"
	case Scalar:
		if v.Cond == CondEquals {
			return fmt.Sprintf("%s = %s", v.Field, ir.String(v.Value))
		}
		return fmt.Sprintf("%s %s %s", v.Field, v.Cond, ir.String(v.Value))
	case Relation:
		nested := "null"
		if v.Nested != nil {
			nested = Format(v.Nested)
		}
		return fmt.Sprintf("%s %s (%s)", v.Field, v.Cond, nested)
	case And:
		return join("AND", v.Filters)
	case Or:
		if len(v.Filters) == 0 {
			return "false"
		}
		return join("OR", v.Filters)
	case Not:
		return "NOT " + join("AND", v.Filters)
	default:
		return fmt.Sprintf("%T", f)
	}
}

func join(op string, filters []Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = Format(f)
	}
	return "(" + strings.Join(parts, " "+op+" ") + ")"
}
