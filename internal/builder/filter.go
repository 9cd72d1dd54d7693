package builder

import (
	"slices"
	"strings"
	"time"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// Filter parses a where argument of model m and validates the result.
func Filter(m *schema.Model, where ir.IRValue) (filter.Filter, error) {
	f, err := parseFilter(m, where)
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(f, m); err != nil {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "where: %v", err)
	}
	return f, nil
}

func parseFilter(m *schema.Model, v ir.IRValue) (filter.Filter, error) {
	if ir.IsNull(v) {
		return filter.Empty{}, nil
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "where must be an object, got %s", ir.String(v))
	}

	var parts []filter.Filter
	for _, key := range obj.SortedKeys() {
		val := obj[key]
		var (
			f   filter.Filter
			err error
		)
		switch key {
		case "AND":
			var list []filter.Filter
			list, err = filterList(m, val, true)
			f = filter.AndOf(list...)
		case "OR":
			var list []filter.Filter
			list, err = filterList(m, val, false)
			f = filter.OrOf(list...)
		case "NOT":
			var list []filter.Filter
			list, err = filterList(m, val, true)
			f = filter.Not{Filters: list}
		default:
			f, err = fieldFilter(m, key, val)
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	return filter.AndOf(parts...), nil
}

// filterList parses the operand of AND, OR and NOT: a list of filters or,
// when single is allowed, one filter object.
func filterList(m *schema.Model, v ir.IRValue, single bool) ([]filter.Filter, error) {
	items, ok := v.(ir.IRArray)
	if !ok {
		if _, isObj := v.(ir.IRObject); !isObj || !single {
			return nil, errorf(ErrInvalidArgument, m.Name, "", "expected a list of filters, got %s", ir.String(v))
		}
		items = ir.IRArray{v}
	}
	out := make([]filter.Filter, 0, len(items))
	for _, item := range items {
		f, err := parseFilter(m, item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func fieldFilter(m *schema.Model, key string, val ir.IRValue) (filter.Filter, error) {
	if f := m.Scalar(key); f != nil {
		return scalarFilter(f, val)
	}
	if rf := m.Relation(key); rf != nil {
		return relationFilter(rf, val)
	}
	if u, ok := m.Compound(key); ok {
		sel, err := compoundValues(m, u, val)
		if err != nil {
			return nil, err
		}
		return filter.FromSelection(sel), nil
	}
	return nil, errorf(ErrUnknownField, m.Name, key, "unknown field in where")
}

func scalarFilter(f *schema.ScalarField, val ir.IRValue) (filter.Filter, error) {
	obj, ok := val.(ir.IRObject)
	if !ok || f.Type == schema.TypeJSON {
		v, err := coerce(f, val)
		if err != nil {
			return nil, err
		}
		return filter.Equals(f.Name, v), nil
	}

	var parts []filter.Filter
	for _, key := range obj.SortedKeys() {
		cond := filter.Condition(key)
		if !filter.IsScalarCondition(key) {
			return nil, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "unknown condition %q", key)
		}
		arg := obj[key]
		switch cond {
		case filter.CondNot:
			if _, nested := arg.(ir.IRObject); nested {
				inner, err := scalarFilter(f, arg)
				if err != nil {
					return nil, err
				}
				parts = append(parts, filter.Not{Filters: []filter.Filter{inner}})
				continue
			}
		case filter.CondIn, filter.CondNotIn:
			list, isList := arg.(ir.IRArray)
			if !isList {
				return nil, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "%s requires a list", key)
			}
			vals := make(ir.IRArray, len(list))
			for i, item := range list {
				v, err := coerce(f, item)
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			parts = append(parts, filter.Scalar{Field: f.Name, Cond: cond, Value: vals})
			continue
		}
		v, err := coerce(f, arg)
		if err != nil {
			return nil, err
		}
		parts = append(parts, filter.Scalar{Field: f.Name, Cond: cond, Value: v})
	}
	return filter.AndOf(parts...), nil
}

func relationFilter(rf *schema.RelationField, val ir.IRValue) (filter.Filter, error) {
	related := rf.RelatedModel()
	if ir.IsNull(val) {
		if rf.List {
			return nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "list relation filter cannot be null")
		}
		return filter.Relation{Field: rf.Name, Cond: filter.RelIs}, nil
	}
	obj, ok := val.(ir.IRObject)
	if !ok {
		return nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "relation filter must be an object")
	}

	allowed := []string{string(filter.RelIs), string(filter.RelIsNot)}
	if rf.List {
		allowed = []string{string(filter.RelEvery), string(filter.RelSome), string(filter.RelNone)}
	}
	explicit := len(obj) > 0
	for k := range obj {
		if !slices.Contains(allowed, k) {
			explicit = false
		}
	}
	if !explicit {
		if rf.List {
			return nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "list relation filter takes %s", strings.Join(allowed, ", "))
		}
		nested, err := parseFilter(related, obj)
		if err != nil {
			return nil, err
		}
		return filter.Relation{Field: rf.Name, Cond: filter.RelIs, Nested: nested}, nil
	}

	var parts []filter.Filter
	for _, key := range obj.SortedKeys() {
		rel := filter.Relation{Field: rf.Name, Cond: filter.RelationCondition(key)}
		if !ir.IsNull(obj[key]) {
			nested, err := parseFilter(related, obj[key])
			if err != nil {
				return nil, err
			}
			rel.Nested = nested
		} else if rf.List {
			return nil, errorf(ErrInvalidArgument, rf.Model().Name, rf.Name, "%s cannot be null", key)
		}
		parts = append(parts, rel)
	}
	return filter.AndOf(parts...), nil
}

// compoundValues reads the value of a compound unique key: an object
// holding exactly the fields of u.
func compoundValues(m *schema.Model, u schema.UniqueIndex, val ir.IRValue) (ir.SelectionResult, error) {
	obj, ok := val.(ir.IRObject)
	if !ok || len(obj) != len(u.Fields) {
		return nil, errorf(ErrInvalidArgument, m.Name, u.Name, "compound key requires exactly the fields %s", strings.Join(u.Fields, ", "))
	}
	sel := make(ir.SelectionResult, 0, len(u.Fields))
	for _, name := range u.Fields {
		raw, ok := obj[name]
		if !ok {
			return nil, errorf(ErrInvalidArgument, m.Name, u.Name, "compound key is missing %s", name)
		}
		v, err := coerce(m.Scalar(name), raw)
		if err != nil {
			return nil, err
		}
		sel = append(sel, ir.FieldValue{Field: name, Value: v})
	}
	return sel, nil
}

// uniqueSelection resolves where to the first unique criterion of m it
// fully covers with plain values. It returns the criterion's values in
// criterion order and the remaining conditions.
func uniqueSelection(m *schema.Model, where ir.IRValue) (ir.SelectionResult, ir.IRObject, error) {
	obj, ok := where.(ir.IRObject)
	if !ok {
		return nil, nil, errorf(ErrInvalidArgument, m.Name, "", "unique selector must be an object, got %s", ir.String(where))
	}

	flat := make(map[string]ir.IRValue, len(obj))
	rest := make(ir.IRObject, len(obj))
	for _, k := range obj.SortedKeys() {
		v := obj[k]
		if u, isCompound := m.Compound(k); isCompound && m.Scalar(k) == nil {
			sel, err := compoundValues(m, u, v)
			if err != nil {
				return nil, nil, err
			}
			for _, fv := range sel {
				flat[fv.Field] = fv.Value
			}
			continue
		}
		f := m.Scalar(k)
		if _, isCond := v.(ir.IRObject); f != nil && !ir.IsNull(v) && (!isCond || f.Type == schema.TypeJSON) {
			flat[k] = v
			continue
		}
		rest[k] = v
	}

	for _, u := range m.UniqueCriteria() {
		if !slices.ContainsFunc(u.Fields, func(name string) bool { _, ok := flat[name]; return !ok }) {
			sel := make(ir.SelectionResult, 0, len(u.Fields))
			for _, name := range u.Fields {
				v, err := coerce(m.Scalar(name), flat[name])
				if err != nil {
					return nil, nil, err
				}
				sel = append(sel, ir.FieldValue{Field: name, Value: v})
				delete(flat, name)
			}
			for k, v := range flat {
				rest[k] = v
			}
			return sel, rest, nil
		}
	}

	names := make([]string, 0, len(m.UniqueCriteria()))
	for _, u := range m.UniqueCriteria() {
		names = append(names, strings.Join(u.Fields, "+"))
	}
	return nil, nil, errorf(ErrUnresolvableSelector, m.Name, "",
		"selector names no unique criterion, expected one of: %s", strings.Join(names, ", "))
}

// ExtractUniqueFilter turns a unique where into a filter: equalities over
// the first covered unique criterion, ANDed with any other conditions.
func ExtractUniqueFilter(m *schema.Model, where ir.IRValue) (filter.Filter, error) {
	sel, rest, err := uniqueSelection(m, where)
	if err != nil {
		return nil, err
	}
	extra, err := parseFilter(m, rest)
	if err != nil {
		return nil, err
	}
	f := filter.AndOf(filter.FromSelection(sel), extra)
	if err := filter.Validate(f, m); err != nil {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "where: %v", err)
	}
	return f, nil
}

// uniqueFilters resolves one or a list of unique selectors, dropping
// duplicates.
func uniqueFilters(m *schema.Model, v ir.IRValue) ([]filter.Filter, error) {
	var out []filter.Filter
	seen := make(map[string]bool)
	for _, item := range listOf(v) {
		f, err := ExtractUniqueFilter(m, item)
		if err != nil {
			return nil, err
		}
		key := filter.Format(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out, nil
}

// listOf returns the items of a list argument, or the value itself as a
// single item.
func listOf(v ir.IRValue) []ir.IRValue {
	if arr, ok := v.(ir.IRArray); ok {
		return arr
	}
	return []ir.IRValue{v}
}

func parseOrderBy(m *schema.Model, v ir.IRValue) ([]query.OrderBy, error) {
	var out []query.OrderBy
	for _, item := range listOf(v) {
		obj, ok := item.(ir.IRObject)
		if !ok || len(obj) != 1 {
			return nil, errorf(ErrInvalidArgument, m.Name, "", "orderBy items must have exactly one field")
		}
		for name, dir := range obj {
			if m.Scalar(name) == nil {
				return nil, errorf(ErrUnknownField, m.Name, name, "unknown field in orderBy")
			}
			switch dir {
			case ir.IRString("asc"):
				out = append(out, query.OrderBy{Field: name})
			case ir.IRString("desc"):
				out = append(out, query.OrderBy{Field: name, Desc: true})
			default:
				return nil, errorf(ErrInvalidArgument, m.Name, name, "sort order must be asc or desc")
			}
		}
	}
	return out, nil
}

// coerce checks v against the type of f, widening integers to floats and
// normalizing date-times to UTC.
func coerce(f *schema.ScalarField, v ir.IRValue) (ir.IRValue, error) {
	if ir.IsNull(v) {
		return ir.IRNull{}, nil
	}
	switch f.Type {
	case schema.TypeJSON:
		return v, nil
	case schema.TypeInt:
		switch x := v.(type) {
		case ir.IRInt:
			return x, nil
		case ir.IRFloat:
			if float64(int64(x)) == float64(x) {
				return ir.IRInt(int64(x)), nil
			}
		}
	case schema.TypeFloat:
		switch x := v.(type) {
		case ir.IRFloat:
			return x, nil
		case ir.IRInt:
			return ir.IRFloat(float64(x)), nil
		}
	case schema.TypeBoolean:
		if x, ok := v.(ir.IRBool); ok {
			return x, nil
		}
	case schema.TypeString:
		if x, ok := v.(ir.IRString); ok {
			return x, nil
		}
	case schema.TypeDateTime:
		if x, ok := v.(ir.IRString); ok {
			t, err := time.Parse(time.RFC3339Nano, string(x))
			if err != nil {
				return nil, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "invalid DateTime %q", string(x))
			}
			return ir.IRString(t.UTC().Format(time.RFC3339Nano)), nil
		}
	}
	return nil, errorf(ErrInvalidArgument, f.Model().Name, f.Name, "expected %s, got %s", f.Type, ir.String(v))
}

func intArg(m *schema.Model, name string, v ir.IRValue) (int, error) {
	switch x := v.(type) {
	case ir.IRInt:
		return int(x), nil
	case ir.IRFloat:
		if float64(int64(x)) == float64(x) {
			return int(x), nil
		}
	}
	return 0, errorf(ErrInvalidArgument, m.Name, "", "%s must be an integer", name)
}

func boolArg(m *schema.Model, name string, v ir.IRValue) (bool, error) {
	b, ok := v.(ir.IRBool)
	if !ok {
		return false, errorf(ErrInvalidArgument, m.Name, "", "%s must be a boolean", name)
	}
	return bool(b), nil
}

func objectArg(m *schema.Model, name string, v ir.IRValue) (ir.IRObject, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, errorf(ErrInvalidArgument, m.Name, "", "%s must be an object", name)
	}
	return obj, nil
}
