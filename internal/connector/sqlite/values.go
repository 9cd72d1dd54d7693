package sqlite

import (
	"fmt"
	"time"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// param converts a value into a driver parameter for field f.
func param(f *schema.ScalarField, v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	switch f.Type {
	case schema.TypeJSON:
		b, err := ir.MarshalIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		return string(b), nil
	case schema.TypeBoolean:
		b, ok := v.(ir.IRBool)
		if !ok {
			return nil, fmt.Errorf("%s: expected a boolean, got %s", f.Name, ir.String(v))
		}
		return bool(b), nil
	case schema.TypeInt:
		if _, ok := v.(ir.IRInt); !ok {
			return nil, fmt.Errorf("%s: expected an integer, got %s", f.Name, ir.String(v))
		}
	case schema.TypeString, schema.TypeDateTime:
		if _, ok := v.(ir.IRString); !ok {
			return nil, fmt.Errorf("%s: expected a string, got %s", f.Name, ir.String(v))
		}
	}
	return ir.ToAny(v), nil
}

// decode converts a scanned column into a value of field f.
func decode(f *schema.ScalarField, raw any) (ir.IRValue, error) {
	if raw == nil {
		return ir.IRNull{}, nil
	}
	switch f.Type {
	case schema.TypeInt:
		switch v := raw.(type) {
		case int64:
			return ir.IRInt(v), nil
		case float64:
			return ir.IRInt(int64(v)), nil
		}
	case schema.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return ir.IRFloat(v), nil
		case int64:
			return ir.IRFloat(float64(v)), nil
		}
	case schema.TypeBoolean:
		switch v := raw.(type) {
		case int64:
			return ir.IRBool(v != 0), nil
		case bool:
			return ir.IRBool(v), nil
		}
	case schema.TypeString, schema.TypeDateTime:
		switch v := raw.(type) {
		case string:
			return ir.IRString(v), nil
		case []byte:
			return ir.IRString(v), nil
		case time.Time:
			return ir.IRString(v.UTC().Format(time.RFC3339Nano)), nil
		}
	case schema.TypeJSON:
		switch v := raw.(type) {
		case string:
			return ir.UnmarshalIRValue([]byte(v))
		case []byte:
			return ir.UnmarshalIRValue(v)
		}
	}
	return nil, fmt.Errorf("%s.%s: cannot decode %T as %s", f.Model().Name, f.Name, raw, f.Type)
}

// decodeAggregate converts one aggregate column.
func decodeAggregate(m *schema.Model, kind query.AggregateKind, field string, raw any) (ir.IRValue, error) {
	if raw == nil {
		if kind == query.AggCount {
			return ir.IRInt(0), nil
		}
		return ir.IRNull{}, nil
	}
	switch kind {
	case query.AggCount:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("count returned %T", raw)
		}
		return ir.IRInt(n), nil
	case query.AggAvg:
		switch v := raw.(type) {
		case float64:
			return ir.IRFloat(v), nil
		case int64:
			return ir.IRFloat(float64(v)), nil
		}
		return nil, fmt.Errorf("avg returned %T", raw)
	default:
		f, err := scalarField(m, field)
		if err != nil {
			return nil, err
		}
		return decode(f, raw)
	}
}

// decodeRaw converts a column of a raw query, where no field type is known.
func decodeRaw(raw any) (ir.IRValue, error) {
	switch v := raw.(type) {
	case nil:
		return ir.IRNull{}, nil
	case []byte:
		return ir.IRString(v), nil
	case time.Time:
		return ir.IRString(v.UTC().Format(time.RFC3339Nano)), nil
	default:
		return ir.FromAny(v)
	}
}
