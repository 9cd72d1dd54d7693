package response

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/qgraph/internal/ir"
)

// Value is one node of a response tree.
//
// This is a sealed interface - only types in this package implement it.
type Value interface {
	json.Marshaler
	responseValue()
}

// Map is an object whose keys keep insertion order.
type Map struct {
	keys []string
	vals map[string]Value
}

// List is an ordered list of values.
type List []Value

// Null is the absent value of a to-one relation or an optional field.
type Null struct{}

// Scalar wraps a leaf value.
type Scalar struct {
	Value ir.IRValue
}

func (*Map) responseValue()   {}
func (List) responseValue()   {}
func (Null) responseValue()   {}
func (Scalar) responseValue() {}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

// Set adds or replaces key. Replacing keeps the original position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.keys) }

func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := m.vals[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		vb, err := v.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return ir.MarshalIRValue(s.Value)
}

// ToAny converts a response tree into plain Go maps, slices and scalars.
// Key order is lost.
func ToAny(v Value) any {
	switch val := v.(type) {
	case *Map:
		out := make(map[string]any, len(val.keys))
		for _, k := range val.keys {
			out[k] = ToAny(val.vals[k])
		}
		return out
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Scalar:
		return ir.ToAny(val.Value)
	default:
		return nil
	}
}
