package request

import (
	"github.com/roach88/qgraph/internal/ir"
)

// Selection is one field of a validated request: an operation at the root,
// a scalar or relation field below it. Arguments are already coerced to
// IR values.
type Selection struct {
	Name       string
	Alias      string
	Arguments  ir.IRObject
	Selections []*Selection
}

// Key is the name the field is returned under.
func (s *Selection) Key() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// Arg returns the named argument.
func (s *Selection) Arg(name string) (ir.IRValue, bool) {
	if s.Arguments == nil {
		return nil, false
	}
	v, ok := s.Arguments[name]
	return v, ok
}

// ArgNames returns the argument names in canonical order.
func (s *Selection) ArgNames() []string {
	return s.Arguments.SortedKeys()
}

// Field returns a selection of name with the given nested selections.
func Field(name string, nested ...*Selection) *Selection {
	return &Selection{Name: name, Selections: nested}
}

// Fields returns one leaf selection per name.
func Fields(names ...string) []*Selection {
	out := make([]*Selection, len(names))
	for i, n := range names {
		out[i] = &Selection{Name: n}
	}
	return out
}

// WithArgs sets the arguments of s and returns it.
func (s *Selection) WithArgs(args ir.IRObject) *Selection {
	s.Arguments = args
	return s
}

// As sets the alias of s and returns it.
func (s *Selection) As(alias string) *Selection {
	s.Alias = alias
	return s
}
