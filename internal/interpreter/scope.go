package interpreter

import (
	"fmt"
	"slices"
)

// CheckBindings walks expr and verifies that every Get, GetFirstNonEmpty
// and Func lookup names a binding made earlier in the same or an
// enclosing Let. It evaluates nothing.
func CheckBindings(expr Expression) error {
	return checkScope(expr, nil)
}

func checkScope(expr Expression, scope []string) error {
	switch e := expr.(type) {
	case *Let:
		inner := slices.Clone(scope)
		for _, b := range e.Bindings {
			if err := checkScope(b.Expr, inner); err != nil {
				return err
			}
			inner = append(inner, b.Name)
		}
		return checkSeq(e.Exprs, inner)
	case *Sequence:
		return checkSeq(e.Exprs, scope)
	case *Get:
		if !slices.Contains(scope, e.Name) {
			return envVarNotFound(e.Name)
		}
	case *GetFirstNonEmpty:
		if !slices.ContainsFunc(e.Names, func(n string) bool { return slices.Contains(scope, n) }) {
			return &Error{Kind: ErrEnvVarNotFound, Message: fmt.Sprintf("none of %v bound", e.Names)}
		}
	case *Func:
		for _, name := range e.Reads {
			if !slices.Contains(scope, name) {
				return envVarNotFound(name)
			}
		}
		if e.Next != nil {
			return checkScope(e.Next, scope)
		}
	case *If:
		if err := checkSeq(e.Then, scope); err != nil {
			return err
		}
		return checkSeq(e.Else, scope)
	}
	return nil
}

// checkSeq checks a sequence sharing one scope; a Get consumes its name
// for the expressions after it.
func checkSeq(exprs []Expression, scope []string) error {
	scope = slices.Clone(scope)
	for _, x := range exprs {
		if err := checkScope(x, scope); err != nil {
			return err
		}
		if g, ok := x.(*Get); ok {
			scope = slices.DeleteFunc(scope, func(n string) bool { return n == g.Name })
		}
	}
	return nil
}
