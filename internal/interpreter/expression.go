package interpreter

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/graph"
)

// Expression is one step of the evaluable tree a graph lowers to.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	expression()
}

// Query executes the primitive read or write of a graph node.
type Query struct {
	Node graph.NodeID
	Op   graph.Node
}

// Sequence evaluates Exprs in order and yields the last result.
type Sequence struct {
	Exprs []Expression
}

// Binding names the result of Expr.
type Binding struct {
	Name string
	Expr Expression
}

// Let evaluates Bindings into a copy of the enclosing environment, each
// seeing the previous ones, then evaluates Exprs as a Sequence there.
type Let struct {
	Bindings []Binding
	Exprs    []Expression
}

// Get consumes a binding.
type Get struct {
	Name string
}

// GetFirstNonEmpty yields the first bound, non-empty result among Names.
type GetFirstNonEmpty struct {
	Names []string
}

// If evaluates one branch depending on Cond.
type If struct {
	Node graph.NodeID
	Cond bool
	Then []Expression
	Else []Expression
}

// Func produces the next expression from the current environment. Used
// to apply a node's incoming edges once its parents' results are bound.
type Func struct {
	Node graph.NodeID
	Fn   func(env *Env) (Expression, error)

	// Reads lists the bindings Fn looks up.
	Reads []string

	// Next is the expression Fn yields before edge data is applied. It
	// is only used for display.
	Next Expression
}

// Return yields a fixed result.
type Return struct {
	Result Result
}

func (*Query) expression()            {}
func (*Sequence) expression()         {}
func (*Let) expression()              {}
func (*Get) expression()              {}
func (*GetFirstNonEmpty) expression() {}
func (*If) expression()               {}
func (*Func) expression()             {}
func (*Return) expression()           {}

// Format renders an expression tree, one expression per line.
func Format(e Expression) string {
	var b strings.Builder
	format(&b, e, 0)
	return b.String()
}

func format(b *strings.Builder, e Expression, depth int) {
	pad := strings.Repeat("  ", depth)
	switch v := e.(type) {
	case *Query:
		fmt.Fprintf(b, "%squery %d: %s\n", pad, v.Node, v.Op)
	case *Sequence:
		fmt.Fprintf(b, "%ssequence\n", pad)
		for _, x := range v.Exprs {
			format(b, x, depth+1)
		}
	case *Let:
		fmt.Fprintf(b, "%slet\n", pad)
		for _, bind := range v.Bindings {
			fmt.Fprintf(b, "%s  %s =\n", pad, bind.Name)
			format(b, bind.Expr, depth+2)
		}
		fmt.Fprintf(b, "%sin\n", pad)
		for _, x := range v.Exprs {
			format(b, x, depth+1)
		}
	case *Get:
		fmt.Fprintf(b, "%sget %s\n", pad, v.Name)
	case *GetFirstNonEmpty:
		fmt.Fprintf(b, "%sget first non-empty %s\n", pad, strings.Join(v.Names, ", "))
	case *If:
		fmt.Fprintf(b, "%sif %d\n", pad, v.Node)
		fmt.Fprintf(b, "%sthen\n", pad)
		for _, x := range v.Then {
			format(b, x, depth+1)
		}
		fmt.Fprintf(b, "%selse\n", pad)
		for _, x := range v.Else {
			format(b, x, depth+1)
		}
	case *Func:
		fmt.Fprintf(b, "%sfunc %d\n", pad, v.Node)
		if v.Next != nil {
			format(b, v.Next, depth+1)
		}
	case *Return:
		fmt.Fprintf(b, "%sreturn\n", pad)
	default:
		fmt.Fprintf(b, "%s%T\n", pad, e)
	}
}
