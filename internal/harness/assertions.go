package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Statements is the full statement trace, for context.
	Statements []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	if len(e.Statements) > 0 {
		buf.WriteString("\nstatements:\n")
		for i, s := range e.Statements {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, s)
		}
	}
	return buf.String()
}

func (h *Harness) evaluate(ctx context.Context, result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Statements(), a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Statements(), a)
	case AssertTraceCount:
		return assertTraceCount(result.Statements(), a)
	case AssertFinalState:
		return h.assertFinalState(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func countPrefix(stmts []string, prefix string) int {
	n := 0
	for _, s := range stmts {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func assertTraceContains(stmts []string, a Assertion) error {
	if countPrefix(stmts, a.Statement) > 0 {
		return nil
	}
	return &AssertionError{
		Type:       AssertTraceContains,
		Expected:   fmt.Sprintf("a statement starting with %q", a.Statement),
		Actual:     "none found",
		Statements: stmts,
	}
}

// assertTraceOrder checks that the prefixes match statements in order,
// not necessarily adjacent.
func assertTraceOrder(stmts []string, a Assertion) error {
	next := 0
	for _, s := range stmts {
		if next < len(a.Statements) && strings.HasPrefix(s, a.Statements[next]) {
			next++
		}
	}
	if next == len(a.Statements) {
		return nil
	}
	return &AssertionError{
		Type:       AssertTraceOrder,
		Expected:   fmt.Sprintf("statements in order: %s", strings.Join(a.Statements, " -> ")),
		Actual:     fmt.Sprintf("no statement starting with %q after the first %d matched", a.Statements[next], next),
		Statements: stmts,
	}
}

func assertTraceCount(stmts []string, a Assertion) error {
	n := countPrefix(stmts, a.Statement)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:       AssertTraceCount,
		Expected:   fmt.Sprintf("%d statements starting with %q", a.Count, a.Statement),
		Actual:     fmt.Sprintf("%d", n),
		Statements: stmts,
	}
}

// assertFinalState reads the model through the engine itself, so the
// assertion sees exactly what a client would.
func (h *Harness) assertFinalState(ctx context.Context, a Assertion) error {
	sel := &request.Selection{Name: "findMany" + a.Model}
	if len(a.Where) > 0 {
		where, err := ir.FromAny(a.Where)
		if err != nil {
			return fmt.Errorf("where: %w", err)
		}
		sel.Arguments = ir.IRObject{"where": where}
	}
	v, err := h.engine.Execute(ctx, sel)
	if err != nil {
		return fmt.Errorf("final_state query: %w", err)
	}
	rows, ok := v.(response.List)
	if !ok {
		return fmt.Errorf("final_state query returned %T", v)
	}

	desc := fmt.Sprintf("%s where %s", a.Model, formatWhere(a.Where))
	if a.Expect == nil {
		if len(rows) == 0 {
			return nil
		}
		return &AssertionError{Type: AssertFinalState, Expected: "no " + desc, Actual: fmt.Sprintf("%d rows", len(rows))}
	}
	if len(rows) != 1 {
		return &AssertionError{Type: AssertFinalState, Expected: "exactly one " + desc, Actual: fmt.Sprintf("%d rows", len(rows))}
	}

	want, err := ir.FromAny(a.Expect)
	if err != nil {
		return fmt.Errorf("expect: %w", err)
	}
	got, err := ir.FromAny(response.ToAny(rows[0]))
	if err != nil {
		return err
	}
	if m := matchSubset(got, want, a.Model); m != nil {
		return &AssertionError{Type: AssertFinalState, Expected: fmt.Sprintf("%s = %s", m.Path, ir.String(m.Want)), Actual: ir.String(m.Got)}
	}
	return nil
}

func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(all)"
	}
	obj, err := ir.FromAny(where)
	if err != nil {
		return fmt.Sprint(where)
	}
	return ir.String(obj)
}

// mismatch locates the first difference found by matchSubset.
type mismatch struct {
	Path      string
	Got, Want ir.IRValue
}

func (m *mismatch) String() string {
	return fmt.Sprintf("mismatch at %s: got %s, want %s", m.Path, ir.String(m.Got), ir.String(m.Want))
}

// matchSubset reports where got fails to contain want. Objects in got may
// carry extra keys; lists must match element by element; scalars compare
// with ir.Equal, so 1 and 1.0 are the same.
func matchSubset(got, want ir.IRValue, path string) *mismatch {
	switch w := want.(type) {
	case ir.IRObject:
		g, ok := got.(ir.IRObject)
		if !ok {
			return &mismatch{Path: path, Got: got, Want: want}
		}
		for _, k := range w.SortedKeys() {
			gv, ok := g[k]
			if !ok {
				gv = ir.IRNull{}
				if !ir.IsNull(w[k]) {
					return &mismatch{Path: path + "." + k, Got: nil, Want: w[k]}
				}
			}
			if m := matchSubset(gv, w[k], path+"."+k); m != nil {
				return m
			}
		}
		return nil
	case ir.IRArray:
		g, ok := got.(ir.IRArray)
		if !ok || len(g) != len(w) {
			return &mismatch{Path: path, Got: got, Want: want}
		}
		for i := range w {
			if m := matchSubset(g[i], w[i], fmt.Sprintf("%s[%d]", path, i)); m != nil {
				return m
			}
		}
		return nil
	default:
		if !ir.Equal(got, want) {
			return &mismatch{Path: path, Got: got, Want: want}
		}
		return nil
	}
}
