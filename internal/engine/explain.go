package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/interpreter"
	"github.com/roach88/qgraph/internal/request"
)

// Explanation describes how an operation would run, without running it.
type Explanation struct {
	Key           string `json:"key"`
	Operation     string `json:"operation"`
	Fingerprint   string `json:"fingerprint"`
	Transactional bool   `json:"transactional"`

	// Graph is the rendered query graph, Program its lowered form. Raw
	// operations have neither and set Raw instead.
	Graph   string `json:"graph,omitempty"`
	Program string `json:"program,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

func (x *Explanation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", x.Key, x.Operation)
	fmt.Fprintf(&b, "fingerprint: %s\n", x.Fingerprint)
	if x.Raw != "" {
		fmt.Fprintf(&b, "raw: %s\n", x.Raw)
		return b.String()
	}
	b.WriteString(x.Graph)
	b.WriteString("program:\n")
	for _, line := range strings.Split(strings.TrimRight(x.Program, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

// Explain builds and lowers sel. Errors carry the same codes Execute
// would return for the request.
func Explain(qs *builder.QuerySchema, sel *request.Selection) (*Explanation, error) {
	plan, err := qs.Build(sel)
	if err != nil {
		return nil, translate(err, "")
	}
	fp, err := Fingerprint(sel)
	if err != nil {
		return nil, translate(err, "")
	}
	x := &Explanation{
		Key:           sel.Key(),
		Operation:     plan.Operation.Name,
		Fingerprint:   fp,
		Transactional: plan.Transactional(),
	}
	if plan.Raw != nil {
		x.Raw = plan.Raw.String()
		return x, nil
	}
	expr, err := interpreter.Lower(plan.Graph)
	if err != nil {
		return nil, translate(err, "")
	}
	x.Graph = plan.Graph.String()
	x.Program = interpreter.Format(expr)
	return x, nil
}
