package engine

import (
	"context"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/request"
	"github.com/roach88/qgraph/internal/response"
)

// ExecuteDocument runs a request document. A single non-transactional
// operation returns its own response. Anything else is a batch answered
// with a list in operation order, where a failed item of an isolated
// batch is rendered with ErrorValue.
func (e *Engine) ExecuteDocument(ctx context.Context, doc *request.Document) (response.Value, error) {
	if len(doc.Operations) == 1 && !doc.Transaction {
		return e.Execute(ctx, doc.Operations[0])
	}
	out, err := e.ExecuteMany(ctx, doc.Operations, doc.Transaction)
	if err != nil {
		return nil, err
	}
	list := make(response.List, len(out))
	for i, o := range out {
		if o.Err != nil {
			list[i] = ErrorValue(o.Err)
			continue
		}
		list[i] = o.Value
	}
	return list, nil
}

// ErrorValue renders an error as a response object:
//
//	{"error": {"code": "P2002", "message": "..."}}
func ErrorValue(err *Error) response.Value {
	body := response.NewMap()
	body.Set("code", response.Scalar{Value: ir.IRString(err.Code)})
	body.Set("message", response.Scalar{Value: ir.IRString(err.Message)})
	out := response.NewMap()
	out.Set("error", body)
	return out
}
