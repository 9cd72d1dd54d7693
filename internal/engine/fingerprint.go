package engine

import (
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/request"
)

// Fingerprint identifies a request exactly.
func Fingerprint(sel *request.Selection) (string, error) {
	return ir.RequestFingerprint(sel.Name, sel.Arguments, selectionValue(sel.Selections, false))
}

// shapeOf returns the shape fingerprint of a request, shortened for logs.
// Requests whose arguments cannot be fingerprinted get an empty shape.
func shapeOf(sel *request.Selection) string {
	fp, err := ir.ShapeFingerprint(sel.Name, sel.Arguments, selectionValue(sel.Selections, true))
	if err != nil {
		return ""
	}
	return fp[:16]
}

func selectionValue(sels []*request.Selection, shaped bool) ir.IRValue {
	out := make(ir.IRArray, 0, len(sels))
	for _, s := range sels {
		item := ir.IRObject{"name": ir.IRString(s.Name)}
		if s.Alias != "" {
			item["alias"] = ir.IRString(s.Alias)
		}
		if len(s.Arguments) > 0 {
			var args ir.IRValue = s.Arguments
			if shaped {
				args = ir.Shape(args)
			}
			item["args"] = args
		}
		if len(s.Selections) > 0 {
			item["select"] = selectionValue(s.Selections, shaped)
		}
		out = append(out, item)
	}
	return out
}
