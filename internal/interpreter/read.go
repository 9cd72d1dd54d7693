package interpreter

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
)

func (in *Interpreter) read(ctx context.Context, q query.Read) (Result, error) {
	switch q := q.(type) {
	case *query.RecordQuery:
		rs, err := in.conn.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		items := toItems(rs)
		if len(items) > 1 {
			items = items[:1]
		}
		if err := in.resolveNested(ctx, items, q.Nested); err != nil {
			return nil, err
		}
		return &Records{Key: q.Key, Model: q.Model, Items: items}, nil

	case *query.ManyRecordsQuery:
		if q.Args.CursorNotFound {
			return &Records{Key: q.Key, Model: q.Model}, nil
		}
		rs, err := in.conn.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		items := toItems(rs)
		if err := in.resolveNested(ctx, items, q.Nested); err != nil {
			return nil, err
		}
		return &Records{Key: q.Key, Model: q.Model, Items: items}, nil

	case *query.AggregateRecordsQuery:
		rs, err := in.conn.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		if rs.Len() != 1 {
			return nil, fmt.Errorf("aggregate returned %d rows", rs.Len())
		}
		return &Aggregate{Key: q.Key, Values: rs.Records[0]}, nil

	default:
		return nil, &Error{Kind: ErrInvariant, Message: fmt.Sprintf("read %T cannot run as a node", q)}
	}
}

func toItems(rs *query.RecordSet) []*Item {
	items := make([]*Item, rs.Len())
	for i, rec := range rs.Records {
		items[i] = &Item{Record: rec}
	}
	return items
}

// resolveNested runs each nested read once for all parents, then groups
// the children by parent and paginates each group in memory.
func (in *Interpreter) resolveNested(ctx context.Context, parents []*Item, nested []*query.RelatedRecordsQuery) error {
	for _, nq := range nested {
		linking := nq.ParentField.LinkingFields()

		keys := make([]string, len(parents))
		var links []ir.SelectionResult
		for i, p := range parents {
			if p.Related == nil {
				p.Related = make(map[string][]*Item)
			}
			p.Related[nq.Key] = nil

			sel, err := p.Record.Project(linking)
			if err != nil {
				return &Error{Kind: ErrInvariant, Message: fmt.Sprintf("nested %s: %v", nq.Key, err)}
			}
			if sel.HasNull() {
				continue
			}
			keys[i] = sel.Key()
			links = append(links, sel)
		}
		links = ir.Dedup(links)
		if len(links) == 0 {
			continue
		}

		run := *nq
		run.ParentResults = links
		rs, err := in.conn.Query(ctx, &run)
		if err != nil {
			return err
		}
		if len(rs.ParentLinks) != rs.Len() {
			return &Error{Kind: ErrInvariant, Message: fmt.Sprintf("nested %s: %d parent links for %d records", nq.Key, len(rs.ParentLinks), rs.Len())}
		}

		groups := make(map[string][]*Item)
		for i, rec := range rs.Records {
			k := rs.ParentLinks[i].Key()
			groups[k] = append(groups[k], &Item{Record: rec})
		}

		var kept []*Item
		for i, p := range parents {
			if keys[i] == "" {
				continue
			}
			page := Paginate(groups[keys[i]], nq.Args)
			p.Related[nq.Key] = page
			kept = append(kept, page...)
		}
		if err := in.resolveNested(ctx, kept, nq.Nested); err != nil {
			return err
		}
	}
	return nil
}

// Paginate applies cursor, skip and take to items already in the
// requested order. A negative take counts backwards from the cursor (or
// the end) and keeps the original order.
func Paginate(items []*Item, args query.QueryArguments) []*Item {
	if !args.Paginated() {
		return items
	}
	out := slices.Clone(items)
	rev := args.Reversed()
	if rev {
		slices.Reverse(out)
	}
	if len(args.Cursor) > 0 {
		i := slices.IndexFunc(out, func(it *Item) bool { return matches(it.Record, args.Cursor) })
		if i < 0 {
			return nil
		}
		out = out[i:]
	}
	out = out[min(args.Skip, len(out)):]
	if limit := args.Limit(); limit >= 0 {
		out = out[:min(limit, len(out))]
	}
	if rev {
		slices.Reverse(out)
	}
	return out
}

func matches(rec ir.Record, sel ir.SelectionResult) bool {
	for _, fv := range sel {
		if !ir.Equal(rec.Get(fv.Field), fv.Value) {
			return false
		}
	}
	return true
}
