package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// querier is what *sql.Conn and *sql.Tx have in common.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// executor runs primitive queries on a querier. Conn and Tx embed it.
type executor struct {
	q      querier
	logger *slog.Logger
}

func (e *executor) Query(ctx context.Context, q query.Read) (*query.RecordSet, error) {
	plan, err := compileRead(q)
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrUnsupported, Model: q.TargetModel().Name, Cause: err}
	}
	e.logger.Debug("sqlite query", "sql", plan.stmt.sql, "params", len(plan.stmt.args))

	rows, err := e.q.QueryContext(ctx, plan.stmt.sql, plan.stmt.args...)
	if err != nil {
		return nil, translate(err, q.TargetModel())
	}
	defer rows.Close()

	if plan.aggregates != nil {
		return scanAggregate(rows, q.TargetModel(), plan)
	}

	rs := &query.RecordSet{Columns: make([]string, len(plan.fields))}
	for i, f := range plan.fields {
		rs.Columns[i] = f.Name
	}

	width := len(plan.fields)
	if plan.joinField != nil {
		width++
	}
	for rows.Next() {
		raw := make([]any, width)
		ptrs := make([]any, width)
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, translate(err, q.TargetModel())
		}
		rec := make(ir.Record, len(plan.fields))
		for i, f := range plan.fields {
			v, err := decode(f, raw[i])
			if err != nil {
				return nil, err
			}
			rec[f.Name] = v
		}
		rs.Records = append(rs.Records, rec)

		switch {
		case plan.joinField != nil:
			v, err := decode(plan.joinField, raw[len(plan.fields)])
			if err != nil {
				return nil, err
			}
			rs.ParentLinks = append(rs.ParentLinks, ir.SelectionResult{{Field: plan.parentFields[0], Value: v}})
		case plan.childFields != nil:
			sel, err := rec.Project(plan.childFields)
			if err != nil {
				return nil, err
			}
			if sel, err = sel.Rename(plan.parentFields); err != nil {
				return nil, err
			}
			rs.ParentLinks = append(rs.ParentLinks, sel)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, q.TargetModel())
	}
	if plan.reverse {
		slices.Reverse(rs.Records)
	}
	return rs, nil
}

func scanAggregate(rows *sql.Rows, m *schema.Model, plan *readPlan) (*query.RecordSet, error) {
	rs := &query.RecordSet{}
	for _, a := range plan.aggregates {
		rs.Columns = append(rs.Columns, a.column)
	}
	for rows.Next() {
		raw := make([]any, len(plan.aggregates))
		ptrs := make([]any, len(raw))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, translate(err, m)
		}
		rec := make(ir.Record, len(raw))
		for i, a := range plan.aggregates {
			v, err := decodeAggregate(m, a.kind, a.field, raw[i])
			if err != nil {
				return nil, err
			}
			rec[a.column] = v
		}
		rs.Records = append(rs.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, m)
	}
	return rs, nil
}

// returningRows runs a statement with a RETURNING or SELECT list and
// decodes the rows.
func (e *executor) returningRows(ctx context.Context, m *schema.Model, st statement, fields []*schema.ScalarField) ([]ir.Record, error) {
	e.logger.Debug("sqlite exec", "sql", st.sql, "params", len(st.args))
	rows, err := e.q.QueryContext(ctx, st.sql, st.args...)
	if err != nil {
		return nil, translate(err, m)
	}
	defer rows.Close()

	var out []ir.Record
	for rows.Next() {
		raw := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, translate(err, m)
		}
		rec := make(ir.Record, len(fields))
		for i, f := range fields {
			v, err := decode(f, raw[i])
			if err != nil {
				return nil, err
			}
			rec[f.Name] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, m)
	}
	return out, nil
}

func (e *executor) Execute(ctx context.Context, w query.Write) (*query.WriteResult, error) {
	m := w.TargetModel()
	unsupported := func(err error) error {
		return &connector.StorageError{Kind: connector.ErrUnsupported, Model: m.Name, Cause: err}
	}

	switch w := w.(type) {
	case *query.CreateRecord:
		st, err := compileInsert(m, w.Args, false, m.Fields)
		if err != nil {
			return nil, unsupported(err)
		}
		return e.records(ctx, m, st, m.Fields)

	case *query.CreateManyRecords:
		res := &query.WriteResult{}
		for _, args := range w.Args {
			st, err := compileInsert(m, args, w.SkipDuplicates, pkFields(m))
			if err != nil {
				return nil, unsupported(err)
			}
			recs, err := e.returningRows(ctx, m, st, pkFields(m))
			if err != nil {
				return nil, err
			}
			res.Count += int64(len(recs))
			res.Records = append(res.Records, recs...)
		}
		return res, nil

	case *query.UpdateRecord:
		if w.Args.Len() == 0 {
			st, err := compileSelect(m, w.Filter, m.Fields)
			if err != nil {
				return nil, unsupported(err)
			}
			return e.records(ctx, m, st, m.Fields)
		}
		st, err := compileUpdate(m, w.Filter, w.Args, m.Fields)
		if err != nil {
			return nil, unsupported(err)
		}
		return e.records(ctx, m, st, m.Fields)

	case *query.UpdateManyRecords:
		var (
			st  statement
			err error
		)
		if w.Args.Len() == 0 {
			st, err = compileSelect(m, w.Filter, pkFields(m))
		} else {
			st, err = compileUpdate(m, w.Filter, w.Args, pkFields(m))
		}
		if err != nil {
			return nil, unsupported(err)
		}
		return e.records(ctx, m, st, pkFields(m))

	case *query.DeleteRecord:
		st, err := compileDelete(m, w.Filter, m.Fields)
		if err != nil {
			return nil, unsupported(err)
		}
		return e.records(ctx, m, st, m.Fields)

	case *query.DeleteManyRecords:
		st, err := compileDelete(m, w.Filter, pkFields(m))
		if err != nil {
			return nil, unsupported(err)
		}
		return e.records(ctx, m, st, pkFields(m))

	case *query.ConnectRecords:
		return e.links(ctx, w.ParentField, w.Parent, w.Children, true)

	case *query.DisconnectRecords:
		return e.links(ctx, w.ParentField, w.Parent, w.Children, false)

	default:
		return nil, unsupported(fmt.Errorf("write %T", w))
	}
}

func (e *executor) records(ctx context.Context, m *schema.Model, st statement, fields []*schema.ScalarField) (*query.WriteResult, error) {
	recs, err := e.returningRows(ctx, m, st, fields)
	if err != nil {
		return nil, err
	}
	return &query.WriteResult{Count: int64(len(recs)), Records: recs}, nil
}

func (e *executor) links(ctx context.Context, rf *schema.RelationField, parent ir.SelectionResult, children []ir.SelectionResult, connect bool) (*query.WriteResult, error) {
	stmts, err := compileLinks(rf, parent, children, connect)
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrUnsupported, Model: rf.Model().Name, Cause: err}
	}
	res := &query.WriteResult{}
	for _, st := range stmts {
		e.logger.Debug("sqlite exec", "sql", st.sql, "params", len(st.args))
		r, err := e.q.ExecContext(ctx, st.sql, st.args...)
		if err != nil {
			return nil, translate(err, rf.Model())
		}
		n, err := r.RowsAffected()
		if err != nil {
			return nil, translate(err, rf.Model())
		}
		res.Count += n
	}
	return res, nil
}

func rawParams(params []ir.IRValue) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = ir.ToAny(p)
	}
	return out
}

func (e *executor) QueryRaw(ctx context.Context, raw query.Raw) (*query.RecordSet, error) {
	rows, err := e.q.QueryContext(ctx, raw.SQL, rawParams(raw.Params)...)
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
	}
	rs := &query.RecordSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
		}
		rec := make(ir.Record, len(cols))
		for i, c := range cols {
			v, err := decodeRaw(vals[i])
			if err != nil {
				return nil, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
			}
			rec[c] = v
		}
		rs.Records = append(rs.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
	}
	return rs, nil
}

func (e *executor) ExecuteRaw(ctx context.Context, raw query.Raw) (int64, error) {
	r, err := e.q.ExecContext(ctx, raw.SQL, rawParams(raw.Params)...)
	if err != nil {
		return 0, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, &connector.StorageError{Kind: connector.ErrRawQuery, Cause: err}
	}
	return n, nil
}
