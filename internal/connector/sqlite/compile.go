package sqlite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
	"github.com/roach88/qgraph/internal/schema"
)

// statement is one parameterized SQL statement.
type statement struct {
	sql  string
	args []any
}

// readPlan is a compiled read plus what is needed to decode its rows.
type readPlan struct {
	stmt   statement
	fields []*schema.ScalarField

	// reverse flips the scanned rows back into the requested order after
	// a negative take read them backwards.
	reverse bool

	// For related reads: parentFields name the parent linking fields.
	// childFields are the fields of each row holding the link, or, for
	// many-to-many, joinField types the extra join column.
	parentFields []string
	childFields  []string
	joinField    *schema.ScalarField

	aggregates []aggregateColumn
}

type aggregateColumn struct {
	kind   query.AggregateKind
	field  string
	column string
}

const root = "t0"

func fieldsOf(m *schema.Model, cols []string) ([]*schema.ScalarField, error) {
	if len(cols) == 0 {
		return m.Fields, nil
	}
	out := make([]*schema.ScalarField, len(cols))
	for i, name := range cols {
		f, err := scalarField(m, name)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func selectList(fields []*schema.ScalarField, alias string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if alias == "" {
			parts[i] = quote(f.Column)
		} else {
			parts[i] = alias + "." + quote(f.Column)
		}
	}
	return strings.Join(parts, ", ")
}

// ordering returns the effective order of a read, primary key last. A
// reversed read flips every direction.
func ordering(m *schema.Model, args query.QueryArguments, reversed bool) []query.OrderBy {
	ord := args.Ordering(m)
	if reversed {
		for i := range ord {
			ord[i].Desc = !ord[i].Desc
		}
	}
	return ord
}

func orderClause(m *schema.Model, alias string, ord []query.OrderBy) (string, error) {
	parts := make([]string, len(ord))
	for i, o := range ord {
		col, err := qualified(m, alias, o.Field)
		if err != nil {
			return "", err
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts[i] = col + dir
	}
	return strings.Join(parts, ", "), nil
}

// cursorCondition keeps the rows at or after the cursor row in the given
// order: a lexicographic comparison over the ordering fields.
func (c *compiler) cursorCondition(m *schema.Model, alias string, ord []query.OrderBy, row ir.SelectionResult) (string, error) {
	var branches []string
	for i := range ord {
		var terms []string
		for j := 0; j <= i; j++ {
			f, err := scalarField(m, ord[j].Field)
			if err != nil {
				return "", err
			}
			v, ok := row.Get(ord[j].Field)
			if !ok {
				return "", fmt.Errorf("cursor row lacks ordering field %q", ord[j].Field)
			}
			p, err := param(f, v)
			if err != nil {
				return "", err
			}
			col, _ := qualified(m, alias, ord[j].Field)
			op := " = "
			if j == i {
				op = " > "
				if ord[j].Desc {
					op = " < "
				}
			}
			terms = append(terms, col+op+c.bind(p))
		}
		branches = append(branches, "("+strings.Join(terms, " AND ")+")")
	}

	var eq []string
	for _, o := range ord {
		f, _ := scalarField(m, o.Field)
		v, _ := row.Get(o.Field)
		p, err := param(f, v)
		if err != nil {
			return "", err
		}
		col, _ := qualified(m, alias, o.Field)
		eq = append(eq, col+" = "+c.bind(p))
	}
	branches = append(branches, "("+strings.Join(eq, " AND ")+")")
	return "(" + strings.Join(branches, " OR ") + ")", nil
}

func limitClause(c *compiler, args query.QueryArguments) string {
	switch {
	case args.Take != nil:
		s := " LIMIT " + c.bind(int64(args.Limit()))
		if args.Skip > 0 {
			s += " OFFSET " + c.bind(int64(args.Skip))
		}
		return s
	case args.Skip > 0:
		return " LIMIT -1 OFFSET " + c.bind(int64(args.Skip))
	default:
		return ""
	}
}

// listWhere renders the filter and the cursor condition of a list read.
func (c *compiler) listWhere(m *schema.Model, args query.QueryArguments, ord []query.OrderBy) (string, error) {
	where, err := c.compileFilter(m, root, args.Filter)
	if err != nil {
		return "", err
	}
	if len(args.CursorRow) > 0 {
		cur, err := c.cursorCondition(m, root, ord, args.CursorRow)
		if err != nil {
			return "", err
		}
		where = where + " AND " + cur
	}
	return where, nil
}

func compileRead(q query.Read) (*readPlan, error) {
	c := &compiler{}
	switch q := q.(type) {
	case *query.RecordQuery:
		m := q.Model
		fields, err := fieldsOf(m, q.Columns)
		if err != nil {
			return nil, err
		}
		where, err := c.compileFilter(m, root, q.Filter)
		if err != nil {
			return nil, err
		}
		order, err := orderClause(m, root, ordering(m, query.QueryArguments{}, false))
		if err != nil {
			return nil, err
		}
		sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s ORDER BY %s LIMIT 1",
			selectList(fields, root), quote(m.Table), root, where, order)
		return &readPlan{stmt: statement{sql, c.args}, fields: fields}, nil

	case *query.ManyRecordsQuery:
		m := q.Model
		fields, err := fieldsOf(m, q.Columns)
		if err != nil {
			return nil, err
		}
		rev := q.Args.Reversed()
		ord := ordering(m, q.Args, rev)
		where, err := c.listWhere(m, q.Args, ord)
		if err != nil {
			return nil, err
		}
		order, err := orderClause(m, root, ord)
		if err != nil {
			return nil, err
		}
		sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s ORDER BY %s",
			selectList(fields, root), quote(m.Table), root, where, order)
		sql += limitClause(c, q.Args)
		return &readPlan{stmt: statement{sql, c.args}, fields: fields, reverse: rev}, nil

	case *query.RelatedRecordsQuery:
		return c.compileRelated(q)

	case *query.AggregateRecordsQuery:
		return c.compileAggregate(q)

	default:
		return nil, fmt.Errorf("unsupported read %T", q)
	}
}

// compileRelated reads the children of every parent at once. Pagination
// is left to the caller, which applies it per parent.
func (c *compiler) compileRelated(q *query.RelatedRecordsQuery) (*readPlan, error) {
	rf := q.ParentField
	m := rf.RelatedModel()
	plan := &readPlan{parentFields: rf.LinkingFields()}

	ord := ordering(m, query.QueryArguments{OrderBy: q.Args.OrderBy}, false)
	order, err := orderClause(m, root, ord)
	if err != nil {
		return nil, err
	}

	if rf.IsManyToMany() {
		fields, err := fieldsOf(m, q.Columns)
		if err != nil {
			return nil, err
		}
		plan.fields = fields
		own, other := rf.JoinColumns()
		if len(m.PrimaryKey) != 1 || len(plan.parentFields) != 1 {
			return nil, fmt.Errorf("%s: many-to-many relations need single-field ids", rf)
		}
		plan.joinField = rf.Model().Scalar(plan.parentFields[0])
		pk, _ := qualified(m, root, m.PrimaryKey[0])

		marks := make([]string, 0, len(q.ParentResults))
		for _, p := range q.ParentResults {
			v, err := param(plan.joinField, p[0].Value)
			if err != nil {
				return nil, err
			}
			marks = append(marks, c.bind(v))
		}
		parentCond := "1 = 0"
		if len(marks) > 0 {
			parentCond = "j." + quote(own) + " IN (" + strings.Join(marks, ", ") + ")"
		}
		where, err := c.compileFilter(m, root, q.Args.Filter)
		if err != nil {
			return nil, err
		}
		plan.stmt = statement{
			sql: fmt.Sprintf("SELECT %s, j.%s FROM %s %s JOIN %s j ON j.%s = %s WHERE %s AND %s ORDER BY %s",
				selectList(fields, root), quote(own), quote(m.Table), root, quote(rf.JoinTable()),
				quote(other), pk, parentCond, where, order),
			args: c.args,
		}
		return plan, nil
	}

	plan.childFields = rf.RelatedField().LinkingFields()
	cols := q.Columns
	if len(cols) > 0 {
		cols = query.WithColumns(slices.Clone(cols), plan.childFields...)
	}
	fields, err := fieldsOf(m, cols)
	if err != nil {
		return nil, err
	}
	plan.fields = fields

	links := make([]ir.SelectionResult, 0, len(q.ParentResults))
	for _, p := range q.ParentResults {
		renamed, err := p.Rename(plan.childFields)
		if err != nil {
			return nil, err
		}
		links = append(links, renamed)
	}
	parentCond, err := c.compileFilter(m, root, filter.FromSelections(links))
	if err != nil {
		return nil, err
	}
	where, err := c.compileFilter(m, root, q.Args.Filter)
	if err != nil {
		return nil, err
	}
	plan.stmt = statement{
		sql: fmt.Sprintf("SELECT %s FROM %s %s WHERE %s AND %s ORDER BY %s",
			selectList(fields, root), quote(m.Table), root, parentCond, where, order),
		args: c.args,
	}
	return plan, nil
}

func (c *compiler) compileAggregate(q *query.AggregateRecordsQuery) (*readPlan, error) {
	m := q.Model
	rev := q.Args.Reversed()
	ord := ordering(m, q.Args, rev)
	where, err := c.listWhere(m, q.Args, ord)
	if err != nil {
		return nil, err
	}
	order, err := orderClause(m, root, ord)
	if err != nil {
		return nil, err
	}
	inner := fmt.Sprintf("SELECT %s.* FROM %s %s WHERE %s ORDER BY %s", root, quote(m.Table), root, where, order)
	inner += limitClause(c, q.Args)

	plan := &readPlan{}
	var exprs []string
	for _, sel := range q.Selections {
		for _, name := range sel.Fields {
			var expr string
			if sel.Kind == query.AggCount && name == query.AllField {
				expr = "COUNT(*)"
			} else {
				f, err := scalarField(m, name)
				if err != nil {
					return nil, err
				}
				fn, ok := aggregateFuncs[sel.Kind]
				if !ok {
					return nil, fmt.Errorf("unknown aggregate %q", sel.Kind)
				}
				expr = fn + "(" + quote(f.Column) + ")"
			}
			exprs = append(exprs, expr)
			plan.aggregates = append(plan.aggregates, aggregateColumn{kind: sel.Kind, field: name, column: sel.Column(name)})
		}
	}
	if len(exprs) == 0 {
		return nil, fmt.Errorf("aggregate on %s selects nothing", m.Name)
	}
	plan.stmt = statement{
		sql:  fmt.Sprintf("SELECT %s FROM (%s)", strings.Join(exprs, ", "), inner),
		args: c.args,
	}
	return plan, nil
}

var aggregateFuncs = map[query.AggregateKind]string{
	query.AggCount: "COUNT",
	query.AggSum:   "SUM",
	query.AggAvg:   "AVG",
	query.AggMin:   "MIN",
	query.AggMax:   "MAX",
}

func returning(fields []*schema.ScalarField) string {
	return " RETURNING " + selectList(fields, "")
}

func pkFields(m *schema.Model) []*schema.ScalarField {
	out := make([]*schema.ScalarField, len(m.PrimaryKey))
	for i, name := range m.PrimaryKey {
		out[i] = m.Scalar(name)
	}
	return out
}

func compileInsert(m *schema.Model, args *query.WriteArgs, orIgnore bool, ret []*schema.ScalarField) (statement, error) {
	vals, err := args.PlainValues()
	if err != nil {
		return statement{}, err
	}
	verb := "INSERT INTO "
	if orIgnore {
		verb = "INSERT OR IGNORE INTO "
	}
	if args.Len() == 0 {
		return statement{sql: verb + quote(m.Table) + " DEFAULT VALUES" + returning(ret)}, nil
	}

	c := &compiler{}
	cols := make([]string, 0, args.Len())
	marks := make([]string, 0, args.Len())
	for _, name := range args.Fields() {
		f, err := scalarField(m, name)
		if err != nil {
			return statement{}, err
		}
		p, err := param(f, vals[name])
		if err != nil {
			return statement{}, err
		}
		cols = append(cols, quote(f.Column))
		marks = append(marks, c.bind(p))
	}
	sql := fmt.Sprintf("%s%s (%s) VALUES (%s)%s",
		verb, quote(m.Table), strings.Join(cols, ", "), strings.Join(marks, ", "), returning(ret))
	return statement{sql, c.args}, nil
}

var writeOps = map[query.WriteOp]string{
	query.OpIncrement: "+",
	query.OpDecrement: "-",
	query.OpMultiply:  "*",
	query.OpDivide:    "/",
}

func compileUpdate(m *schema.Model, where filter.Filter, args *query.WriteArgs, ret []*schema.ScalarField) (statement, error) {
	c := &compiler{}
	sets := make([]string, 0, args.Len())
	for _, name := range args.Fields() {
		f, err := scalarField(m, name)
		if err != nil {
			return statement{}, err
		}
		e, _ := args.Get(name)
		p, err := param(f, e.Value)
		if err != nil {
			return statement{}, err
		}
		col := quote(f.Column)
		if e.Op == query.OpSet {
			sets = append(sets, col+" = "+c.bind(p))
			continue
		}
		op, ok := writeOps[e.Op]
		if !ok {
			return statement{}, fmt.Errorf("%s: unknown operation %q", name, e.Op)
		}
		sets = append(sets, col+" = "+col+" "+op+" "+c.bind(p))
	}
	cond, err := c.compileFilter(m, root, where)
	if err != nil {
		return statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s AS %s SET %s WHERE %s%s",
		quote(m.Table), root, strings.Join(sets, ", "), cond, returning(ret))
	return statement{sql, c.args}, nil
}

func compileDelete(m *schema.Model, where filter.Filter, ret []*schema.ScalarField) (statement, error) {
	c := &compiler{}
	cond, err := c.compileFilter(m, root, where)
	if err != nil {
		return statement{}, err
	}
	sql := fmt.Sprintf("DELETE FROM %s AS %s WHERE %s%s", quote(m.Table), root, cond, returning(ret))
	return statement{sql, c.args}, nil
}

// compileSelect reads fields of the records matching where, used when a
// write has nothing to change.
func compileSelect(m *schema.Model, where filter.Filter, fields []*schema.ScalarField) (statement, error) {
	c := &compiler{}
	cond, err := c.compileFilter(m, root, where)
	if err != nil {
		return statement{}, err
	}
	order, err := orderClause(m, root, ordering(m, query.QueryArguments{}, false))
	if err != nil {
		return statement{}, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s ORDER BY %s",
		selectList(fields, root), quote(m.Table), root, cond, order)
	return statement{sql, c.args}, nil
}

// compileLinks renders join table inserts or deletes for a many-to-many
// connect or disconnect.
func compileLinks(rf *schema.RelationField, parent ir.SelectionResult, children []ir.SelectionResult, connect bool) ([]statement, error) {
	if !rf.IsManyToMany() {
		return nil, fmt.Errorf("%s: connect records requires a many-to-many relation", rf)
	}
	if len(parent) != 1 {
		return nil, fmt.Errorf("%s: parent must be identified by one field", rf)
	}
	own, other := rf.JoinColumns()
	ownField := rf.Model().Scalar(rf.Model().PrimaryKey[0])
	related := rf.RelatedModel()
	otherField := related.Scalar(related.PrimaryKey[0])

	pv, err := param(ownField, parent[0].Value)
	if err != nil {
		return nil, err
	}
	table := quote(rf.JoinTable())

	if connect {
		out := make([]statement, 0, len(children))
		for _, ch := range children {
			if len(ch) != 1 {
				return nil, fmt.Errorf("%s: child must be identified by one field", rf)
			}
			cv, err := param(otherField, ch[0].Value)
			if err != nil {
				return nil, err
			}
			out = append(out, statement{
				sql:  fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)", table, quote(own), quote(other)),
				args: []any{pv, cv},
			})
		}
		return out, nil
	}

	if len(children) == 0 {
		return nil, nil
	}
	c := &compiler{}
	c.bind(pv)
	marks := make([]string, len(children))
	for i, ch := range children {
		if len(ch) != 1 {
			return nil, fmt.Errorf("%s: child must be identified by one field", rf)
		}
		cv, err := param(otherField, ch[0].Value)
		if err != nil {
			return nil, err
		}
		marks[i] = c.bind(cv)
	}
	return []statement{{
		sql:  fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s IN (%s)", table, quote(own), quote(other), strings.Join(marks, ", ")),
		args: c.args,
	}}, nil
}
