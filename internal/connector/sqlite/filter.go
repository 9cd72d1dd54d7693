package sqlite

import (
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/filter"
	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

// compiler accumulates bound parameters and hands out table aliases for
// one statement.
type compiler struct {
	args  []any
	alias int
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "?"
}

func (c *compiler) nextAlias() string {
	c.alias++
	return fmt.Sprintf("t%d", c.alias)
}

func quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func scalarField(m *schema.Model, name string) (*schema.ScalarField, error) {
	f := m.Scalar(name)
	if f == nil {
		return nil, fmt.Errorf("unknown field %s.%s", m.Name, name)
	}
	return f, nil
}

// qualified returns alias."column" for a field.
func qualified(m *schema.Model, alias, name string) (string, error) {
	f, err := scalarField(m, name)
	if err != nil {
		return "", err
	}
	if alias == "" {
		return quote(f.Column), nil
	}
	return alias + "." + quote(f.Column), nil
}

// compileFilter renders f over model m aliased as alias. Values are
// always bound, never interpolated.
func (c *compiler) compileFilter(m *schema.Model, alias string, f filter.Filter) (string, error) {
	switch v := f.(type) {
	case nil, filter.Empty:
		return "1 = 1", nil
	case filter.Scalar:
		return c.compileScalar(m, alias, v)
	case filter.Relation:
		return c.compileRelation(m, alias, v)
	case filter.And:
		return c.compileAll(m, alias, " AND ", "1 = 1", v.Filters)
	case filter.Or:
		return c.compileAll(m, alias, " OR ", "1 = 0", v.Filters)
	case filter.Not:
		inner, err := c.compileAll(m, alias, " AND ", "1 = 1", v.Filters)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	default:
		return "", fmt.Errorf("unsupported filter %T", f)
	}
}

func (c *compiler) compileAll(m *schema.Model, alias, op, empty string, filters []filter.Filter) (string, error) {
	if len(filters) == 0 {
		return empty, nil
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		s, err := c.compileFilter(m, alias, f)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, op) + ")", nil
}

func (c *compiler) compileScalar(m *schema.Model, alias string, s filter.Scalar) (string, error) {
	if s.Field == "" && filter.MatchesNothing(s) {
		return "1 = 0", nil
	}
	f, err := scalarField(m, s.Field)
	if err != nil {
		return "", err
	}
	col, _ := qualified(m, alias, s.Field)

	switch s.Cond {
	case filter.CondEquals, filter.CondNot:
		if ir.IsNull(s.Value) {
			if s.Cond == filter.CondEquals {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
		p, err := param(f, s.Value)
		if err != nil {
			return "", err
		}
		op := " = "
		if s.Cond == filter.CondNot {
			op = " <> "
		}
		return col + op + c.bind(p), nil

	case filter.CondIn, filter.CondNotIn:
		arr, ok := s.Value.(ir.IRArray)
		if !ok {
			return "", fmt.Errorf("%s on %s requires a list", s.Cond, s.Field)
		}
		if len(arr) == 0 {
			if s.Cond == filter.CondIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		marks := make([]string, len(arr))
		for i, v := range arr {
			p, err := param(f, v)
			if err != nil {
				return "", err
			}
			marks[i] = c.bind(p)
		}
		op := " IN ("
		if s.Cond == filter.CondNotIn {
			op = " NOT IN ("
		}
		return col + op + strings.Join(marks, ", ") + ")", nil

	case filter.CondLt, filter.CondLte, filter.CondGt, filter.CondGte:
		p, err := param(f, s.Value)
		if err != nil {
			return "", err
		}
		return col + " " + comparison[s.Cond] + " " + c.bind(p), nil

	case filter.CondContains, filter.CondStartsWith, filter.CondEndsWith:
		str, ok := s.Value.(ir.IRString)
		if !ok {
			return "", fmt.Errorf("%s on %s requires a string", s.Cond, s.Field)
		}
		pat := escapeLike(string(str))
		switch s.Cond {
		case filter.CondContains:
			pat = "%" + pat + "%"
		case filter.CondStartsWith:
			pat += "%"
		default:
			pat = "%" + pat
		}
		return col + " LIKE " + c.bind(pat) + ` ESCAPE '\'`, nil

	default:
		return "", fmt.Errorf("unsupported condition %q", s.Cond)
	}
}

var comparison = map[filter.Condition]string{
	filter.CondLt:  "<",
	filter.CondLte: "<=",
	filter.CondGt:  ">",
	filter.CondGte: ">=",
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// compileRelation renders a relation condition as an EXISTS sub-select.
func (c *compiler) compileRelation(m *schema.Model, alias string, r filter.Relation) (string, error) {
	rf := m.Relation(r.Field)
	if rf == nil {
		return "", fmt.Errorf("unknown relation %s.%s", m.Name, r.Field)
	}
	related := rf.RelatedModel()
	sub := c.nextAlias()
	from, link, err := c.relationJoin(rf, alias, sub)
	if err != nil {
		return "", err
	}

	exists := func(nested filter.Filter, negateNested bool) (string, error) {
		where := link
		if !filter.IsEmpty(nested) {
			cond, err := c.compileFilter(related, sub, nested)
			if err != nil {
				return "", err
			}
			if negateNested {
				cond = "NOT (" + cond + ")"
			}
			where += " AND " + cond
		} else if negateNested {
			return "", nil
		}
		return "EXISTS (SELECT 1 FROM " + from + " WHERE " + where + ")", nil
	}

	switch r.Cond {
	case filter.RelSome:
		return exists(r.Nested, false)
	case filter.RelNone:
		s, err := exists(r.Nested, false)
		return "NOT " + s, err
	case filter.RelEvery:
		s, err := exists(r.Nested, true)
		if err != nil || s == "" {
			return "1 = 1", err
		}
		return "NOT " + s, nil
	case filter.RelIs:
		if r.Nested == nil {
			s, err := exists(nil, false)
			return "NOT " + s, err
		}
		return exists(r.Nested, false)
	case filter.RelIsNot:
		if r.Nested == nil {
			return exists(nil, false)
		}
		s, err := exists(r.Nested, false)
		return "NOT " + s, err
	default:
		return "", fmt.Errorf("unsupported relation condition %q", r.Cond)
	}
}

// relationJoin returns the FROM clause reaching the related model as sub
// and the condition linking it to the outer alias.
func (c *compiler) relationJoin(rf *schema.RelationField, outer, sub string) (string, string, error) {
	own, related := rf.Model(), rf.RelatedModel()
	if rf.IsManyToMany() {
		if len(own.PrimaryKey) != 1 || len(related.PrimaryKey) != 1 {
			return "", "", fmt.Errorf("%s: many-to-many relations need single-field ids", rf)
		}
		j := c.nextAlias()
		ownCol, otherCol := rf.JoinColumns()
		relatedPK, _ := qualified(related, sub, related.PrimaryKey[0])
		ownPK, _ := qualified(own, outer, own.PrimaryKey[0])
		from := fmt.Sprintf("%s %s JOIN %s %s ON %s = %s.%s",
			quote(rf.JoinTable()), j, quote(related.Table), sub, relatedPK, j, quote(otherCol))
		return from, fmt.Sprintf("%s.%s = %s", j, quote(ownCol), ownPK), nil
	}

	parentFields := rf.LinkingFields()
	childFields := rf.RelatedField().LinkingFields()
	conds := make([]string, len(parentFields))
	for i := range parentFields {
		p, err := qualified(own, outer, parentFields[i])
		if err != nil {
			return "", "", err
		}
		ch, err := qualified(related, sub, childFields[i])
		if err != nil {
			return "", "", err
		}
		conds[i] = ch + " = " + p
	}
	return quote(related.Table) + " " + sub, strings.Join(conds, " AND "), nil
}
