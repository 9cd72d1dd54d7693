package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/schema"
)

// Bootstrap creates a table per model and a join table per many-to-many
// relation. Existing tables are left alone; nothing is migrated.
func (c *Connector) Bootstrap(ctx context.Context, s *schema.Schema) error {
	stmts, err := BootstrapSQL(s)
	if err != nil {
		return err
	}
	for _, st := range stmts {
		c.logger.Debug("sqlite bootstrap", "sql", st)
		if _, err := c.db.ExecContext(ctx, st); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

var columnTypes = map[schema.ScalarType]string{
	schema.TypeString:   "TEXT",
	schema.TypeInt:      "INTEGER",
	schema.TypeFloat:    "REAL",
	schema.TypeBoolean:  "BOOLEAN",
	schema.TypeDateTime: "TEXT",
	schema.TypeJSON:     "TEXT",
}

// BootstrapSQL returns the CREATE TABLE statements for s.
//
// Required foreign keys restrict deletes of the referenced record,
// optional ones are set to null. Join table rows cascade.
func BootstrapSQL(s *schema.Schema) ([]string, error) {
	var out []string
	joins := make(map[string]bool)

	for _, m := range s.Models {
		var defs []string
		singlePK := len(m.PrimaryKey) == 1
		for _, f := range m.Fields {
			def := quote(f.Column) + " " + columnTypes[f.Type]
			switch {
			case singlePK && f.ID && f.IsAutoincrement():
				def += " PRIMARY KEY AUTOINCREMENT"
			case singlePK && f.ID:
				def += " PRIMARY KEY NOT NULL"
			case f.Required:
				def += " NOT NULL"
			}
			if f.Unique && !f.ID {
				def += " UNIQUE"
			}
			if f.Default != nil && f.Default.Kind == schema.DefaultValue {
				lit, err := literal(f)
				if err != nil {
					return nil, err
				}
				def += " DEFAULT " + lit
			}
			defs = append(defs, def)
		}
		if !singlePK {
			defs = append(defs, "PRIMARY KEY ("+columns(m, m.PrimaryKey)+")")
		}
		for _, u := range m.Uniques {
			defs = append(defs, "UNIQUE ("+columns(m, u.Fields)+")")
		}
		for _, rf := range m.Relations {
			if !rf.IsInlinedOnEnclosingModel() {
				continue
			}
			onDelete := "SET NULL"
			if rf.ForeignKeyRequired() {
				onDelete = "RESTRICT"
			}
			related := rf.RelatedModel()
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE CASCADE",
				columns(m, rf.Fields), quote(related.Table), columns(related, rf.References), onDelete))
		}
		out = append(out, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quote(m.Table), strings.Join(defs, ",\n  ")))

		for _, rf := range m.Relations {
			if !rf.IsManyToMany() || joins[rf.JoinTable()] {
				continue
			}
			joins[rf.JoinTable()] = true
			st, err := joinTableSQL(rf)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
	return out, nil
}

func joinTableSQL(rf *schema.RelationField) (string, error) {
	own, other := rf.Model(), rf.RelatedModel()
	if len(own.PrimaryKey) != 1 || len(other.PrimaryKey) != 1 {
		return "", fmt.Errorf("%s: many-to-many relations need single-field ids", rf)
	}
	ownCol, otherCol := rf.JoinColumns()
	ownPK, otherPK := own.Scalar(own.PrimaryKey[0]), other.Scalar(other.PrimaryKey[0])
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  %s %s NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,
  %s %s NOT NULL REFERENCES %s (%s) ON DELETE CASCADE,
  UNIQUE (%s, %s)
)`,
		quote(rf.JoinTable()),
		quote(ownCol), columnTypes[ownPK.Type], quote(own.Table), quote(ownPK.Column),
		quote(otherCol), columnTypes[otherPK.Type], quote(other.Table), quote(otherPK.Column),
		quote("A"), quote("B")), nil
}

func columns(m *schema.Model, fields []string) string {
	parts := make([]string, len(fields))
	for i, name := range fields {
		col := name
		if f := m.Scalar(name); f != nil {
			col = f.Column
		}
		parts[i] = quote(col)
	}
	return strings.Join(parts, ", ")
}

// literal renders a constant default. DDL cannot take bound parameters.
func literal(f *schema.ScalarField) (string, error) {
	p, err := param(f, f.Default.Value)
	if err != nil {
		return "", err
	}
	switch v := p.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
