package sqlite

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/schema"
)

// translate maps driver errors onto connector error kinds. Constraint
// messages name columns as "Table.column"; they are mapped back to field
// names of m when possible.
func translate(err error, m *schema.Model) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}

	kind := connector.ErrorKind("")
	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		kind = connector.ErrUniqueConstraint
	case sqlite3.ErrConstraintForeignKey:
		kind = connector.ErrForeignKeyConstraint
	case sqlite3.ErrConstraintNotNull:
		kind = connector.ErrNullConstraint
	default:
		if se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked {
			kind = connector.ErrConnection
		}
	}
	if kind == "" {
		return err
	}

	out := &connector.StorageError{Kind: kind, Cause: err}
	if m != nil {
		out.Model = m.Name
	}
	out.Fields = constraintFields(se.Error(), m)
	return out
}

// constraintFields parses "UNIQUE constraint failed: User.email, User.name".
func constraintFields(msg string, m *schema.Model) []string {
	_, list, ok := strings.Cut(msg, "constraint failed: ")
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(list, ", ") {
		_, col, ok := strings.Cut(part, ".")
		if !ok {
			continue
		}
		name := col
		if m != nil {
			for _, f := range m.Fields {
				if f.Column == col {
					name = f.Name
					break
				}
			}
		}
		out = append(out, name)
	}
	return out
}
