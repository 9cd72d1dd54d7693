package schema

import (
	"fmt"
	"slices"
	"strings"
)

// New links and validates models into a Schema.
//
// Linking pairs every relation field with its opposite side (by relation
// name, or by the single back reference when unnamed), defaults column
// and table names, and fills primary keys from `id` flags. Validation
// rejects dangling references, foreign keys whose arity does not match
// their references, and relations with no side able to hold the link.
func New(models ...*Model) (*Schema, error) {
	s := &Schema{Models: models, byName: make(map[string]*Model, len(models))}

	for _, m := range models {
		if _, dup := s.byName[m.Name]; dup {
			return nil, &CompileError{Field: m.Name, Message: "duplicate model"}
		}
		s.byName[m.Name] = m
		m.schema = s
		if m.Table == "" {
			m.Table = m.Name
		}
		if err := linkScalars(m); err != nil {
			return nil, err
		}
	}

	for _, m := range models {
		for _, rf := range m.Relations {
			if rf.related != nil {
				continue
			}
			if err := s.pair(m, rf); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range models {
		for _, rf := range m.Relations {
			if err := validateRelation(rf); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func linkScalars(m *Model) error {
	seen := make(map[string]bool)
	for _, f := range m.Fields {
		if seen[f.Name] {
			return &CompileError{Field: m.Name + "." + f.Name, Message: "duplicate field"}
		}
		seen[f.Name] = true
		f.model = m
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.ID && len(m.PrimaryKey) == 0 {
			m.PrimaryKey = []string{f.Name}
		} else if f.ID && !slices.Contains(m.PrimaryKey, f.Name) {
			return &CompileError{Field: m.Name + "." + f.Name, Message: "multiple id fields; declare a compound id instead"}
		}
	}
	for _, rf := range m.Relations {
		if seen[rf.Name] {
			return &CompileError{Field: m.Name + "." + rf.Name, Message: "duplicate field"}
		}
		seen[rf.Name] = true
		rf.model = m
	}

	if len(m.PrimaryKey) == 0 {
		return &CompileError{Field: m.Name, Message: "model has no id"}
	}
	for _, name := range m.PrimaryKey {
		f := m.Scalar(name)
		if f == nil {
			return &CompileError{Field: m.Name + ".id", Message: fmt.Sprintf("unknown id field %q", name)}
		}
		if !f.Required {
			return &CompileError{Field: m.Name + "." + name, Message: "id fields cannot be optional"}
		}
	}
	for i := range m.Uniques {
		u := &m.Uniques[i]
		for _, name := range u.Fields {
			if m.Scalar(name) == nil {
				return &CompileError{Field: m.Name + ".unique", Message: fmt.Sprintf("unknown field %q", name)}
			}
		}
		if u.Name == "" {
			u.Name = strings.Join(u.Fields, "_")
		}
	}
	return nil
}

func (s *Schema) pair(m *Model, rf *RelationField) error {
	related, ok := s.byName[rf.Related]
	if !ok {
		return &CompileError{Field: rf.String(), Message: fmt.Sprintf("unknown related model %q", rf.Related)}
	}

	var candidates []*RelationField
	for _, other := range related.Relations {
		if other == rf || other.related != nil || other.Related != m.Name {
			continue
		}
		if rf.Relation != "" && other.Relation != "" && other.Relation != rf.Relation {
			continue
		}
		candidates = append(candidates, other)
	}

	switch len(candidates) {
	case 0:
		return &CompileError{Field: rf.String(), Message: fmt.Sprintf("no opposite relation field on %q", related.Name)}
	case 1:
	default:
		return &CompileError{Field: rf.String(), Message: fmt.Sprintf("ambiguous relation to %q; name both sides", related.Name)}
	}

	other := candidates[0]
	name := rf.Relation
	if name == "" {
		name = other.Relation
	}
	if name == "" {
		names := []string{m.Name, related.Name}
		slices.Sort(names)
		name = names[0] + "To" + names[1]
	}
	rf.Relation, other.Relation = name, name
	rf.related, other.related = other, rf
	return nil
}

func validateRelation(rf *RelationField) error {
	other := rf.related
	inlinedHere, inlinedThere := rf.IsInlinedOnEnclosingModel(), other.IsInlinedOnEnclosingModel()

	if inlinedHere && inlinedThere {
		return &CompileError{Field: rf.String(), Message: "only one side of a relation may declare fields"}
	}

	switch rf.Kind() {
	case ManyToMany:
		if inlinedHere || inlinedThere {
			return &CompileError{Field: rf.String(), Message: "many-to-many relations cannot declare fields"}
		}
		return nil
	case OneToMany:
		if !rf.List && !inlinedHere {
			return &CompileError{Field: rf.String(), Message: "the to-one side of a one-to-many relation must declare fields"}
		}
	case OneToOne:
		if !inlinedHere && !inlinedThere {
			return &CompileError{Field: rf.String(), Message: "one side of a one-to-one relation must declare fields"}
		}
	}

	if !inlinedHere {
		return nil
	}
	if len(rf.Fields) != len(rf.References) {
		return &CompileError{Field: rf.String(), Message: "fields and references must have the same length"}
	}
	for i, name := range rf.Fields {
		f := rf.model.Scalar(name)
		if f == nil {
			return &CompileError{Field: rf.String(), Message: fmt.Sprintf("unknown field %q", name)}
		}
		ref := other.model.Scalar(rf.References[i])
		if ref == nil {
			return &CompileError{Field: rf.String(), Message: fmt.Sprintf("unknown referenced field %q on %q", rf.References[i], other.model.Name)}
		}
		if f.Type != ref.Type {
			return &CompileError{Field: rf.String(), Message: fmt.Sprintf("field %q (%s) cannot reference %q (%s)", name, f.Type, ref.Name, ref.Type)}
		}
	}
	if !other.model.IsUniqueCriterion(rf.References) {
		return &CompileError{Field: rf.String(), Message: "references must be an id or unique criterion"}
	}
	return nil
}
