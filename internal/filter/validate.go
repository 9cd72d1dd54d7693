package filter

import (
	"fmt"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/schema"
)

// Validate checks that a filter only references fields of model and that
// every condition fits the field it is applied to:
//   - scalar conditions name a scalar field
//   - in/notIn carry a list
//   - every/some/none apply to list relations, is/isNot to to-one relations
//   - string conditions apply to String fields
//
// Validate is a pure function with no side effects. Selector filters
// built from parent results are never empty-field IN lists except the
// "matches nothing" form, which is accepted.
func Validate(f Filter, model *schema.Model) error {
	switch v := f.(type) {
	case nil, Empty:
		return nil
	case Scalar:
		if v.Field == "" && MatchesNothing(v) {
			return nil
		}
		field := model.Scalar(v.Field)
		if field == nil {
			return fmt.Errorf("unknown field %q on %s", v.Field, model.Name)
		}
		switch v.Cond {
		case CondIn, CondNotIn:
			if _, ok := v.Value.(ir.IRArray); !ok {
				return fmt.Errorf("%s.%s: %s requires a list", model.Name, v.Field, v.Cond)
			}
		case CondContains, CondStartsWith, CondEndsWith:
			if field.Type != schema.TypeString {
				return fmt.Errorf("%s.%s: %s requires a String field", model.Name, v.Field, v.Cond)
			}
		case CondEquals, CondNot, CondLt, CondLte, CondGt, CondGte:
		default:
			return fmt.Errorf("%s.%s: unknown condition %q", model.Name, v.Field, v.Cond)
		}
		return nil
	case Relation:
		rf := model.Relation(v.Field)
		if rf == nil {
			return fmt.Errorf("unknown relation %q on %s", v.Field, model.Name)
		}
		switch v.Cond {
		case RelEvery, RelSome, RelNone:
			if !rf.List {
				return fmt.Errorf("%s: %s requires a list relation", rf, v.Cond)
			}
		case RelIs, RelIsNot:
			if rf.List {
				return fmt.Errorf("%s: %s requires a to-one relation", rf, v.Cond)
			}
		default:
			return fmt.Errorf("%s: unknown relation condition %q", rf, v.Cond)
		}
		return Validate(v.Nested, rf.RelatedModel())
	case And:
		return validateAll(v.Filters, model)
	case Or:
		return validateAll(v.Filters, model)
	case Not:
		return validateAll(v.Filters, model)
	default:
		return fmt.Errorf("unsupported filter type: %T", f)
	}
}

func validateAll(filters []Filter, model *schema.Model) error {
	for _, f := range filters {
		if err := Validate(f, model); err != nil {
			return err
		}
	}
	return nil
}
