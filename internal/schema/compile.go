package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qgraph/internal/ir"
)

// CompileError reports an invalid data model declaration.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// fieldSpec is the CUE shape of a scalar field.
type fieldSpec struct {
	Type     string `json:"type"`
	Column   string `json:"column"`
	ID       bool   `json:"id"`
	Unique   bool   `json:"unique"`
	Optional bool   `json:"optional"`
}

// relationSpec is the CUE shape of a relation field.
type relationSpec struct {
	Model      string   `json:"model"`
	Relation   string   `json:"relation"`
	List       bool     `json:"list"`
	Optional   bool     `json:"optional"`
	Fields     []string `json:"fields"`
	References []string `json:"references"`
}

// CompileString compiles a CUE document holding a top-level `model` struct.
//
//	model: User: {
//		fields: {
//			id:    {type: "Int", id: true, default: "autoincrement"}
//			email: {type: "String", unique: true}
//		}
//		relations: posts: {model: "Post", list: true}
//	}
func CompileString(src string) (*Schema, error) {
	v := cuecontext.New().CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return Compile(v)
}

// Compile builds a Schema from a CUE value holding a `model` struct.
// Model, field and relation order follows declaration order.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "model", Message: "no models declared", Pos: v.Pos()}
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var models []*Model
	for iter.Next() {
		m, err := compileModel(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	return New(models...)
}

func compileModel(name string, v cue.Value) (*Model, error) {
	m := &Model{Name: name, Table: name}

	if t := v.LookupPath(cue.ParsePath("table")); t.Exists() {
		table, err := t.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Table = table
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: name + ".fields", Message: "at least one field is required", Pos: v.Pos()}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		var spec fieldSpec
		if err := iter.Value().Decode(&spec); err != nil {
			return nil, formatCUEError(err)
		}
		def, err := defaultValue(iter.Value())
		if err != nil {
			return nil, err
		}
		f, err := scalarFromSpec(iter.Label(), spec, def)
		if err != nil {
			return nil, &CompileError{Field: name + "." + iter.Label(), Message: err.Error(), Pos: iter.Value().Pos()}
		}
		m.Fields = append(m.Fields, f)
	}

	if relVal := v.LookupPath(cue.ParsePath("relations")); relVal.Exists() {
		iter, err := relVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			var spec relationSpec
			if err := iter.Value().Decode(&spec); err != nil {
				return nil, formatCUEError(err)
			}
			if spec.Model == "" {
				return nil, &CompileError{Field: name + "." + iter.Label(), Message: "relation model is required", Pos: iter.Value().Pos()}
			}
			m.Relations = append(m.Relations, &RelationField{
				Name:       iter.Label(),
				Related:    spec.Model,
				Relation:   spec.Relation,
				List:       spec.List,
				Required:   !spec.List && !spec.Optional,
				Fields:     spec.Fields,
				References: spec.References,
			})
		}
	}

	if idVal := v.LookupPath(cue.ParsePath("id")); idVal.Exists() {
		var pk []string
		if err := idVal.Decode(&pk); err != nil {
			return nil, formatCUEError(err)
		}
		m.PrimaryKey = pk
	}

	if uVal := v.LookupPath(cue.ParsePath("unique")); uVal.Exists() {
		var uniques [][]string
		if err := uVal.Decode(&uniques); err != nil {
			return nil, formatCUEError(err)
		}
		for _, fields := range uniques {
			m.Uniques = append(m.Uniques, UniqueIndex{Fields: fields})
		}
	}

	return m, nil
}

// defaultValue reads the optional `default` of a field as a Go value.
func defaultValue(v cue.Value) (any, error) {
	d := v.LookupPath(cue.ParsePath("default"))
	if !d.Exists() {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch d.IncompleteKind() {
	case cue.StringKind:
		out, err = d.String()
	case cue.IntKind:
		out, err = d.Int64()
	case cue.FloatKind, cue.NumberKind:
		out, err = d.Float64()
	case cue.BoolKind:
		out, err = d.Bool()
	default:
		return nil, &CompileError{Field: "default", Message: fmt.Sprintf("unsupported default kind %s", d.IncompleteKind()), Pos: d.Pos()}
	}
	if err != nil {
		return nil, formatCUEError(err)
	}
	return out, nil
}

func scalarFromSpec(name string, spec fieldSpec, def any) (*ScalarField, error) {
	f := &ScalarField{
		Name:     name,
		Column:   spec.Column,
		Type:     ScalarType(spec.Type),
		Required: !spec.Optional,
		Unique:   spec.Unique,
		ID:       spec.ID,
	}
	if !f.Type.Valid() {
		return nil, fmt.Errorf("unknown type %q", spec.Type)
	}
	if def == nil {
		return f, nil
	}

	if s, ok := def.(string); ok {
		switch DefaultKind(s) {
		case DefaultAutoincrement:
			if f.Type != TypeInt {
				return nil, fmt.Errorf("autoincrement requires an Int field")
			}
			f.Default = &Default{Kind: DefaultAutoincrement}
			return f, nil
		case DefaultUUID:
			if f.Type != TypeString {
				return nil, fmt.Errorf("uuid default requires a String field")
			}
			f.Default = &Default{Kind: DefaultUUID}
			return f, nil
		case DefaultNow:
			if f.Type != TypeDateTime {
				return nil, fmt.Errorf("now default requires a DateTime field")
			}
			f.Default = &Default{Kind: DefaultNow}
			return f, nil
		}
	}

	v, err := ir.FromAny(def)
	if err != nil {
		return nil, fmt.Errorf("default: %w", err)
	}
	f.Default = &Default{Kind: DefaultValue, Value: v}
	return f, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
