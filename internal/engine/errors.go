package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/qgraph/internal/builder"
	"github.com/roach88/qgraph/internal/connector"
	"github.com/roach88/qgraph/internal/graph"
	"github.com/roach88/qgraph/internal/interpreter"
)

// Code identifies a user-facing error class.
type Code string

const (
	CodeUniqueConstraint  Code = "P2002"
	CodeForeignKey        Code = "P2003"
	CodeInvalidRequest    Code = "P2009"
	CodeRawQuery          Code = "P2010"
	CodeNullConstraint    Code = "P2011"
	CodeRelationViolation Code = "P2014"
	CodeRelatedNotFound   Code = "P2015"
	CodeNotConnected      Code = "P2018"
	CodeRecordNotFound    Code = "P2025"
	CodeInternal          Code = "P5000"
)

// Error is the single error type returned by Execute and ExecuteMany.
type Error struct {
	Code    Code
	Message string

	// Meta holds structured details, such as the model and fields of a
	// violated constraint.
	Meta map[string]any

	RequestID string

	// BatchIndex is the failing item of a transactional batch, -1
	// otherwise.
	BatchIndex int

	Cause error
}

func (e *Error) Error() string {
	if e.BatchIndex >= 0 {
		return fmt.Sprintf("%s: %s (batch item %d)", e.Code, e.Message, e.BatchIndex)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts an engine Error from an error chain.
func AsError(err error) (*Error, bool) {
	var ee *Error
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// HasCode reports whether err is an engine Error with the given code.
func HasCode(err error, code Code) bool {
	ee, ok := AsError(err)
	return ok && ee.Code == code
}

// translate maps failures from the builder, the interpreter and the
// connector onto user-facing codes.
func translate(err error, requestID string) *Error {
	if ee, ok := AsError(err); ok {
		return ee
	}
	e := &Error{Code: CodeInternal, Message: err.Error(), RequestID: requestID, BatchIndex: -1, Cause: err}

	if be, ok := builder.AsError(err); ok {
		e.Code = CodeInvalidRequest
		if be.Kind == builder.ErrRelationViolation {
			e.Code = CodeRelationViolation
		}
		e.Meta = meta("kind", string(be.Kind), "model", be.Model, "field", be.Field)
		return e
	}
	if de, ok := interpreter.AsDataError(err); ok {
		translateViolation(e, de)
		return e
	}
	if se, ok := connector.AsStorageError(err); ok {
		translateStorage(e, se)
		return e
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		e.Message = "request aborted: " + err.Error()
	}
	return e
}

func translateViolation(e *Error, de *interpreter.DataError) {
	v := de.Violation
	e.Meta = meta("model", v.Model, "relation", v.Relation, "operation", v.Operation)
	switch v.Kind {
	case graph.RelationViolation:
		e.Code = CodeRelationViolation
		e.Message = fmt.Sprintf("The change you are trying to make would violate the required relation '%s'", v.Relation)
	case graph.RecordsNotConnected:
		e.Code = CodeNotConnected
		e.Message = fmt.Sprintf("The records for relation '%s' are not connected", v.Relation)
	case graph.RecordNotFound:
		if v.Relation != "" {
			e.Code = CodeRelatedNotFound
			e.Message = fmt.Sprintf("A related %s record could not be found for relation '%s'", v.Model, v.Relation)
			return
		}
		e.Code = CodeRecordNotFound
		e.Message = fmt.Sprintf("An operation failed because it depends on one or more %s records that were required but not found", v.Model)
	}
}

func translateStorage(e *Error, se *connector.StorageError) {
	fields := "(" + strings.Join(se.Fields, ", ") + ")"
	switch se.Kind {
	case connector.ErrUniqueConstraint:
		e.Code = CodeUniqueConstraint
		e.Message = "Unique constraint failed on the fields: " + fields
		e.Meta = meta("model", se.Model, "target", se.Fields)
	case connector.ErrForeignKeyConstraint:
		e.Code = CodeForeignKey
		e.Message = "Foreign key constraint failed on the field: " + fields
		e.Meta = meta("model", se.Model, "field_name", se.Fields)
	case connector.ErrNullConstraint:
		e.Code = CodeNullConstraint
		e.Message = "Null constraint violation on the fields: " + fields
		e.Meta = meta("model", se.Model, "constraint", se.Fields)
	case connector.ErrRecordNotFound:
		e.Code = CodeRecordNotFound
		e.Message = "Record to operate on not found"
		e.Meta = meta("model", se.Model)
	case connector.ErrRawQuery:
		e.Code = CodeRawQuery
		e.Message = "Raw query failed"
		if se.Cause != nil {
			e.Message += ": " + se.Cause.Error()
		}
	}
}

// meta builds a detail map from key/value pairs, skipping empty values.
func meta(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		switch v := kv[i+1].(type) {
		case string:
			if v == "" {
				continue
			}
		case []string:
			if len(v) == 0 {
				continue
			}
		}
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}
