package builder

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a request that cannot be turned into a graph.
type ErrorKind string

const (
	ErrUnknownOperation ErrorKind = "UNKNOWN_OPERATION"
	ErrUnknownField     ErrorKind = "UNKNOWN_FIELD"
	ErrInvalidArgument  ErrorKind = "INVALID_ARGUMENT"

	// ErrUnresolvableSelector: a where or cursor names no unique criterion.
	ErrUnresolvableSelector ErrorKind = "UNRESOLVABLE_SELECTOR"

	// ErrRelationViolation: the write can never succeed without breaking
	// a required relation, so it is rejected before execution.
	ErrRelationViolation ErrorKind = "RELATION_VIOLATION"

	// ErrInvalidNestedOperation: a nested write that the relation does not
	// support, such as set on a to-one relation.
	ErrInvalidNestedOperation ErrorKind = "INVALID_NESTED_OPERATION"
)

// Error is raised while building, before anything touches storage.
type Error struct {
	Kind    ErrorKind
	Model   string
	Field   string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Model != "" && e.Field != "":
		return fmt.Sprintf("%s.%s: %s", e.Model, e.Field, e.Message)
	case e.Model != "":
		return fmt.Sprintf("%s: %s", e.Model, e.Message)
	default:
		return e.Message
	}
}

// AsError extracts a builder Error from an error chain.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func errorf(kind ErrorKind, model, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Model: model, Field: field, Message: fmt.Sprintf(format, args...)}
}
