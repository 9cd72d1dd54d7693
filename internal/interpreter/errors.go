package interpreter

import (
	"errors"
	"fmt"

	"github.com/roach88/qgraph/internal/graph"
)

// ErrorKind categorizes interpreter failures that indicate a wiring bug.
type ErrorKind string

const (
	// ErrEnvVarNotFound: an expression referenced an unbound name.
	ErrEnvVarNotFound ErrorKind = "ENV_VAR_NOT_FOUND"
	// ErrInvariant: a node received data it cannot accept.
	ErrInvariant ErrorKind = "INVARIANT_VIOLATION"
)

// Error is a programming-error class failure. It is never caused by user
// input and is reported as an internal error.
type Error struct {
	Kind    ErrorKind
	Node    graph.NodeID
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("interpreter %s: %s", e.Kind, e.Message)
}

// IsEnvVarNotFound reports whether err is a missing binding.
func IsEnvVarNotFound(err error) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == ErrEnvVarNotFound
}

// DataError reports a failed edge expectation, such as a required record
// that does not exist.
type DataError struct {
	Violation graph.Violation
	Rule      graph.Rule
	Rows      int
	Node      graph.NodeID
}

func (e *DataError) Error() string {
	v := e.Violation
	switch v.Kind {
	case graph.RecordNotFound:
		return fmt.Sprintf("%s: required %s record not found (%s)", v.Operation, v.Model, e.Rule)
	case graph.RelationViolation:
		return fmt.Sprintf("%s: change would violate required relation %s", v.Operation, v.Relation)
	case graph.RecordsNotConnected:
		return fmt.Sprintf("%s: %s records are not connected through %s", v.Operation, v.Model, v.Relation)
	default:
		return fmt.Sprintf("%s: %s expectation %s failed with %d rows", v.Operation, v.Kind, e.Rule, e.Rows)
	}
}

// AsDataError extracts a DataError from an error chain.
func AsDataError(err error) (*DataError, bool) {
	var de *DataError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
