package graph

import "fmt"

// ErrorKind categorizes graph construction errors. All of them point at
// a builder bug, never at user input.
type ErrorKind string

const (
	ErrInvalidNode ErrorKind = "INVALID_NODE"
	ErrInvalidEdge ErrorKind = "INVALID_EDGE"
	ErrCycle       ErrorKind = "CYCLE"
	ErrRoot        ErrorKind = "ROOT"
	ErrNoResult    ErrorKind = "NO_RESULT"
	ErrParentOrder ErrorKind = "PARENT_ORDER"
)

// Error is a graph invariant violation.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("query graph %s: %s", e.Kind, e.Message)
}
