package connector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies storage failures the engine translates into domain
// errors.
type ErrorKind string

const (
	ErrUniqueConstraint     ErrorKind = "UNIQUE_CONSTRAINT"
	ErrForeignKeyConstraint ErrorKind = "FOREIGN_KEY_CONSTRAINT"
	ErrNullConstraint       ErrorKind = "NULL_CONSTRAINT"
	ErrRecordNotFound       ErrorKind = "RECORD_NOT_FOUND"
	ErrRawQuery             ErrorKind = "RAW_QUERY"
	ErrConnection           ErrorKind = "CONNECTION"
	ErrUnsupported          ErrorKind = "UNSUPPORTED"
)

// StorageError is a failure reported by a connector.
type StorageError struct {
	Kind ErrorKind

	// Model and Fields identify the violated constraint when known.
	Model  string
	Fields []string

	Cause error
}

func (e *StorageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Model != "" {
		fmt.Fprintf(&b, " on %s", e.Model)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Fields, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// AsStorageError extracts a StorageError from an error chain.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
