package repository

import (
	"errors"
	"fmt"
)

// NotFoundError reports a lookup for an identifier the table does not
// contain.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no record with id %q", e.Table, e.ID)
}

// IsNotFound reports whether err is a missing-record lookup.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// DuplicateError reports an insert whose identifier already exists.
type DuplicateError struct {
	Table string
	ID    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: record with id %q already exists", e.Table, e.ID)
}

// ValidationError wraps an entity validation failure with its table.
type ValidationError struct {
	Table string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid record: %v", e.Table, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
