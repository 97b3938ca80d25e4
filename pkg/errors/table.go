package errors

import (
	"errors"
	"fmt"
)

// ErrTableNotFound is matched by NotFoundError through errors.Is.
var ErrTableNotFound = errors.New("table not found")

// ValidationError reports a raw input or join-cardinality violation. It is
// raised before any destination write so a run never leaves a partial star.
type ValidationError struct {
	Table     string
	Operation string
	Key       string
	Reason    string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Operation, e.Table, e.Reason)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	return msg
}

// StoreError wraps a transport, auth or quota failure of the tabular store.
type StoreError struct {
	Table     string
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Operation, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a named table that does not exist in the store.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

// NewValidationError builds a ValidationError.
func NewValidationError(table, op, key, reason string) *ValidationError {
	return &ValidationError{Table: table, Operation: op, Key: key, Reason: reason}
}

// NewStoreError wraps err unless it is already a table error.
func NewStoreError(table, op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Table: table, Operation: op, Err: err}
}

// IsTableNotFound reports whether err signals a missing table.
func IsTableNotFound(err error) bool {
	return errors.Is(err, ErrTableNotFound)
}
