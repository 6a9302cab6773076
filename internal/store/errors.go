package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// StoreError wraps a persistence failure with the operation that
// triggered it. No retries happen at this layer; retry policy belongs
// to the caller.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsNotFound reports whether err is a StoreError caused by a missing
// record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
