package importer

import (
	"errors"
	"fmt"
)

// ErrNoPhoneColumn is returned when a CSV header has no column that looks like a phone number
var ErrNoPhoneColumn = errors.New("no phone column found in header")

// SizeLimitError rejects a whole batch before any row is processed
type SizeLimitError struct {
	Limit  string // "rows" or "bytes"
	Max    int64
	Actual int64
}

func (e *SizeLimitError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("import exceeds %s limit: %d > %d", e.Limit, e.Actual, e.Max)
	}
	return fmt.Sprintf("import exceeds %s limit of %d", e.Limit, e.Max)
}

// MissingRequiredFieldError marks a row without a required value
type MissingRequiredFieldError struct {
	Line  int
	Field string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// StoreUnavailableError is a whole-batch infrastructure failure.
// Nothing from the batch has been written when it is returned.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("contact store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}
