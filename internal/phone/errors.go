package phone

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a structural phone number failure
type ErrorKind string

const (
	InvalidLength ErrorKind = "invalid_length"
	InvalidPrefix ErrorKind = "invalid_prefix"
)

// FormatError reports a structurally invalid phone number.
// Region lookup never produces a FormatError.
type FormatError struct {
	Kind   ErrorKind
	Input  string
	Digits int
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case InvalidPrefix:
		return fmt.Sprintf("invalid area code in %q: must not start with 0 or 1", e.Input)
	default:
		if e.Digits == 0 {
			return fmt.Sprintf("invalid phone number %q: no digits", e.Input)
		}
		return fmt.Sprintf("invalid phone number %q: expected 10 digits (or 11 starting with 1), got %d", e.Input, e.Digits)
	}
}

// IsFormatError reports whether err is (or wraps) a FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// KindOf returns the kind of a wrapped FormatError, or "" if err is not one
func KindOf(err error) ErrorKind {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
