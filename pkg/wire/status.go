package wire

import (
	"context"
	"errors"
	"fmt"
)

// Status is a dispatch result code. Zero is success, failures are negative.
type Status int32

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusFailure is the generic failure code.
	StatusFailure Status = -1

	// StatusNotSupport indicates nothing can serve the request, e.g. no
	// bound service routes the requested sensor id.
	StatusNotSupport Status = -2

	// StatusInvalidParameter indicates an argument is out of range or malformed.
	StatusInvalidParameter Status = -3

	// StatusInvalidObject indicates the target handle is uninitialized or released.
	StatusInvalidObject Status = -4

	// StatusNullPointer indicates a required handle or argument is nil.
	StatusNullPointer Status = -5

	// StatusMallocFail indicates a buffer could not be allocated.
	StatusMallocFail Status = -6

	// StatusTimeout indicates the caller's deadline expired.
	StatusTimeout Status = -7

	// StatusBusy indicates a resource limit was reached; try again later.
	StatusBusy Status = -8

	// StatusIO indicates a serialization failure or size mismatch.
	StatusIO Status = -9

	// StatusAlreadyExists indicates the slot or registration is already taken.
	StatusAlreadyExists Status = -10

	// StatusNotFound indicates the name, token or member is unknown.
	StatusNotFound Status = -11
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusNotSupport:
		return "NOT_SUPPORT"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusInvalidObject:
		return "INVALID_OBJECT"
	case StatusNullPointer:
		return "NULL_POINTER"
	case StatusMallocFail:
		return "MALLOC_FAIL"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusBusy:
		return "BUSY"
	case StatusIO:
		return "IO"
	case StatusAlreadyExists:
		return "ALREADY_EXISTS"
	case StatusNotFound:
		return "NOT_FOUND"
	default:
		return fmt.Sprintf("STATUS(%d)", int32(s))
	}
}

// Error implements error.
func (s Status) Error() string {
	return s.String()
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}

// StatusOf extracts the result code carried by err.
// A nil error is StatusSuccess, context deadlines map to StatusTimeout and
// anything else that does not wrap a Status is StatusFailure.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusFailure
}

// Errorf wraps a status with a formatted message. The status stays
// reachable through errors.Is and StatusOf.
func Errorf(s Status, format string, args ...any) error {
	return fmt.Errorf("%w: %s", s, fmt.Sprintf(format, args...))
}
