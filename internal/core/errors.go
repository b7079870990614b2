// internal/core/errors.go
package core

import "fmt"

// Error is a coded error. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError returns a copy of base carrying cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause under base's code.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

var (
	// Computation
	ErrInsufficientHistory = &Error{Code: "INSUFFICIENT_HISTORY", Message: "insufficient bar history"}
	ErrInvalidParameter    = &Error{Code: "INVALID_PARAMETER", Message: "invalid parameter"}

	// Market data
	ErrDataFetchFailure = &Error{Code: "DATA_FETCH_FAILED", Message: "bar fetch failed"}
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}

	// Execution
	ErrOrderRejected      = &Error{Code: "ORDER_REJECTED", Message: "order rejected"}
	ErrNoSuchPosition     = &Error{Code: "NO_SUCH_POSITION", Message: "no such position"}
	ErrBrokerDisconnected = &Error{Code: "BROKER_DISCONNECTED", Message: "broker not connected"}

	// Config
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
