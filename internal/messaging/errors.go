package messaging

import (
	"fmt"
)

// ErrorCode identifies why a report could not be classified.
type ErrorCode string

const (
	CodeInvalidEncoding ErrorCode = "INVALID_ENCODING"
	CodeMissingType     ErrorCode = "MISSING_TYPE"
	CodeUnknownType     ErrorCode = "UNKNOWN_TYPE"
	CodeInvalidData     ErrorCode = "INVALID_DATA"
	CodeMissingHost     ErrorCode = "MISSING_HOST"
)

// Sentinel errors for use with errors.Is. They match any ClassificationError
// with the same code.
var (
	ErrInvalidEncoding = &ClassificationError{Code: CodeInvalidEncoding, Message: "invalid JSON"}
	ErrMissingType     = &ClassificationError{Code: CodeMissingType, Message: "missing or invalid type field"}
	ErrUnknownType     = &ClassificationError{Code: CodeUnknownType, Message: "unknown message type"}
	ErrInvalidData     = &ClassificationError{Code: CodeInvalidData, Message: "missing or invalid data field"}
	ErrMissingHost     = &ClassificationError{Code: CodeMissingHost, Message: "missing or invalid host field"}
)

// ClassificationError reports a message that could not be classified.
type ClassificationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ClassificationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ClassificationError with the same code.
func (e *ClassificationError) Is(target error) bool {
	t, ok := target.(*ClassificationError)
	return ok && t.Code == e.Code
}

func newClassificationError(base *ClassificationError, cause error) *ClassificationError {
	return &ClassificationError{Code: base.Code, Message: base.Message, Cause: cause}
}

// IOError is a transport failure that ended a connection.
type IOError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}
