package engine

import (
	"errors"
	"fmt"
)

// Error is a failure reported by an Engine.
//
// Message carries the engine's diagnostic text verbatim.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is the engine's diagnostic text.
	Message string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeParse indicates the query text could not be parsed.
	ErrCodeParse ErrorCode = "PARSE_FAILED"

	// ErrCodeUnknownQuery indicates Subscribe named a query that is not registered.
	ErrCodeUnknownQuery ErrorCode = "UNKNOWN_QUERY"

	// ErrCodeInvalidVariables indicates the variables were not a JSON object.
	ErrCodeInvalidVariables ErrorCode = "INVALID_VARIABLES"

	// ErrCodeNotStarted indicates the engine was used before Start or after Stop.
	ErrCodeNotStarted ErrorCode = "NOT_STARTED"

	// ErrCodeEvaluation indicates a subscription could not be set up.
	ErrCodeEvaluation ErrorCode = "EVALUATION_FAILED"

	// ErrCodeStorage indicates the engine's backing state failed.
	ErrCodeStorage ErrorCode = "STORAGE_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsEngineError returns true if err is or wraps an Error.
func IsEngineError(err error) bool {
	var ee *Error
	return errors.As(err, &ee)
}

// HasCode returns true if err is or wraps an Error with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ErrorCode) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
