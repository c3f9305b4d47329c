package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCanceled     ErrorCode = "CANCELED"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Transport faults: fatal to a client, end the session in the daemon
	ErrTransport      ErrorCode = "TRANSPORT"
	ErrPeerClosed     ErrorCode = "PEER_CLOSED"
	ErrPartialMessage ErrorCode = "PARTIAL_MESSAGE"
	ErrMessageTooLong ErrorCode = "MESSAGE_TOO_LONG"
	ErrProtocol       ErrorCode = "PROTOCOL"

	// Protocol rejections reported by the daemon
	ErrStackEmpty       ErrorCode = "STACK_EMPTY"
	ErrStackFull        ErrorCode = "STACK_FULL"
	ErrPathTooLong      ErrorCode = "PATH_TOO_LONG"
	ErrIndexOutOfRange  ErrorCode = "INDEX_OUT_OF_RANGE"
	ErrUnknownCommand   ErrorCode = "UNKNOWN_COMMAND"
	ErrRejected         ErrorCode = "REJECTED"
	ErrDaemonStart      ErrorCode = "DAEMON_START"
	ErrDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// Filesystem and precondition faults, detected before any mutation
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess        ErrorCode = "FILE_ACCESS"
	ErrTargetDirMissing  ErrorCode = "TARGET_DIR_MISSING"
	ErrMultiTargetNotDir ErrorCode = "MULTI_TARGET_NOT_DIR"
	ErrBatchCollision    ErrorCode = "BATCH_COLLISION"
	ErrCountExceedsDepth ErrorCode = "COUNT_EXCEEDS_DEPTH"

	// Action errors
	ErrActionInvalid ErrorCode = "ACTION_INVALID"
	ErrActionExecute ErrorCode = "ACTION_EXECUTE"

	// The external action succeeded but the pop was not confirmed
	ErrIndeterminate ErrorCode = "INDETERMINATE_STATE"
)

// FlsError represents a structured error with code and details
type FlsError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *FlsError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *FlsError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *FlsError) Is(target error) bool {
	var targetErr *FlsError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new FlsError with the given code and message
func New(code ErrorCode, message string) *FlsError {
	return &FlsError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new FlsError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *FlsError {
	return &FlsError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a FlsError
func Wrap(err error, code ErrorCode, message string) *FlsError {
	if err == nil {
		return nil
	}
	return &FlsError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *FlsError {
	if err == nil {
		return nil
	}
	return &FlsError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *FlsError) WithDetail(key string, value interface{}) *FlsError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code.
// Only the outermost FlsError in the chain is consulted.
func IsErrorCode(err error, code ErrorCode) bool {
	var flsErr *FlsError
	if errors.As(err, &flsErr) {
		return flsErr.Code == code
	}
	return false
}

// HasErrorCode reports whether any FlsError in the chain carries code.
func HasErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var flsErr *FlsError
		if !errors.As(err, &flsErr) {
			return false
		}
		if flsErr.Code == code {
			return true
		}
		err = flsErr.Wrapped
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a FlsError
func GetErrorCode(err error) ErrorCode {
	var flsErr *FlsError
	if errors.As(err, &flsErr) {
		return flsErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a FlsError
func GetErrorDetails(err error) map[string]interface{} {
	var flsErr *FlsError
	if errors.As(err, &flsErr) {
		return flsErr.Details
	}
	return nil
}

// IsRejection reports whether err is a protocol-level rejection from the
// daemon, a normal outcome rather than a crash.
func IsRejection(err error) bool {
	switch GetErrorCode(err) {
	case ErrStackEmpty, ErrStackFull, ErrPathTooLong, ErrIndexOutOfRange,
		ErrUnknownCommand, ErrRejected:
		return true
	}
	return false
}
