package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Command executed successfully.
	RetCInternalError                     // 1: Command failed due to an internal error.
	RetCInvalidOperation                  // 2: Invalid operation or argument.
	RetCIoError                           // 3: Disk or network failure.
	RetCSerializationError                // 4: A log record or protocol message could not be decoded.
	RetCKeyNotFound                       // 5: The key does not exist.
	RetCEngineMismatch                    // 6: The data directory was written by another engine.
	RetCRemoteError                       // 7: The server answered with an error message.
	RetCClosed                            // 8: The database or connection was already closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCIoError:
		return "IoError"
	case RetCSerializationError:
		return "SerializationError"
	case RetCKeyNotFound:
		return "KeyNotFound"
	case RetCEngineMismatch:
		return "EngineMismatch"
	case RetCRemoteError:
		return "RemoteError"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error wraps a return code, a message and optionally the error that caused it.
// Two errors match with errors.Is when their codes are equal, so callers can test
// for a class of failure without comparing messages:
//
//	if errors.Is(err, db.ErrKeyNotFound) { ... }
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
	Err  error   // The underlying error, may be nil
}

// Error implements the error interface.
// The text is the bare message so it can be sent to remote clients unchanged.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message that wraps err.
func WrapError(code RetCode, err error, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the code of the first *Error in err's chain or RetCInternalError if there is none.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

var (
	// ErrKeyNotFound is returned by Remove for missing keys
	ErrKeyNotFound = NewError(RetCKeyNotFound, "Key not found")

	// ErrClosed is returned by every operation on a closed database
	ErrClosed = NewError(RetCClosed, "database is closed")
)
