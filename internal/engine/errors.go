package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/wholesale/internal/kv"
	"github.com/roach88/wholesale/internal/row"
	"github.com/roach88/wholesale/internal/script"
)

// TxnError represents a failure that caused a transaction to be skipped.
//
// Failure categories:
//   - Invalid input: a parameter the handler cannot act on (non-positive id)
//   - Not found: a referenced row does not exist
//   - Sub-operation failed: one item of a parallel fan-out failed
//   - Store failure: the store returned an error
//
// Partial effects are never rolled back; the error records where the
// transaction stopped.
type TxnError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes transaction errors.
type ErrorCode string

const (
	// ErrCodeMalformedRecord marks a record that could not be decoded.
	ErrCodeMalformedRecord ErrorCode = "MALFORMED_RECORD"

	// ErrCodeUnknownKind marks a record whose kind has no handler.
	ErrCodeUnknownKind ErrorCode = "UNKNOWN_KIND"

	// ErrCodeInvalidInput marks a parameter or compute-step rejection.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound marks a referenced row that does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeSubOperation marks a failed fan-out item.
	ErrCodeSubOperation ErrorCode = "SUBOPERATION_FAILED"

	// ErrCodeStore marks any other store error.
	ErrCodeStore ErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *TxnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TxnError) Unwrap() error {
	return e.Err
}

// InvalidInput creates a TxnError for input a handler rejects.
func InvalidInput(format string, args ...any) *TxnError {
	return &TxnError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// CodeOf classifies err. Typed errors keep their code; a wrapped
// kv.ErrNotFound or row.FieldError is classified by cause; anything else is
// a store failure.
func CodeOf(err error) ErrorCode {
	var te *TxnError
	if errors.As(err, &te) {
		if te.Code == ErrCodeSubOperation && te.Err != nil {
			// Report the root cause category of a failed sub-operation.
			if inner := CodeOf(te.Err); inner != ErrCodeStore {
				return inner
			}
		}
		return te.Code
	}
	if script.IsMalformed(err) {
		return ErrCodeMalformedRecord
	}
	if kv.IsNotFound(err) {
		return ErrCodeNotFound
	}
	var fe *row.FieldError
	if errors.As(err, &fe) {
		return ErrCodeInvalidInput
	}
	return ErrCodeStore
}

// IsNotFound returns true if err was caused by a missing row.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
