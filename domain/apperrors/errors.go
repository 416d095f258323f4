package apperrors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a category of domain failure
type ErrorCode string

const (
	// Ledger errors
	CodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// Seat errors
	CodeSeatUnavailable ErrorCode = "SEAT_UNAVAILABLE"
	CodeSeatNotOccupied ErrorCode = "SEAT_NOT_OCCUPIED"

	// State machine errors
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// Idempotent race losses
	CodeAlreadyConsumed  ErrorCode = "ALREADY_CONSUMED"
	CodeAlreadyCancelled ErrorCode = "ALREADY_CANCELLED"

	// Bounded-use grants
	CodeTokenExhausted ErrorCode = "TOKEN_EXHAUSTED"
	CodeTokenExpired   ErrorCode = "TOKEN_EXPIRED"

	// Router
	CodeDuplicateTableCreation ErrorCode = "DUPLICATE_TABLE_CREATION"

	// Generic
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeDispatcherClosed ErrorCode = "DISPATCHER_CLOSED"
)

// Sentinels for errors.Is comparisons. Matching is by code, so a wrapped
// DomainError with a custom message still matches its sentinel.
var (
	ErrInsufficientFunds      = &DomainError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrSeatUnavailable        = &DomainError{Code: CodeSeatUnavailable, Message: "seat unavailable"}
	ErrSeatNotOccupied        = &DomainError{Code: CodeSeatNotOccupied, Message: "seat is not occupied"}
	ErrInvalidTransition      = &DomainError{Code: CodeInvalidTransition, Message: "invalid state transition"}
	ErrAlreadyConsumed        = &DomainError{Code: CodeAlreadyConsumed, Message: "already consumed"}
	ErrAlreadyCancelled       = &DomainError{Code: CodeAlreadyCancelled, Message: "already cancelled"}
	ErrTokenExhausted         = &DomainError{Code: CodeTokenExhausted, Message: "usage limit reached"}
	ErrTokenExpired           = &DomainError{Code: CodeTokenExpired, Message: "token expired"}
	ErrDuplicateTableCreation = &DomainError{Code: CodeDuplicateTableCreation, Message: "duplicate table creation detected"}
	ErrNotFound               = &DomainError{Code: CodeNotFound, Message: "not found"}
	ErrInvalidArgument        = &DomainError{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrConflict               = &DomainError{Code: CodeConflict, Message: "unique constraint violated"}
	ErrDispatcherClosed       = &DomainError{Code: CodeDispatcherClosed, Message: "table dispatcher is closed"}
)

// DomainError is a typed failure surfaced to callers of the core services
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a DomainError with a specific message
func New(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a DomainError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *DomainError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error in a DomainError
func Wrap(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsBenign reports whether err is a lost idempotent race rather than a failure
func IsBenign(err error) bool {
	code := CodeOf(err)
	return code == CodeAlreadyConsumed || code == CodeAlreadyCancelled
}
