// Package apperror defines the error kinds the engine reports to its callers.
// Every kind is a sentinel that callers match with errors.Is; AppError carries
// the human-readable message and, for input errors, the offending field.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyReported    = errors.New("already reported")
	ErrLedgerCommitFailed = errors.New("ledger commit failed")
	ErrInconsistentState  = errors.New("inconsistent state")
	ErrForbidden          = errors.New("forbidden")
	ErrPartiallyApplied   = errors.New("partially applied")
)

// AppError is an error with a kind, a message and an optional field
type AppError struct {
	Err     error
	Message string
	Field   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InvalidInput(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func AlreadyReported(contentID, reporterID string) *AppError {
	return &AppError{
		Err:     ErrAlreadyReported,
		Message: fmt.Sprintf("user %s already reported content %s", reporterID, contentID),
	}
}

// LedgerCommitFailed wraps the last store error so that it stays inspectable.
func LedgerCommitFailed(userID string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrLedgerCommitFailed, cause),
		Message: fmt.Sprintf("ledger commit failed for user %s", userID),
	}
}

func InconsistentState(message string) *AppError {
	return &AppError{
		Err:     ErrInconsistentState,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// PartiallyApplied reports a workflow whose ledger side committed while a
// later step did not. Repeating the request completes it.
func PartiallyApplied(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrPartiallyApplied, cause),
		Message: message,
	}
}
