// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Reconciliation errors. These are the recoverable conditions of the
	// reconciliation taxonomy: they are caught at the operation boundary and
	// reported per item rather than aborting a batch.
	ErrStaleReference  = errors.New("suggestion references a deleted or already reconciled record")
	ErrImbalancedGroup = errors.New("group amounts are outside tolerance")
	ErrValidation      = errors.New("validation failed")
	ErrNotReconciled   = errors.New("bank entry is not reconciled")

	// Persistence errors.
	ErrPersistence = errors.New("persistence operation failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRecoverable reports whether an error is a per-item condition that a bulk
// operation should count and skip instead of aborting.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrStaleReference) ||
		errors.Is(err, ErrImbalancedGroup) ||
		errors.Is(err, ErrValidation)
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
