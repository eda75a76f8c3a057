package domain

import (
	"errors"
	"fmt"
	"time"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// ErrStaleState is returned when a game state row changed between read and write.
// The transaction runner treats it as retryable.
var ErrStaleState = errors.New("game state version changed")

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrInvalidAmount(amount int64) *AppError {
	return &AppError{Code: "INVALID_AMOUNT", Message: fmt.Sprintf("amount must be positive, got %d", amount), Status: 400}
}

func ErrAmountTooLarge(amount, limit int64) *AppError {
	return &AppError{Code: "INVALID_AMOUNT", Message: fmt.Sprintf("amount %d exceeds the limit of %d", amount, limit), Status: 400}
}

func ErrBalanceOverflow(current, amount int64) *AppError {
	return &AppError{Code: "INVALID_AMOUNT", Message: fmt.Sprintf("adding %d to %d would overflow", amount, current), Status: 400}
}

func ErrInsufficientFunds(have, need int64) *AppError {
	return &AppError{Code: "INSUFFICIENT_FUNDS", Message: fmt.Sprintf("insufficient coins: have %d, need %d", have, need), Status: 400}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: "RATE_LIMITED", Message: msg, Status: 429}
}

// RetryAfterError is the cause of a rate-limit error that knows when the caller may retry.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string { return fmt.Sprintf("retry after %s", e.After) }

// ErrRateLimitedFor is ErrRateLimited carrying a retry hint.
func ErrRateLimitedFor(msg string, after time.Duration) *AppError {
	err := ErrRateLimited(msg)
	err.Cause = &RetryAfterError{After: after}
	return err
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// AsAppError unwraps err looking for an *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
