package app

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrMissingStartDate = errors.New("contract has no start date")
)

// Authorization errors.
var (
	ErrUnauthenticated   = errors.New("caller identity is required")
	ErrForbidden         = errors.New("caller is not a party to this contract")
	ErrInvalidGuestToken = errors.New("guest access token is invalid")
	ErrAdminRequired     = errors.New("admin privileges required")
)

// Conflict errors.
var (
	ErrAlreadyPaid     = errors.New("payment is already completed")
	ErrAlreadyRefunded = errors.New("invoice is already refunded")
	ErrNotPaid         = errors.New("invoice is not paid")
)

// ErrRateLimited is matched by RateLimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// GatewayError wraps a failed payment gateway call. Message carries the
// gateway's own wording when it provided one.
type GatewayError struct {
	Op      string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func gatewayError(op string, err error) error {
	return &GatewayError{Op: op, Message: err.Error(), Err: err}
}

// RateLimitError is returned when a caller exceeded a rate limit.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %d seconds", e.RetryAfterSeconds)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
