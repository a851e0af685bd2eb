package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeForbidden  ErrorType = "forbidden"
)

// Rejection codes surfaced to callers. They are stable and part of the API.
const (
	CodeInvalidPrice         = "INVALID_PRICE"
	CodeInvalidDuration      = "INVALID_DURATION"
	CodeInvalidFeePercentage = "INVALID_FEE_PERCENTAGE"
	CodeAuctionNotActive     = "AUCTION_NOT_ACTIVE"
	CodeAuctionExpired       = "AUCTION_EXPIRED"
	CodeInsufficientPayment  = "INSUFFICIENT_PAYMENT"
	CodeNotSeller            = "NOT_SELLER"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "RESOURCE_NOT_FOUND"
	CodeSettlementFailed     = "SETTLEMENT_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so callers can branch with
// errors.Is(err, ErrAuctionNotActive) regardless of details or cause.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error carrying details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of the error wrapping cause.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string, status int) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: status,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewForbiddenError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternal,
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       CodeSettlementFailed,
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  false,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// Predefined rejections. Use the constructors below when details are needed;
// these values are only meant as errors.Is targets and plain returns.
var (
	ErrInvalidPrice         = NewValidationError(CodeInvalidPrice, "starting price must be greater than ending price")
	ErrInvalidDuration      = NewValidationError(CodeInvalidDuration, "duration is outside the allowed range")
	ErrInvalidFeePercentage = NewValidationError(CodeInvalidFeePercentage, "fee percentage exceeds the maximum")
	ErrAuctionNotActive     = NewBusinessError(CodeAuctionNotActive, "auction is not active", 409)
	ErrAuctionExpired       = NewBusinessError(CodeAuctionExpired, "auction has expired", 410)
	ErrInsufficientPayment  = NewBusinessError(CodeInsufficientPayment, "insufficient payment", 402)
	ErrNotSeller            = NewForbiddenError(CodeNotSeller, "caller is not the seller")
	ErrUnauthorized         = NewForbiddenError(CodeUnauthorized, "caller is not authorized")
	ErrAuctionNotFound      = NewNotFoundError("auction")
	ErrSettlementFailed     = NewExternalError("ledger", "settlement failed")
)

// InsufficientPayment reports the price required and the amount sent.
func InsufficientPayment(required, sent string) *AppError {
	return ErrInsufficientPayment.WithDetails(map[string]interface{}{
		"required": required,
		"sent":     sent,
	})
}

// Unauthorized reports the caller that attempted an admin-only operation.
func Unauthorized(caller string) *AppError {
	return ErrUnauthorized.WithDetails(map[string]interface{}{"caller": caller})
}

// SettlementFailed wraps a ledger rejection.
func SettlementFailed(cause error) *AppError {
	return ErrSettlementFailed.WithCause(cause)
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// HasCode checks if an error carries a specific code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or
// CodeInternal for anything else.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}
