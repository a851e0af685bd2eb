package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	domainErrors "github.com/davidleathers/dutch-auction-exchange/internal/domain/errors"
)

// ErrorHandler maps errors to an HTTP status and a response body.
type ErrorHandler interface {
	HandleError(err error) (status int, resp *ErrorResponse)
	HandlePanic(recovered interface{}) (status int, resp *ErrorResponse)
}

// DefaultErrorHandler maps domain AppErrors by their status code and code,
// request decoding errors to 400, and everything else to 500.
type DefaultErrorHandler struct {
	debugMode bool
}

func NewErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) HandleError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	var appErr *domainErrors.AppError
	if errors.As(err, &appErr) {
		return h.handleDomainError(appErr)
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: validationErr.Message,
			Fields:  validationErr.Fields,
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "INVALID_JSON",
			Message: "Invalid JSON syntax",
			Details: map[string]interface{}{"offset": syntaxErr.Offset},
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "TYPE_MISMATCH",
			Message: fmt.Sprintf("Invalid type for field '%s'", typeErr.Field),
			Details: map[string]interface{}{"expected": typeErr.Type.String(), "got": typeErr.Value},
		}
	}

	// Unknown fields and other decoder complaints.
	var badReq *badRequestError
	if errors.As(err, &badReq) {
		return http.StatusBadRequest, &ErrorResponse{Code: "INVALID_REQUEST", Message: badReq.Error()}
	}

	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout, &ErrorResponse{Code: "REQUEST_CANCELED", Message: "Request was canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, &ErrorResponse{Code: "REQUEST_TIMEOUT", Message: "Request timed out"}
	}

	resp := &ErrorResponse{Code: domainErrors.CodeInternal, Message: "An internal error occurred"}
	if h.debugMode {
		resp.Details = map[string]interface{}{"error": err.Error()}
	}
	return http.StatusInternalServerError, resp
}

func (h *DefaultErrorHandler) HandlePanic(recovered interface{}) (int, *ErrorResponse) {
	resp := &ErrorResponse{Code: domainErrors.CodeInternal, Message: "An internal error occurred"}
	if h.debugMode {
		resp.Details = map[string]interface{}{"panic": fmt.Sprint(recovered)}
	}
	return http.StatusInternalServerError, resp
}

func (h *DefaultErrorHandler) handleDomainError(err *domainErrors.AppError) (int, *ErrorResponse) {
	status := err.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	resp := &ErrorResponse{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
	}
	// Internal causes never leak.
	if status >= http.StatusInternalServerError && !h.debugMode {
		resp.Details = nil
	}
	return status, resp
}

// badRequestError marks malformed input found outside the JSON decoder, such
// as path parameters.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}
