package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/routers"
)

// ContractValidationConfig configures contract validation behavior
type ContractValidationConfig struct {
	// FailOnValidationError rejects non-conforming requests with 400.
	// Otherwise violations are only logged.
	FailOnValidationError bool
}

// ContractValidationMiddleware validates requests against the OpenAPI
// description before they reach the handlers. Paths the description does not
// cover (health, metrics, websocket) pass through.
type ContractValidationMiddleware struct {
	validator *ContractValidator
	config    ContractValidationConfig
	base      *BaseHandler
}

func NewContractValidationMiddleware(validator *ContractValidator, config ContractValidationConfig, base *BaseHandler) *ContractValidationMiddleware {
	return &ContractValidationMiddleware{validator: validator, config: config, base: base}
}

func (cvm *ContractValidationMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := cvm.validator.ValidateRequest(r.Context(), r)
			if err == nil || errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
				next.ServeHTTP(w, r)
				return
			}

			cvm.base.logger.WarnContext(r.Context(), "contract validation failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
			if !cvm.config.FailOnValidationError {
				next.ServeHTTP(w, r)
				return
			}
			cvm.base.writeError(w, r, http.StatusBadRequest, &ErrorResponse{
				Code:    "CONTRACT_VALIDATION_ERROR",
				Message: "Request does not conform to API contract",
				Details: map[string]interface{}{"error": err.Error()},
			})
		})
	}
}
