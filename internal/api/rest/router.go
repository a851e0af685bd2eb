package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/cache"
	"github.com/davidleathers/dutch-auction-exchange/internal/service/settlement"
)

// Config holds API configuration
type Config struct {
	Version string
	Service settlement.Service
	Logger  *slog.Logger

	Auth           AuthConfig
	RateLimiter    cache.RateLimiter
	RateLimit      RateLimitConfig
	AllowedOrigins []string

	// Events serves GET /ws when set.
	Events http.Handler
	// Health serves GET /health. A service with no checkers is used when nil.
	Health *HealthService

	ValidateContract        bool
	FailOnContractViolation bool
}

// NewRouter wires the auction endpoints, ops endpoints and the middleware
// stack onto a ServeMux.
func NewRouter(config Config) (http.Handler, error) {
	if config.Service == nil {
		return nil, fmt.Errorf("rest: service is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Version == "" {
		config.Version = "v1"
	}
	if config.Health == nil {
		config.Health = NewHealthService(HealthConfig{ServiceName: "dutch-auction-exchange", ServiceVersion: config.Version})
	}

	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		return nil, err
	}
	specHandler, err := openAPIHandler(doc)
	if err != nil {
		return nil, err
	}

	base := NewBaseHandler(config.Version, config.Logger)
	h := NewHandler(base, config.Service)
	auth := NewAuthMiddleware(config.Auth, base).Middleware()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/auctions", h.listAuctions)
	mux.HandleFunc("GET /api/v1/auctions/count", h.countAuctions)
	mux.HandleFunc("GET /api/v1/auctions/{id}", h.getAuction)
	mux.HandleFunc("GET /api/v1/auctions/{id}/price", h.getPrice)
	mux.HandleFunc("GET /api/v1/platform/fee", h.getFee)

	mux.Handle("POST /api/v1/auctions", auth(http.HandlerFunc(h.createAuction)))
	mux.Handle("POST /api/v1/auctions/{id}/buy", auth(http.HandlerFunc(h.buy)))
	mux.Handle("POST /api/v1/auctions/{id}/cancel", auth(http.HandlerFunc(h.cancelAuction)))
	mux.Handle("PUT /api/v1/platform/fee", auth(http.HandlerFunc(h.updateFee)))

	if config.Events != nil {
		mux.Handle("GET /ws", config.Events)
	}
	mux.Handle("GET /health", config.Health.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api/docs/openapi.json", specHandler)

	middlewares := []Middleware{
		requestIDMiddleware,
		observeMiddleware(config.Logger),
		RecoveryMiddleware(base),
		corsMiddleware(config.AllowedOrigins),
		NewRateLimiterMiddleware(config.RateLimiter, config.RateLimit, base).Middleware(),
	}
	if config.ValidateContract {
		validator, err := NewContractValidator(doc)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, NewContractValidationMiddleware(validator,
			ContractValidationConfig{FailOnValidationError: config.FailOnContractViolation}, base).Middleware())
	}

	return Chain(mux, middlewares...), nil
}
