package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret   []byte
	Issuer      string
	TokenExpiry time.Duration
}

// Claims are the JWT claims the API accepts. The subject is the caller's
// principal.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware verifies bearer tokens and puts the caller principal in the
// request context.
type AuthMiddleware struct {
	config AuthConfig
	tracer trace.Tracer
	base   *BaseHandler
}

func NewAuthMiddleware(config AuthConfig, base *BaseHandler) *AuthMiddleware {
	if config.TokenExpiry == 0 {
		config.TokenExpiry = 24 * time.Hour
	}
	return &AuthMiddleware{
		config: config,
		tracer: otel.Tracer("api.rest.auth"),
		base:   base,
	}
}

// Middleware rejects requests without a valid token.
func (a *AuthMiddleware) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := a.tracer.Start(r.Context(), "auth.middleware")
			defer span.End()

			token, err := extractToken(r)
			if err != nil {
				span.RecordError(err)
				a.writeUnauthorized(w, r, "Invalid authorization header")
				return
			}

			principal, err := a.validateToken(token)
			if err != nil {
				span.RecordError(err)
				a.writeUnauthorized(w, r, "Invalid or expired token")
				return
			}

			span.SetAttributes(attribute.String("principal", principal.String()))
			ctx = context.WithValue(ctx, contextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GenerateToken issues a token for principal.
func (a *AuthMiddleware) GenerateToken(principal values.Principal) (string, error) {
	if principal.IsZero() {
		return "", errors.New("principal is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.String(),
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TokenExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.JWTSecret)
}

func (a *AuthMiddleware) validateToken(tokenString string) (values.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.config.JWTSecret, nil
	}, opts...)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return values.NewPrincipal(claims.Subject)
}

func extractToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("no authorization token provided")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

func (a *AuthMiddleware) writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	a.base.writeError(w, r, http.StatusUnauthorized, &ErrorResponse{
		Code:    "AUTHENTICATION_REQUIRED",
		Message: message,
	})
}
