package rest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/telemetry"
)

func TestAuthMiddleware(t *testing.T) {
	base := NewBaseHandler("v1", telemetry.NewLogger(io.Discard, "error"))
	auth := NewAuthMiddleware(testAuth, base)

	var seen values.Principal
	protected := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := auth.GenerateToken(buyer)
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, Claims{RegisteredClaims: claims}).SignedString(key)
		require.NoError(t, err)
		return s
	}
	now := time.Now()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCaller values.Principal
	}{
		{"valid token", "Bearer " + valid, http.StatusNoContent, buyer},
		{"lower case scheme", "bearer " + valid, http.StatusNoContent, buyer},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, ""},
		{
			name: "wrong secret",
			header: "Bearer " + sign(jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
				Subject: "buyer", Issuer: testAuth.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: "Bearer " + sign(jwt.SigningMethodHS256, testAuth.JWTSecret, jwt.RegisteredClaims{
				Subject: "buyer", Issuer: testAuth.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: "Bearer " + sign(jwt.SigningMethodHS256, testAuth.JWTSecret, jwt.RegisteredClaims{
				Subject: "buyer", Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "empty subject",
			header: "Bearer " + sign(jwt.SigningMethodHS256, testAuth.JWTSecret, jwt.RegisteredClaims{
				Issuer: testAuth.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "hs512 rejected",
			header: "Bearer " + sign(jwt.SigningMethodHS512, testAuth.JWTSecret, jwt.RegisteredClaims{
				Subject: "buyer", Issuer: testAuth.Issuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCaller, seen)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Bearer realm="api"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuthMiddleware_GenerateTokenRequiresPrincipal(t *testing.T) {
	auth := NewAuthMiddleware(testAuth, NewBaseHandler("v1", nil))
	_, err := auth.GenerateToken("")
	assert.Error(t, err)
}
