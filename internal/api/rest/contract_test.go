package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
)

func newContractValidator(t *testing.T) *ContractValidator {
	t.Helper()
	doc, err := LoadOpenAPI(context.Background())
	require.NoError(t, err)
	cv, err := NewContractValidator(doc)
	require.NoError(t, err)
	return cv
}

// Every documented response the API produces must match the document.
func TestContract_ResponsesConform(t *testing.T) {
	api := newTestAPI(t, nil)
	cv := newContractValidator(t)

	api.create(t, "1000", "100", 3600)
	api.create(t, "500", "50", 3600)
	api.clock.Advance(10 * time.Minute)

	steps := []struct {
		name   string
		method string
		path   string
		body   string
		caller values.Principal
		status int
	}{
		{"list", http.MethodGet, "/api/v1/auctions?status=active", "", "", http.StatusOK},
		{"count", http.MethodGet, "/api/v1/auctions/count", "", "", http.StatusOK},
		{"get", http.MethodGet, "/api/v1/auctions/0", "", "", http.StatusOK},
		{"price", http.MethodGet, "/api/v1/auctions/0/price", "", "", http.StatusOK},
		{"create", http.MethodPost, "/api/v1/auctions", `{"item_description":"rug","starting_price":"900","ending_price":"1","duration_seconds":600}`, seller, http.StatusCreated},
		{"create rejected", http.MethodPost, "/api/v1/auctions", `{"starting_price":"1","ending_price":"900","duration_seconds":600}`, seller, http.StatusBadRequest},
		{"buy", http.MethodPost, "/api/v1/auctions/0/buy", `{"amount_paid":"1000"}`, buyer, http.StatusOK},
		{"buy sold", http.MethodPost, "/api/v1/auctions/0/buy", `{"amount_paid":"1000"}`, buyer, http.StatusConflict},
		{"get sold", http.MethodGet, "/api/v1/auctions/0", "", "", http.StatusOK},
		{"cancel", http.MethodPost, "/api/v1/auctions/1/cancel", "", seller, http.StatusOK},
		{"fee", http.MethodGet, "/api/v1/platform/fee", "", "", http.StatusOK},
		{"fee update", http.MethodPut, "/api/v1/platform/fee", `{"fee_bps":500}`, admin, http.StatusOK},
		{"fee forbidden", http.MethodPut, "/api/v1/platform/fee", `{"fee_bps":500}`, other, http.StatusForbidden},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			var body interface{}
			if step.body != "" {
				body = step.body
			}
			rec, _ := api.do(t, step.method, step.path, body, step.caller)
			require.Equal(t, step.status, rec.Code, rec.Body.String())

			req := httptest.NewRequest(step.method, step.path, bytes.NewBufferString(step.body))
			req.Header.Set("Content-Type", "application/json")
			err := cv.ValidateResponse(context.Background(), req, rec.Code, rec.Header(), rec.Body.Bytes())
			assert.NoError(t, err, rec.Body.String())
		})
	}
}

func TestContract_RequestValidationMiddleware(t *testing.T) {
	api := newTestAPI(t, func(c *Config) {
		c.ValidateContract = true
		c.FailOnContractViolation = true
	})

	// Numbers are not accepted for amounts.
	rec, env := api.do(t, http.MethodPost, "/api/v1/auctions", map[string]interface{}{
		"starting_price":   1000,
		"ending_price":     "100",
		"duration_seconds": 3600,
	}, seller)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONTRACT_VALIDATION_ERROR", env.Error.Code)

	// A conforming request still reaches the handler, body intact.
	id := api.create(t, "1000", "100", 3600)
	assert.Equal(t, uint64(0), id)

	// Undocumented paths pass through.
	rec, _ = api.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContract_TypeMismatchWithoutValidation(t *testing.T) {
	api := newTestAPI(t, nil)

	rec, env := api.do(t, http.MethodPost, "/api/v1/auctions", map[string]interface{}{
		"starting_price":   1000,
		"ending_price":     "100",
		"duration_seconds": 3600,
	}, seller)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "TYPE_MISMATCH", env.Error.Code)
}

func TestContract_SchemaMatchesResultType(t *testing.T) {
	cv := newContractValidator(t)

	raw := []byte(`{
		"settlement_id": "7f1c9a5e-4a0b-4f4e-9a51-4c1f0f6b1d2a",
		"auction_id": 3,
		"seller": "seller",
		"buyer": "buyer",
		"price": "550",
		"fee_bps": 250,
		"fee_paid": "13",
		"seller_proceeds": "537",
		"refund": "0"
	}`)
	var data interface{}
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.NoError(t, cv.ValidateSchema("Settlement", data))

	require.NoError(t, json.Unmarshal([]byte(`{"fee_bps": 1001, "max_fee_bps": 1000, "admin": "admin"}`), &data))
	assert.Error(t, cv.ValidateSchema("Fee", data))

	assert.Error(t, cv.ValidateSchema("Missing", data))
}
