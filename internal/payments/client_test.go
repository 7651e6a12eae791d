package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"alltrade/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.Config{
		PaymentBaseURL:      srv.URL,
		PaymentAPIKey:       "test-key",
		PaymentSecretKey:    "test-secret",
		PaymentContractCode: "1234567",
		PaymentRedirectURL:  "https://app.example.com/wallet",
	})
}

func writeEnvelope(w http.ResponseWriter, body any) {
	raw, _ := json.Marshal(body)
	json.NewEncoder(w).Encode(map[string]any{
		"requestSuccessful": true,
		"responseMessage":   "success",
		"responseCode":      "0",
		"responseBody":      json.RawMessage(raw),
	})
}

func TestClient_InitTransaction(t *testing.T) {
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "Basic "))
		writeEnvelope(w, map[string]any{"accessToken": "tok-1", "expiresIn": 3600})
	})
	mux.HandleFunc("/api/v1/merchant/transactions/init-transaction", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(50000), payload["amount"])
		assert.Equal(t, "1234567", payload["contractCode"])
		ref, _ := payload["paymentReference"].(string)
		assert.True(t, strings.HasPrefix(ref, "AT-"))

		writeEnvelope(w, map[string]any{
			"paymentReference":     ref,
			"transactionReference": "MNFY|001",
			"checkoutUrl":          "https://checkout.example.com/x",
		})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	tx, err := client.InitTransaction(ctx, InitRequest{
		Amount:       50000,
		CustomerName: "Alice",
		Email:        "alice@example.com",
		Description:  "Wallet funding",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/x", tx.CheckoutURL)
	assert.True(t, strings.HasPrefix(tx.PaymentReference, "AT-"))

	// Second call reuses the cached token
	_, err = client.InitTransaction(ctx, InitRequest{Amount: 100, CustomerName: "A", Email: "a@e.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, logins)
}

func TestClient_InitTransaction_InvalidAmount(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())
	_, err := client.InitTransaction(context.Background(), InitRequest{Amount: 0})
	assert.Error(t, err)
}

func TestClient_VerifyTransaction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{"accessToken": "tok-1", "expiresIn": 3600})
	})
	mux.HandleFunc("/api/v2/transactions/", func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, "/api/v2/transactions/")
		if ref == "AT-paid" {
			writeEnvelope(w, map[string]any{
				"paymentReference": ref,
				"paymentStatus":    StatusPaid,
				"amountPaid":       50000,
			})
			return
		}
		writeEnvelope(w, map[string]any{
			"paymentReference": ref,
			"paymentStatus":    StatusPending,
		})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	tx, err := client.VerifyTransaction(ctx, "AT-paid")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, tx.Status)
	assert.Equal(t, int64(50000), tx.AmountPaid)

	tx, err = client.VerifyTransaction(ctx, "AT-waiting")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, tx.Status)
}

func TestClient_GatewayError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"requestSuccessful": false,
			"responseMessage":   "invalid credentials",
			"responseCode":      "99",
		})
	})

	client := newTestClient(t, mux)
	_, err := client.VerifyTransaction(context.Background(), "AT-x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestNewReference(t *testing.T) {
	a := NewReference()
	b := NewReference()
	assert.True(t, strings.HasPrefix(a, "AT-"))
	assert.NotEqual(t, a, b)
}
