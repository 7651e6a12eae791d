// Package payments wraps the Monnify-compatible payment gateway REST API used
// for funding wallets by card or bank transfer.
package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"alltrade/internal/config"
	"alltrade/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Transaction statuses reported by the gateway.
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
	StatusExpired = "EXPIRED"
)

// InitRequest describes a payment to initialize with the gateway.
type InitRequest struct {
	Amount       int64
	CustomerName string
	Email        string
	Description  string
}

// Transaction is the gateway's view of an initialized payment.
type Transaction struct {
	PaymentReference     string `json:"paymentReference"`
	TransactionReference string `json:"transactionReference"`
	CheckoutURL          string `json:"checkoutUrl"`
	Status               string `json:"paymentStatus"`
	AmountPaid           int64  `json:"amountPaid"`
}

// Gateway is the payment operations surface services depend on.
type Gateway interface {
	InitTransaction(ctx context.Context, req InitRequest) (*Transaction, error)
	VerifyTransaction(ctx context.Context, paymentReference string) (*Transaction, error)
}

// Client talks to a Monnify-compatible gateway. Access tokens are cached until
// shortly before they expire.
type Client struct {
	baseURL      string
	apiKey       string
	secretKey    string
	contractCode string
	redirectURL  string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient builds a gateway client from application config.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      cfg.PaymentBaseURL,
		apiKey:       cfg.PaymentAPIKey,
		secretKey:    cfg.PaymentSecretKey,
		contractCode: cfg.PaymentContractCode,
		redirectURL:  cfg.PaymentRedirectURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// NewReference returns a fresh platform payment reference.
func NewReference() string {
	return "AT-" + uuid.NewString()
}

type apiEnvelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseCode      string          `json:"responseCode"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// token returns a valid access token, logging in with basic auth when the
// cached one is missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", nil)
	if err != nil {
		return "", err
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+creds)

	var login loginResponse
	if err := c.do(req, &login); err != nil {
		return "", fmt.Errorf("gateway login: %w", err)
	}
	if login.AccessToken == "" {
		return "", fmt.Errorf("gateway login: empty access token")
	}

	c.accessToken = login.AccessToken
	// Refresh a minute early so in-flight requests never carry a stale token.
	c.tokenExpiry = time.Now().Add(time.Duration(login.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

// InitTransaction registers a payment with the gateway and returns the hosted
// checkout URL the client should be redirected to.
func (c *Client) InitTransaction(ctx context.Context, initReq InitRequest) (*Transaction, error) {
	if initReq.Amount <= 0 {
		return nil, fmt.Errorf("init transaction: amount must be positive")
	}

	span, ctx := observability.NewSpan(ctx, "payments.init_transaction",
		observability.WithSpanKind(observability.SpanKindClient))
	defer span.End()
	span.AddAttributes(attribute.Int64("payment.amount", initReq.Amount))

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"amount":             initReq.Amount,
		"customerName":       initReq.CustomerName,
		"customerEmail":      initReq.Email,
		"paymentReference":   NewReference(),
		"paymentDescription": initReq.Description,
		"currencyCode":       "NGN",
		"contractCode":       c.contractCode,
		"redirectUrl":        c.redirectURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/merchant/transactions/init-transaction", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var tx Transaction
	if err := c.do(req, &tx); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("init transaction: %w", err)
	}
	return &tx, nil
}

// VerifyTransaction fetches the current status of a payment by its platform
// reference. Callers decide what a non-PAID status means for them.
func (c *Client) VerifyTransaction(ctx context.Context, paymentReference string) (*Transaction, error) {
	span, ctx := observability.NewSpan(ctx, "payments.verify_transaction",
		observability.WithSpanKind(observability.SpanKindClient))
	defer span.End()
	span.AddAttributes(attribute.String("payment.reference", paymentReference))

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v2/transactions/"+paymentReference, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var tx Transaction
	if err := c.do(req, &tx); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("verify transaction %s: %w", paymentReference, err)
	}
	return &tx, nil
}

// do executes the request and unmarshals the envelope's responseBody into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	if !envelope.RequestSuccessful {
		return fmt.Errorf("gateway error %s: %s", envelope.ResponseCode, envelope.ResponseMessage)
	}
	return json.Unmarshal(envelope.ResponseBody, out)
}
