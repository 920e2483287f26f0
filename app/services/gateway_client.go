package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	businessflow "github.com/linktum-io/linktum/business_flow"
	"github.com/linktum-io/linktum/config"
)

// GatewayClient opens hosted checkout sessions with the fiat payment
// provider and verifies the signatures on its callbacks.
type GatewayClient struct {
	baseURL        string
	apiKey         string
	callbackSecret string
	httpClient     *http.Client
}

// NewGatewayClient creates a payment gateway client from configuration.
func NewGatewayClient(cfg config.GatewayConfig, callbackSecret string) *GatewayClient {
	return &GatewayClient{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		callbackSecret: callbackSecret,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
	}
}

type checkoutRequestPayload struct {
	Reference   string `json:"reference"`
	Amount      uint64 `json:"amount"`
	Currency    string `json:"currency"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

type checkoutResponsePayload struct {
	CheckoutURL string `json:"checkout_url"`
	Message     string `json:"message"`
}

// CreateCheckout opens a checkout session and returns the hosted payment URL.
func (c *GatewayClient) CreateCheckout(ctx context.Context, req businessflow.CheckoutRequest) (string, error) {
	body, err := json.Marshal(checkoutRequestPayload{
		Reference:   req.Reference,
		Amount:      req.FiatAmount,
		Currency:    req.Currency,
		Phone:       req.Phone,
		Description: req.Description,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	var parsed checkoutResponsePayload
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, parsed.Message)
	}
	if parsed.CheckoutURL == "" {
		return "", fmt.Errorf("gateway response missing checkout URL")
	}
	return parsed.CheckoutURL, nil
}

// VerifySignature checks the HMAC-SHA256 signature the gateway attaches to
// callback requests. The signature covers the raw request body.
func (c *GatewayClient) VerifySignature(rawBody []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.callbackSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ businessflow.PaymentGateway = (*GatewayClient)(nil)
