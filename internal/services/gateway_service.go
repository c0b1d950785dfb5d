package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VerificationResult is the gateway's authoritative view of one payment.
type VerificationResult struct {
	Status string
	Raw    json.RawMessage
}

// PaymentGateway fetches authoritative payment status from the provider.
type PaymentGateway interface {
	VerifyPayment(ctx context.Context, providerPaymentID string) (*VerificationResult, error)
}

// Gateway status strings reported by the provider.
const (
	GatewayStatusPending   = "pending"
	GatewayStatusCompleted = "completed"
	GatewayStatusFailed    = "failed"
)

// GatewayClient talks to the external payment gateway. The bearer credential
// stays server-side and is never exposed to clients.
type GatewayClient struct {
	baseURL     string
	checkoutURL string
	merchantID  string
	secretKey   string
	httpClient  *http.Client
}

// NewGatewayClient constructs a gateway client.
func NewGatewayClient(baseURL, checkoutURL, merchantID, secretKey string) *GatewayClient {
	return &GatewayClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		checkoutURL: strings.TrimRight(checkoutURL, "/"),
		merchantID:  merchantID,
		secretKey:   secretKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type gatewayPaymentResponse struct {
	Status string `json:"status"`
}

// VerifyPayment queries GET /payments/{id} and returns the reported status
// plus the raw payload. The call has no local side effects; all mutation
// happens downstream in the reconciler.
func (g *GatewayClient) VerifyPayment(ctx context.Context, providerPaymentID string) (*VerificationResult, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", g.baseURL, url.PathEscape(providerPaymentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway request build: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway verify failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var payload gatewayPaymentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("gateway verify unmarshal: %w", err)
	}
	if payload.Status == "" {
		return nil, errors.New("gateway verify: empty status")
	}

	return &VerificationResult{Status: payload.Status, Raw: body}, nil
}

// CheckoutURL builds the hosted checkout redirect for a provider payment.
func (g *GatewayClient) CheckoutURL(providerPaymentID string, amount int64, returnURL string) string {
	payload := fmt.Sprintf("m=%s;ac.payment_id=%s;a=%d;c=%s",
		g.merchantID, providerPaymentID, amount, strings.TrimRight(returnURL, "/"))
	return g.checkoutURL + "/" + base64.StdEncoding.EncodeToString([]byte(payload))
}
