// Package payment is the outbound payment-gateway boundary. The gateway is
// an external collaborator: calls are fallible, carry their own timeout and
// never hold store or registry resources.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Checkout is the gateway's answer to a payment creation request.
type Checkout struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
}

// Gateway abstracts the payment provider.
type Gateway interface {
	// CreatePayment registers an invoice with the provider and returns the
	// hosted checkout reference.
	CreatePayment(ctx context.Context, invoice map[string]any) (*Checkout, error)
	// VerifyWebhook checks a callback's HMAC signature.
	VerifyWebhook(payload []byte, signature string) bool
}

// HTTPGateway talks JSON over HTTPS to the configured provider.
type HTTPGateway struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	client        *http.Client
}

func NewHTTPGateway(baseURL, apiKey, webhookSecret string) *HTTPGateway {
	return &HTTPGateway{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *HTTPGateway) CreatePayment(ctx context.Context, invoice map[string]any) (*Checkout, error) {
	body, err := json.Marshal(map[string]any{
		"external_id": invoice["id"],
		"amount":      invoice["amount"],
		"description": invoice["invoice_number"],
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}
	var out Checkout
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) VerifyWebhook(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
