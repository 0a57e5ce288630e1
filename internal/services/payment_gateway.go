package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pasar/internal/models"
)

// GatewayConfig holds the payment provider connection settings. All values
// come from configuration; none of them change behavior beyond addressing.
type GatewayConfig struct {
	BaseURL        string
	MerchantCode   string
	APIKey         string
	CallbackSecret string
	ReturnURL      string
	CallbackURL    string
	Timeout        time.Duration
}

// InitiateResult is the provider's answer to a payment initiation: where to
// send the customer and the provider-side transaction id.
type InitiateResult struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
}

// PaymentGatewayClient makes the outbound HTTPS calls to the payment
// provider. Stateless; every call is bounded by the configured timeout, and a
// timeout counts as initiation failure (the order stays retryable).
type PaymentGatewayClient struct {
	cfg        GatewayConfig
	httpClient *http.Client
}

// NewPaymentGatewayClient creates a new PaymentGatewayClient.
func NewPaymentGatewayClient(cfg GatewayConfig) *PaymentGatewayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &PaymentGatewayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Initiate asks the provider to open a payment session for the order. It
// must never be called while holding a database transaction open.
func (c *PaymentGatewayClient) Initiate(order *models.Order) (*InitiateResult, error) {
	payload := map[string]interface{}{
		"merchant_code":  c.cfg.MerchantCode,
		"ref_number":     order.OrderNumber,
		"amount":         order.Total,
		"description":    fmt.Sprintf("Payment for order %s", order.OrderNumber),
		"customer_name":  order.ShippingAddress.Recipient,
		"customer_phone": order.ShippingAddress.Phone,
		"return_url":     c.cfg.ReturnURL,
		"callback_url":   c.cfg.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &PaymentGatewayError{Op: "initiate", Msg: err.Error()}
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, &PaymentGatewayError{Op: "initiate", Msg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &PaymentGatewayError{Op: "initiate", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &PaymentGatewayError{Op: "initiate", Status: resp.StatusCode, Msg: string(msg)}
	}

	var result InitiateResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &PaymentGatewayError{Op: "initiate", Msg: fmt.Sprintf("malformed response: %v", err)}
	}
	if result.TransactionID == "" || result.PaymentURL == "" {
		return nil, &PaymentGatewayError{Op: "initiate", Msg: "response missing payment_url or transaction_id"}
	}
	return &result, nil
}

// CheckStatus polls the provider for the payment status of a reference. Used
// as the reconciliation fallback when the webhook is delayed or lost; the
// webhook stays the source of truth.
func (c *PaymentGatewayClient) CheckStatus(refNumber string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+"/v1/payments/"+refNumber, nil)
	if err != nil {
		return "", &PaymentGatewayError{Op: "status", Msg: err.Error()}
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PaymentGatewayError{Op: "status", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &PaymentGatewayError{Op: "status", Status: resp.StatusCode, Msg: string(msg)}
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &PaymentGatewayError{Op: "status", Msg: fmt.Sprintf("malformed response: %v", err)}
	}
	return result.Status, nil
}
