package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/pkg/metrics"
)

// PaymentOutcome is the internal classification of a gateway status code.
type PaymentOutcome int

const (
	OutcomePending PaymentOutcome = iota
	OutcomePaid
	OutcomeFailed
)

// mapGatewayStatus is the single adapter from the provider's status
// vocabulary to the internal outcome. Provider quirks stop here; nothing
// downstream ever inspects raw gateway codes.
func mapGatewayStatus(code string) PaymentOutcome {
	switch code {
	case "success", "paid", "settled", "00":
		return OutcomePaid
	case "failed", "failure", "cancelled", "expired", "denied", "error":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

// PaymentCallback is the parsed webhook payload: the order reference, the
// provider transaction id and the raw provider status code. Ephemeral, never
// persisted as its own entity.
type PaymentCallback struct {
	RefNumber     string `json:"ref_number"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PaymentService drives the outbound payment initiation, the reconciliation
// poll and the inbound webhook processing.
type PaymentService struct {
	gateway    *PaymentGatewayClient
	orderRepo  repositories.OrderRepository
	orderState *OrderStateService
	secret     []byte
	metrics    *metrics.Metrics
}

// NewPaymentService creates a new PaymentService. m may be nil.
func NewPaymentService(gateway *PaymentGatewayClient, orderRepo repositories.OrderRepository, orderState *OrderStateService, callbackSecret string, m *metrics.Metrics) *PaymentService {
	return &PaymentService{
		gateway:    gateway,
		orderRepo:  orderRepo,
		orderState: orderState,
		secret:     []byte(callbackSecret),
		metrics:    m,
	}
}

// InitiatePayment opens a payment session with the provider for a pending
// order. The gateway call happens outside any database transaction; only
// after it returns is the transaction id recorded. On gateway failure the
// order remains pending/pending and the caller may retry.
func (s *PaymentService) InitiatePayment(orderID string) (*InitiateResult, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, &OrderNotFoundError{Ref: orderID}
	}
	if order.PaymentStatus.IsTerminal() {
		return nil, &IllegalTransitionError{OrderID: orderID, From: string(order.PaymentStatus), To: string(models.PaymentPending)}
	}

	result, err := s.gateway.Initiate(order)
	if err != nil {
		return nil, err
	}
	if _, err := s.orderState.RecordTransaction(order.ID, result.TransactionID); err != nil {
		// The provider session exists; the id will be re-learned from the
		// webhook or the status poll.
		log.Printf("Warning: failed to record transaction %s for order %s: %v", result.TransactionID, order.ID, err)
	}
	return result, nil
}

// VerifyCallbackSignature checks the HMAC-SHA256 hex signature the provider
// computes over the raw callback body.
func (s *PaymentService) VerifyCallbackSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ProcessCallback verifies, parses and applies one webhook delivery.
// Re-delivery of a terminal callback is a no-op: once the payment status is
// paid or failed no further transition (and no second stock restoration) can
// happen through this path.
func (s *PaymentService) ProcessCallback(body []byte, signature string) (*models.Order, error) {
	if !s.VerifyCallbackSignature(body, signature) {
		log.Printf("SECURITY: payment callback rejected, signature mismatch")
		s.countCallback("rejected")
		return nil, &InvalidCallbackSignatureError{}
	}

	var callback PaymentCallback
	if err := json.Unmarshal(body, &callback); err != nil {
		s.countCallback("malformed")
		return nil, &InvalidCartError{Reason: "malformed callback payload"}
	}

	order, err := s.orderRepo.GetByOrderNumber(callback.RefNumber)
	if err != nil {
		s.countCallback("unknown_order")
		return nil, &OrderNotFoundError{Ref: callback.RefNumber}
	}
	if order.PaymentStatus.IsTerminal() {
		s.countCallback("duplicate")
		return order, nil
	}

	switch mapGatewayStatus(callback.Status) {
	case OutcomePaid:
		s.countCallback("paid")
		return s.orderState.MarkPaid(order.ID, callback.TransactionID)
	case OutcomeFailed:
		s.countCallback("failed")
		return s.orderState.MarkFailed(order.ID, callback.TransactionID)
	default:
		s.countCallback("pending")
		return s.orderState.RecordTransaction(order.ID, callback.TransactionID)
	}
}

// PaymentStatus reports the order's local payment and fulfillment status plus
// a best-effort gateway status. Gateway unavailability degrades the gateway
// field instead of failing the request.
func (s *PaymentService) PaymentStatus(orderID string) (paymentStatus models.PaymentStatus, orderStatus models.OrderStatus, gatewayStatus string, err error) {
	order, lookupErr := s.orderRepo.GetByID(orderID)
	if lookupErr != nil {
		return "", "", "", &OrderNotFoundError{Ref: orderID}
	}

	gatewayStatus, gwErr := s.gateway.CheckStatus(order.OrderNumber)
	if gwErr != nil {
		log.Printf("Warning: gateway status check failed for order %s: %v", orderID, gwErr)
		gatewayStatus = "unavailable"
	}
	return order.PaymentStatus, order.Status, gatewayStatus, nil
}

// InferReturnStatus guesses the payment outcome from the gateway's redirect
// query, probing the parameter names different provider versions use. Display
// only; the webhook remains the source of truth.
func InferReturnStatus(get func(key string) string) PaymentOutcome {
	for _, key := range []string{"status", "result", "apCode", "respcode"} {
		if v := get(key); v != "" {
			return mapGatewayStatus(v)
		}
	}
	return OutcomePending
}

func (s *PaymentService) countCallback(outcome string) {
	if s.metrics != nil {
		s.metrics.PaymentCallbacks.WithLabelValues(outcome).Inc()
	}
}
