package services

import "fmt"

// InvalidCartError rejects a checkout before any mutation: a referenced
// product is missing or inactive, its merchant is not approved, or the
// client-submitted totals do not match the server-computed ones.
type InvalidCartError struct {
	Reason    string
	ProductID string
}

func (e *InvalidCartError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("invalid cart: %s (product %s)", e.Reason, e.ProductID)
	}
	return fmt.Sprintf("invalid cart: %s", e.Reason)
}

// InsufficientStockError aborts the entire checkout transaction.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)",
		e.ProductID, e.Requested, e.Available)
}

// IllegalTransitionError rejects an order-status or payment-status change.
type IllegalTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderID, e.From, e.To)
}

// PaymentGatewayError reports a failed or timed-out call to the payment
// provider. The order stays in a safe, retryable state.
type PaymentGatewayError struct {
	Op     string
	Status int
	Msg    string
}

func (e *PaymentGatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("payment gateway %s failed: status %d: %s", e.Op, e.Status, e.Msg)
	}
	return fmt.Sprintf("payment gateway %s failed: %s", e.Op, e.Msg)
}

// InvalidCallbackSignatureError rejects a webhook whose signature does not
// verify. Logged as a potential security event; no state is changed.
type InvalidCallbackSignatureError struct{}

func (e *InvalidCallbackSignatureError) Error() string {
	return "payment callback signature verification failed"
}

// OrderNotFoundError is surfaced as not-found to the caller.
type OrderNotFoundError struct {
	Ref string
}

func (e *OrderNotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.Ref)
}
