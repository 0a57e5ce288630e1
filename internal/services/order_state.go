package services

import (
	"encoding/json"
	"log"
	"time"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/pkg/rabbitmq"

	"gorm.io/gorm"
)

// orderTransitions is the legal order-status graph. Cancellation is only
// possible before shipment; cancelled and delivered are terminal.
var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:    {models.OrderProcessing, models.OrderCancelled},
	models.OrderProcessing: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:    {models.OrderDelivered},
	models.OrderDelivered:  {},
	models.OrderCancelled:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderStateService enforces the order and payment state machines and their
// side effects. Every transition runs in its own transaction with the order
// row locked, so concurrent transitions on one order serialize.
type OrderStateService struct {
	db           *gorm.DB
	orderRepo    repositories.OrderRepository
	productRepo  repositories.ProductRepository
	merchantRepo repositories.MerchantRepository
	mqClient     *rabbitmq.Client
}

// NewOrderStateService creates a new OrderStateService. mqClient may be nil.
func NewOrderStateService(db *gorm.DB, orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, merchantRepo repositories.MerchantRepository, mqClient *rabbitmq.Client) *OrderStateService {
	return &OrderStateService{
		db:           db,
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		merchantRepo: merchantRepo,
		mqClient:     mqClient,
	}
}

// UpdateStatus applies one order-status transition with its side effects.
// trackingNumber is only honored on the transition to shipped.
func (s *OrderStateService) UpdateStatus(orderID string, next models.OrderStatus, trackingNumber string) (*models.Order, error) {
	var order *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.transition(tx, orderID, next, trackingNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	publishOrderEvent(s.mqClient, "order."+string(next), order)
	return order, nil
}

// Cancel cancels an order, restoring every item's stock and the merchant's
// order-count rollup. Only pending and processing orders are cancellable.
func (s *OrderStateService) Cancel(orderID string) (*models.Order, error) {
	return s.UpdateStatus(orderID, models.OrderCancelled, "")
}

// MarkPaid applies a successful payment outcome: payment status paid, paidAt
// stamped, the gateway transaction recorded, and the order moved from pending
// to processing. Calling it again for an already-paid order is a no-op, which
// makes duplicate success callbacks harmless.
func (s *OrderStateService) MarkPaid(orderID, transactionID string) (*models.Order, error) {
	var order *models.Order
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.WithTx(tx).GetByIDForUpdate(orderID)
		if err != nil {
			return &OrderNotFoundError{Ref: orderID}
		}
		if order.PaymentStatus.IsTerminal() {
			if order.PaymentStatus == models.PaymentPaid {
				return nil // duplicate success callback
			}
			return &IllegalTransitionError{OrderID: orderID, From: string(order.PaymentStatus), To: string(models.PaymentPaid)}
		}
		applied = true

		now := time.Now()
		order.PaymentStatus = models.PaymentPaid
		order.PaidAt = &now
		order.PaymentTransactionID = transactionID
		if CanTransition(order.Status, models.OrderProcessing) {
			order.Status = models.OrderProcessing
		}
		return s.orderRepo.WithTx(tx).Update(order)
	})
	if err != nil {
		return nil, err
	}
	if applied {
		publishOrderEvent(s.mqClient, "payment.paid", order)
	}
	return order, nil
}

// MarkFailed applies a failed payment outcome: payment status failed and, if
// the order is still cancellable, cancellation with full stock restoration in
// the same transaction. Idempotent for duplicate failure callbacks, so stock
// is never restored twice.
func (s *OrderStateService) MarkFailed(orderID, transactionID string) (*models.Order, error) {
	var order *models.Order
	applied := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.WithTx(tx).GetByIDForUpdate(orderID)
		if err != nil {
			return &OrderNotFoundError{Ref: orderID}
		}
		if order.PaymentStatus.IsTerminal() {
			if order.PaymentStatus == models.PaymentFailed {
				return nil // duplicate failure callback
			}
			return &IllegalTransitionError{OrderID: orderID, From: string(order.PaymentStatus), To: string(models.PaymentFailed)}
		}
		applied = true

		order.PaymentStatus = models.PaymentFailed
		order.PaymentTransactionID = transactionID
		if err := s.orderRepo.WithTx(tx).Update(order); err != nil {
			return err
		}
		if CanTransition(order.Status, models.OrderCancelled) {
			order, err = s.transition(tx, orderID, models.OrderCancelled, "")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if applied {
		publishOrderEvent(s.mqClient, "payment.failed", order)
	}
	return order, nil
}

// RecordTransaction stores the gateway transaction id on an order whose
// payment is still pending, without any state transition.
func (s *OrderStateService) RecordTransaction(orderID, transactionID string) (*models.Order, error) {
	var order *models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.orderRepo.WithTx(tx).GetByIDForUpdate(orderID)
		if err != nil {
			return &OrderNotFoundError{Ref: orderID}
		}
		if order.PaymentStatus.IsTerminal() || order.PaymentTransactionID == transactionID {
			return nil
		}
		order.PaymentTransactionID = transactionID
		return s.orderRepo.WithTx(tx).Update(order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// transition performs the locked read-check-mutate cycle for one order-status
// change inside the given transaction.
func (s *OrderStateService) transition(tx *gorm.DB, orderID string, next models.OrderStatus, trackingNumber string) (*models.Order, error) {
	orderRepo := s.orderRepo.WithTx(tx)
	order, err := orderRepo.GetByIDForUpdate(orderID)
	if err != nil {
		return nil, &OrderNotFoundError{Ref: orderID}
	}
	if !CanTransition(order.Status, next) {
		return nil, &IllegalTransitionError{OrderID: orderID, From: string(order.Status), To: string(next)}
	}

	now := time.Now()
	switch next {
	case models.OrderShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
		if trackingNumber != "" {
			order.TrackingNumber = trackingNumber
		}
	case models.OrderDelivered:
		order.DeliveredAt = &now
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case models.OrderCancelled:
		ledger := NewStockLedger(s.productRepo.WithTx(tx), s.merchantRepo.WithTx(tx))
		for _, item := range order.Items {
			if err := ledger.Restore(item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
		if err := ledger.RecordOrderCancelled(order.MerchantID); err != nil {
			return nil, err
		}
	}

	order.Status = next
	if err := orderRepo.Update(order); err != nil {
		return nil, err
	}
	return order, nil
}

// publishOrderEvent emits an order lifecycle event to the orders exchange.
// Publish failures are logged, never surfaced to the caller.
func publishOrderEvent(mq *rabbitmq.Client, routingKey string, order *models.Order) {
	if mq == nil || order == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"customer_id":    order.CustomerID,
		"merchant_id":    order.MerchantID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"total":          order.Total,
	})
	if err != nil {
		log.Printf("Failed to marshal order event for order %s: %v", order.ID, err)
		return
	}
	if err := mq.Publish(rabbitmq.OrdersExchange, routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event for order %s: %v", routingKey, order.ID, err)
	}
}
