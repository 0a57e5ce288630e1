package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/pkg/metrics"
	"pasar/pkg/rabbitmq"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// totalTolerance is the largest divergence accepted between the
// client-submitted grand total and the server-recomputed one.
const totalTolerance = 0.01

// CustomerContext identifies the customer placing the checkout. It is built
// explicitly from the authenticated request; services never read ambient
// request state.
type CustomerContext struct {
	ID string
}

// CheckoutItem is one requested cart line. The client price is kept only for
// the total cross-check; the charged price is resolved server-side.
type CheckoutItem struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// CheckoutRequest is the inbound body of POST /orders. Subtotal and Total are
// untrusted hints cross-checked against server-known prices; ShippingFee and
// Tax are the platform-quoted shared costs apportioned across merchants.
type CheckoutRequest struct {
	Items           []CheckoutItem         `json:"items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"required,max=32"`
	Subtotal        float64                `json:"subtotal" validate:"gte=0"`
	ShippingFee     float64                `json:"shipping_fee" validate:"gte=0"`
	Tax             float64                `json:"tax" validate:"gte=0"`
	Total           float64                `json:"total" validate:"gte=0"`
	Notes           string                 `json:"notes" validate:"omitempty,max=500"`
}

// CheckoutService converts one customer checkout into one order per merchant,
// all inside a single all-or-nothing transaction. A multi-merchant cart
// either becomes a complete, consistent set of orders or leaves no trace.
type CheckoutService struct {
	db           *gorm.DB
	productRepo  repositories.ProductRepository
	merchantRepo repositories.MerchantRepository
	orderRepo    repositories.OrderRepository
	mqClient     *rabbitmq.Client
	metrics      *metrics.Metrics
}

// NewCheckoutService creates a new CheckoutService. mqClient and m may be nil
// (events and metrics are then skipped).
func NewCheckoutService(db *gorm.DB, productRepo repositories.ProductRepository, merchantRepo repositories.MerchantRepository, orderRepo repositories.OrderRepository, mqClient *rabbitmq.Client, m *metrics.Metrics) *CheckoutService {
	return &CheckoutService{
		db:           db,
		productRepo:  productRepo,
		merchantRepo: merchantRepo,
		orderRepo:    orderRepo,
		mqClient:     mqClient,
		metrics:      m,
	}
}

// Checkout validates the cart, splits it per merchant and creates all orders
// inside one transaction. The first stock failure rolls back every
// reservation and order of the checkout, including for merchants already
// processed.
func (s *CheckoutService) Checkout(customer CustomerContext, req CheckoutRequest) ([]models.Order, error) {
	start := time.Now()

	lines, productMerchant, products, merchants, err := s.resolveCart(req.Items)
	if err != nil {
		s.countFailure("invalid_cart")
		return nil, err
	}

	// Recompute the grand total from server-known prices and cross-check the
	// client's figure before touching anything.
	var serverSubtotal float64
	for _, line := range lines {
		serverSubtotal += line.UnitPrice * float64(line.Quantity)
	}
	serverTotal := round2(serverSubtotal + req.ShippingFee + req.Tax)
	if math.Abs(serverTotal-req.Total) > totalTolerance {
		s.countFailure("total_mismatch")
		return nil, &InvalidCartError{
			Reason: fmt.Sprintf("submitted total %.2f does not match computed total %.2f", req.Total, serverTotal),
		}
	}

	groups := SplitCart(lines, productMerchant, req.ShippingFee, req.Tax)

	var orders []models.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		ledger := NewStockLedger(s.productRepo.WithTx(tx), s.merchantRepo.WithTx(tx))
		orderRepo := s.orderRepo.WithTx(tx)

		orders = orders[:0]
		for _, group := range groups {
			order, err := s.buildMerchantOrder(ledger, orderRepo, customer, req, group, products, merchants[group.MerchantID])
			if err != nil {
				return err
			}
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*InsufficientStockError); ok {
			s.countFailure("insufficient_stock")
		} else {
			s.countFailure("internal")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Add(float64(len(orders)))
		s.metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
	}
	for i := range orders {
		publishOrderEvent(s.mqClient, "order.created", &orders[i])
	}
	return orders, nil
}

// resolveCart loads every referenced product and its merchant, rejecting
// missing or inactive products and unapproved merchants before any mutation.
// It returns the cart lines priced from the server-known product prices.
func (s *CheckoutService) resolveCart(items []CheckoutItem) ([]CartLine, map[string]string, map[string]*models.Product, map[string]*models.Merchant, error) {
	lines := make([]CartLine, 0, len(items))
	productMerchant := make(map[string]string)
	products := make(map[string]*models.Product)
	merchants := make(map[string]*models.Merchant)

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			var err error
			product, err = s.productRepo.GetByID(item.ProductID)
			if err != nil {
				return nil, nil, nil, nil, &InvalidCartError{Reason: "product not found", ProductID: item.ProductID}
			}
			products[item.ProductID] = product
		}
		if !product.IsActive {
			return nil, nil, nil, nil, &InvalidCartError{Reason: "product is not active", ProductID: item.ProductID}
		}

		merchant, ok := merchants[product.MerchantID]
		if !ok {
			var err error
			merchant, err = s.merchantRepo.GetByID(product.MerchantID)
			if err != nil {
				return nil, nil, nil, nil, &InvalidCartError{Reason: "merchant not found", ProductID: item.ProductID}
			}
			merchants[product.MerchantID] = merchant
		}
		if !merchant.IsApproved {
			return nil, nil, nil, nil, &InvalidCartError{Reason: "merchant is not approved", ProductID: item.ProductID}
		}

		productMerchant[item.ProductID] = product.MerchantID
		lines = append(lines, CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.EffectivePrice(),
		})
	}
	return lines, productMerchant, products, merchants, nil
}

// buildMerchantOrder is the order factory for one merchant group: it reserves
// stock line by line, computes the totals and commission, and persists the
// order with its item snapshots. Any error aborts the enclosing transaction.
func (s *CheckoutService) buildMerchantOrder(ledger *StockLedger, orderRepo repositories.OrderRepository, customer CustomerContext, req CheckoutRequest, group MerchantGroup, products map[string]*models.Product, merchant *models.Merchant) (*models.Order, error) {
	for _, line := range group.Lines {
		if err := ledger.ReserveAndDecrement(line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	subtotal := group.Subtotal()
	total := round2(subtotal + group.Tax + group.Shipping)
	commissionAmount, payout := Commission(merchant.CommissionPerUnit, group.TotalQuantity(), total)

	order := &models.Order{
		ID:                uuid.New().String(),
		OrderNumber:       newOrderNumber(),
		CustomerID:        customer.ID,
		MerchantID:        group.MerchantID,
		Status:            models.OrderPending,
		Subtotal:          subtotal,
		Tax:               group.Tax,
		Shipping:          group.Shipping,
		Discount:          0,
		Total:             total,
		CommissionPerUnit: merchant.CommissionPerUnit,
		CommissionAmount:  commissionAmount,
		MerchantPayout:    payout,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     models.PaymentPending,
		ShippingAddress:   req.ShippingAddress,
		Notes:             req.Notes,
	}
	for _, line := range group.Lines {
		product := products[line.ProductID]
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    round2(line.UnitPrice * float64(line.Quantity)),
		})
	}

	if err := orderRepo.Create(order); err != nil {
		return nil, err
	}
	if err := ledger.RecordOrderPlaced(group.MerchantID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *CheckoutService) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.CheckoutFailures.WithLabelValues(reason).Inc()
	}
}

// newOrderNumber generates the public order reference, e.g.
// ORD-20250301-9F3C21AB. Uniqueness is backed by the database index.
func newOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().UTC().Format("20060102"),
		strings.ToUpper(uuid.New().String()[:8]))
}
