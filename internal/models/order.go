package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsTerminal reports whether the payment has reached a final outcome.
// Callbacks arriving after a terminal state are ignored.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentPaid || s == PaymentFailed
}

// ShippingAddress is the structured delivery address captured at checkout.
// It is embedded into every order of the checkout with a ship_ column prefix.
type ShippingAddress struct {
	Recipient  string `json:"recipient" validate:"required,min=2,max=100"`
	Phone      string `json:"phone" validate:"required,min=6,max=20"`
	Line1      string `json:"line1" validate:"required,min=3,max=200"`
	Line2      string `json:"line2" validate:"omitempty,max=200"`
	City       string `json:"city" validate:"required,min=2,max=100"`
	Province   string `json:"province" validate:"required,min=2,max=100"`
	PostalCode string `json:"postal_code" validate:"required,min=3,max=12"`
}

// Order is one merchant's share of a customer checkout. A cart spanning N
// merchants always yields N orders; they share only their creation instant,
// never a referential link.
//
// Invariants: Total == Subtotal + Tax + Shipping - Discount and
// MerchantPayout == Total - CommissionAmount.
type Order struct {
	ID                   string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber          string          `json:"order_number" gorm:"uniqueIndex;type:varchar(32)"`
	CustomerID           string          `json:"customer_id" gorm:"index;type:varchar(36)"`
	MerchantID           string          `json:"merchant_id" gorm:"index;type:varchar(36)"`
	Status               OrderStatus     `json:"status" gorm:"type:varchar(16);index"`
	Subtotal             float64         `json:"subtotal"`
	Tax                  float64         `json:"tax"`
	Shipping             float64         `json:"shipping"`
	Discount             float64         `json:"discount"`
	Total                float64         `json:"total"`
	CommissionPerUnit    float64         `json:"commission_per_unit"`
	CommissionAmount     float64         `json:"commission_amount"`
	MerchantPayout       float64         `json:"merchant_payout"`
	PaymentMethod        string          `json:"payment_method" gorm:"type:varchar(32)"`
	PaymentStatus        PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);index"`
	PaymentTransactionID string          `json:"payment_transaction_id" gorm:"type:varchar(64)"`
	ShippingAddress      ShippingAddress `json:"shipping_address" gorm:"embedded;embeddedPrefix:ship_"`
	TrackingNumber       string          `json:"tracking_number" gorm:"type:varchar(64)"`
	ShippedAt            *time.Time      `json:"shipped_at"`
	DeliveredAt          *time.Time      `json:"delivered_at"`
	PaidAt               *time.Time      `json:"paid_at"`
	Notes                string          `json:"notes" gorm:"type:varchar(500)"`
	Items                []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	gorm.Model                           // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// OrderItem is one cart line frozen into an order. Name, SKU and unit price
// are snapshots taken at checkout so later product edits cannot rewrite
// history. Invariant: Subtotal == UnitPrice * Quantity.
type OrderItem struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string  `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID   string  `json:"product_id" gorm:"index;type:varchar(36)"`
	ProductName string  `json:"product_name" gorm:"type:varchar(100)"`
	ProductSKU  string  `json:"product_sku" gorm:"type:varchar(64)"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
	gorm.Model          // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
