package repositories

import (
	"pasar/internal/models"

	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access.
// Orders are never deleted; cancellation is a status change.
type OrderRepository interface {
	GetByID(id string) (*models.Order, error)
	// GetByIDForUpdate locks the order row so concurrent status transitions
	// on the same order serialize.
	GetByIDForUpdate(id string) (*models.Order, error)
	GetByOrderNumber(orderNumber string) (*models.Order, error)
	GetByCustomer(customerID string) ([]models.Order, error)
	Create(order *models.Order) error
	Update(order *models.Order) error
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) OrderRepository
}
