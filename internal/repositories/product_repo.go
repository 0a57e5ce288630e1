package repositories

import (
	"pasar/internal/models"

	"gorm.io/gorm"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	// GetByIDForUpdate fetches the product row under an UPDATE lock so that
	// concurrent checkouts of the same product serialize on it.
	GetByIDForUpdate(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) ProductRepository
}
