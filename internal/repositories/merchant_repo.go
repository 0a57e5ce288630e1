package repositories

import (
	"pasar/internal/models"

	"gorm.io/gorm"
)

// MerchantRepository defines the interface for merchant data access.
type MerchantRepository interface {
	GetByID(id string) (*models.Merchant, error)
	// GetByIDForUpdate fetches the merchant row under an UPDATE lock; used by
	// the stock ledger when adjusting the order-count rollup.
	GetByIDForUpdate(id string) (*models.Merchant, error)
	Create(merchant *models.Merchant) error
	Update(merchant *models.Merchant) error
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx *gorm.DB) MerchantRepository
}
