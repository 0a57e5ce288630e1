package repositories

import (
	"fmt"

	"pasar/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMMerchantRepository is a GORM implementation of MerchantRepository.
type GORMMerchantRepository struct {
	db *gorm.DB
}

// NewGORMMerchantRepository creates a new instance of GORMMerchantRepository.
func NewGORMMerchantRepository(db *gorm.DB) *GORMMerchantRepository {
	return &GORMMerchantRepository{
		db: db,
	}
}

// WithTx returns a repository bound to the given transaction.
func (r *GORMMerchantRepository) WithTx(tx *gorm.DB) MerchantRepository {
	return &GORMMerchantRepository{db: tx}
}

// GetByID retrieves a single merchant by its ID from the database.
func (r *GORMMerchantRepository) GetByID(id string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.First(&merchant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("merchant with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to get merchant by ID %s: %w", id, err)
	}
	return &merchant, nil
}

// GetByIDForUpdate retrieves a merchant row under a row-level write lock.
// Must be called inside a transaction.
func (r *GORMMerchantRepository) GetByIDForUpdate(id string) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := withUpdateLock(r.db).First(&merchant, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("merchant with ID %s not found", id)
		}
		return nil, fmt.Errorf("failed to lock merchant %s: %w", id, err)
	}
	return &merchant, nil
}

// Create creates a new merchant in the database.
func (r *GORMMerchantRepository) Create(merchant *models.Merchant) error {
	if merchant.ID == "" {
		merchant.ID = uuid.New().String()
	}
	if err := r.db.Create(merchant).Error; err != nil {
		return fmt.Errorf("failed to create merchant: %w", err)
	}
	return nil
}

// Update updates an existing merchant in the database.
func (r *GORMMerchantRepository) Update(merchant *models.Merchant) error {
	res := r.db.Save(merchant)
	if res.Error != nil {
		return fmt.Errorf("failed to update merchant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("merchant with ID %s not found for update", merchant.ID)
	}
	return nil
}
