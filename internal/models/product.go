package models

import "gorm.io/gorm"

// Product represents a merchant's product listing.
// Stock and TotalSales are mutated only through the stock ledger,
// always under a row lock inside the checkout/cancellation transaction.
type Product struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	MerchantID  string  `json:"merchant_id" gorm:"index;type:varchar(36)" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required,min=3,max=100"`
	SKU         string  `json:"sku" gorm:"type:varchar(64)" validate:"omitempty,max=64"`
	Description string  `json:"description" validate:"omitempty,max=500"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	SalePrice   float64 `json:"sale_price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	TotalSales  int     `json:"total_sales" validate:"gte=0"`
	IsActive    bool    `json:"is_active" gorm:"default:true"`
	gorm.Model          // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// EffectivePrice is the unit price charged at checkout: the sale price when
// one is set, otherwise the regular price. Client-submitted prices are never
// authoritative.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice > 0 {
		return p.SalePrice
	}
	return p.Price
}
