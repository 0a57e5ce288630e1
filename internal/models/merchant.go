package models

import "gorm.io/gorm"

// Merchant represents a seller on the marketplace.
// CommissionPerUnit is a fixed currency amount owed to the platform per unit
// sold, not a percentage. TotalSales counts completed orders, not units.
type Merchant struct {
	ID                string  `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name              string  `json:"name" gorm:"type:varchar(100)" validate:"required,min=3,max=100"`
	CommissionPerUnit float64 `json:"commission_per_unit" validate:"gte=0"`
	IsApproved        bool    `json:"is_approved" gorm:"default:false"`
	TotalSales        int     `json:"total_sales" validate:"gte=0"`
	gorm.Model                // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
