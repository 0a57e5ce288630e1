package services

import (
	"pasar/internal/repositories"
)

// StockLedger owns every mutation of Product.Stock, Product.TotalSales and
// the Merchant.TotalSales order-count rollup. All methods expect repositories
// already bound to the enclosing transaction; rows are re-read under a write
// lock before checking, so concurrent checkouts of the same product serialize
// instead of racing the check-then-decrement.
type StockLedger struct {
	productRepo  repositories.ProductRepository
	merchantRepo repositories.MerchantRepository
}

// NewStockLedger creates a StockLedger over transaction-bound repositories.
func NewStockLedger(productRepo repositories.ProductRepository, merchantRepo repositories.MerchantRepository) *StockLedger {
	return &StockLedger{
		productRepo:  productRepo,
		merchantRepo: merchantRepo,
	}
}

// ReserveAndDecrement locks the product row, verifies availability, then
// decrements stock and increments the product's unit sales counter. Fails
// with InsufficientStockError when the requested quantity is not available,
// which the caller must treat as fatal for the whole checkout transaction.
func (l *StockLedger) ReserveAndDecrement(productID string, quantity int) error {
	product, err := l.productRepo.GetByIDForUpdate(productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return &InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.Stock,
		}
	}
	product.Stock -= quantity
	product.TotalSales += quantity
	return l.productRepo.Update(product)
}

// Restore is the compensating inverse of ReserveAndDecrement, used only by
// cancellation. It never fails on valid input; the unit sales counter is
// clamped at zero rather than going negative.
func (l *StockLedger) Restore(productID string, quantity int) error {
	product, err := l.productRepo.GetByIDForUpdate(productID)
	if err != nil {
		return err
	}
	product.Stock += quantity
	product.TotalSales -= quantity
	if product.TotalSales < 0 {
		product.TotalSales = 0
	}
	return l.productRepo.Update(product)
}

// RecordOrderPlaced bumps the merchant's order-count rollup. This counts
// orders, not units; it is a coarse aggregate separate from the payout.
func (l *StockLedger) RecordOrderPlaced(merchantID string) error {
	return l.adjustMerchantOrders(merchantID, 1)
}

// RecordOrderCancelled reverses RecordOrderPlaced.
func (l *StockLedger) RecordOrderCancelled(merchantID string) error {
	return l.adjustMerchantOrders(merchantID, -1)
}

func (l *StockLedger) adjustMerchantOrders(merchantID string, delta int) error {
	merchant, err := l.merchantRepo.GetByIDForUpdate(merchantID)
	if err != nil {
		return err
	}
	merchant.TotalSales += delta
	if merchant.TotalSales < 0 {
		merchant.TotalSales = 0
	}
	return l.merchantRepo.Update(merchant)
}
