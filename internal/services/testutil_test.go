package services_test

import (
	"fmt"
	"testing"

	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the real repositories and services over an in-memory SQLite
// database so transaction and rollback behavior is exercised for real.
type testEnv struct {
	db           *gorm.DB
	productRepo  repositories.ProductRepository
	merchantRepo repositories.MerchantRepository
	orderRepo    repositories.OrderRepository
	checkout     *services.CheckoutService
	orderState   *services.OrderStateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Merchant{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
	))

	productRepo := repositories.NewGORMProductRepository(db)
	merchantRepo := repositories.NewGORMMerchantRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)

	return &testEnv{
		db:           db,
		productRepo:  productRepo,
		merchantRepo: merchantRepo,
		orderRepo:    orderRepo,
		checkout:     services.NewCheckoutService(db, productRepo, merchantRepo, orderRepo, nil, nil),
		orderState:   services.NewOrderStateService(db, orderRepo, productRepo, merchantRepo, nil),
	}
}

func (e *testEnv) seedMerchant(t *testing.T, id string, commissionPerUnit float64, approved bool) {
	t.Helper()
	require.NoError(t, e.merchantRepo.Create(&models.Merchant{
		ID:                id,
		Name:              "Merchant " + id,
		CommissionPerUnit: commissionPerUnit,
		IsApproved:        approved,
	}))
}

func (e *testEnv) seedProduct(t *testing.T, id, merchantID string, price float64, stock int) {
	t.Helper()
	require.NoError(t, e.productRepo.Create(&models.Product{
		ID:         id,
		MerchantID: merchantID,
		Name:       "Product " + id,
		SKU:        "SKU-" + id,
		Price:      price,
		Stock:      stock,
		IsActive:   true,
	}))
}

func (e *testEnv) product(t *testing.T, id string) *models.Product {
	t.Helper()
	product, err := e.productRepo.GetByID(id)
	require.NoError(t, err)
	return product
}

func (e *testEnv) merchant(t *testing.T, id string) *models.Merchant {
	t.Helper()
	merchant, err := e.merchantRepo.GetByID(id)
	require.NoError(t, err)
	return merchant
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		Recipient:  "Siti Rahma",
		Phone:      "+6281234567890",
		Line1:      "Jl. Melati No. 12",
		City:       "Bandung",
		Province:   "Jawa Barat",
		PostalCode: "40111",
	}
}
