package services_test

import (
	"testing"

	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_SplitsCartIntoOneOrderPerMerchant(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 5.0, true)
	env.seedMerchant(t, "m2", 2.0, true)
	env.seedProduct(t, "p1", "m1", 100, 10)
	env.seedProduct(t, "p2", "m1", 100, 10)
	env.seedProduct(t, "p3", "m2", 50, 10)

	orders, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items: []services.CheckoutItem{
			{ProductID: "p1", Quantity: 1, Price: 100},
			{ProductID: "p2", Quantity: 1, Price: 100},
			{ProductID: "p3", Quantity: 1, Price: 50},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		Subtotal:        250,
		ShippingFee:     30,
		Tax:             12,
		Total:           292,
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	m1Order, m2Order := orders[0], orders[1]
	assert.Equal(t, "m1", m1Order.MerchantID)
	assert.Equal(t, 200.0, m1Order.Subtotal)
	assert.Equal(t, 20.0, m1Order.Shipping)
	assert.Equal(t, 8.0, m1Order.Tax)
	assert.Equal(t, 228.0, m1Order.Total)
	assert.Equal(t, 10.0, m1Order.CommissionAmount) // 2 units at 5.00
	assert.Equal(t, 218.0, m1Order.MerchantPayout)
	assert.Len(t, m1Order.Items, 2)

	assert.Equal(t, "m2", m2Order.MerchantID)
	assert.Equal(t, 50.0, m2Order.Subtotal)
	assert.Equal(t, 10.0, m2Order.Shipping)
	assert.Equal(t, 4.0, m2Order.Tax)
	assert.Equal(t, 64.0, m2Order.Total)
	assert.Equal(t, 2.0, m2Order.CommissionAmount)
	assert.Equal(t, 62.0, m2Order.MerchantPayout)

	// The per-order totals conserve the cart total.
	assert.InDelta(t, 292.0, m1Order.Total+m2Order.Total, 0.01)

	for _, order := range orders {
		assert.Equal(t, models.OrderPending, order.Status)
		assert.Equal(t, models.PaymentPending, order.PaymentStatus)
		assert.Equal(t, "cust-1", order.CustomerID)
		assert.NotEmpty(t, order.OrderNumber)
		assert.InDelta(t, order.Total, order.Subtotal+order.Tax+order.Shipping-order.Discount, 0.001)
		assert.InDelta(t, order.MerchantPayout, order.Total-order.CommissionAmount, 0.001)
		for _, item := range order.Items {
			assert.InDelta(t, item.Subtotal, item.UnitPrice*float64(item.Quantity), 0.001)
			assert.NotEmpty(t, item.ProductName)
			assert.NotEmpty(t, item.ProductSKU)
		}
	}

	// Stock decremented, unit sales incremented, merchant order counts bumped.
	assert.Equal(t, 9, env.product(t, "p1").Stock)
	assert.Equal(t, 1, env.product(t, "p1").TotalSales)
	assert.Equal(t, 9, env.product(t, "p3").Stock)
	assert.Equal(t, 1, env.merchant(t, "m1").TotalSales)
	assert.Equal(t, 1, env.merchant(t, "m2").TotalSales)
}

func TestCheckout_InsufficientStockRollsBackEverything(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 1.0, true)
	env.seedMerchant(t, "m2", 1.0, true)
	env.seedProduct(t, "p1", "m1", 20, 10) // plenty
	env.seedProduct(t, "p2", "m2", 10, 3)  // only 3 left

	_, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items: []services.CheckoutItem{
			{ProductID: "p1", Quantity: 2, Price: 20},
			{ProductID: "p2", Quantity: 5, Price: 10},
		},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		ShippingFee:     0,
		Tax:             0,
		Total:           90,
	})

	var stockErr *services.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	// The whole checkout rolled back: m1's reservation too, and no orders.
	assert.Equal(t, 10, env.product(t, "p1").Stock)
	assert.Equal(t, 0, env.product(t, "p1").TotalSales)
	assert.Equal(t, 3, env.product(t, "p2").Stock)
	assert.Equal(t, 0, env.merchant(t, "m1").TotalSales)

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckout_RejectsUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items:           []services.CheckoutItem{{ProductID: "ghost", Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
	})

	var cartErr *services.InvalidCartError
	require.ErrorAs(t, err, &cartErr)
	assert.Equal(t, "ghost", cartErr.ProductID)
}

func TestCheckout_RejectsInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 1.0, true)
	env.seedProduct(t, "p1", "m1", 10, 5)

	product := env.product(t, "p1")
	product.IsActive = false
	require.NoError(t, env.productRepo.Update(product))

	_, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items:           []services.CheckoutItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		Total:           10,
	})

	var cartErr *services.InvalidCartError
	require.ErrorAs(t, err, &cartErr)
	assert.Contains(t, cartErr.Error(), "not active")
}

func TestCheckout_RejectsUnapprovedMerchant(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 1.0, false)
	env.seedProduct(t, "p1", "m1", 10, 5)

	_, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items:           []services.CheckoutItem{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		Total:           10,
	})

	var cartErr *services.InvalidCartError
	require.ErrorAs(t, err, &cartErr)
	assert.Contains(t, cartErr.Error(), "not approved")
	assert.Equal(t, 5, env.product(t, "p1").Stock)
}

func TestCheckout_RejectsTotalMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 1.0, true)
	env.seedProduct(t, "p1", "m1", 10, 5)

	// Client claims a cheaper total than the server-known prices produce.
	_, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items:           []services.CheckoutItem{{ProductID: "p1", Quantity: 2, Price: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		Total:           2,
	})

	var cartErr *services.InvalidCartError
	require.ErrorAs(t, err, &cartErr)
	assert.Contains(t, cartErr.Error(), "does not match")
	assert.Equal(t, 5, env.product(t, "p1").Stock)
}

func TestCheckout_UsesSalePriceOverClientPrice(t *testing.T) {
	env := newTestEnv(t)
	env.seedMerchant(t, "m1", 0, true)
	env.seedProduct(t, "p1", "m1", 100, 5)

	product := env.product(t, "p1")
	product.SalePrice = 80
	require.NoError(t, env.productRepo.Update(product))

	orders, err := env.checkout.Checkout(services.CustomerContext{ID: "cust-1"}, services.CheckoutRequest{
		Items:           []services.CheckoutItem{{ProductID: "p1", Quantity: 1, Price: 80}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "gateway",
		Total:           80,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 80.0, orders[0].Items[0].UnitPrice)
	assert.Equal(t, 80.0, orders[0].Total)
}
