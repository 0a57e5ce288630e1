package handlers_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"pasar/internal/handlers"
	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testJWTSecret      = "test_jwt_secret"
	testCallbackSecret = "test_callback_secret"
)

type testApp struct {
	app          *fiber.App
	db           *gorm.DB
	productRepo  repositories.ProductRepository
	merchantRepo repositories.MerchantRepository
	orderRepo    repositories.OrderRepository
}

// setupApp boots the full Fiber app over in-memory SQLite, with the fake
// payment gateway at gatewayURL standing in for the provider.
func setupApp(t *testing.T, gatewayURL string) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
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
	userRepo := repositories.NewGORMUserRepository(db)

	authService := services.NewAuthService(userRepo, testJWTSecret)
	checkoutService := services.NewCheckoutService(db, productRepo, merchantRepo, orderRepo, nil, nil)
	orderState := services.NewOrderStateService(db, orderRepo, productRepo, merchantRepo, nil)
	gatewayClient := services.NewPaymentGatewayClient(services.GatewayConfig{
		BaseURL:        gatewayURL,
		MerchantCode:   "PASAR-TEST",
		APIKey:         "key",
		CallbackSecret: testCallbackSecret,
	})
	paymentService := services.NewPaymentService(gatewayClient, orderRepo, orderState, testCallbackSecret, nil)

	authHandler := handlers.NewAuthHandler(authService)
	orderHandler := handlers.NewOrderHandler(checkoutService, orderState, paymentService, orderRepo)
	paymentHandler := handlers.NewPaymentHandler(paymentService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	paymentHandler.RegisterPublicRoutes(apiV1)

	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protectedRoutes)
	paymentHandler.RegisterRoutes(protectedRoutes)

	return &testApp{
		app:          app,
		db:           db,
		productRepo:  productRepo,
		merchantRepo: merchantRepo,
		orderRepo:    orderRepo,
	}
}

// newFakeGateway answers initiation and status-poll requests.
func newFakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payments", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"payment_url":    "https://pay.example.com/session/xyz",
			"transaction_id": "TXN-GW-42",
		})
	})
	mux.HandleFunc("/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (ta *testApp) seedCatalog(t *testing.T) {
	t.Helper()
	require.NoError(t, ta.merchantRepo.Create(&models.Merchant{
		ID: "m1", Name: "Batik Nusantara", CommissionPerUnit: 5, IsApproved: true,
	}))
	require.NoError(t, ta.merchantRepo.Create(&models.Merchant{
		ID: "m2", Name: "Kerajinan Jaya", CommissionPerUnit: 2, IsApproved: true,
	}))
	products := []models.Product{
		{ID: "p1", MerchantID: "m1", Name: "Batik Shirt", SKU: "SKU-p1", Price: 100, Stock: 10, IsActive: true},
		{ID: "p2", MerchantID: "m1", Name: "Batik Scarf", SKU: "SKU-p2", Price: 100, Stock: 10, IsActive: true},
		{ID: "p3", MerchantID: "m2", Name: "Woven Bag", SKU: "SKU-p3", Price: 50, Stock: 10, IsActive: true},
	}
	for i := range products {
		require.NoError(t, ta.productRepo.Create(&products[i]))
	}
}

// registerAndLogin creates a customer and returns their bearer token.
func (ta *testApp) registerAndLogin(t *testing.T, username string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	body, _ = json.Marshal(map[string]string{
		"username": username,
		"password": "password123",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func (ta *testApp) doJSON(t *testing.T, method, path, token string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func checkoutPayload() map[string]interface{} {
	return map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 1, "price": 100},
			{"product_id": "p2", "quantity": 1, "price": 100},
			{"product_id": "p3", "quantity": 1, "price": 50},
		},
		"shipping_address": map[string]string{
			"recipient":   "Siti Rahma",
			"phone":       "+6281234567890",
			"line1":       "Jl. Melati No. 12",
			"city":        "Bandung",
			"province":    "Jawa Barat",
			"postal_code": "40111",
		},
		"payment_method": "gateway",
		"subtotal":       250,
		"shipping_fee":   30,
		"tax":            12,
		"total":          292,
	}
}

func signCallback(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testCallbackSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

func TestCheckoutEndpoint_CreatesOrderPerMerchant(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer1")

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, checkoutPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Order  models.Order   `json:"order"`
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()

	require.Len(t, result.Orders, 2)
	assert.Equal(t, result.Orders[0].ID, result.Order.ID)
	assert.InDelta(t, 228.0, result.Orders[0].Total, 0.001)
	assert.InDelta(t, 64.0, result.Orders[1].Total, 0.001)

	// Stock was decremented through the checkout transaction.
	p1, err := ta.productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 9, p1.Stock)
}

func TestCheckoutEndpoint_RequiresAuth(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", "", checkoutPayload())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckoutEndpoint_InsufficientStock(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer2")

	payload := map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 99, "price": 100},
		},
		"shipping_address": checkoutPayload()["shipping_address"],
		"payment_method":   "gateway",
		"total":            9900,
	}
	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, payload)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	p1, err := ta.productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.Stock)
}

func TestCancelEndpoint(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer3")

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, checkoutPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	orderID := created.Orders[0].ID
	resp = ta.doJSON(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Stock for the cancelled merchant's lines is back; the other order is untouched.
	p1, err := ta.productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p1.Stock)
	p3, err := ta.productRepo.GetByID("p3")
	require.NoError(t, err)
	assert.Equal(t, 9, p3.Stock)

	// A second cancel is rejected.
	resp = ta.doJSON(t, http.MethodPut, "/api/v1/orders/"+orderID+"/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentInitiateAndCallbackFlow(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer4")

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, checkoutPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	order := created.Orders[0]

	// Initiate a payment session.
	resp = ta.doJSON(t, http.MethodPost, "/api/v1/payment/initiate", token, map[string]string{"order_id": order.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var initiated map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&initiated))
	resp.Body.Close()
	assert.Equal(t, true, initiated["success"])
	assert.Equal(t, "TXN-GW-42", initiated["transaction_id"])

	// Deliver the success webhook.
	callback, _ := json.Marshal(map[string]string{
		"ref_number":     order.OrderNumber,
		"transaction_id": "TXN-GW-42",
		"status":         "success",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(callback))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, signCallback(callback))
	cbResp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, cbResp.StatusCode)
	cbResp.Body.Close()

	stored, err := ta.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, models.OrderProcessing, stored.Status)

	// Redelivery acknowledges without changing anything.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(callback))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, signCallback(callback))
	cbResp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, cbResp.StatusCode)
	cbResp.Body.Close()
}

func TestPaymentCallback_BadSignatureRejected(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)

	callback := []byte(`{"ref_number":"ORD-X","transaction_id":"T","status":"success"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(callback))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, "not-a-signature")
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentCallback_UnknownOrderStillAcknowledged(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)

	callback := []byte(`{"ref_number":"ORD-19700101-FFFFFFFF","transaction_id":"T","status":"success"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(callback))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, signCallback(callback))
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)

	// Provider gets a 200 so it does not retry-storm us.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, false, body["success"])
}

func TestPaymentReturn_IsDisplayOnly(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer5")

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, checkoutPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	order := created.Orders[0]

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/payment/return?refno="+order.OrderNumber+"&status=success", nil)
	retResp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, retResp.StatusCode)
	retResp.Body.Close()

	// The redirect never mutates payment state; only the webhook does.
	stored, err := ta.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
}

func TestPaymentStatusEndpoint(t *testing.T) {
	gateway := newFakeGateway(t)
	ta := setupApp(t, gateway.URL)
	ta.seedCatalog(t)
	token := ta.registerAndLogin(t, "buyer6")

	resp := ta.doJSON(t, http.MethodPost, "/api/v1/orders", token, checkoutPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp = ta.doJSON(t, http.MethodGet, "/api/v1/orders/"+created.Orders[0].ID+"/payment-status", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "pending", status["payment_status"])
	assert.Equal(t, "pending", status["order_status"])
	assert.Equal(t, "pending", status["gateway_status"])
}
