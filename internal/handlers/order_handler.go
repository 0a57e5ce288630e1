package handlers

import (
	"errors"
	"log"

	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for checkout and orders.
type OrderHandler struct {
	checkoutService *services.CheckoutService
	orderState      *services.OrderStateService
	paymentService  *services.PaymentService
	orderRepo       orderReader
	validate        *validator.Validate
}

// orderReader is the read-only slice of the order repository the handler
// needs for listing and lookups.
type orderReader interface {
	GetByID(id string) (*models.Order, error)
	GetByCustomer(customerID string) ([]models.Order, error)
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(checkoutService *services.CheckoutService, orderState *services.OrderStateService, paymentService *services.PaymentService, orderRepo orderReader) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderState:      orderState,
		paymentService:  paymentService,
		orderRepo:       orderRepo,
		validate:        validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCheckout)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/cancel", h.HandleCancelOrder)
	orderRoutes.Patch("/:id/status", h.HandleUpdateOrderStatus)
	orderRoutes.Get("/:id/payment-status", h.HandlePaymentStatus)
}

// HandleCheckout converts the customer's cart into one order per merchant.
func (h *OrderHandler) HandleCheckout(c *fiber.Ctx) error {
	customer, ok := middleware.CustomerFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing checkout request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Checkout validation failed",
			"error":   err.Error(),
		})
	}

	orders, err := h.checkoutService.Checkout(customer, req)
	if err != nil {
		log.Printf("Checkout failed for customer %s: %v", customer.ID, err)
		return orderErrorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":  orders[0],
		"orders": orders,
	})
}

// HandleGetOrders lists the authenticated customer's orders.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	customer, ok := middleware.CustomerFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orders, err := h.orderRepo.GetByCustomer(customer.ID)
	if err != nil {
		log.Printf("Error getting orders for customer %s: %v", customer.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order belonging to the customer.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	customer, ok := middleware.CustomerFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}

	orderID := c.Params("id")
	order, err := h.orderRepo.GetByID(orderID)
	if err != nil || order.CustomerID != customer.ID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Order not found",
		})
	}
	return c.JSON(order)
}

// HandleCancelOrder cancels a pending or processing order, restoring stock.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.orderState.Cancel(orderID)
	if err != nil {
		log.Printf("Error cancelling order %s: %v", orderID, err)
		return orderErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}

// HandleUpdateOrderStatus applies a fulfillment transition (processing,
// shipped, delivered) with an optional tracking number.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		log.Printf("Error parsing request body for status update: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body for status update",
			"error":   err.Error(),
		})
	}

	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	order, err := h.orderState.UpdateStatus(orderID, models.OrderStatus(updateData.Status), updateData.TrackingNumber)
	if err != nil {
		log.Printf("Error updating order status for order %s: %v", orderID, err)
		return orderErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"order": order})
}

// HandlePaymentStatus reports local and gateway payment status for an order.
func (h *OrderHandler) HandlePaymentStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	paymentStatus, orderStatus, gatewayStatus, err := h.paymentService.PaymentStatus(orderID)
	if err != nil {
		return orderErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"payment_status": paymentStatus,
		"order_status":   orderStatus,
		"gateway_status": gatewayStatus,
	})
}

// orderErrorResponse maps the service error taxonomy to HTTP responses.
func orderErrorResponse(c *fiber.Ctx, err error) error {
	var (
		invalidCart   *services.InvalidCartError
		noStock       *services.InsufficientStockError
		illegal       *services.IllegalTransitionError
		notFound      *services.OrderNotFoundError
		gatewayFailed *services.PaymentGatewayError
	)
	switch {
	case errors.As(err, &invalidCart):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Checkout rejected",
			"error":   err.Error(),
		})
	case errors.As(err, &noStock):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Order creation failed due to insufficient stock.",
			"error":   err.Error(),
		})
	case errors.As(err, &illegal):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Order state transition not allowed",
			"error":   err.Error(),
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Order not found",
		})
	case errors.As(err, &gatewayFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Payment gateway unavailable",
			"error":   err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not process order",
			"error":   err.Error(),
		})
	}
}
