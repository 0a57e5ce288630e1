package handlers

import (
	"errors"
	"log"

	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the provider's HMAC-SHA256 hex signature over the
// raw callback body.
const SignatureHeader = "X-Pasar-Signature"

// PaymentHandler handles HTTP requests for payment initiation, the provider
// webhook and the browser return flow.
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// RegisterRoutes registers payment routes that require authentication.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payment")
	paymentRoutes.Post("/initiate", h.HandleInitiate)
}

// RegisterPublicRoutes registers the provider-facing routes. The webhook and
// the browser return URL are called by the provider, not by our customers.
func (h *PaymentHandler) RegisterPublicRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/payment")
	paymentRoutes.Post("/callback", h.HandleCallback)
	paymentRoutes.Get("/return", h.HandleReturn)
}

// HandleInitiate opens a payment session with the provider for an order.
func (h *PaymentHandler) HandleInitiate(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "order_id is required",
		})
	}

	result, err := h.paymentService.InitiatePayment(req.OrderID)
	if err != nil {
		log.Printf("Payment initiation failed for order %s: %v", req.OrderID, err)
		var notFound *services.OrderNotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"payment_url":    result.PaymentURL,
		"transaction_id": result.TransactionID,
	})
}

// HandleCallback processes one webhook delivery from the provider. Internal
// rejections still answer 200 so the provider does not retry-storm us; only a
// bad signature earns a 400.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get(SignatureHeader)

	_, err := h.paymentService.ProcessCallback(body, signature)
	if err != nil {
		var badSignature *services.InvalidCallbackSignatureError
		if errors.As(err, &badSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "signature verification failed",
			})
		}
		log.Printf("Payment callback not applied: %v", err)
		return c.JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "callback processed",
	})
}

// HandleReturn is the browser redirect back from the gateway. The status is
// inferred best-effort from whichever query parameter this provider version
// sends. It is display-only and never mutates state; the webhook is
// authoritative.
func (h *PaymentHandler) HandleReturn(c *fiber.Ctx) error {
	refNumber := c.Query("refno")
	if refNumber == "" {
		refNumber = c.Query("ref_number")
	}

	var message string
	switch services.InferReturnStatus(func(key string) string { return c.Query(key) }) {
	case services.OutcomePaid:
		message = "Payment received. Your order is being processed."
	case services.OutcomeFailed:
		message = "Payment failed or was cancelled."
	default:
		message = "Payment is being confirmed. Check your order status shortly."
	}

	return c.JSON(fiber.Map{
		"ref_number": refNumber,
		"message":    message,
	})
}
