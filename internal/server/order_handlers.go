// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Checkout handles POST /api/orders. It creates a pending order; no money
// moves until the buyer confirms.
func (s *Server) Checkout(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		ProductID    uint `json:"product_id"`
		IsAnonymous  bool `json:"is_anonymous"`
		WithDelivery bool `json:"with_delivery"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.ProductID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("product_id is required"))
	}

	order, err := s.orderService.Checkout(ctx, service.CheckoutInput{
		BuyerID:      userID,
		ProductID:    req.ProductID,
		IsAnonymous:  req.IsAnonymous,
		WithDelivery: req.WithDelivery,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// ConfirmOrder handles POST /api/orders/:id/confirm. It settles the order
// from the buyer's wallet into the seller's.
func (s *Server) ConfirmOrder(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	order, err := s.orderService.Confirm(ctx, id, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}

	if order.Product != nil {
		s.publishUserEvent(ctx, order.Product.SellerID, eventOrderCompleted, fiber.Map{
			"order_id": order.ID,
			"product":  productSummary(*order.Product),
		})
	}

	return c.JSON(order)
}

// CancelOrder handles POST /api/orders/:id/cancel.
func (s *Server) CancelOrder(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	order, err := s.orderService.Cancel(ctx, id, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(order)
}

// GetOrder handles GET /api/orders/:id for the buyer or seller.
func (s *Server) GetOrder(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	order, err := s.orderService.GetForUser(ctx, id, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(order)
}

// GetMyPurchases handles GET /api/orders/purchases.
func (s *Server) GetMyPurchases(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	orders, err := s.orderService.Purchases(ctx, userID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(orders)
}

// GetMySales handles GET /api/orders/sales.
func (s *Server) GetMySales(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	orders, err := s.orderService.Sales(ctx, userID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(orders)
}
