// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateNotification handles POST /api/notifications. The stored notification
// is also emitted to the recipient's realtime channel and queued for web push.
func (s *Server) CreateNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		UserID uint                    `json:"user_id"`
		Title  string                  `json:"title"`
		Body   string                  `json:"body"`
		Type   models.NotificationType `json:"type"`
		Meta   map[string]any          `json:"meta"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	notification, err := s.notificationService.Notify(ctx, service.NotifyInput{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Type:   req.Type,
		Meta:   req.Meta,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(notification)
}

// GetNotifications handles GET /api/notifications, newest first.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	items, err := s.notificationService.List(ctx, userID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(items)
}

// GetUnreadNotificationCount handles GET /api/notifications/unread-count.
func (s *Server) GetUnreadNotificationCount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	count, err := s.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"unread": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read.
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(ctx, id, userID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all.
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	if err := s.notificationService.MarkAllRead(ctx, userID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// DeleteNotification handles DELETE /api/notifications/:id.
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.Delete(ctx, id, userID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// SubscribePush handles POST /api/notifications/subscriptions with a browser
// push subscription in the standard PushSubscription JSON shape.
func (s *Server) SubscribePush(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.notificationService.Subscribe(ctx, userID,
		req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// UnsubscribePush handles DELETE /api/notifications/subscriptions.
func (s *Server) UnsubscribePush(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Endpoint == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("endpoint is required"))
	}

	if err := s.notificationService.Unsubscribe(ctx, req.Endpoint); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
