// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/products/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	productID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
		Rating  *int   `json:"rating"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		UserID:    userID,
		ProductID: productID,
		Content:   req.Content,
		Rating:    req.Rating,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}

	s.publishBroadcastEvent(ctx, eventCommentCreated, fiber.Map{
		"product_id": productID,
		"comment_id": comment.ID,
		"user":       userSummary(comment.User),
	})

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetComments handles GET /api/products/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	ctx := c.UserContext()

	productID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	comments, err := s.commentService.ListComments(ctx, productID, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// DeleteComment handles DELETE /api/products/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	comment, err := s.commentService.DeleteComment(ctx, commentID, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}

	s.publishBroadcastEvent(ctx, eventCommentDeleted, fiber.Map{
		"product_id": comment.ProductID,
		"comment_id": commentID,
	})

	return c.SendStatus(fiber.StatusOK)
}
