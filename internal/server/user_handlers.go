// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"
	"alltrade/internal/repository"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the authenticated user's own profile.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile updates the authenticated user's profile.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Username string `json:"username"`
		Bio      string `json:"bio"`
		Avatar   string `json:"avatar"`
		Location string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:   userID,
		Username: req.Username,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
		Location: req.Location,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers returns a page of users.
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p := parsePagination(c, 20)

	users, err := s.userService.ListUsers(ctx, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(users)
}

// SearchUsers searches users by username or email fragment.
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	p := parsePagination(c, 20)

	users, err := s.userService.SearchUsers(ctx, userID, c.Query("q"), p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile returns another user's public profile with recent listings.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewerID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(ctx, id, viewerID)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetUserProducts returns a user's listings.
func (s *Server) GetUserProducts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 20)

	products, err := s.productService.ListSellerProducts(ctx, id, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(products)
}

// ToggleFollow follows or unfollows the target user.
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	action, err := s.userService.ToggleFollow(ctx, userID, targetID)
	if err != nil {
		return respondWithAppError(c, err)
	}

	if action == repository.ActionFollowed {
		s.publishUserEvent(c.UserContext(), targetID, eventFollowerAdded, fiber.Map{
			"follower_id": userID,
		})
	}

	return c.JSON(fiber.Map{
		"action":    action,
		"following": action == repository.ActionFollowed,
	})
}

// GetFollowers returns users following the target.
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 20)

	users, err := s.userService.ListFollowers(ctx, id, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing returns users the target follows.
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 20)

	users, err := s.userService.ListFollowing(ctx, id, p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(users)
}

// PromoteToAdmin grants admin rights to a user (admin only).
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdminFlag(c, true)
}

// DemoteFromAdmin revokes admin rights from a user (admin only).
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdminFlag(c, false)
}

func (s *Server) setAdminFlag(c *fiber.Ctx, isAdmin bool) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.SetAdmin(ctx, id, isAdmin)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(user)
}

// DisableUser disables an account (admin only).
func (s *Server) DisableUser(c *fiber.Ctx) error {
	return s.setDisabledFlag(c, true)
}

// EnableUser re-enables an account (admin only).
func (s *Server) EnableUser(c *fiber.Ctx) error {
	return s.setDisabledFlag(c, false)
}

func (s *Server) setDisabledFlag(c *fiber.Ctx, disabled bool) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.SetDisabled(ctx, id, disabled); err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"id": id, "is_disabled": disabled})
}
