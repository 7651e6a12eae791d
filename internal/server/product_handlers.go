// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"alltrade/internal/models"
	"alltrade/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateProduct creates a listing (protected).
func (s *Server) CreateProduct(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       int64    `json:"price"`
		Media       []string `json:"media"`
		Location    string   `json:"location"`
		Category    string   `json:"category"`
		Tags        []string `json:"tags"`
		IsAnonymous bool     `json:"is_anonymous"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	product, err := s.productService.CreateProduct(ctx, service.CreateProductInput{
		SellerID:    userID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Media:       req.Media,
		Location:    req.Location,
		Category:    models.ProductCategory(req.Category),
		Tags:        req.Tags,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// GetProducts returns visible listings, optionally filtered by category (public).
func (s *Server) GetProducts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p := parsePagination(c, 20)

	products, err := s.productService.ListProducts(ctx, p.Limit, p.Offset, c.Query("category"))
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(products)
}

// SearchProducts searches listings by title and description (public).
func (s *Server) SearchProducts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p := parsePagination(c, 20)

	products, err := s.productService.SearchProducts(ctx, c.Query("q"), p.Limit, p.Offset)
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(products)
}

// GetProduct returns a single listing (public).
func (s *Server) GetProduct(c *fiber.Ctx) error {
	ctx := c.UserContext()

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	product, err := s.productService.GetProduct(ctx, id)
	if err != nil {
		return respondWithAppError(c, err)
	}

	// Hidden listings stay visible to their owner.
	if !product.IsVisible {
		viewerID, _ := s.optionalUserID(c)
		if viewerID != product.SellerID {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Product", id))
		}
	}
	return c.JSON(product)
}

// UpdateProduct updates a listing owned by the caller.
func (s *Server) UpdateProduct(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Price       int64    `json:"price"`
		Media       []string `json:"media"`
		Location    string   `json:"location"`
		Tags        []string `json:"tags"`
		IsVisible   *bool    `json:"is_visible"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	product, err := s.productService.UpdateProduct(ctx, service.UpdateProductInput{
		UserID:      userID,
		ProductID:   id,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Media:       req.Media,
		Location:    req.Location,
		Tags:        req.Tags,
		IsVisible:   req.IsVisible,
	})
	if err != nil {
		return respondWithAppError(c, err)
	}
	return c.JSON(product)
}

// DeleteProduct removes a listing (owner or admin).
func (s *Server) DeleteProduct(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.productService.DeleteProduct(ctx, id, userID); err != nil {
		return respondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
