package service

import (
	"context"

	"alltrade/internal/models"
	"alltrade/internal/repository"
)

// ProductService provides listing business logic.
type ProductService struct {
	productRepo repository.ProductRepository
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

// CreateProductInput is the input for creating a listing.
type CreateProductInput struct {
	SellerID    uint
	Title       string
	Description string
	Price       int64
	Media       []string
	Location    string
	Category    models.ProductCategory
	Tags        []string
	IsAnonymous bool
}

// UpdateProductInput is the input for updating a listing. Zero values leave
// the corresponding field unchanged, except IsVisible which is always applied.
type UpdateProductInput struct {
	UserID      uint
	ProductID   uint
	Title       string
	Description string
	Price       int64
	Media       []string
	Location    string
	Tags        []string
	IsVisible   *bool
}

// NewProductService returns a new ProductService.
func NewProductService(
	productRepo repository.ProductRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *ProductService {
	return &ProductService{productRepo: productRepo, isAdmin: isAdmin}
}

const (
	maxTitleLen       = 150
	maxDescriptionLen = 5000
	maxMediaItems     = 10
)

// CreateProduct validates and stores a new listing.
func (s *ProductService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if in.Title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 150 characters)")
	}
	if len(in.Description) > maxDescriptionLen {
		return nil, models.NewValidationError("Description too long (max 5000 characters)")
	}
	if in.Price <= 0 {
		return nil, models.NewValidationError("Price must be positive")
	}
	if len(in.Media) > maxMediaItems {
		return nil, models.NewValidationError("Too many media items (max 10)")
	}
	if in.Category == "" {
		in.Category = models.CategoryProduct
	}
	if in.Category != models.CategoryProduct && in.Category != models.CategoryService {
		return nil, models.NewValidationError("Category must be 'product' or 'service'")
	}

	product := &models.Product{
		SellerID:    in.SellerID,
		Title:       in.Title,
		Description: in.Description,
		Price:       in.Price,
		Media:       in.Media,
		Location:    in.Location,
		Category:    in.Category,
		Tags:        in.Tags,
		IsVisible:   true,
		IsAnonymous: in.IsAnonymous,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return s.productRepo.GetByID(ctx, product.ID)
}

// GetProduct returns a single listing.
func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

// ListProducts returns visible listings, optionally filtered by category.
func (s *ProductService) ListProducts(ctx context.Context, limit, offset int, category string) ([]*models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if category != "" &&
		category != string(models.CategoryProduct) &&
		category != string(models.CategoryService) {
		return nil, models.NewValidationError("Category must be 'product' or 'service'")
	}
	return s.productRepo.List(ctx, limit, offset, category)
}

// SearchProducts searches visible listings by title and description.
func (s *ProductService) SearchProducts(ctx context.Context, query string, limit, offset int) ([]*models.Product, error) {
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.productRepo.Search(ctx, query, limit, offset)
}

// ListSellerProducts returns a seller's listings.
func (s *ProductService) ListSellerProducts(ctx context.Context, sellerID uint, limit, offset int) ([]*models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.productRepo.GetBySellerID(ctx, sellerID, limit, offset)
}

// UpdateProduct applies changes to a listing owned by the caller.
func (s *ProductService) UpdateProduct(ctx context.Context, in UpdateProductInput) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own listings")
	}

	if in.Title != "" {
		if len(in.Title) > maxTitleLen {
			return nil, models.NewValidationError("Title too long (max 150 characters)")
		}
		product.Title = in.Title
	}
	if in.Description != "" {
		if len(in.Description) > maxDescriptionLen {
			return nil, models.NewValidationError("Description too long (max 5000 characters)")
		}
		product.Description = in.Description
	}
	if in.Price > 0 {
		product.Price = in.Price
	}
	if in.Media != nil {
		if len(in.Media) > maxMediaItems {
			return nil, models.NewValidationError("Too many media items (max 10)")
		}
		product.Media = in.Media
	}
	if in.Location != "" {
		product.Location = in.Location
	}
	if in.Tags != nil {
		product.Tags = in.Tags
	}
	if in.IsVisible != nil {
		product.IsVisible = *in.IsVisible
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a listing (owner or admin).
func (s *ProductService) DeleteProduct(ctx context.Context, productID, userID uint) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.SellerID != userID {
		if s.isAdmin == nil {
			return models.NewForbiddenError("You can only delete your own listings")
		}
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own listings")
		}
	}
	return s.productRepo.Delete(ctx, productID)
}
