// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"alltrade/internal/cache"
	"alltrade/internal/models"

	"gorm.io/gorm"
)

// ProductRepository defines the interface for product data operations
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uint) (*models.Product, error)
	GetBySellerID(ctx context.Context, sellerID uint, limit, offset int) ([]*models.Product, error)
	List(ctx context.Context, limit, offset int, category string) ([]*models.Product, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uint) error
}

// productRepository implements ProductRepository
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// applyProductDetails adds the comment count subquery so listings carry it
// without a second round trip.
func (r *productRepository) applyProductDetails(db *gorm.DB) *gorm.DB {
	return db.Select("products.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.product_id = products.id AND comments.deleted_at IS NULL) as comments_count")
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).Create(product).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.ProductListKey)
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	key := cache.ProductKey(id)

	err := cache.Aside(ctx, key, &product, cache.ProductTTL, func() error {
		if err := r.applyProductDetails(readDB(r.db).WithContext(ctx)).
			Preload("Seller").
			First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Product", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) GetBySellerID(ctx context.Context, sellerID uint, limit, offset int) ([]*models.Product, error) {
	var products []*models.Product
	err := r.applyProductDetails(readDB(r.db).WithContext(ctx)).
		Preload("Seller").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return products, nil
}

func (r *productRepository) List(ctx context.Context, limit, offset int, category string) ([]*models.Product, error) {
	var products []*models.Product
	q := r.applyProductDetails(readDB(r.db).WithContext(ctx)).
		Preload("Seller").
		Where("is_visible = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return products, nil
}

func (r *productRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Product, error) {
	var products []*models.Product
	like := "%" + query + "%"
	err := r.applyProductDetails(readDB(r.db).WithContext(ctx)).
		Preload("Seller").
		Where("is_visible = ?", true).
		Where("title LIKE ? OR description LIKE ?", like, like).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateProduct(ctx, product.ID)
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Product{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateProduct(ctx, id)
	return nil
}
