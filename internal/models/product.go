// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductCategory distinguishes physical goods from offered services.
type ProductCategory string

const (
	// CategoryProduct is a physical item listing.
	CategoryProduct ProductCategory = "product"
	// CategoryService is a service listing.
	CategoryService ProductCategory = "service"
)

// Product represents a marketplace listing in the AllTrade application.
type Product struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SellerID    uint   `gorm:"not null;index" json:"seller_id"`
	Seller      User   `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// Price is stored in minor currency units (kobo).
	Price       int64           `gorm:"not null" json:"price"`
	Media       []string        `gorm:"serializer:json" json:"media"`
	Location    string          `json:"location"`
	Category    ProductCategory `gorm:"type:varchar(20);default:'product';index" json:"category"`
	Tags        []string        `gorm:"serializer:json" json:"tags"`
	IsVisible   bool            `gorm:"default:true;index" json:"is_visible"`
	IsAnonymous bool            `gorm:"default:false" json:"is_anonymous"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int            `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
