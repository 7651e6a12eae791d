// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a user in the AllTrade marketplace.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Email    string `gorm:"unique;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Location string `json:"location"`
	// WalletBalance is stored in minor currency units (kobo).
	WalletBalance  int64          `gorm:"not null;default:0" json:"wallet_balance"`
	FollowersCount int            `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int            `gorm:"not null;default:0" json:"following_count"`
	TotalSales     int64          `gorm:"not null;default:0" json:"total_sales"`
	IsVerified     bool           `gorm:"default:false" json:"is_verified"`
	IsAdmin        bool           `gorm:"default:false" json:"-"`
	IsDisabled     bool           `gorm:"default:false" json:"is_disabled"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
	Products       []Product      `gorm:"foreignKey:SellerID" json:"products,omitempty"`
	// IsFollowing indicates whether the requesting user follows this user (computed)
	IsFollowing bool `gorm:"-" json:"is_following"`
}
