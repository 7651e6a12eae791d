// Package models contains data structures for the application's domain models.
package models

import (
	"encoding/json"
	"time"
)

// NotificationType categorizes notifications for client-side routing.
type NotificationType string

const (
	// NotificationTypeMessage is sent when a user receives a chat message.
	NotificationTypeMessage NotificationType = "message"
	// NotificationTypeOrder is sent on order lifecycle events.
	NotificationTypeOrder NotificationType = "order"
	// NotificationTypeFollow is sent when another user follows you.
	NotificationTypeFollow NotificationType = "follow"
	// NotificationTypeComment is sent when someone comments on your listing.
	NotificationTypeComment NotificationType = "comment"
	// NotificationTypeSystem is for administrative announcements.
	NotificationTypeSystem NotificationType = "system"
)

// Notification represents a persisted in-app notification for a user.
type Notification struct {
	ID     uint             `gorm:"primaryKey" json:"id"`
	UserID uint             `gorm:"not null;index" json:"user_id"`
	Title  string           `gorm:"not null" json:"title"`
	Body   string           `gorm:"type:text" json:"body"`
	Type   NotificationType `gorm:"type:varchar(20);default:'message'" json:"type"`
	IsRead bool             `gorm:"default:false;index" json:"is_read"`
	// Meta carries type-specific payload (sender id, order id, deep link).
	Meta      json.RawMessage `gorm:"type:json" json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PushSubscription stores a Web Push endpoint registered by a user's device.
// A user may hold several, one per browser or device.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Endpoint  string    `gorm:"uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `gorm:"not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
