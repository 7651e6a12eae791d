// Package models contains data structures for the application's domain models.
package models

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates payment has been initiated but not confirmed.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted indicates payment was confirmed and funds settled.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCanceled indicates the order was abandoned or rejected.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Order represents a purchase of a product by a buyer.
type Order struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	BuyerID   uint     `gorm:"not null;index" json:"buyer_id"`
	Buyer     *User    `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	ProductID uint     `gorm:"not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	// Amount is the total charged, including any delivery fee, in minor units.
	Amount      int64       `gorm:"not null" json:"amount"`
	DeliveryFee int64       `gorm:"not null;default:0" json:"delivery_fee"`
	Status      OrderStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	IsAnonymous bool        `gorm:"default:false" json:"is_anonymous"`
	// ConversationID links the order to the buyer/seller chat when one exists.
	ConversationID   *uint     `gorm:"index" json:"conversation_id,omitempty"`
	PaymentReference string    `gorm:"uniqueIndex" json:"payment_reference"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
