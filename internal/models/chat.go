// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation represents a direct chat between exactly two users.
type Conversation struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// LastMessageText mirrors the text of the most recent message so
	// conversation lists render without a join against messages.
	LastMessageText string         `json:"last_message_text"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Participants    []User         `gorm:"many2many:conversation_participants;" json:"participants,omitempty"`
	Messages        []Message      `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	// UnreadCount is populated from the caller's participant row at query time.
	UnreadCount int `gorm:"->;-:migration" json:"unread_count"`
}

// Message represents a chat message. Messages are immutable once stored.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID uint          `gorm:"not null;index" json:"conversation_id"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	SenderID       uint          `gorm:"not null;index" json:"sender_id"`
	Sender         *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	// Text may be empty when ImageURL is set.
	Text      string     `gorm:"type:text" json:"text"`
	ImageURL  string     `json:"image_url,omitempty"`
	IsRead    bool       `gorm:"default:false" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ConversationParticipant tracks user participation in conversations.
// This is the join table that GORM will use for the many2many relationship.
type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey" json:"user_id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`
	LastReadAt     time.Time `json:"last_read_at"`
	UnreadCount    int       `gorm:"default:0" json:"unread_count"`
}
