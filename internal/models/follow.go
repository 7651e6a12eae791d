// Package models contains data structures for the application's domain models.
package models

import "time"

// Follow represents a one-directional follow edge between two users.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey" json:"follower_id"`
	TargetID   uint      `gorm:"primaryKey" json:"target_id"`
	Follower   *User     `gorm:"foreignKey:FollowerID" json:"-"`
	Target     *User     `gorm:"foreignKey:TargetID" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
