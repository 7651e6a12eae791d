package database

import "alltrade/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.Comment{},
		&models.Conversation{},
		&models.Message{},
		&models.ConversationParticipant{},
		&models.Follow{},
		&models.Order{},
		&models.WalletTransaction{},
		&models.Notification{},
		&models.PushSubscription{},
	}
}
