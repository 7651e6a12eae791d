package service

import (
	"os"
	"testing"

	"alltrade/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
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
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed-password",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, sellerID uint, title string, price int64) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:  sellerID,
		Title:     title,
		Price:     price,
		Category:  models.CategoryProduct,
		IsVisible: true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("Failed to seed product %s: %v", title, err)
	}
	return product
}
