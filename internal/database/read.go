package database

import (
	"fmt"

	"alltrade/internal/config"
	"alltrade/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// readDB holds the optional read-replica connection.
var readDB *gorm.DB

// ConnectRead opens the read-replica connection when DB_READ_HOST is configured.
// Read traffic falls back to the primary when no replica is available.
func ConnectRead(cfg *config.Config) error {
	if cfg.DBReadHost == "" {
		return nil
	}

	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBReadHost,
		cfg.DBReadPort,
		cfg.DBReadUser,
		cfg.DBReadPassword,
		cfg.DBName,
		sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to read replica: %w", err)
	}

	middleware.Logger.Info("Read replica connected successfully")
	readDB = db
	return nil
}

// GetReadDB returns the read-replica connection, or nil when not configured.
func GetReadDB() *gorm.DB {
	return readDB
}
