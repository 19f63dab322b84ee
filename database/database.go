package database

import (
	"pagepilot-go/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Initialize(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate models
	err = db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.AgentConfig{},
		&models.SubscriptionHistory{},
		&models.AuditLog{},
		&models.RevokedToken{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
