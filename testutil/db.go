package testutil

import (
	"fmt"
	"testing"

	"gamification-service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB creates an in-memory SQLite database for testing purposes.
// It auto-migrates the engine's models and closes the underlying
// connection when the test finishes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Challenge{},
		&models.ApprovalHistory{},
		&models.ChallengeAssignment{},
		&models.UserChallengeProgress{},
		&models.ProcessedEvent{},
		&models.UserEventStat{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.RewardSummary{},
		&models.RewardCategoryCount{},
		&models.NotificationOutbox{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
