package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"daylight-matching-api/internal/domain"
)

// modelInfo holds a domain model and its table name
type modelInfo struct {
	model     interface{}
	tableName string
}

func models() []modelInfo {
	return []modelInfo{
		{&domain.EventParticipant{}, "event_participants"},
		{&domain.PersonalitySnapshot{}, "personality_snapshots"},
		{&domain.MatchingAttempt{}, "matching_attempts"},
		{&domain.MatchingGroup{}, "matching_groups"},
		{&domain.GroupMember{}, "matching_group_members"},
	}
}

// AutoMigrate creates or updates every table, including the partial unique indexes
// that keep group numbers and active memberships exclusive per event.
func AutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	all := models()
	for _, m := range all {
		existed := db.Migrator().HasTable(m.model)
		if err := db.AutoMigrate(m.model); err != nil {
			logger.Error("Failed to migrate table",
				zap.String("table", m.tableName),
				zap.Bool("table_existed", existed),
				zap.Error(err),
			)
			return fmt.Errorf("failed to migrate table %s: %w", m.tableName, err)
		}
		logger.Debug("Migrated table", zap.String("table", m.tableName), zap.Bool("was_existing", existed))
	}

	logger.Info("Auto-migration completed", zap.Int("tables_migrated", len(all)))
	return nil
}

// AutoMigrateWithRetry runs AutoMigrate up to maxRetries times with linear backoff
func AutoMigrateWithRetry(db *gorm.DB, logger *zap.Logger, maxRetries int) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = AutoMigrate(db, logger); err == nil {
			return nil
		}
		if attempt < maxRetries {
			backoff := time.Duration(attempt) * time.Second
			logger.Warn("Migration attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			time.Sleep(backoff)
		}
	}
	return fmt.Errorf("migration failed after %d attempts: %w", maxRetries, err)
}
