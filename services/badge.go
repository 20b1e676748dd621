package services

import (
	"errors"
	"log"

	"gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeEngine struct {
	DB *gorm.DB
}

func NewBadgeEngine(db *gorm.DB) *BadgeEngine {
	return &BadgeEngine{DB: db}
}

// Snapshot builds the user's lifetime metric view: completed challenge
// count, total points, and the per-event-type totals.
func (e *BadgeEngine) Snapshot(externalUserID string) (map[string]int64, error) {
	snapshot := map[string]int64{}

	completed, err := NewProgressLedger(e.DB).CompletedCount(externalUserID)
	if err != nil {
		return nil, err
	}
	snapshot[models.MetricChallengesCompleted] = completed

	var summary models.RewardSummary
	if err := e.DB.Where("external_user_id = ?", externalUserID).First(&summary).Error; err == nil {
		snapshot[models.MetricTotalPoints] = summary.TotalPoints
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var stats []models.UserEventStat
	if err := e.DB.Where("external_user_id = ?", externalUserID).Find(&stats).Error; err != nil {
		return nil, err
	}
	for _, s := range stats {
		snapshot[s.EventType] = s.Total
	}
	return snapshot, nil
}

// Evaluate grants every badge whose threshold the snapshot satisfies and
// returns only the types newly granted in this call. Grants race-safely:
// the insert is ON CONFLICT DO NOTHING against the (user, badge) unique
// index, so a concurrent evaluation produces zero extra rows and zero
// errors.
func (e *BadgeEngine) Evaluate(externalUserID string, snapshot map[string]int64) ([]models.BadgeType, error) {
	var badgeTypes []models.BadgeType
	if err := e.DB.Find(&badgeTypes).Error; err != nil {
		return nil, err
	}

	var granted []models.BadgeType
	for _, bt := range badgeTypes {
		if !meetsThreshold(snapshot, bt.Threshold) {
			continue
		}
		userBadge := models.UserBadge{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			BadgeTypeID:    bt.ID,
		}
		res := e.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&userBadge)
		if res.Error != nil {
			return granted, res.Error
		}
		if res.RowsAffected == 1 {
			granted = append(granted, bt)
			log.Printf("🎖️ Badge granted: %s → %s", bt.Code, externalUserID)
		}
	}
	return granted, nil
}

// ListBadges returns the user's granted badges joined with their type.
func (e *BadgeEngine) ListBadges(externalUserID string) ([]models.UserBadge, map[string]models.BadgeType, error) {
	var userBadges []models.UserBadge
	if err := e.DB.Where("external_user_id = ?", externalUserID).
		Order("granted_at DESC").
		Find(&userBadges).Error; err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(userBadges))
	for _, ub := range userBadges {
		ids = append(ids, ub.BadgeTypeID)
	}
	types := map[string]models.BadgeType{}
	if len(ids) > 0 {
		var badgeTypes []models.BadgeType
		if err := e.DB.Where("id IN ?", ids).Find(&badgeTypes).Error; err != nil {
			return nil, nil, err
		}
		for _, bt := range badgeTypes {
			types[bt.ID] = bt
		}
	}
	return userBadges, types, nil
}

// SeedDefaults inserts the built-in badge catalog; existing codes win.
func (e *BadgeEngine) SeedDefaults() error {
	for _, bt := range models.DefaultBadges {
		bt.ID = uuid.NewString()
		res := e.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&bt)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

// meetsThreshold: every metric the rule names must be present and at or
// above the required value. A metric absent from the snapshot fails the
// rule — absence is zero, not "ignore".
func meetsThreshold(snapshot, required map[string]int64) bool {
	if len(required) == 0 {
		return false
	}
	for metric, min := range required {
		if snapshot[metric] < min {
			return false
		}
	}
	return true
}
