package services

import (
	"errors"
	"fmt"

	"gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardAggregator owns the per-user reward summary. ApplyDelta is the
// single mutation entry point so the blast radius of concurrent
// completion paths stays in one code path.
type RewardAggregator struct {
	DB *gorm.DB
}

func NewRewardAggregator(db *gorm.DB) *RewardAggregator {
	return &RewardAggregator{DB: db}
}

// ApplyDelta increments the user's total points and the per-category
// counter. Increments are SQL expressions, never read-increment-write, so
// concurrent calls for the same user cannot tear the totals. Points are
// non-negative in this path — corrections are an administrative concern
// elsewhere.
func (a *RewardAggregator) ApplyDelta(externalUserID string, points int64, category string) error {
	if points < 0 {
		return fmt.Errorf("reward delta must not be negative, got %d", points)
	}
	return a.DB.Transaction(func(tx *gorm.DB) error {
		if err := a.bumpSummary(tx, externalUserID, points); err != nil {
			return err
		}
		return a.bumpCategory(tx, externalUserID, category, points)
	})
}

// Summary returns the user's aggregate plus per-category breakdown,
// zero-valued when the user has earned nothing yet.
func (a *RewardAggregator) Summary(externalUserID string) (*models.RewardSummary, []models.RewardCategoryCount, error) {
	var summary models.RewardSummary
	err := a.DB.Where("external_user_id = ?", externalUserID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = models.RewardSummary{ExternalUserID: externalUserID}
	} else if err != nil {
		return nil, nil, err
	}

	var categories []models.RewardCategoryCount
	if err := a.DB.Where("external_user_id = ?", externalUserID).
		Order("category ASC").
		Find(&categories).Error; err != nil {
		return nil, nil, err
	}
	return &summary, categories, nil
}

func (a *RewardAggregator) bumpSummary(tx *gorm.DB, externalUserID string, points int64) error {
	res := tx.Model(&models.RewardSummary{}).
		Where("external_user_id = ?", externalUserID).
		Update("total_points", gorm.Expr("total_points + ?", points))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// First grant for this user; a create race falls through to a plain
	// increment against the winner's row.
	summary := models.RewardSummary{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		TotalPoints:    points,
	}
	res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&summary)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Model(&models.RewardSummary{}).
			Where("external_user_id = ?", externalUserID).
			Update("total_points", gorm.Expr("total_points + ?", points)).Error
	}
	return nil
}

func (a *RewardAggregator) bumpCategory(tx *gorm.DB, externalUserID, category string, points int64) error {
	res := tx.Model(&models.RewardCategoryCount{}).
		Where("external_user_id = ? AND category = ?", externalUserID, category).
		Updates(map[string]interface{}{
			"grants": gorm.Expr("grants + 1"),
			"points": gorm.Expr("points + ?", points),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	row := models.RewardCategoryCount{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Category:       category,
		Grants:         1,
		Points:         points,
	}
	res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.Model(&models.RewardCategoryCount{}).
			Where("external_user_id = ? AND category = ?", externalUserID, category).
			Updates(map[string]interface{}{
				"grants": gorm.Expr("grants + 1"),
				"points": gorm.Expr("points + ?", points),
			}).Error
	}
	return nil
}
