package services

import (
	"log"
	"time"

	"gamification-service/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ChallengeCatalog answers "which approved, active challenges does this
// event count towards". Read-only with respect to progress; all writes go
// through the ApprovalWorkflow.
type ChallengeCatalog struct {
	DB *gorm.DB
}

func NewChallengeCatalog(db *gorm.DB) *ChallengeCatalog {
	return &ChallengeCatalog{DB: db}
}

// MatchingChallenges returns every approved, active challenge whose
// metric matches eventType and whose window contains at. GLOBAL scope
// matches any user; USER scope additionally requires an assignment row.
// All matches are returned — the ledger applies them independently, in
// any order.
func (c *ChallengeCatalog) MatchingChallenges(externalUserID, eventType string, at time.Time) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := c.DB.
		Where("approval_status = ?", models.ApprovalApproved).
		Where("active = ?", true).
		Where("metric = ?", eventType).
		Where("start_at <= ? AND end_at > ?", at, at).
		Where("scope = ? OR id IN (?)",
			models.ScopeGlobal,
			c.DB.Model(&models.ChallengeAssignment{}).
				Select("challenge_id").
				Where("external_user_id = ?", externalUserID),
		).
		Find(&challenges).Error
	return challenges, err
}

// StartWindowSweep deactivates challenges whose window has closed so the
// matching query stays cheap. Runs every minute.
func (c *ChallengeCatalog) StartWindowSweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			res := c.DB.Model(&models.Challenge{}).
				Where("active = ? AND end_at <= ?", true, time.Now()).
				Update("active", false)
			if res.Error != nil {
				log.Printf("[Sweep] DB error: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ [Sweep] deactivated %d expired challenges", res.RowsAffected)
			}
		}),
	)
}
