package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressOutcome is the result of applying one event to one challenge.
type ProgressOutcome int

const (
	OutcomeNoChange ProgressOutcome = iota
	OutcomeUpdated
	OutcomeCompleted
)

func (o ProgressOutcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "UPDATED"
	case OutcomeCompleted:
		return "COMPLETED"
	default:
		return "NO_CHANGE"
	}
}

// maxApplyAttempts bounds the optimistic retry loop before the conflict
// surfaces to the caller for redelivery.
const maxApplyAttempts = 3

// ProgressLedger owns the per-(user, challenge) cumulative counters.
type ProgressLedger struct {
	DB *gorm.DB
}

func NewProgressLedger(db *gorm.DB) *ProgressLedger {
	return &ProgressLedger{DB: db}
}

// ApplyEvent adds amount to the pair's cumulative counter and flips the
// row to completed exactly once when the threshold is crossed. Completed
// rows never accumulate again. Updates are guarded by a version column:
// two concurrent events for the same pair cannot both apply against the
// same snapshot — the loser re-reads and retries.
func (l *ProgressLedger) ApplyEvent(externalUserID string, challenge *models.Challenge, amount int64, occurredAt time.Time) (ProgressOutcome, *models.UserChallengeProgress, error) {
	// Progress only accrues while the event falls inside the challenge
	// window, regardless of how the challenge was looked up.
	if !challenge.InWindow(occurredAt) {
		return OutcomeNoChange, nil, nil
	}

	for attempt := 1; attempt <= maxApplyAttempts; attempt++ {
		prog, err := l.ensureRow(externalUserID, challenge.ID)
		if err != nil {
			return OutcomeNoChange, nil, err
		}

		if prog.Completed {
			return OutcomeNoChange, prog, nil
		}

		newCumulative := prog.Cumulative + amount
		outcome := OutcomeUpdated
		updates := map[string]interface{}{
			"cumulative":    newCumulative,
			"last_event_at": occurredAt,
			"version":       prog.Version + 1,
		}
		if newCumulative >= challenge.TargetThreshold {
			now := time.Now()
			outcome = OutcomeCompleted
			updates["completed"] = true
			updates["completed_at"] = &now
		}

		res := l.DB.Model(&models.UserChallengeProgress{}).
			Where("id = ? AND version = ?", prog.ID, prog.Version).
			Updates(updates)
		if res.Error != nil {
			return OutcomeNoChange, nil, res.Error
		}
		if res.RowsAffected == 1 {
			prog.Cumulative = newCumulative
			prog.Version++
			prog.LastEventAt = occurredAt
			if outcome == OutcomeCompleted {
				prog.Completed = true
				if ts, ok := updates["completed_at"].(*time.Time); ok {
					prog.CompletedAt = ts
				}
			}
			return outcome, prog, nil
		}

		// Someone else moved the row between our read and write.
		log.Printf("⚠️ [LEDGER] version conflict for user=%s challenge=%s (attempt %d/%d)",
			externalUserID, challenge.ID, attempt, maxApplyAttempts)
	}
	return OutcomeNoChange, nil, fmt.Errorf("%w: user=%s challenge=%s", ErrConcurrentUpdate, externalUserID, challenge.ID)
}

// CompletedCount returns how many distinct challenges the user has
// finished — the Badge Engine's primary lifetime metric.
func (l *ProgressLedger) CompletedCount(externalUserID string) (int64, error) {
	var count int64
	err := l.DB.Model(&models.UserChallengeProgress{}).
		Where("external_user_id = ? AND completed = ?", externalUserID, true).
		Count(&count).Error
	return count, err
}

// ListProgress returns every progress row for a user, newest activity first.
func (l *ProgressLedger) ListProgress(externalUserID string) ([]models.UserChallengeProgress, error) {
	var rows []models.UserChallengeProgress
	err := l.DB.Where("external_user_id = ?", externalUserID).
		Order("last_event_at DESC").
		Find(&rows).Error
	return rows, err
}

// ensureRow fetches the pair's progress row, creating it at cumulative 0
// on first touch. A create race is resolved by the unique index: the
// loser reloads the winner's row.
func (l *ProgressLedger) ensureRow(externalUserID, challengeID string) (*models.UserChallengeProgress, error) {
	var prog models.UserChallengeProgress
	err := l.DB.Where("external_user_id = ? AND challenge_id = ?", externalUserID, challengeID).
		First(&prog).Error
	if err == nil {
		return &prog, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	prog = models.UserChallengeProgress{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		ChallengeID:    challengeID,
		Cumulative:     0,
	}
	res := l.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&prog)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := l.DB.Where("external_user_id = ? AND challenge_id = ?", externalUserID, challengeID).
			First(&prog).Error; err != nil {
			return nil, err
		}
	}
	return &prog, nil
}
