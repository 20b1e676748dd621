package services

import (
	"errors"
	"fmt"
	"log"

	"gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalWorkflow drives a challenge's review state machine:
// draft → pending → {approved, rejected}. A rejected challenge may be
// edited and resubmitted, starting a new pending cycle on the same
// identity. Every effective transition appends exactly one history row in
// the transaction that flips the denormalized status, so the audit log
// and the cached field cannot diverge.
type ApprovalWorkflow struct {
	DB *gorm.DB
}

func NewApprovalWorkflow(db *gorm.DB) *ApprovalWorkflow {
	return &ApprovalWorkflow{DB: db}
}

// Submit moves draft or rejected → pending.
func (w *ApprovalWorkflow) Submit(challengeID, actor string) (*models.Challenge, error) {
	return w.transition(challengeID, actor, "", models.ApprovalPending, func(current models.ApprovalStatus) bool {
		return current == models.ApprovalDraft || current == models.ApprovalRejected
	})
}

// Approve moves pending → approved, making the challenge visible to the
// catalog. Approving an already-approved challenge is a no-op, not an
// error, and appends nothing.
func (w *ApprovalWorkflow) Approve(challengeID, actor, comment string) (*models.Challenge, error) {
	return w.transition(challengeID, actor, comment, models.ApprovalApproved, func(current models.ApprovalStatus) bool {
		return current == models.ApprovalPending
	})
}

// Reject moves pending → rejected; the challenge stays invisible.
// Re-rejecting a rejected challenge is a no-op.
func (w *ApprovalWorkflow) Reject(challengeID, actor, comment string) (*models.Challenge, error) {
	return w.transition(challengeID, actor, comment, models.ApprovalRejected, func(current models.ApprovalStatus) bool {
		return current == models.ApprovalPending
	})
}

// History returns the audit trail oldest-first. The current status always
// equals the last entry's status.
func (w *ApprovalWorkflow) History(challengeID string) ([]models.ApprovalHistory, error) {
	var entries []models.ApprovalHistory
	err := w.DB.Where("challenge_id = ?", challengeID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (w *ApprovalWorkflow) transition(challengeID, actor, comment string, target models.ApprovalStatus, allowed func(models.ApprovalStatus) bool) (*models.Challenge, error) {
	var challenge models.Challenge
	err := w.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", challengeID).First(&challenge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("challenge %s not found", challengeID)
			}
			return err
		}

		// Idempotent on terminal states only: re-approving an approved
		// challenge (or re-rejecting a rejected one) succeeds without a
		// new history row. Repeating a non-terminal request is misuse.
		if challenge.ApprovalStatus == target && target.Terminal() {
			return nil
		}

		if !allowed(challenge.ApprovalStatus) {
			return &InvalidTransitionError{
				ChallengeID: challengeID,
				Current:     challenge.ApprovalStatus,
				Requested:   target,
			}
		}

		challenge.ApprovalStatus = target
		if err := tx.Save(&challenge).Error; err != nil {
			return err
		}

		entry := models.ApprovalHistory{
			ID:          uuid.NewString(),
			ChallengeID: challengeID,
			Status:      target,
			Actor:       actor,
			Comment:     comment,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		log.Printf("📋 [APPROVAL] challenge %s → %s by %s", challengeID, target, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}
