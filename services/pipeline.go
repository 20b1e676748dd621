package services

import (
	"log"
	"time"

	"gamification-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChallengeOutcome reports what one matched challenge did with the event.
type ChallengeOutcome struct {
	ChallengeID string          `json:"challenge_id"`
	Code        string          `json:"code"`
	Outcome     ProgressOutcome `json:"-"`
	Result      string          `json:"result"`
	Cumulative  int64           `json:"cumulative"`
}

// IngestResult is the full outcome of one ProcessEvent call.
type IngestResult struct {
	EventKey     string             `json:"event_key"`
	Duplicate    bool               `json:"duplicate"`
	Unrecognized bool               `json:"unrecognized"`
	Applied      []ChallengeOutcome `json:"applied"`
	NewBadges    []string           `json:"new_badges"`
}

// EventPipeline wires the engine end to end:
// normalize → dedupe → match → apply → rewards/badges → outbox.
type EventPipeline struct {
	DB         *gorm.DB
	Normalizer *EventNormalizer
	Catalog    *ChallengeCatalog
	Ledger     *ProgressLedger
	Badges     *BadgeEngine
	Rewards    *RewardAggregator
}

func NewEventPipeline(db *gorm.DB) *EventPipeline {
	return &EventPipeline{
		DB:         db,
		Normalizer: NewEventNormalizer(),
		Catalog:    NewChallengeCatalog(db),
		Ledger:     NewProgressLedger(db),
		Badges:     NewBadgeEngine(db),
		Rewards:    NewRewardAggregator(db),
	}
}

// ProcessEvent handles one achievement event delivery. Redelivery of the
// same idempotency key short-circuits at the marker insert. The marker
// and every downstream effect commit in one transaction, so a failed
// attempt rolls the marker back and the delivery can be retried.
func (p *EventPipeline) ProcessEvent(raw RawEvent) (*IngestResult, error) {
	event, err := p.Normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{EventKey: event.IdempotencyKey}

	err = p.DB.Transaction(func(tx *gorm.DB) error {
		scoped := &EventPipeline{
			DB:         tx,
			Normalizer: p.Normalizer,
			Catalog:    NewChallengeCatalog(tx),
			Ledger:     NewProgressLedger(tx),
			Badges:     NewBadgeEngine(tx),
			Rewards:    NewRewardAggregator(tx),
		}
		return scoped.apply(event, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *EventPipeline) apply(event *models.ProgressEvent, result *IngestResult) error {
	fresh, err := p.markProcessed(event)
	if err != nil {
		return err
	}
	if !fresh {
		result.Duplicate = true
		return nil
	}

	if !event.Recognized {
		result.Unrecognized = true
		return nil
	}

	if err := p.bumpEventStat(event.ExternalUserID, event.EventType, event.Amount); err != nil {
		return err
	}

	challenges, err := p.Catalog.MatchingChallenges(event.ExternalUserID, event.EventType, event.OccurredAt)
	if err != nil {
		return err
	}

	for i := range challenges {
		ch := &challenges[i]
		outcome, prog, err := p.Ledger.ApplyEvent(event.ExternalUserID, ch, event.Amount, event.OccurredAt)
		if err != nil {
			return err
		}

		co := ChallengeOutcome{ChallengeID: ch.ID, Code: ch.Code, Outcome: outcome, Result: outcome.String()}
		if prog != nil {
			co.Cumulative = prog.Cumulative
		}
		result.Applied = append(result.Applied, co)

		if outcome == OutcomeCompleted {
			if err := p.Rewards.ApplyDelta(event.ExternalUserID, ch.RewardPoints, models.RewardSourceChallenge); err != nil {
				return err
			}
			p.enqueueNotification(event.ExternalUserID, models.NotifyChallengeCompleted, ch.ID, prog)
			log.Printf("🏁 Challenge completed: %s → %s (+%d pts)", ch.Code, event.ExternalUserID, ch.RewardPoints)
		}
	}

	newBadges, err := p.evaluateBadges(event.ExternalUserID)
	if err != nil {
		return err
	}
	result.NewBadges = newBadges

	return nil
}

func (p *EventPipeline) evaluateBadges(externalUserID string) ([]string, error) {
	snapshot, err := p.Badges.Snapshot(externalUserID)
	if err != nil {
		return nil, err
	}
	granted, err := p.Badges.Evaluate(externalUserID, snapshot)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(granted))
	for _, bt := range granted {
		codes = append(codes, bt.Code)
		if err := p.Rewards.ApplyDelta(externalUserID, bt.RewardPoints, models.RewardSourceBadge); err != nil {
			return codes, err
		}
		p.enqueueNotification(externalUserID, models.NotifyBadgeGranted, bt.ID, nil)
	}
	return codes, nil
}

// markProcessed inserts the idempotency marker. Returns false when the
// key was already recorded — the duplicate no-op path, never an error.
func (p *EventPipeline) markProcessed(event *models.ProgressEvent) (bool, error) {
	marker := models.ProcessedEvent{
		ID:             uuid.NewString(),
		EventKey:       event.IdempotencyKey,
		ExternalUserID: event.ExternalUserID,
		EventType:      event.EventType,
		Action:         event.Action,
		Amount:         event.Amount,
		OccurredAt:     event.OccurredAt,
	}
	res := p.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (p *EventPipeline) bumpEventStat(externalUserID, eventType string, amount int64) error {
	res := p.DB.Model(&models.UserEventStat{}).
		Where("external_user_id = ? AND event_type = ?", externalUserID, eventType).
		Update("total", gorm.Expr("total + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	stat := models.UserEventStat{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		EventType:      eventType,
		Total:          amount,
	}
	cres := p.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&stat)
	if cres.Error != nil {
		return cres.Error
	}
	if cres.RowsAffected == 0 {
		return p.DB.Model(&models.UserEventStat{}).
			Where("external_user_id = ? AND event_type = ?", externalUserID, eventType).
			Update("total", gorm.Expr("total + ?", amount)).Error
	}
	return nil
}

// enqueueNotification writes the outbox fact. An outbox failure is logged
// and swallowed: notification is best-effort and must never fail the
// grant that triggered it.
func (p *EventPipeline) enqueueNotification(externalUserID string, kind models.NotificationKind, referenceID string, prog *models.UserChallengeProgress) {
	row := models.NotificationOutbox{
		ID:             uuid.NewString(),
		ExternalUserID: externalUserID,
		Kind:           kind,
		ReferenceID:    referenceID,
	}
	if prog != nil && prog.CompletedAt != nil {
		row.GrantedAt = *prog.CompletedAt
	} else {
		row.GrantedAt = time.Now()
	}
	if err := p.DB.Create(&row).Error; err != nil {
		log.Printf("⚠️ [OUTBOX] failed to enqueue %s for %s: %v", kind, externalUserID, err)
	}
}
