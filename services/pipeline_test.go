package services

import (
	"fmt"
	"testing"
	"time"

	"gamification-service/models"
	"gamification-service/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func rawQuizEvent(userID, key string, amount int64) RawEvent {
	return RawEvent{
		UserID:         userID,
		EventType:      models.EventQuizPassed,
		Action:         "quiz",
		Amount:         &amount,
		OccurredAt:     time.Now().Format(time.RFC3339),
		IdempotencyKey: key,
	}
}

func TestProcessEventThresholdCrossing(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	// amounts 2, 2, 2 against threshold 5
	res, err := p.ProcessEvent(rawQuizEvent(userID, "k1", 2))
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	require.Equal(t, "UPDATED", res.Applied[0].Result)
	require.Equal(t, int64(2), res.Applied[0].Cumulative)

	res, err = p.ProcessEvent(rawQuizEvent(userID, "k2", 2))
	require.NoError(t, err)
	require.Equal(t, "UPDATED", res.Applied[0].Result)
	require.Equal(t, int64(4), res.Applied[0].Cumulative)

	res, err = p.ProcessEvent(rawQuizEvent(userID, "k3", 2))
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", res.Applied[0].Result)
	require.Equal(t, int64(6), res.Applied[0].Cumulative)

	// Redelivery of the 3rd event: same key, designed no-op
	res, err = p.ProcessEvent(rawQuizEvent(userID, "k3", 2))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Empty(t, res.Applied)

	var prog models.UserChallengeProgress
	require.NoError(t, db.Where("external_user_id = ? AND challenge_id = ?", userID, ch.ID).First(&prog).Error)
	require.Equal(t, int64(6), prog.Cumulative)
	require.True(t, prog.Completed)
}

func TestProcessEventAppliesToAllMatches(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	chA := seedChallenge(t, db, models.EventQuizPassed, 2, models.ScopeGlobal, models.ApprovalApproved)
	chB := seedChallenge(t, db, models.EventQuizPassed, 50, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	res, err := p.ProcessEvent(rawQuizEvent(userID, "k1", 2))
	require.NoError(t, err)
	require.Len(t, res.Applied, 2)

	outcomes := map[string]string{}
	for _, a := range res.Applied {
		outcomes[a.ChallengeID] = a.Result
	}
	require.Equal(t, "COMPLETED", outcomes[chA.ID])
	require.Equal(t, "UPDATED", outcomes[chB.ID])

	// Completing A did not disturb B's counter
	var progB models.UserChallengeProgress
	require.NoError(t, db.Where("external_user_id = ? AND challenge_id = ?", userID, chB.ID).First(&progB).Error)
	require.Equal(t, int64(2), progB.Cumulative)
	require.False(t, progB.Completed)
}

func TestProcessEventCompletionPaysAndNotifies(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 2, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	_, err := p.ProcessEvent(rawQuizEvent(userID, "k1", 2))
	require.NoError(t, err)

	summary, _, err := p.Rewards.Summary(userID)
	require.NoError(t, err)
	require.Equal(t, ch.RewardPoints, summary.TotalPoints)

	var outbox []models.NotificationOutbox
	require.NoError(t, db.Where("external_user_id = ?", userID).Find(&outbox).Error)
	require.Len(t, outbox, 1)
	require.Equal(t, models.NotifyChallengeCompleted, outbox[0].Kind)
	require.Equal(t, ch.ID, outbox[0].ReferenceID)
	require.False(t, outbox[0].Dispatched)
}

func TestProcessEventBadgeAfterThirdCompletion(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	userID := uuid.NewString()
	badge := seedBadge(t, db, "COMPLETE_3", map[string]int64{models.MetricChallengesCompleted: 3})

	// Three one-shot challenges on distinct metrics
	metrics := []string{models.EventQuizPassed, models.EventGoalReached, models.EventLessonCompleted}
	for i, metric := range metrics {
		seedChallenge(t, db, metric, 1, models.ScopeGlobal, models.ApprovalApproved)
		res, err := p.ProcessEvent(RawEvent{
			UserID:         userID,
			EventType:      metric,
			Action:         "a",
			OccurredAt:     time.Now().Format(time.RFC3339),
			IdempotencyKey: fmt.Sprintf("c%d", i),
		})
		require.NoError(t, err)

		if i < 2 {
			require.Empty(t, res.NewBadges)
		} else {
			require.Equal(t, []string{"COMPLETE_3"}, res.NewBadges)
		}
	}

	// A near-simultaneous re-evaluation produces zero additional grants
	snapshot, err := p.Badges.Snapshot(userID)
	require.NoError(t, err)
	granted, err := p.Badges.Evaluate(userID, snapshot)
	require.NoError(t, err)
	require.Empty(t, granted)

	var count int64
	require.NoError(t, db.Model(&models.UserBadge{}).
		Where("external_user_id = ? AND badge_type_id = ?", userID, badge.ID).
		Count(&count).Error)
	require.Equal(t, int64(1), count)

	// Badge payout and outbox fact landed exactly once
	_, categories, err := p.Rewards.Summary(userID)
	require.NoError(t, err)
	byCat := map[string]models.RewardCategoryCount{}
	for _, c := range categories {
		byCat[c.Category] = c
	}
	require.Equal(t, int64(1), byCat[models.RewardSourceBadge].Grants)
	require.Equal(t, badge.RewardPoints, byCat[models.RewardSourceBadge].Points)

	var badgeFacts int64
	require.NoError(t, db.Model(&models.NotificationOutbox{}).
		Where("external_user_id = ? AND kind = ?", userID, models.NotifyBadgeGranted).
		Count(&badgeFacts).Error)
	require.Equal(t, int64(1), badgeFacts)
}

func TestProcessEventUnrecognizedIsNoOp(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	res, err := p.ProcessEvent(RawEvent{
		UserID:     userID,
		EventType:  "mystery_event",
		Action:     "a",
		OccurredAt: time.Now().Format(time.RFC3339),
	})
	require.NoError(t, err)
	require.True(t, res.Unrecognized)
	require.Empty(t, res.Applied)

	var count int64
	require.NoError(t, db.Model(&models.UserChallengeProgress{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestProcessEventMalformedRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)

	_, err := p.ProcessEvent(RawEvent{
		UserID:     "not-a-uuid",
		EventType:  models.EventQuizPassed,
		Action:     "a",
		OccurredAt: time.Now().Format(time.RFC3339),
	})
	require.ErrorIs(t, err, ErrMalformedEvent)
}

func TestProcessEventDerivedKeyCollapsesRedelivery(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	seedChallenge(t, db, models.EventQuizPassed, 10, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	// Same logical event, no producer key: the derived key must dedupe it
	occurred := time.Now().Format(time.RFC3339)
	raw := RawEvent{UserID: userID, EventType: models.EventQuizPassed, Action: "quiz-9", OccurredAt: occurred}

	res, err := p.ProcessEvent(raw)
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	res, err = p.ProcessEvent(raw)
	require.NoError(t, err)
	require.True(t, res.Duplicate)

	var stat models.UserEventStat
	require.NoError(t, db.Where("external_user_id = ?", userID).First(&stat).Error)
	require.Equal(t, int64(1), stat.Total)
}

func TestProcessEventTracksLifetimeStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	userID := uuid.NewString()

	// No matching challenge — lifetime stats still accumulate
	for i := 0; i < 3; i++ {
		_, err := p.ProcessEvent(RawEvent{
			UserID:         userID,
			EventType:      models.EventStreakDay,
			Action:         "day",
			OccurredAt:     time.Now().Format(time.RFC3339),
			IdempotencyKey: fmt.Sprintf("s%d", i),
		})
		require.NoError(t, err)
	}

	var stat models.UserEventStat
	require.NoError(t, db.Where("external_user_id = ? AND event_type = ?", userID, models.EventStreakDay).First(&stat).Error)
	require.Equal(t, int64(3), stat.Total)
}

func TestProcessEventFailedAttemptCanBeRedelivered(t *testing.T) {
	db := testutil.NewTestDB(t)
	p := NewEventPipeline(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalApproved)
	userID := uuid.NewString()

	// Sabotage the first attempt after the dedupe marker would be written:
	// without the progress table the ledger write fails mid-pipeline.
	require.NoError(t, db.Migrator().DropTable(&models.UserChallengeProgress{}))
	_, err := p.ProcessEvent(rawQuizEvent(userID, "k1", 2))
	require.Error(t, err)

	// The rollback must release the idempotency key with everything else,
	// otherwise the event is lost: marked processed with zero effects.
	var markers int64
	require.NoError(t, db.Model(&models.ProcessedEvent{}).Where("event_key = ?", "k1").Count(&markers).Error)
	require.Zero(t, markers)

	require.NoError(t, db.AutoMigrate(&models.UserChallengeProgress{}))

	// Redelivering the same key now applies instead of reporting a duplicate
	res, err := p.ProcessEvent(rawQuizEvent(userID, "k1", 2))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Len(t, res.Applied, 1)
	require.Equal(t, int64(2), res.Applied[0].Cumulative)

	var prog models.UserChallengeProgress
	require.NoError(t, db.Where("external_user_id = ? AND challenge_id = ?", userID, ch.ID).First(&prog).Error)
	require.Equal(t, int64(2), prog.Cumulative)
}
