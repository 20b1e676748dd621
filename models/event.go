package models

import (
	"time"
)

// Recognized achievement event types emitted by the finance and learning
// services. Unknown types are not an error — they pass through the
// pipeline as no-ops so one producer's vocabulary can grow without
// breaking another's ingestion.
const (
	EventGoalReached     = "goal_reached"
	EventLessonCompleted = "lesson_completed"
	EventQuizPassed      = "quiz_passed"
	EventSavingDeposit   = "saving_deposit"
	EventStreakDay       = "streak_day"
	EventBudgetKept      = "budget_kept"
)

// RecognizedEventTypes is the closed set the normalizer checks against.
var RecognizedEventTypes = map[string]bool{
	EventGoalReached:     true,
	EventLessonCompleted: true,
	EventQuizPassed:      true,
	EventSavingDeposit:   true,
	EventStreakDay:       true,
	EventBudgetKept:      true,
}

// ProgressEvent is the canonical form of an ingested achievement event.
// It is ephemeral: only the idempotency marker outlives the request.
type ProgressEvent struct {
	IdempotencyKey string    `json:"idempotency_key"`
	ExternalUserID string    `json:"external_user_id"`
	EventType      string    `json:"event_type"`
	Action         string    `json:"action"`
	Amount         int64     `json:"amount"`
	OccurredAt     time.Time `json:"occurred_at"`
	Recognized     bool      `json:"recognized"`
}
