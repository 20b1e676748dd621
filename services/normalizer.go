package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"gamification-service/models"

	"github.com/google/uuid"
)

// RawEvent is the inbound payload as the producers send it.
type RawEvent struct {
	UserID         string `json:"user_id"`
	EventType      string `json:"event_type"`
	Action         string `json:"action"`
	Amount         *int64 `json:"amount,omitempty"`
	OccurredAt     string `json:"occurred_at"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// EventNormalizer validates and canonicalizes raw payloads. Pure
// transform — no side effects beyond a warning log for unknown types.
type EventNormalizer struct{}

func NewEventNormalizer() *EventNormalizer {
	return &EventNormalizer{}
}

func (n *EventNormalizer) Normalize(raw RawEvent) (*models.ProgressEvent, error) {
	if _, err := uuid.Parse(raw.UserID); err != nil {
		return nil, fmt.Errorf("%w: user_id %q is not a valid uuid", ErrMalformedEvent, raw.UserID)
	}

	eventType := strings.TrimSpace(raw.EventType)
	if eventType == "" {
		return nil, fmt.Errorf("%w: event_type is required", ErrMalformedEvent)
	}
	if raw.Action == "" {
		return nil, fmt.Errorf("%w: action is required", ErrMalformedEvent)
	}

	occurredAt, err := time.Parse(time.RFC3339, raw.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("%w: occurred_at %q is not RFC3339", ErrMalformedEvent, raw.OccurredAt)
	}

	amount := int64(1)
	if raw.Amount != nil {
		if *raw.Amount <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive, got %d", ErrMalformedEvent, *raw.Amount)
		}
		amount = *raw.Amount
	}

	recognized := models.RecognizedEventTypes[eventType]
	if !recognized {
		log.Printf("⚠️ [NORMALIZER] unknown event type %q from user %s — passing through as no-op", eventType, raw.UserID)
	}

	key := raw.IdempotencyKey
	if key == "" {
		key = deriveEventKey(raw.UserID, eventType, raw.Action, occurredAt)
	}

	return &models.ProgressEvent{
		IdempotencyKey: key,
		ExternalUserID: raw.UserID,
		EventType:      eventType,
		Action:         raw.Action,
		Amount:         amount,
		OccurredAt:     occurredAt,
		Recognized:     recognized,
	}, nil
}

// deriveEventKey builds a deterministic key so redelivery of the same
// logical event collapses even when the producer sent no key. Truncated
// to the second: sub-second jitter between retries must not fork keys.
func deriveEventKey(userID, eventType, action string, occurredAt time.Time) string {
	ts := occurredAt.UTC().Truncate(time.Second).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(userID + "|" + eventType + "|" + action + "|" + ts))
	return hex.EncodeToString(sum[:])
}
