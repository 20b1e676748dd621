package models

import (
	"time"

	"gorm.io/gorm"
)

// UserChallengeProgress is the cumulative counter for one (user, challenge)
// pair. Completed flips false→true exactly once; cumulative never decreases.
type UserChallengeProgress struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_challenge;not null" json:"external_user_id"`
	ChallengeID    string `gorm:"uniqueIndex:idx_user_challenge;not null" json:"challenge_id"`

	Cumulative  int64      `gorm:"default:0" json:"cumulative"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastEventAt time.Time  `json:"last_event_at"`

	// Optimistic lock; bumped on every write so concurrent events for the
	// same pair cannot both apply against the same snapshot.
	Version int64 `gorm:"default:0" json:"-"`

	Timestamps
}

// ProcessedEvent is the idempotency marker for an ingested event. The
// unique key makes duplicate redelivery a designed no-op: the second
// insert conflicts and the pipeline stops there.
type ProcessedEvent struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	EventKey       string    `gorm:"uniqueIndex;not null" json:"event_key"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	EventType      string    `gorm:"not null" json:"event_type"`
	Action         string    `json:"action"`
	Amount         int64     `json:"amount"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserEventStat is the lifetime total per (user, event type); badge rules
// reference these totals by metric name.
type UserEventStat struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_event;not null" json:"external_user_id"`
	EventType      string `gorm:"uniqueIndex:idx_user_event;not null" json:"event_type"`
	Total          int64  `gorm:"default:0" json:"total"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
