package models

import (
	"time"
)

type NotificationKind string

const (
	NotifyChallengeCompleted NotificationKind = "challenge_completed"
	NotifyBadgeGranted       NotificationKind = "badge_granted"
)

// NotificationOutbox is a durable record of a notification-worthy fact.
// Rows are written alongside the grant that produced them; the dispatch
// worker drains them best-effort. A delivery failure never rolls back the
// progress or badge state.
type NotificationOutbox struct {
	ID             string           `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string           `gorm:"index;not null" json:"external_user_id"`
	Kind           NotificationKind `gorm:"type:varchar(32);not null" json:"kind"`
	ReferenceID    string           `gorm:"not null" json:"reference_id"` // challenge or badge type id
	GrantedAt      time.Time        `gorm:"not null" json:"granted_at"`

	Dispatched   bool       `gorm:"default:false;index" json:"dispatched"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
