package models

import (
	"time"
)

// ChallengeScope controls who a challenge applies to
type ChallengeScope string

const (
	ScopeUser   ChallengeScope = "USER"   // requires an assignment row per user
	ScopeGlobal ChallengeScope = "GLOBAL" // matches every user
)

// ApprovalStatus is the publishing state of a challenge definition.
// Only APPROVED challenges are visible to the matching engine.
type ApprovalStatus string

const (
	ApprovalDraft    ApprovalStatus = "draft"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether a status ends a review cycle.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

type Challenge struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // slug from title, e.g. "save-100k-this-month"
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Scope           ChallengeScope `gorm:"type:varchar(16);not null;default:'GLOBAL'" json:"scope"`
	Metric          string         `gorm:"index;not null" json:"metric"` // event type this challenge counts
	TargetThreshold int64          `gorm:"not null" json:"target_threshold"`
	RewardPoints    int64          `gorm:"default:0" json:"reward_points"`

	// Active window [start_at, end_at)
	StartAt time.Time `gorm:"not null" json:"start_at"`
	EndAt   time.Time `gorm:"not null" json:"end_at"`
	Active  bool      `gorm:"default:true" json:"active"`

	ApprovalStatus ApprovalStatus `gorm:"type:varchar(16);not null;default:'draft';index" json:"approval_status"`

	Timestamps
}

// InWindow reports whether at falls inside the half-open active window.
func (c *Challenge) InWindow(at time.Time) bool {
	return !at.Before(c.StartAt) && at.Before(c.EndAt)
}

// ApprovalHistory is the append-only audit trail of review transitions.
// Rows are never updated or deleted; the denormalized status on Challenge
// always equals the status of the most recent row.
type ApprovalHistory struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string         `gorm:"index;not null" json:"challenge_id"`
	Status      ApprovalStatus `gorm:"type:varchar(16);not null" json:"status"`
	Actor       string         `gorm:"not null" json:"actor"`
	Comment     string         `gorm:"type:text" json:"comment"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// ChallengeAssignment opts a user into a USER-scoped challenge.
// Without a row here a USER-scoped challenge never matches that user.
type ChallengeAssignment struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID    string    `gorm:"uniqueIndex:idx_challenge_assignee;not null" json:"challenge_id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_challenge_assignee;not null" json:"external_user_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
