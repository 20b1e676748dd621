package models

// Reward source categories — every point grant is tagged with the path
// that produced it.
const (
	RewardSourceChallenge = "challenge"
	RewardSourceBadge     = "badge"
)

// RewardSummary is the per-user rolling aggregate. It is the only entity
// touched by more than one completion path; all mutation funnels through
// RewardAggregator.ApplyDelta and moves monotonically upward.
type RewardSummary struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"`
	TotalPoints    int64  `gorm:"default:0" json:"total_points"`

	Timestamps
}

// RewardCategoryCount tracks grants and points per source category so the
// per-category counters can be incremented atomically row-by-row instead
// of rewriting a JSON blob.
type RewardCategoryCount struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex:idx_user_category;not null" json:"external_user_id"`
	Category       string `gorm:"uniqueIndex:idx_user_category;not null" json:"category"`
	Grants         int64  `gorm:"default:0" json:"grants"`
	Points         int64  `gorm:"default:0" json:"points"`

	Timestamps
}
