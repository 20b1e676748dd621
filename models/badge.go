package models

import (
	"time"
)

// BadgeType: static unlock rule config (seeded at boot, editable via admin API)
type BadgeType struct {
	ID           string           `gorm:"primaryKey;type:uuid" json:"id"`
	Code         string           `gorm:"uniqueIndex;not null" json:"code"` // e.g. "FIRST_STEPS", "QUIZ_MASTER"
	Name         string           `gorm:"not null" json:"name"`
	Description  string           `gorm:"type:text" json:"description"`
	IconURL      string           `gorm:"type:text" json:"icon_url"` // R2 URL to SVG/png
	Rarity       string           `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	Threshold    map[string]int64 `gorm:"serializer:json" json:"threshold"` // e.g. {"challenges_completed": 3}
	RewardPoints int64            `gorm:"default:0" json:"reward_points"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: granted instance. The composite unique index is the
// idempotency guarantee — a race between two evaluations resolves at the
// constraint, not under a lock.
type UserBadge struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"external_user_id"`
	BadgeTypeID    string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_type_id"`
	GrantedAt      time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

// Metric names the Badge Engine understands beyond raw event-type totals.
const (
	MetricChallengesCompleted = "challenges_completed"
	MetricTotalPoints         = "total_points"
)

// DefaultBadges seeded on first boot (inserted by code, existing rows win)
var DefaultBadges = []BadgeType{
	{
		Code:         "FIRST_STEPS",
		Name:         "First Steps",
		Description:  "Completed your first challenge",
		Rarity:       "common",
		Threshold:    map[string]int64{MetricChallengesCompleted: 1},
		RewardPoints: 10,
	},
	{
		Code:         "CHALLENGE_HUNTER",
		Name:         "Challenge Hunter",
		Description:  "Completed 3 challenges",
		Rarity:       "rare",
		Threshold:    map[string]int64{MetricChallengesCompleted: 3},
		RewardPoints: 50,
	},
	{
		Code:         "GOAL_GETTER",
		Name:         "Goal Getter",
		Description:  "Reached 5 financial goals",
		Rarity:       "rare",
		Threshold:    map[string]int64{EventGoalReached: 5},
		RewardPoints: 50,
	},
	{
		Code:         "QUIZ_MASTER",
		Name:         "Quiz Master",
		Description:  "Passed 10 quizzes",
		Rarity:       "epic",
		Threshold:    map[string]int64{EventQuizPassed: 10},
		RewardPoints: 100,
	},
	{
		Code:         "SCHOLAR",
		Name:         "Scholar",
		Description:  "Completed 25 lessons",
		Rarity:       "epic",
		Threshold:    map[string]int64{EventLessonCompleted: 25},
		RewardPoints: 100,
	},
}
