package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Quest is a multi-step goal gated by learner level.
// Requirements are stored for clients; completion is caller-asserted.
type Quest struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	MinLevel         int             `json:"min_level"`
	PointsReward     int64           `json:"points_reward"`
	CoinsReward      int64           `json:"coins_reward"`
	ExperienceReward int64           `json:"experience_reward"`
	Requirements     json.RawMessage `json:"requirements"`
	Active           bool            `json:"active"`
}

// Quest progress statuses.
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
)

// QuestProgress tracks a learner's run at a quest.
type QuestProgress struct {
	UserID      uuid.UUID  `json:"user_id"`
	QuestID     uuid.UUID  `json:"quest_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Achievement is a one-time award with a claimable reward.
type Achievement struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PointsReward int64     `json:"points_reward"`
	CoinsReward  int64     `json:"coins_reward"`
}

// UserAchievement records that a learner earned an achievement.
type UserAchievement struct {
	UserID         uuid.UUID  `json:"user_id"`
	AchievementID  uuid.UUID  `json:"achievement_id"`
	EarnedAt       time.Time  `json:"earned_at"`
	RewardsClaimed bool       `json:"rewards_claimed"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
}
