package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityKind enumerates the audit-log event kinds.
type ActivityKind string

const (
	ActivityLogin            ActivityKind = "login"
	ActivityLogout           ActivityKind = "logout"
	ActivityLessonStart      ActivityKind = "lesson_start"
	ActivityLessonComplete   ActivityKind = "lesson_complete"
	ActivityQuizStart        ActivityKind = "quiz_start"
	ActivityQuizComplete     ActivityKind = "quiz_complete"
	ActivityAchievement      ActivityKind = "achievement_earned"
	ActivityBadge            ActivityKind = "badge_earned"
	ActivityLevelUp          ActivityKind = "level_up"
	ActivityStreakMilestone  ActivityKind = "streak_milestone"
	ActivityPointsEarned     ActivityKind = "points_earned"
	ActivityCoinsEarned      ActivityKind = "coins_earned"
	ActivityCoinsSpent       ActivityKind = "coins_spent"
	ActivityZoneUnlocked     ActivityKind = "zone_unlocked"
	ActivityProfileUpdated   ActivityKind = "profile_updated"
	ActivitySettingsChanged  ActivityKind = "settings_changed"
	ActivityGamePlayed       ActivityKind = "game_played"
	ActivityWritingSubmitted ActivityKind = "writing_submitted"
	ActivityQuestStarted     ActivityKind = "quest_started"
	ActivityQuestCompleted   ActivityKind = "quest_completed"
)

var activityKinds = map[ActivityKind]bool{
	ActivityLogin: true, ActivityLogout: true, ActivityLessonStart: true, ActivityLessonComplete: true,
	ActivityQuizStart: true, ActivityQuizComplete: true, ActivityAchievement: true, ActivityBadge: true,
	ActivityLevelUp: true, ActivityStreakMilestone: true, ActivityPointsEarned: true, ActivityCoinsEarned: true,
	ActivityCoinsSpent: true, ActivityZoneUnlocked: true, ActivityProfileUpdated: true, ActivitySettingsChanged: true,
	ActivityGamePlayed: true, ActivityWritingSubmitted: true, ActivityQuestStarted: true, ActivityQuestCompleted: true,
}

// ParseActivityKind validates a kind string.
func ParseActivityKind(s string) (ActivityKind, error) {
	k := ActivityKind(s)
	if !activityKinds[k] {
		return "", fmt.Errorf("unknown activity kind: %s", s)
	}
	return k, nil
}

// ActivityEvent is an immutable row of the activity_events log.
type ActivityEvent struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Kind        ActivityKind    `json:"kind"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
	IPAddress   string          `json:"ip_address,omitempty"`
	UserAgent   string          `json:"user_agent,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ActivityDraft is an event an orchestration wants recorded once its transaction commits.
type ActivityDraft struct {
	Kind        ActivityKind
	Description string
	Metadata    map[string]interface{}
}

// ActivityOrigin carries request metadata stored with each event.
type ActivityOrigin struct {
	IPAddress string
	UserAgent string
}

// ActivityFilter narrows an activity query.
type ActivityFilter struct {
	Kind  ActivityKind
	Since *time.Time
	Limit int
}

// Activity query limits.
const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 200
)

// Normalize applies the default and maximum limit.
func (f ActivityFilter) Normalize() ActivityFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultActivityLimit
	}
	if f.Limit > MaxActivityLimit {
		f.Limit = MaxActivityLimit
	}
	return f
}
