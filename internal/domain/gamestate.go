package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Starting values for a fresh game state.
const (
	StartingLevel     = 1
	StartingThreshold = 100
)

// GameState is the per-learner progress record (one row in game_states).
type GameState struct {
	UserID                  uuid.UUID  `json:"user_id"`
	Level                   int        `json:"level"`
	Points                  int64      `json:"points"`
	Experience              int64      `json:"experience"`
	ExperienceToNextLevel   int64      `json:"experience_to_next_level"`
	Coins                   int64      `json:"coins"`
	CurrentStreak           int        `json:"current_streak"`
	LongestStreak           int        `json:"longest_streak"`
	LastActivityDate        *time.Time `json:"last_activity_date,omitempty"` // calendar day, UTC midnight
	TotalCorrectAnswers     int64      `json:"total_correct_answers"`
	TotalQuestionsAttempted int64      `json:"total_questions_attempted"`
	TotalTimeSpent          int64      `json:"total_time_spent"` // seconds
	UnlockedZones           StringSet  `json:"unlocked_zones"`
	CompletedLessons        StringSet  `json:"completed_lessons"`
	Achievements            StringSet  `json:"achievements"`
	Badges                  StringSet  `json:"badges"`
	Version                 int64      `json:"version"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// NewGameState returns the default record created on first touch.
func NewGameState(userID uuid.UUID, now time.Time) *GameState {
	return &GameState{
		UserID:                userID,
		Level:                 StartingLevel,
		ExperienceToNextLevel: StartingThreshold,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// Accuracy returns correct/attempted as a percentage rounded to 2 places.
func (g *GameState) Accuracy() float64 {
	if g.TotalQuestionsAttempted == 0 {
		return 0
	}
	pct := float64(g.TotalCorrectAnswers) / float64(g.TotalQuestionsAttempted) * 100
	return math.Round(pct*100) / 100
}

// AddTimeSpent accumulates seconds of study time, ignoring negative input.
func (g *GameState) AddTimeSpent(seconds int64) {
	if seconds > 0 {
		g.TotalTimeSpent += seconds
	}
}

// Reset replaces the record with defaults, keeping identity, creation time and version.
func (g *GameState) Reset(now time.Time) {
	fresh := NewGameState(g.UserID, now)
	fresh.CreatedAt = g.CreatedAt
	fresh.Version = g.Version
	*g = *fresh
}

// CalendarDay truncates t to its calendar date in loc, returned as UTC midnight.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b, both calendar days.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
