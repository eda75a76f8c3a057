package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StartLessonParams holds the input for ExecuteStartLesson.
type StartLessonParams struct {
	UserID   uuid.UUID
	LessonID uuid.UUID
}

// CompleteLessonParams holds the input for ExecuteCompleteLesson.
type CompleteLessonParams struct {
	UserID    uuid.UUID
	LessonID  uuid.UUID
	Score     int // percent, 0..100
	TimeSpent int64
}

// SubmitQuizParams holds the input for ExecuteSubmitQuiz.
type SubmitQuizParams struct {
	UserID    uuid.UUID
	QuizID    uuid.UUID
	Correct   int
	Total     int
	TimeSpent int64
}

// EndGameParams holds the input for ExecuteEndGame.
type EndGameParams struct {
	UserID    uuid.UUID
	GameID    uuid.UUID
	Score     int64 // raw game score
	TimeSpent int64
	Stats     json.RawMessage
}

// QuestParams identifies a learner and quest.
type QuestParams struct {
	UserID  uuid.UUID
	QuestID uuid.UUID
}

// AchievementParams identifies a learner and achievement.
type AchievementParams struct {
	UserID        uuid.UUID
	AchievementID uuid.UUID
}

// SubmitWritingParams holds the input for ExecuteSubmitWriting.
type SubmitWritingParams struct {
	UserID    uuid.UUID
	PromptID  uuid.UUID
	Content   string
	WordCount int
	TimeSpent int64
}

// AddPointsParams holds the input for ExecuteAddPoints.
type AddPointsParams struct {
	UserID uuid.UUID
	Amount int64
	Reason string
}

// EarnCoinsParams holds the input for ExecuteEarnCoins.
type EarnCoinsParams struct {
	UserID uuid.UUID
	Amount int64
	Source string
}

// SpendCoinsParams holds the input for ExecuteSpendCoins.
type SpendCoinsParams struct {
	UserID   uuid.UUID
	Amount   int64
	ItemID   string
	ItemType string
}

// UnlockZoneParams holds the input for ExecuteUnlockZone.
type UnlockZoneParams struct {
	UserID uuid.UUID
	ZoneID string
}

// StreakMilestone is the bonus paid when a streak lands on a milestone day.
type StreakMilestone struct {
	Days         int   `json:"days"`
	CoinsAwarded int64 `json:"coins_awarded"`
}

// ProgressOutcome is the summary every progress mutation returns.
type ProgressOutcome struct {
	PointsAwarded     int64            `json:"points_awarded"`
	CoinsAwarded      int64            `json:"coins_awarded"`
	ExperienceAwarded int64            `json:"experience_awarded,omitempty"`
	TotalPoints       int64            `json:"total_points"`
	TotalCoins        int64            `json:"total_coins"`
	LeveledUp         bool             `json:"leveled_up"`
	Level             int              `json:"level"`
	CurrentStreak     int              `json:"current_streak"`
	LongestStreak     int              `json:"longest_streak"`
	StreakMilestone   *StreakMilestone `json:"streak_milestone,omitempty"`
}

// CommandResult is returned by all engine commands.
type CommandResult struct {
	State      *GameState
	Outcome    ProgressOutcome
	Activities []ActivityDraft
	Events     []OutboxDraft

	NextLesson *Lesson
	Lesson     *LessonProgress
	Quiz       *QuizResult
	Session    *GameSession
	// Ranking is the finished game's all-time place: 1 + players with a higher score.
	Ranking int64
	Submission *WritingSubmission
	Quest      *QuestProgress
}

// Finalize copies the state's totals into the outcome.
func (r *CommandResult) Finalize() {
	if r.State == nil {
		return
	}
	r.Outcome.TotalPoints = r.State.Points
	r.Outcome.TotalCoins = r.State.Coins
	r.Outcome.Level = r.State.Level
	r.Outcome.CurrentStreak = r.State.CurrentStreak
	r.Outcome.LongestStreak = r.State.LongestStreak
}

// Record queues an activity event for after commit.
func (r *CommandResult) Record(kind ActivityKind, description string, metadata map[string]interface{}) {
	r.Activities = append(r.Activities, ActivityDraft{Kind: kind, Description: description, Metadata: metadata})
}

// LeaderboardType selects the leaderboard ordering.
type LeaderboardType string

const (
	LeaderboardPoints LeaderboardType = "points"
	LeaderboardLevel  LeaderboardType = "level"
	LeaderboardStreak LeaderboardType = "streak"
)

// ParseLeaderboardType defaults to points for an empty string.
func ParseLeaderboardType(s string) (LeaderboardType, bool) {
	switch LeaderboardType(s) {
	case "", LeaderboardPoints:
		return LeaderboardPoints, true
	case LeaderboardLevel:
		return LeaderboardLevel, true
	case LeaderboardStreak:
		return LeaderboardStreak, true
	}
	return "", false
}

// LeaderboardEntry is one ranked learner.
type LeaderboardEntry struct {
	Rank          int64     `json:"rank"`
	UserID        uuid.UUID `json:"user_id"`
	Level         int       `json:"level"`
	Points        int64     `json:"points"`
	Experience    int64     `json:"experience"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
}

// Leaderboard is a ranked page plus the caller's own rank.
type Leaderboard struct {
	Type    LeaderboardType    `json:"type"`
	Entries []LeaderboardEntry `json:"entries"`
	MyRank  int64              `json:"my_rank,omitempty"`
}

// GamePeriod bounds the sessions a per-game leaderboard considers.
type GamePeriod string

const (
	GamePeriodDaily   GamePeriod = "daily"
	GamePeriodWeekly  GamePeriod = "weekly"
	GamePeriodMonthly GamePeriod = "monthly"
	GamePeriodAllTime GamePeriod = "all-time"
)

// ParseGamePeriod defaults to all-time for an empty string.
func ParseGamePeriod(s string) (GamePeriod, bool) {
	switch p := GamePeriod(s); p {
	case "":
		return GamePeriodAllTime, true
	case GamePeriodDaily, GamePeriodWeekly, GamePeriodMonthly, GamePeriodAllTime:
		return p, true
	}
	return "", false
}

// Since returns the earliest session time the period includes; zero means no
// bound. Daily starts at local midnight, weekly and monthly are rolling 7 and
// 30 day windows.
func (p GamePeriod) Since(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch p {
	case GamePeriodDaily:
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case GamePeriodWeekly:
		return now.AddDate(0, 0, -7)
	case GamePeriodMonthly:
		return now.AddDate(0, 0, -30)
	}
	return time.Time{}
}

// GameScoreEntry is one learner's best score on a game.
type GameScoreEntry struct {
	Rank   int64     `json:"rank"`
	UserID uuid.UUID `json:"user_id"`
	Score  int64     `json:"score"`
}

// GameLeaderboard ranks learners by their best score on one game.
type GameLeaderboard struct {
	GameID  uuid.UUID        `json:"game_id"`
	Period  GamePeriod       `json:"period"`
	Entries []GameScoreEntry `json:"entries"`
	MyRank  int64            `json:"my_rank"`
	MyScore int64            `json:"my_score"`
}
