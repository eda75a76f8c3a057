package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Lesson is a curriculum lesson with its completion reward baseline.
type Lesson struct {
	ID           uuid.UUID `json:"id"`
	Slug         string    `json:"slug"`
	Title        string    `json:"title"`
	SortOrder    int       `json:"sort_order"`
	PointsReward int64     `json:"points_reward"`
	CoinsReward  int64     `json:"coins_reward"`
	Published    bool      `json:"published"`
}

// LessonProgress tracks a learner's attempts on one lesson.
type LessonProgress struct {
	UserID      uuid.UUID  `json:"user_id"`
	LessonID    uuid.UUID  `json:"lesson_id"`
	Status      string     `json:"status"` // in_progress, completed
	Score       int        `json:"score"`
	BestScore   int        `json:"best_score"`
	Attempts    int        `json:"attempts"`
	TimeSpent   int64      `json:"time_spent"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Lesson progress statuses.
const (
	LessonInProgress = "in_progress"
	LessonCompleted  = "completed"
)

// Quiz is a graded question set attached to a lesson.
type Quiz struct {
	ID             uuid.UUID  `json:"id"`
	LessonID       *uuid.UUID `json:"lesson_id,omitempty"`
	Title          string     `json:"title"`
	PointsReward   int64      `json:"points_reward"`
	CoinsReward    int64      `json:"coins_reward"`
	PassPercentage int        `json:"pass_percentage"`
	Published      bool       `json:"published"`
}

// QuizResult is one graded quiz submission.
type QuizResult struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	QuizID     uuid.UUID `json:"quiz_id"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
	Passed     bool      `json:"passed"`
	TimeSpent  int64     `json:"time_spent"`
	CreatedAt  time.Time `json:"created_at"`
}

// Game is a mini-game with base rewards.
type Game struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	BasePoints int64     `json:"base_points"`
	BaseCoins  int64     `json:"base_coins"`
	Active     bool      `json:"active"`
}

// GameSession records one finished play of a game.
type GameSession struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	GameID      uuid.UUID       `json:"game_id"`
	Score       int64           `json:"score"`
	IsHighScore bool            `json:"is_high_score"`
	TimeSpent   int64           `json:"time_spent"`
	Stats       json.RawMessage `json:"stats"`
	CreatedAt   time.Time       `json:"created_at"`
}

// WritingPrompt is a free-writing exercise.
type WritingPrompt struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	MinWords     int       `json:"min_words"`
	PointsReward int64     `json:"points_reward"`
	CoinsReward  int64     `json:"coins_reward"`
	Active       bool      `json:"active"`
}

// WritingSubmission stores a submitted text and its placeholder score.
type WritingSubmission struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	PromptID  uuid.UUID `json:"prompt_id"`
	Content   string    `json:"content"`
	WordCount int       `json:"word_count"`
	Score     int       `json:"score"`
	TimeSpent int64     `json:"time_spent"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionCounts summarizes a learner's stored completion records.
type CompletionCounts struct {
	LessonsCompleted   int64 `json:"lessons_completed"`
	QuizzesTaken       int64 `json:"quizzes_taken"`
	QuizzesPassed      int64 `json:"quizzes_passed"`
	GamesPlayed        int64 `json:"games_played"`
	QuestsCompleted    int64 `json:"quests_completed"`
	WritingSubmissions int64 `json:"writing_submissions"`
}
