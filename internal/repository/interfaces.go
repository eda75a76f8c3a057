package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vyakaran/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// GameStateRepository provides access to game_states.
type GameStateRepository interface {
	// EnsureExists inserts a default row for the user if none exists.
	EnsureExists(ctx context.Context, db DBTX, userID uuid.UUID) error

	// FindByUserID returns the user's game state, or nil if absent.
	FindByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.GameState, error)

	// LockForUpdate acquires a row-level lock (SELECT FOR UPDATE) and returns the state.
	LockForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.GameState, error)

	// Update writes every mutable column guarded by the version counter.
	// Returns domain.ErrStaleState when the row moved on; bumps state.Version on success.
	Update(ctx context.Context, tx pgx.Tx, state *domain.GameState) error

	// Leaderboard returns the top learners for the given ordering.
	Leaderboard(ctx context.Context, db DBTX, by domain.LeaderboardType, limit int) ([]domain.LeaderboardEntry, error)

	// Rank returns 1 + the number of learners strictly ahead of the user.
	Rank(ctx context.Context, db DBTX, userID uuid.UUID, by domain.LeaderboardType) (int64, error)
}

// ActivityRepository provides access to the append-only activity_events table.
type ActivityRepository interface {
	// Insert appends one event.
	Insert(ctx context.Context, db DBTX, event *domain.ActivityEvent) error

	// List returns the user's events, newest first.
	List(ctx context.Context, db DBTX, userID uuid.UUID, filter domain.ActivityFilter) ([]domain.ActivityEvent, error)

	// ActiveDays counts the distinct calendar days with any activity.
	ActiveDays(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error)
}

// ContentRepository reads the curriculum catalog.
type ContentRepository interface {
	FindLesson(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Lesson, error)

	// NextLesson returns the next published lesson after the given one, or nil.
	NextLesson(ctx context.Context, db DBTX, lesson *domain.Lesson) (*domain.Lesson, error)

	FindQuiz(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Quiz, error)
	FindGame(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error)
	FindQuest(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Quest, error)
	FindAchievement(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Achievement, error)
	FindWritingPrompt(ctx context.Context, db DBTX, id uuid.UUID) (*domain.WritingPrompt, error)
}

// CompletionRepository records what a learner did with each piece of content.
type CompletionRepository interface {
	FindLessonProgress(ctx context.Context, db DBTX, userID, lessonID uuid.UUID) (*domain.LessonProgress, error)
	UpsertLessonProgress(ctx context.Context, db DBTX, p *domain.LessonProgress) error

	InsertQuizResult(ctx context.Context, db DBTX, r *domain.QuizResult) error

	// BestGameScore returns the highest score recorded at or after since (zero
	// for all time) and whether any such session exists.
	BestGameScore(ctx context.Context, db DBTX, userID, gameID uuid.UUID, since time.Time) (int64, bool, error)
	InsertGameSession(ctx context.Context, db DBTX, s *domain.GameSession) error

	// GameLeaderboard ranks learners by their best score on a game since the given time.
	GameLeaderboard(ctx context.Context, db DBTX, gameID uuid.UUID, since time.Time, limit int) ([]domain.GameScoreEntry, error)

	// PlayersAbove counts distinct learners with a session scoring above score since the given time.
	PlayersAbove(ctx context.Context, db DBTX, gameID uuid.UUID, score int64, since time.Time) (int64, error)

	FindQuestProgress(ctx context.Context, db DBTX, userID, questID uuid.UUID) (*domain.QuestProgress, error)
	UpsertQuestProgress(ctx context.Context, db DBTX, p *domain.QuestProgress) error

	FindUserAchievement(ctx context.Context, db DBTX, userID, achievementID uuid.UUID) (*domain.UserAchievement, error)
	// GrantAchievement records an earned achievement; returns false if it was already earned.
	GrantAchievement(ctx context.Context, db DBTX, ua *domain.UserAchievement) (bool, error)
	MarkAchievementClaimed(ctx context.Context, db DBTX, ua *domain.UserAchievement) error

	InsertWritingSubmission(ctx context.Context, db DBTX, s *domain.WritingSubmission) error

	// Counts summarizes the user's completion records.
	Counts(ctx context.Context, db DBTX, userID uuid.UUID) (domain.CompletionCounts, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the state change).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the relay, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRecord, error)

	// MarkPublished stamps events as published.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
