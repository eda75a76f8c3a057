package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/activity"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/engine"
	"github.com/vyakaran/platform/internal/guard"
	"github.com/vyakaran/platform/internal/projection"
	"github.com/vyakaran/platform/internal/repository"
)

// TxRunner runs fn inside a transaction, retrying conflicts.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// Notifier pushes live updates to a learner's open streams.
type Notifier interface {
	Publish(userID uuid.UUID, event string, data interface{})
}

// Live notification names.
const (
	NotifyProgressUpdated = "progress.updated"
	NotifyLevelUp         = "level_up"
	NotifyStreakMilestone = "streak_milestone"
	NotifyZoneUnlocked    = "zone_unlocked"
)

// ProgressService orchestrates progress commands: the engine runs inside a
// retried transaction, then activity, projections and notifications follow.
type ProgressService struct {
	db          repository.DBTX
	tx          TxRunner
	engine      *engine.Engine
	states      repository.GameStateRepository
	completions repository.CompletionRepository
	recorder    *activity.Recorder
	store       projection.Store
	notifier    Notifier
	spendLimit  *guard.RateLimiter
	logger      *slog.Logger
}

// NewProgressService creates a ProgressService. spendLimit may be nil.
func NewProgressService(
	db repository.DBTX,
	tx TxRunner,
	eng *engine.Engine,
	states repository.GameStateRepository,
	completions repository.CompletionRepository,
	recorder *activity.Recorder,
	store projection.Store,
	notifier Notifier,
	spendLimit *guard.RateLimiter,
	logger *slog.Logger,
) *ProgressService {
	return &ProgressService{
		db:          db,
		tx:          tx,
		engine:      eng,
		states:      states,
		completions: completions,
		recorder:    recorder,
		store:       store,
		notifier:    notifier,
		spendLimit:  spendLimit,
		logger:      logger,
	}
}

type command func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error)

// execute runs cmd in a transaction and performs the post-commit steps.
func (s *ProgressService) execute(ctx context.Context, userID uuid.UUID, op string, cmd command) (*domain.CommandResult, error) {
	var result *domain.CommandResult
	err := s.tx.Run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		r, err := cmd(ctx, tx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		if errors.Is(err, domain.ErrStaleState) {
			return nil, domain.ErrConflict("progress changed concurrently, please retry")
		}
		s.logger.Error("progress command failed", "op", op, "user_id", userID, "error", err)
		return nil, domain.ErrInternal(fmt.Sprintf("%s failed", op), err)
	}

	s.afterCommit(ctx, userID, result)
	return result, nil
}

// afterCommit records activity, drops stale projections and notifies. None
// of these steps can fail the command. They run even if the caller has
// already gone away, since the commit has happened.
func (s *ProgressService) afterCommit(ctx context.Context, userID uuid.UUID, result *domain.CommandResult) {
	ctx = context.WithoutCancel(ctx)
	s.recorder.RecordAll(ctx, userID, result.Activities)

	if len(result.Events) == 0 {
		return
	}
	if err := projection.InvalidateGameState(ctx, s.store, userID, result.State.Version); err != nil {
		s.logger.Warn("game state projection invalidation failed", "user_id", userID, "error", err)
	}
	if err := projection.InvalidateLeaderboards(ctx, s.store); err != nil {
		s.logger.Warn("leaderboard invalidation failed", "error", err)
	}

	if s.notifier == nil {
		return
	}
	s.notifier.Publish(userID, NotifyProgressUpdated, result.Outcome)
	for _, e := range result.Events {
		switch e.EventType {
		case domain.EventLevelUp:
			s.notifier.Publish(userID, NotifyLevelUp, e.Payload)
		case domain.EventStreakMilestone:
			s.notifier.Publish(userID, NotifyStreakMilestone, e.Payload)
		case domain.EventZoneUnlocked:
			s.notifier.Publish(userID, NotifyZoneUnlocked, e.Payload)
		}
	}
}

// StartLesson opens a lesson attempt.
func (s *ProgressService) StartLesson(ctx context.Context, params domain.StartLessonParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "start lesson", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteStartLesson(ctx, tx, params)
	})
}

// CompleteLesson awards a finished lesson.
func (s *ProgressService) CompleteLesson(ctx context.Context, params domain.CompleteLessonParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "complete lesson", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteCompleteLesson(ctx, tx, params)
	})
}

// SubmitQuiz awards a quiz attempt.
func (s *ProgressService) SubmitQuiz(ctx context.Context, params domain.SubmitQuizParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "submit quiz", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteSubmitQuiz(ctx, tx, params)
	})
}

// EndGame awards a finished game session.
func (s *ProgressService) EndGame(ctx context.Context, params domain.EndGameParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "end game", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteEndGame(ctx, tx, params)
	})
}

// SubmitWriting awards a writing submission.
func (s *ProgressService) SubmitWriting(ctx context.Context, params domain.SubmitWritingParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "submit writing", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteSubmitWriting(ctx, tx, params)
	})
}

// StartQuest marks a quest active.
func (s *ProgressService) StartQuest(ctx context.Context, params domain.QuestParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "start quest", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteStartQuest(ctx, tx, params)
	})
}

// CompleteQuest pays out an active quest.
func (s *ProgressService) CompleteQuest(ctx context.Context, params domain.QuestParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "complete quest", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteCompleteQuest(ctx, tx, params)
	})
}

// GrantAchievement marks an achievement earned.
func (s *ProgressService) GrantAchievement(ctx context.Context, params domain.AchievementParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "grant achievement", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteGrantAchievement(ctx, tx, params)
	})
}

// ClaimAchievement pays out an earned achievement once.
func (s *ProgressService) ClaimAchievement(ctx context.Context, params domain.AchievementParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "claim achievement", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteClaimAchievement(ctx, tx, params)
	})
}

// AddPoints credits points directly.
func (s *ProgressService) AddPoints(ctx context.Context, params domain.AddPointsParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "add points", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteAddPoints(ctx, tx, params)
	})
}

// EarnCoins credits coins directly.
func (s *ProgressService) EarnCoins(ctx context.Context, params domain.EarnCoinsParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "earn coins", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteEarnCoins(ctx, tx, params)
	})
}

// SpendCoins debits coins, subject to the per-learner spend rate limit.
func (s *ProgressService) SpendCoins(ctx context.Context, params domain.SpendCoinsParams) (*domain.CommandResult, error) {
	if s.spendLimit != nil {
		if check := s.spendLimit.Check(ctx, "spend:"+params.UserID.String()); !check.Allowed {
			return nil, domain.ErrRateLimitedFor("too many purchases, slow down", check.RetryAfter)
		}
	}
	return s.execute(ctx, params.UserID, "spend coins", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteSpendCoins(ctx, tx, params)
	})
}

// UnlockZone opens a village zone.
func (s *ProgressService) UnlockZone(ctx context.Context, params domain.UnlockZoneParams) (*domain.CommandResult, error) {
	return s.execute(ctx, params.UserID, "unlock zone", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteUnlockZone(ctx, tx, params)
	})
}

// UpdateStreak records today's activity.
func (s *ProgressService) UpdateStreak(ctx context.Context, userID uuid.UUID) (*domain.CommandResult, error) {
	return s.execute(ctx, userID, "update streak", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteUpdateStreak(ctx, tx, userID)
	})
}

// ResetStreak zeroes the current streak.
func (s *ProgressService) ResetStreak(ctx context.Context, userID uuid.UUID) (*domain.CommandResult, error) {
	return s.execute(ctx, userID, "reset streak", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteResetStreak(ctx, tx, userID)
	})
}

// ResetProgress restores the default game state.
func (s *ProgressService) ResetProgress(ctx context.Context, userID uuid.UUID) (*domain.CommandResult, error) {
	return s.execute(ctx, userID, "reset progress", func(ctx context.Context, tx pgx.Tx) (*domain.CommandResult, error) {
		return s.engine.ExecuteResetProgress(ctx, tx, userID)
	})
}
