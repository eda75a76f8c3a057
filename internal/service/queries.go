package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/projection"
)

// Leaderboard page limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = projection.LeaderboardDepth
)

// GetGameState returns the learner's state, creating the default record on
// first touch. Reads go through the projection cache.
func (s *ProgressService) GetGameState(ctx context.Context, userID uuid.UUID) (*domain.GameState, error) {
	state, err := projection.GetGameState(ctx, s.store, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, projection.ErrMiss) {
		s.logger.Warn("game state projection read failed", "user_id", userID, "error", err)
	}

	state, err = s.engine.GetGameState(ctx, s.db, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load game state", err)
	}
	if err := projection.PutGameState(ctx, s.store, state); err != nil {
		s.logger.Warn("game state projection fill failed", "user_id", userID, "error", err)
	}
	return state, nil
}

// Leaderboard returns the top learners for the ordering plus the caller's rank.
func (s *ProgressService) Leaderboard(ctx context.Context, userID uuid.UUID, by domain.LeaderboardType, limit int) (*domain.Leaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	entries, err := projection.GetLeaderboard(ctx, s.store, by, limit)
	if err != nil {
		if !errors.Is(err, projection.ErrMiss) {
			s.logger.Warn("leaderboard projection read failed", "type", by, "error", err)
		}
		full, err := s.states.Leaderboard(ctx, s.db, by, projection.LeaderboardDepth)
		if err != nil {
			return nil, domain.ErrInternal("failed to load leaderboard", err)
		}
		if err := projection.PutLeaderboard(ctx, s.store, by, full); err != nil {
			s.logger.Warn("leaderboard projection fill failed", "type", by, "error", err)
		}
		entries = full
		if len(entries) > limit {
			entries = entries[:limit]
		}
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	board := &domain.Leaderboard{Type: by, Entries: entries}
	if userID != uuid.Nil {
		rank, err := s.states.Rank(ctx, s.db, userID, by)
		if err != nil {
			return nil, domain.ErrInternal("failed to load rank", err)
		}
		board.MyRank = rank
	}
	return board, nil
}

// GameLeaderboard ranks learners by their best score on one game within period.
func (s *ProgressService) GameLeaderboard(ctx context.Context, userID, gameID uuid.UUID, period domain.GamePeriod, limit int) (*domain.GameLeaderboard, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	board, err := s.engine.GameLeaderboard(ctx, s.db, userID, gameID, period, limit)
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("failed to load game leaderboard", err)
	}
	return board, nil
}

// StatsOverview summarizes a learner's progress for the dashboard.
type StatsOverview struct {
	Level                   int                     `json:"level"`
	Points                  int64                   `json:"points"`
	Coins                   int64                   `json:"coins"`
	Experience              int64                   `json:"experience"`
	ExperienceToNextLevel   int64                   `json:"experience_to_next_level"`
	CurrentStreak           int                     `json:"current_streak"`
	LongestStreak           int                     `json:"longest_streak"`
	Accuracy                float64                 `json:"accuracy"`
	TotalCorrectAnswers     int64                   `json:"total_correct_answers"`
	TotalQuestionsAttempted int64                   `json:"total_questions_attempted"`
	TotalTimeSpent          int64                   `json:"total_time_spent"`
	ZonesUnlocked           int                     `json:"zones_unlocked"`
	AchievementsClaimed     int                     `json:"achievements_claimed"`
	ActiveDays              int64                   `json:"active_days"`
	PointsRank              int64                   `json:"points_rank"`
	Completion              domain.CompletionCounts `json:"completion"`
}

// Stats builds the learner's overview from the state, completion records and activity log.
func (s *ProgressService) Stats(ctx context.Context, userID uuid.UUID) (*StatsOverview, error) {
	state, err := s.GetGameState(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.completions.Counts(ctx, s.db, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load completion counts", err)
	}
	days, err := s.recorder.ActiveDays(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load active days", err)
	}
	rank, err := s.states.Rank(ctx, s.db, userID, domain.LeaderboardPoints)
	if err != nil {
		return nil, domain.ErrInternal("failed to load rank", err)
	}

	return &StatsOverview{
		Level:                   state.Level,
		Points:                  state.Points,
		Coins:                   state.Coins,
		Experience:              state.Experience,
		ExperienceToNextLevel:   state.ExperienceToNextLevel,
		CurrentStreak:           state.CurrentStreak,
		LongestStreak:           state.LongestStreak,
		Accuracy:                state.Accuracy(),
		TotalCorrectAnswers:     state.TotalCorrectAnswers,
		TotalQuestionsAttempted: state.TotalQuestionsAttempted,
		TotalTimeSpent:          state.TotalTimeSpent,
		ZonesUnlocked:           state.UnlockedZones.Len(),
		AchievementsClaimed:     state.Achievements.Len(),
		ActiveDays:              days,
		PointsRank:              rank,
		Completion:              counts,
	}, nil
}

// Activity returns the learner's history newest first.
func (s *ProgressService) Activity(ctx context.Context, userID uuid.UUID, filter domain.ActivityFilter) ([]domain.ActivityEvent, error) {
	events, err := s.recorder.Query(ctx, userID, filter)
	if err != nil {
		return nil, domain.ErrInternal("failed to load activity", err)
	}
	return events, nil
}
