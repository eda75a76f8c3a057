package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
	"github.com/vyakaran/platform/internal/repository"
)

// ExecuteEndGame stores a finished game session, flags a personal best and
// awards base + score/10 points and base + score/20 coins.
func (e *Engine) ExecuteEndGame(ctx context.Context, tx pgx.Tx, params domain.EndGameParams) (*domain.CommandResult, error) {
	if err := domain.ValidateGameScore(params.Score); err != nil {
		return nil, invalid(err)
	}
	if err := domain.ValidateTimeSpent(params.TimeSpent); err != nil {
		return nil, invalid(err)
	}

	game, err := e.content.FindGame(ctx, tx, params.GameID)
	if err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	if game == nil || !game.Active {
		return nil, domain.ErrNotFound("game", params.GameID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	result := &domain.CommandResult{State: state}

	reward, err := progression.ComputeReward(progression.RewardGame, params.Score,
		progression.Baseline{Points: game.BasePoints, Coins: game.BaseCoins})
	if err != nil {
		return nil, invalid(err)
	}
	if err := e.credit(result, reward); err != nil {
		return nil, err
	}
	if err := e.touchStreak(result); err != nil {
		return nil, err
	}
	state.AddTimeSpent(params.TimeSpent)

	best, played, err := e.records.BestGameScore(ctx, tx, params.UserID, game.ID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	session := &domain.GameSession{
		ID:          uuid.New(),
		UserID:      params.UserID,
		GameID:      game.ID,
		Score:       params.Score,
		IsHighScore: !played || params.Score > best,
		TimeSpent:   params.TimeSpent,
		Stats:       ensureJSON(params.Stats),
		CreatedAt:   e.now(),
	}
	if err := e.records.InsertGameSession(ctx, tx, session); err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	result.Session = session

	above, err := e.records.PlayersAbove(ctx, tx, game.ID, params.Score, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	result.Ranking = above + 1

	result.Record(domain.ActivityGamePlayed, fmt.Sprintf("Played %s: score %d", game.Name, params.Score), map[string]interface{}{
		"game_id":        game.ID.String(),
		"score":          params.Score,
		"is_high_score":  session.IsHighScore,
		"points_awarded": reward.Points,
		"coins_awarded":  reward.Coins,
	})

	if err := e.CommitGameState(ctx, tx, result, "game"); err != nil {
		return nil, fmt.Errorf("end game commit: %w", err)
	}
	return result, nil
}

// GameLeaderboard ranks learners by their best score on an active game within
// the period, plus the caller's own best and place.
func (e *Engine) GameLeaderboard(ctx context.Context, db repository.DBTX, userID, gameID uuid.UUID, period domain.GamePeriod, limit int) (*domain.GameLeaderboard, error) {
	game, err := e.content.FindGame(ctx, db, gameID)
	if err != nil {
		return nil, fmt.Errorf("game leaderboard: %w", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", gameID.String())
	}

	since := period.Since(e.now(), e.loc)
	entries, err := e.records.GameLeaderboard(ctx, db, game.ID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("game leaderboard: %w", err)
	}
	if entries == nil {
		entries = []domain.GameScoreEntry{}
	}
	board := &domain.GameLeaderboard{GameID: game.ID, Period: period, Entries: entries}

	best, played, err := e.records.BestGameScore(ctx, db, userID, game.ID, since)
	if err != nil {
		return nil, fmt.Errorf("game leaderboard: %w", err)
	}
	if !played {
		return board, nil
	}
	above, err := e.records.PlayersAbove(ctx, db, game.ID, best, since)
	if err != nil {
		return nil, fmt.Errorf("game leaderboard: %w", err)
	}
	board.MyRank = above + 1
	board.MyScore = best
	return board, nil
}
