package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
)

// ExecuteAddPoints credits points and experience directly.
func (e *Engine) ExecuteAddPoints(ctx context.Context, tx pgx.Tx, params domain.AddPointsParams) (*domain.CommandResult, error) {
	if err := domain.ValidateAmount(params.Amount); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(params.Reason)

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("add points: %w", err)
	}
	result := &domain.CommandResult{State: state}

	change, err := progression.AddPoints(state, params.Amount)
	if err != nil {
		return nil, err
	}
	result.Outcome.PointsAwarded = params.Amount
	result.Record(domain.ActivityPointsEarned, fmt.Sprintf("Earned %d points: %s", params.Amount, reason), map[string]interface{}{
		"points": params.Amount,
		"reason": reason,
	})
	e.noteLevelChange(result, change)

	if err := e.CommitGameState(ctx, tx, result, "points"); err != nil {
		return nil, fmt.Errorf("add points commit: %w", err)
	}
	return result, nil
}

// ExecuteEarnCoins credits coins from an external source.
func (e *Engine) ExecuteEarnCoins(ctx context.Context, tx pgx.Tx, params domain.EarnCoinsParams) (*domain.CommandResult, error) {
	if err := domain.ValidateAmount(params.Amount); err != nil {
		return nil, err
	}
	source := strings.TrimSpace(params.Source)

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("earn coins: %w", err)
	}
	result := &domain.CommandResult{State: state}

	if err := progression.Earn(state, params.Amount); err != nil {
		return nil, err
	}
	result.Outcome.CoinsAwarded = params.Amount
	result.Record(domain.ActivityCoinsEarned, fmt.Sprintf("Earned %d coins from %s", params.Amount, source), map[string]interface{}{
		"coins":  params.Amount,
		"source": source,
	})

	if err := e.CommitGameState(ctx, tx, result, "coins"); err != nil {
		return nil, fmt.Errorf("earn coins commit: %w", err)
	}
	return result, nil
}

// ExecuteSpendCoins debits coins for an item. An overspend fails with
// INSUFFICIENT_FUNDS and leaves the stored balance untouched.
func (e *Engine) ExecuteSpendCoins(ctx context.Context, tx pgx.Tx, params domain.SpendCoinsParams) (*domain.CommandResult, error) {
	if err := domain.ValidateAmount(params.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.ItemID) == "" {
		return nil, domain.ErrValidation("item_id is required")
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("spend coins: %w", err)
	}
	result := &domain.CommandResult{State: state}

	if err := progression.Spend(state, params.Amount); err != nil {
		return nil, err
	}
	result.Events = append(result.Events, domain.NewCoinsSpentEvent(state.UserID, params.Amount, params.ItemID, params.ItemType))
	result.Record(domain.ActivityCoinsSpent, fmt.Sprintf("Spent %d coins on %s", params.Amount, params.ItemType), map[string]interface{}{
		"amount":    params.Amount,
		"item_id":   params.ItemID,
		"item_type": params.ItemType,
	})

	if err := e.CommitGameState(ctx, tx, result, "spend"); err != nil {
		return nil, fmt.Errorf("spend coins commit: %w", err)
	}
	return result, nil
}

// ExecuteUnlockZone adds a village zone to the unlocked set.
func (e *Engine) ExecuteUnlockZone(ctx context.Context, tx pgx.Tx, params domain.UnlockZoneParams) (*domain.CommandResult, error) {
	if err := domain.ValidateZoneID(params.ZoneID); err != nil {
		return nil, invalid(err)
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("unlock zone: %w", err)
	}
	result := &domain.CommandResult{State: state}

	if !state.UnlockedZones.Add(params.ZoneID) {
		return nil, domain.ErrConflict(fmt.Sprintf("zone %s already unlocked", params.ZoneID))
	}
	result.Events = append(result.Events, domain.NewZoneUnlockedEvent(state.UserID, params.ZoneID))
	result.Record(domain.ActivityZoneUnlocked, fmt.Sprintf("Unlocked zone: %s", params.ZoneID), map[string]interface{}{
		"zone_id": params.ZoneID,
	})

	if err := e.CommitGameState(ctx, tx, result, "zone"); err != nil {
		return nil, fmt.Errorf("unlock zone commit: %w", err)
	}
	return result, nil
}

// ExecuteUpdateStreak records activity for today without any other reward.
func (e *Engine) ExecuteUpdateStreak(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.CommandResult, error) {
	state, err := e.LockGameState(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("update streak: %w", err)
	}
	result := &domain.CommandResult{State: state}

	if err := e.touchStreak(result); err != nil {
		return nil, err
	}

	if err := e.CommitGameState(ctx, tx, result, "streak"); err != nil {
		return nil, fmt.Errorf("update streak commit: %w", err)
	}
	return result, nil
}

// ExecuteResetStreak zeroes the current streak.
func (e *Engine) ExecuteResetStreak(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.CommandResult, error) {
	state, err := e.LockGameState(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("reset streak: %w", err)
	}
	result := &domain.CommandResult{State: state}

	progression.ResetStreak(state)

	if err := e.CommitGameState(ctx, tx, result, "streak_reset"); err != nil {
		return nil, fmt.Errorf("reset streak commit: %w", err)
	}
	return result, nil
}

// ExecuteResetProgress replaces the game state with defaults. Activity
// history and completion records are kept.
func (e *Engine) ExecuteResetProgress(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.CommandResult, error) {
	state, err := e.LockGameState(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("reset progress: %w", err)
	}
	result := &domain.CommandResult{State: state}

	state.Reset(e.now())
	result.Events = append(result.Events, domain.NewProgressResetEvent(userID))
	result.Record(domain.ActivityProfileUpdated, "Progress reset", map[string]interface{}{
		"action": "reset_progress",
	})

	if err := e.CommitGameState(ctx, tx, result, "reset"); err != nil {
		return nil, fmt.Errorf("reset progress commit: %w", err)
	}
	return result, nil
}
