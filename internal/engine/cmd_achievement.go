package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
)

// ExecuteGrantAchievement marks an achievement earned so its reward can be
// claimed. Granting twice is a no-op.
func (e *Engine) ExecuteGrantAchievement(ctx context.Context, tx pgx.Tx, params domain.AchievementParams) (*domain.CommandResult, error) {
	achievement, err := e.content.FindAchievement(ctx, tx, params.AchievementID)
	if err != nil {
		return nil, fmt.Errorf("grant achievement: %w", err)
	}
	if achievement == nil {
		return nil, domain.ErrNotFound("achievement", params.AchievementID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("grant achievement: %w", err)
	}
	result := &domain.CommandResult{State: state}

	granted, err := e.records.GrantAchievement(ctx, tx, &domain.UserAchievement{
		UserID:        params.UserID,
		AchievementID: achievement.ID,
		EarnedAt:      e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("grant achievement: %w", err)
	}
	if granted {
		result.Record(domain.ActivityAchievement, fmt.Sprintf("Earned achievement: %s", achievement.Name), map[string]interface{}{
			"achievement_id": achievement.ID.String(),
		})
	}
	result.Finalize()
	return result, nil
}

// ExecuteClaimAchievement pays the reward of an earned, unclaimed achievement.
func (e *Engine) ExecuteClaimAchievement(ctx context.Context, tx pgx.Tx, params domain.AchievementParams) (*domain.CommandResult, error) {
	achievement, err := e.content.FindAchievement(ctx, tx, params.AchievementID)
	if err != nil {
		return nil, fmt.Errorf("claim achievement: %w", err)
	}
	if achievement == nil {
		return nil, domain.ErrNotFound("achievement", params.AchievementID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("claim achievement: %w", err)
	}

	earned, err := e.records.FindUserAchievement(ctx, tx, params.UserID, achievement.ID)
	if err != nil {
		return nil, fmt.Errorf("claim achievement: %w", err)
	}
	if earned == nil {
		return nil, domain.ErrNotFound("earned achievement", achievement.ID.String())
	}
	if earned.RewardsClaimed {
		return nil, domain.ErrConflict("rewards already claimed")
	}
	result := &domain.CommandResult{State: state}

	reward, err := progression.ComputeReward(progression.RewardAchievement, 0,
		progression.Baseline{Points: achievement.PointsReward, Coins: achievement.CoinsReward})
	if err != nil {
		return nil, invalid(err)
	}
	if err := e.credit(result, reward); err != nil {
		return nil, err
	}
	state.Achievements.Add(achievement.ID.String())

	now := e.now()
	earned.RewardsClaimed = true
	earned.ClaimedAt = &now
	if err := e.records.MarkAchievementClaimed(ctx, tx, earned); err != nil {
		return nil, fmt.Errorf("claim achievement: %w", err)
	}

	result.Record(domain.ActivityPointsEarned, fmt.Sprintf("Achievement reward: %s", achievement.Name), map[string]interface{}{
		"achievement_id": achievement.ID.String(),
		"points":         reward.Points,
		"coins":          reward.Coins,
	})

	if err := e.CommitGameState(ctx, tx, result, "achievement"); err != nil {
		return nil, fmt.Errorf("claim achievement commit: %w", err)
	}
	return result, nil
}
