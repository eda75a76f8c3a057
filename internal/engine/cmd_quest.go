package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
)

// ExecuteStartQuest opens quest progress for a learner who meets the level gate.
// A completed quest may be started again; an active one may not.
func (e *Engine) ExecuteStartQuest(ctx context.Context, tx pgx.Tx, params domain.QuestParams) (*domain.CommandResult, error) {
	quest, err := e.content.FindQuest(ctx, tx, params.QuestID)
	if err != nil {
		return nil, fmt.Errorf("start quest: %w", err)
	}
	if quest == nil || !quest.Active {
		return nil, domain.ErrNotFound("quest", params.QuestID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("start quest: %w", err)
	}
	if state.Level < quest.MinLevel {
		return nil, domain.ErrValidation(fmt.Sprintf("level %d required", quest.MinLevel))
	}

	progress, err := e.records.FindQuestProgress(ctx, tx, params.UserID, quest.ID)
	if err != nil {
		return nil, fmt.Errorf("start quest: %w", err)
	}
	if progress != nil && progress.Status == domain.QuestActive {
		return nil, domain.ErrConflict("quest already in progress")
	}
	if progress == nil {
		progress = &domain.QuestProgress{UserID: params.UserID, QuestID: quest.ID}
	}
	progress.Status = domain.QuestActive
	progress.StartedAt = e.now()
	progress.CompletedAt = nil
	if err := e.records.UpsertQuestProgress(ctx, tx, progress); err != nil {
		return nil, fmt.Errorf("start quest: %w", err)
	}

	result := &domain.CommandResult{State: state, Quest: progress}
	result.Record(domain.ActivityQuestStarted, fmt.Sprintf("Started quest: %s", quest.Title), map[string]interface{}{
		"quest_id": quest.ID.String(),
	})
	result.Finalize()
	return result, nil
}

// ExecuteCompleteQuest closes an active quest and pays its full reward plus
// the experience bonus. Requirements are not evaluated here.
func (e *Engine) ExecuteCompleteQuest(ctx context.Context, tx pgx.Tx, params domain.QuestParams) (*domain.CommandResult, error) {
	quest, err := e.content.FindQuest(ctx, tx, params.QuestID)
	if err != nil {
		return nil, fmt.Errorf("complete quest: %w", err)
	}
	if quest == nil {
		return nil, domain.ErrNotFound("quest", params.QuestID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("complete quest: %w", err)
	}

	progress, err := e.records.FindQuestProgress(ctx, tx, params.UserID, quest.ID)
	if err != nil {
		return nil, fmt.Errorf("complete quest: %w", err)
	}
	if progress == nil || progress.Status != domain.QuestActive {
		return nil, domain.ErrNotFound("quest progress", quest.ID.String())
	}
	result := &domain.CommandResult{State: state}

	reward, err := progression.ComputeReward(progression.RewardQuest, 0,
		progression.Baseline{Points: quest.PointsReward, Coins: quest.CoinsReward})
	if err != nil {
		return nil, invalid(err)
	}
	if err := e.credit(result, reward); err != nil {
		return nil, err
	}
	if quest.ExperienceReward > 0 {
		change, err := progression.AddExperience(state, quest.ExperienceReward)
		if err != nil {
			return nil, err
		}
		result.Outcome.ExperienceAwarded = quest.ExperienceReward
		e.noteLevelChange(result, change)
	}

	now := e.now()
	progress.Status = domain.QuestCompleted
	progress.CompletedAt = &now
	if err := e.records.UpsertQuestProgress(ctx, tx, progress); err != nil {
		return nil, fmt.Errorf("complete quest: %w", err)
	}
	result.Quest = progress

	result.Record(domain.ActivityQuestCompleted, fmt.Sprintf("Completed quest: %s", quest.Title), map[string]interface{}{
		"quest_id":           quest.ID.String(),
		"points_awarded":     reward.Points,
		"coins_awarded":      reward.Coins,
		"experience_awarded": quest.ExperienceReward,
	})

	if err := e.CommitGameState(ctx, tx, result, "quest"); err != nil {
		return nil, fmt.Errorf("complete quest commit: %w", err)
	}
	return result, nil
}
