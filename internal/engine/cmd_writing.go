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

// ExecuteSubmitWriting scores a submission with the word-count placeholder and
// awards the prompt baseline scaled by that score.
func (e *Engine) ExecuteSubmitWriting(ctx context.Context, tx pgx.Tx, params domain.SubmitWritingParams) (*domain.CommandResult, error) {
	if err := domain.ValidateTimeSpent(params.TimeSpent); err != nil {
		return nil, invalid(err)
	}
	wordCount := params.WordCount
	if wordCount <= 0 {
		wordCount = len(strings.Fields(params.Content))
	}
	if wordCount == 0 {
		return nil, domain.ErrValidation("submission is empty")
	}

	prompt, err := e.content.FindWritingPrompt(ctx, tx, params.PromptID)
	if err != nil {
		return nil, fmt.Errorf("submit writing: %w", err)
	}
	if prompt == nil || !prompt.Active {
		return nil, domain.ErrNotFound("writing prompt", params.PromptID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("submit writing: %w", err)
	}
	result := &domain.CommandResult{State: state}

	score := progression.WritingScore(wordCount, prompt.MinWords)
	reward, err := progression.ComputeReward(progression.RewardWriting, int64(score),
		progression.Baseline{Points: prompt.PointsReward, Coins: prompt.CoinsReward})
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

	submission := &domain.WritingSubmission{
		ID:        uuid.New(),
		UserID:    params.UserID,
		PromptID:  prompt.ID,
		Content:   params.Content,
		WordCount: wordCount,
		Score:     score,
		TimeSpent: params.TimeSpent,
		CreatedAt: e.now(),
	}
	if err := e.records.InsertWritingSubmission(ctx, tx, submission); err != nil {
		return nil, fmt.Errorf("submit writing: %w", err)
	}
	result.Submission = submission

	result.Record(domain.ActivityWritingSubmitted, fmt.Sprintf("Submitted writing for %s", prompt.Title), map[string]interface{}{
		"prompt_id":      prompt.ID.String(),
		"word_count":     wordCount,
		"score":          score,
		"points_awarded": reward.Points,
	})

	if err := e.CommitGameState(ctx, tx, result, "writing"); err != nil {
		return nil, fmt.Errorf("submit writing commit: %w", err)
	}
	return result, nil
}
