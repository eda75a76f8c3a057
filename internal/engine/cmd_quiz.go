package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
)

// ExecuteSubmitQuiz grades a quiz from the reported counts, stores the result
// and awards floor(base * correct / total).
func (e *Engine) ExecuteSubmitQuiz(ctx context.Context, tx pgx.Tx, params domain.SubmitQuizParams) (*domain.CommandResult, error) {
	if err := domain.ValidateQuizCounts(params.Correct, params.Total); err != nil {
		return nil, invalid(err)
	}
	if err := domain.ValidateTimeSpent(params.TimeSpent); err != nil {
		return nil, invalid(err)
	}

	quiz, err := e.content.FindQuiz(ctx, tx, params.QuizID)
	if err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	if quiz == nil || !quiz.Published {
		return nil, domain.ErrNotFound("quiz", params.QuizID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	result := &domain.CommandResult{State: state}

	reward := progression.QuizReward(progression.Baseline{Points: quiz.PointsReward, Coins: quiz.CoinsReward},
		params.Correct, params.Total)
	if err := e.credit(result, reward); err != nil {
		return nil, err
	}
	if err := e.touchStreak(result); err != nil {
		return nil, err
	}
	state.TotalCorrectAnswers += int64(params.Correct)
	state.TotalQuestionsAttempted += int64(params.Total)
	state.AddTimeSpent(params.TimeSpent)

	quizResult := &domain.QuizResult{
		ID:         uuid.New(),
		UserID:     params.UserID,
		QuizID:     quiz.ID,
		Correct:    params.Correct,
		Total:      params.Total,
		Percentage: progression.QuizPercentage(params.Correct, params.Total),
		Passed:     progression.QuizPassed(params.Correct, params.Total, quiz.PassPercentage),
		TimeSpent:  params.TimeSpent,
		CreatedAt:  e.now(),
	}
	if err := e.records.InsertQuizResult(ctx, tx, quizResult); err != nil {
		return nil, fmt.Errorf("submit quiz: %w", err)
	}
	result.Quiz = quizResult

	result.Record(domain.ActivityQuizComplete, fmt.Sprintf("Completed quiz %s: %d/%d", quiz.Title, params.Correct, params.Total), map[string]interface{}{
		"quiz_id":        quiz.ID.String(),
		"correct":        params.Correct,
		"total":          params.Total,
		"percentage":     quizResult.Percentage,
		"passed":         quizResult.Passed,
		"points_awarded": reward.Points,
	})

	if err := e.CommitGameState(ctx, tx, result, "quiz"); err != nil {
		return nil, fmt.Errorf("submit quiz commit: %w", err)
	}
	return result, nil
}
