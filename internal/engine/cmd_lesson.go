package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
)

// ExecuteStartLesson opens an attempt on a published lesson: progress goes to
// in_progress and the attempt is counted. Nothing is awarded, so the game
// state is only locked to serialize the learner's writes.
func (e *Engine) ExecuteStartLesson(ctx context.Context, tx pgx.Tx, params domain.StartLessonParams) (*domain.CommandResult, error) {
	lesson, err := e.content.FindLesson(ctx, tx, params.LessonID)
	if err != nil {
		return nil, fmt.Errorf("start lesson: %w", err)
	}
	if lesson == nil || !lesson.Published {
		return nil, domain.ErrNotFound("lesson", params.LessonID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("start lesson: %w", err)
	}

	progress, err := e.records.FindLessonProgress(ctx, tx, params.UserID, lesson.ID)
	if err != nil {
		return nil, fmt.Errorf("start lesson: %w", err)
	}
	if progress == nil {
		progress = &domain.LessonProgress{UserID: params.UserID, LessonID: lesson.ID}
	}
	now := e.now()
	progress.Status = domain.LessonInProgress
	progress.Attempts++
	progress.StartedAt = &now
	if err := e.records.UpsertLessonProgress(ctx, tx, progress); err != nil {
		return nil, fmt.Errorf("start lesson: %w", err)
	}

	result := &domain.CommandResult{State: state, Lesson: progress}
	result.Record(domain.ActivityLessonStart, fmt.Sprintf("Started lesson: %s", lesson.Title), map[string]interface{}{
		"lesson_id": lesson.ID.String(),
		"attempt":   progress.Attempts,
	})
	result.Finalize()
	return result, nil
}

// ExecuteCompleteLesson awards a score-scaled lesson reward, tracks the best
// score and marks the lesson completed. Re-completion awards again.
func (e *Engine) ExecuteCompleteLesson(ctx context.Context, tx pgx.Tx, params domain.CompleteLessonParams) (*domain.CommandResult, error) {
	if err := domain.ValidateScorePercent(params.Score); err != nil {
		return nil, invalid(err)
	}
	if err := domain.ValidateTimeSpent(params.TimeSpent); err != nil {
		return nil, invalid(err)
	}

	lesson, err := e.content.FindLesson(ctx, tx, params.LessonID)
	if err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}
	if lesson == nil || !lesson.Published {
		return nil, domain.ErrNotFound("lesson", params.LessonID.String())
	}

	state, err := e.LockGameState(ctx, tx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}
	result := &domain.CommandResult{State: state}

	reward, err := progression.ComputeReward(progression.RewardLesson, int64(params.Score),
		progression.Baseline{Points: lesson.PointsReward, Coins: lesson.CoinsReward})
	if err != nil {
		return nil, invalid(err)
	}
	if err := e.credit(result, reward); err != nil {
		return nil, err
	}
	if err := e.touchStreak(result); err != nil {
		return nil, err
	}
	state.CompletedLessons.Add(lesson.ID.String())
	state.AddTimeSpent(params.TimeSpent)

	progress, err := e.records.FindLessonProgress(ctx, tx, params.UserID, lesson.ID)
	if err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}
	if progress == nil {
		progress = &domain.LessonProgress{UserID: params.UserID, LessonID: lesson.ID}
	}
	now := e.now()
	// A started attempt was already counted.
	if progress.Status != domain.LessonInProgress {
		progress.Attempts++
	}
	progress.Status = domain.LessonCompleted
	progress.Score = params.Score
	progress.BestScore = max(progress.BestScore, params.Score)
	progress.TimeSpent += params.TimeSpent
	progress.CompletedAt = &now
	if err := e.records.UpsertLessonProgress(ctx, tx, progress); err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}

	next, err := e.content.NextLesson(ctx, tx, lesson)
	if err != nil {
		return nil, fmt.Errorf("complete lesson: %w", err)
	}
	result.NextLesson = next
	result.Lesson = progress

	result.Record(domain.ActivityLessonComplete, fmt.Sprintf("Completed lesson %s with score %d%%", lesson.Title, params.Score), map[string]interface{}{
		"lesson_id":      lesson.ID.String(),
		"score":          params.Score,
		"time_spent":     params.TimeSpent,
		"points_awarded": reward.Points,
		"coins_awarded":  reward.Coins,
	})

	if err := e.CommitGameState(ctx, tx, result, "lesson"); err != nil {
		return nil, fmt.Errorf("complete lesson commit: %w", err)
	}
	return result, nil
}
