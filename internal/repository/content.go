package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
)

type contentRepo struct{}

// NewContentRepository returns a pgx-backed ContentRepository.
func NewContentRepository() ContentRepository {
	return &contentRepo{}
}

func (r *contentRepo) FindLesson(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Lesson, error) {
	row := db.QueryRow(ctx, `
		SELECT id, slug, title, sort_order, points_reward, coins_reward, published
		FROM lessons WHERE id = $1`, id)
	return scanLesson(row)
}

func (r *contentRepo) NextLesson(ctx context.Context, db DBTX, lesson *domain.Lesson) (*domain.Lesson, error) {
	row := db.QueryRow(ctx, `
		SELECT id, slug, title, sort_order, points_reward, coins_reward, published
		FROM lessons
		WHERE published AND (sort_order, id) > ($1, $2)
		ORDER BY sort_order ASC, id ASC
		LIMIT 1`, lesson.SortOrder, lesson.ID)
	return scanLesson(row)
}

func (r *contentRepo) FindQuiz(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Quiz, error) {
	var q domain.Quiz
	err := db.QueryRow(ctx, `
		SELECT id, lesson_id, title, points_reward, coins_reward, pass_percentage, published
		FROM quizzes WHERE id = $1`, id).
		Scan(&q.ID, &q.LessonID, &q.Title, &q.PointsReward, &q.CoinsReward, &q.PassPercentage, &q.Published)
	if err != nil {
		return nilIfNoRows[domain.Quiz](err, "scan quiz")
	}
	return &q, nil
}

func (r *contentRepo) FindGame(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Game, error) {
	var g domain.Game
	err := db.QueryRow(ctx, `
		SELECT id, name, base_points, base_coins, active
		FROM games WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.BasePoints, &g.BaseCoins, &g.Active)
	if err != nil {
		return nilIfNoRows[domain.Game](err, "scan game")
	}
	return &g, nil
}

func (r *contentRepo) FindQuest(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Quest, error) {
	var q domain.Quest
	err := db.QueryRow(ctx, `
		SELECT id, title, description, min_level, points_reward, coins_reward, experience_reward, requirements, active
		FROM quests WHERE id = $1`, id).
		Scan(&q.ID, &q.Title, &q.Description, &q.MinLevel, &q.PointsReward, &q.CoinsReward,
			&q.ExperienceReward, &q.Requirements, &q.Active)
	if err != nil {
		return nilIfNoRows[domain.Quest](err, "scan quest")
	}
	return &q, nil
}

func (r *contentRepo) FindAchievement(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Achievement, error) {
	var a domain.Achievement
	err := db.QueryRow(ctx, `
		SELECT id, name, description, points_reward, coins_reward
		FROM achievements WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Description, &a.PointsReward, &a.CoinsReward)
	if err != nil {
		return nilIfNoRows[domain.Achievement](err, "scan achievement")
	}
	return &a, nil
}

func (r *contentRepo) FindWritingPrompt(ctx context.Context, db DBTX, id uuid.UUID) (*domain.WritingPrompt, error) {
	var p domain.WritingPrompt
	err := db.QueryRow(ctx, `
		SELECT id, title, min_words, points_reward, coins_reward, active
		FROM writing_prompts WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.MinWords, &p.PointsReward, &p.CoinsReward, &p.Active)
	if err != nil {
		return nilIfNoRows[domain.WritingPrompt](err, "scan writing prompt")
	}
	return &p, nil
}

func scanLesson(row pgx.Row) (*domain.Lesson, error) {
	var l domain.Lesson
	err := row.Scan(&l.ID, &l.Slug, &l.Title, &l.SortOrder, &l.PointsReward, &l.CoinsReward, &l.Published)
	if err != nil {
		return nilIfNoRows[domain.Lesson](err, "scan lesson")
	}
	return &l, nil
}

// nilIfNoRows maps pgx.ErrNoRows to (nil, nil) and wraps anything else.
func nilIfNoRows[T any](err error, op string) (*T, error) {
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}
