package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
)

type completionRepo struct{}

// NewCompletionRepository returns a pgx-backed CompletionRepository.
func NewCompletionRepository() CompletionRepository {
	return &completionRepo{}
}

func (r *completionRepo) FindLessonProgress(ctx context.Context, db DBTX, userID, lessonID uuid.UUID) (*domain.LessonProgress, error) {
	var p domain.LessonProgress
	err := db.QueryRow(ctx, `
		SELECT user_id, lesson_id, status, score, best_score, attempts, time_spent, started_at, completed_at
		FROM lesson_progress WHERE user_id = $1 AND lesson_id = $2`, userID, lessonID).
		Scan(&p.UserID, &p.LessonID, &p.Status, &p.Score, &p.BestScore, &p.Attempts, &p.TimeSpent, &p.StartedAt, &p.CompletedAt)
	if err != nil {
		return nilIfNoRows[domain.LessonProgress](err, "scan lesson progress")
	}
	return &p, nil
}

func (r *completionRepo) UpsertLessonProgress(ctx context.Context, db DBTX, p *domain.LessonProgress) error {
	_, err := db.Exec(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, status, score, best_score, attempts, time_spent, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
		  status = EXCLUDED.status,
		  score = EXCLUDED.score,
		  best_score = EXCLUDED.best_score,
		  attempts = EXCLUDED.attempts,
		  time_spent = EXCLUDED.time_spent,
		  started_at = EXCLUDED.started_at,
		  completed_at = EXCLUDED.completed_at`,
		p.UserID, p.LessonID, p.Status, p.Score, p.BestScore, p.Attempts, p.TimeSpent, p.StartedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("upsert lesson progress: %w", err)
	}
	return nil
}

func (r *completionRepo) InsertQuizResult(ctx context.Context, db DBTX, q *domain.QuizResult) error {
	_, err := db.Exec(ctx, `
		INSERT INTO quiz_results (id, user_id, quiz_id, correct, total, percentage, passed, time_spent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.UserID, q.QuizID, q.Correct, q.Total, q.Percentage, q.Passed, q.TimeSpent, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert quiz result: %w", err)
	}
	return nil
}

func (r *completionRepo) BestGameScore(ctx context.Context, db DBTX, userID, gameID uuid.UUID, since time.Time) (int64, bool, error) {
	var best *int64
	err := db.QueryRow(ctx, `
		SELECT max(score) FROM game_sessions
		WHERE user_id = $1 AND game_id = $2 AND created_at >= $3`,
		userID, gameID, since).Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("query best game score: %w", err)
	}
	if best == nil {
		return 0, false, nil
	}
	return *best, true, nil
}

func (r *completionRepo) GameLeaderboard(ctx context.Context, db DBTX, gameID uuid.UUID, since time.Time, limit int) ([]domain.GameScoreEntry, error) {
	rows, err := db.Query(ctx, `
		SELECT user_id, max(score) AS best
		FROM game_sessions
		WHERE game_id = $1 AND created_at >= $2
		GROUP BY user_id
		ORDER BY best DESC, user_id ASC
		LIMIT $3`, gameID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query game leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.GameScoreEntry
	for rows.Next() {
		var e domain.GameScoreEntry
		if err := rows.Scan(&e.UserID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan game leaderboard row: %w", err)
		}
		e.Rank = int64(len(entries) + 1)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *completionRepo) PlayersAbove(ctx context.Context, db DBTX, gameID uuid.UUID, score int64, since time.Time) (int64, error) {
	var n int64
	err := db.QueryRow(ctx, `
		SELECT count(DISTINCT user_id) FROM game_sessions
		WHERE game_id = $1 AND score > $2 AND created_at >= $3`,
		gameID, score, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count players above: %w", err)
	}
	return n, nil
}

func (r *completionRepo) InsertGameSession(ctx context.Context, db DBTX, s *domain.GameSession) error {
	_, err := db.Exec(ctx, `
		INSERT INTO game_sessions (id, user_id, game_id, score, is_high_score, time_spent, stats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.GameID, s.Score, s.IsHighScore, s.TimeSpent, s.Stats, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game session: %w", err)
	}
	return nil
}

func (r *completionRepo) FindQuestProgress(ctx context.Context, db DBTX, userID, questID uuid.UUID) (*domain.QuestProgress, error) {
	var p domain.QuestProgress
	err := db.QueryRow(ctx, `
		SELECT user_id, quest_id, status, started_at, completed_at
		FROM quest_progress WHERE user_id = $1 AND quest_id = $2`, userID, questID).
		Scan(&p.UserID, &p.QuestID, &p.Status, &p.StartedAt, &p.CompletedAt)
	if err != nil {
		return nilIfNoRows[domain.QuestProgress](err, "scan quest progress")
	}
	return &p, nil
}

func (r *completionRepo) UpsertQuestProgress(ctx context.Context, db DBTX, p *domain.QuestProgress) error {
	_, err := db.Exec(ctx, `
		INSERT INTO quest_progress (user_id, quest_id, status, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, quest_id) DO UPDATE SET
		  status = EXCLUDED.status,
		  started_at = EXCLUDED.started_at,
		  completed_at = EXCLUDED.completed_at`,
		p.UserID, p.QuestID, p.Status, p.StartedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("upsert quest progress: %w", err)
	}
	return nil
}

func (r *completionRepo) FindUserAchievement(ctx context.Context, db DBTX, userID, achievementID uuid.UUID) (*domain.UserAchievement, error) {
	var ua domain.UserAchievement
	err := db.QueryRow(ctx, `
		SELECT user_id, achievement_id, earned_at, rewards_claimed, claimed_at
		FROM user_achievements WHERE user_id = $1 AND achievement_id = $2`, userID, achievementID).
		Scan(&ua.UserID, &ua.AchievementID, &ua.EarnedAt, &ua.RewardsClaimed, &ua.ClaimedAt)
	if err != nil {
		return nilIfNoRows[domain.UserAchievement](err, "scan user achievement")
	}
	return &ua, nil
}

func (r *completionRepo) GrantAchievement(ctx context.Context, db DBTX, ua *domain.UserAchievement) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		ua.UserID, ua.AchievementID, ua.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("grant achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *completionRepo) MarkAchievementClaimed(ctx context.Context, db DBTX, ua *domain.UserAchievement) error {
	_, err := db.Exec(ctx, `
		UPDATE user_achievements SET rewards_claimed = true, claimed_at = $3
		WHERE user_id = $1 AND achievement_id = $2`,
		ua.UserID, ua.AchievementID, ua.ClaimedAt)
	if err != nil {
		return fmt.Errorf("mark achievement claimed: %w", err)
	}
	return nil
}

func (r *completionRepo) InsertWritingSubmission(ctx context.Context, db DBTX, s *domain.WritingSubmission) error {
	_, err := db.Exec(ctx, `
		INSERT INTO writing_submissions (id, user_id, prompt_id, content, word_count, score, time_spent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.UserID, s.PromptID, s.Content, s.WordCount, s.Score, s.TimeSpent, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert writing submission: %w", err)
	}
	return nil
}

func (r *completionRepo) Counts(ctx context.Context, db DBTX, userID uuid.UUID) (domain.CompletionCounts, error) {
	var c domain.CompletionCounts
	err := db.QueryRow(ctx, `
		SELECT
		  (SELECT count(*) FROM lesson_progress WHERE user_id = $1 AND status = 'completed'),
		  (SELECT count(*) FROM quiz_results WHERE user_id = $1),
		  (SELECT count(*) FROM quiz_results WHERE user_id = $1 AND passed),
		  (SELECT count(*) FROM game_sessions WHERE user_id = $1),
		  (SELECT count(*) FROM quest_progress WHERE user_id = $1 AND status = 'completed'),
		  (SELECT count(*) FROM writing_submissions WHERE user_id = $1)`, userID).
		Scan(&c.LessonsCompleted, &c.QuizzesTaken, &c.QuizzesPassed, &c.GamesPlayed, &c.QuestsCompleted, &c.WritingSubmissions)
	if err != nil {
		return c, fmt.Errorf("count completions: %w", err)
	}
	return c, nil
}
