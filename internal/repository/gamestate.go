package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/vyakaran/platform/internal/domain"
)

const gameStateColumns = `
	user_id, level, points, experience, experience_to_next_level, coins,
	current_streak, longest_streak, last_activity_date,
	total_correct_answers, total_questions_attempted, total_time_spent,
	unlocked_zones, completed_lessons, achievements, badges,
	version, created_at, updated_at`

type gameStateRepo struct{}

// NewGameStateRepository returns a pgx-backed GameStateRepository.
func NewGameStateRepository() GameStateRepository {
	return &gameStateRepo{}
}

func (r *gameStateRepo) EnsureExists(ctx context.Context, db DBTX, userID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		INSERT INTO game_states (user_id, level, experience_to_next_level)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, domain.StartingLevel, domain.StartingThreshold)
	if err != nil {
		return fmt.Errorf("ensure game state: %w", err)
	}
	return nil
}

func (r *gameStateRepo) FindByUserID(ctx context.Context, db DBTX, userID uuid.UUID) (*domain.GameState, error) {
	row := db.QueryRow(ctx, `SELECT `+gameStateColumns+` FROM game_states WHERE user_id = $1`, userID)
	return scanGameState(row)
}

func (r *gameStateRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.GameState, error) {
	row := tx.QueryRow(ctx, `SELECT `+gameStateColumns+` FROM game_states WHERE user_id = $1 FOR UPDATE`, userID)
	return scanGameState(row)
}

func (r *gameStateRepo) Update(ctx context.Context, tx pgx.Tx, state *domain.GameState) error {
	sets, err := marshalSets(state)
	if err != nil {
		return err
	}

	var last pgtype.Date
	if state.LastActivityDate != nil {
		last = pgtype.Date{Time: *state.LastActivityDate, Valid: true}
	}

	row := tx.QueryRow(ctx, `
		UPDATE game_states SET
		  level = $2, points = $3, experience = $4, experience_to_next_level = $5, coins = $6,
		  current_streak = $7, longest_streak = $8, last_activity_date = $9,
		  total_correct_answers = $10, total_questions_attempted = $11, total_time_spent = $12,
		  unlocked_zones = $13, completed_lessons = $14, achievements = $15, badges = $16,
		  version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $17
		RETURNING version, updated_at`,
		state.UserID,
		state.Level, state.Points, state.Experience, state.ExperienceToNextLevel, state.Coins,
		state.CurrentStreak, state.LongestStreak, last,
		state.TotalCorrectAnswers, state.TotalQuestionsAttempted, state.TotalTimeSpent,
		sets[0], sets[1], sets[2], sets[3],
		state.Version,
	)
	if err := row.Scan(&state.Version, &state.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrStaleState
		}
		return fmt.Errorf("update game state: %w", err)
	}
	return nil
}

func (r *gameStateRepo) Leaderboard(ctx context.Context, db DBTX, by domain.LeaderboardType, limit int) ([]domain.LeaderboardEntry, error) {
	order, err := leaderboardOrder(by)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, fmt.Sprintf(`
		SELECT user_id, level, points, experience, current_streak, longest_streak
		FROM game_states
		ORDER BY %s, user_id ASC
		LIMIT $1`, order), limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Level, &e.Points, &e.Experience, &e.CurrentStreak, &e.LongestStreak); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = int64(len(entries) + 1)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *gameStateRepo) Rank(ctx context.Context, db DBTX, userID uuid.UUID, by domain.LeaderboardType) (int64, error) {
	var ahead string
	switch by {
	case domain.LeaderboardPoints:
		ahead = `g.points > me.points`
	case domain.LeaderboardLevel:
		ahead = `(g.level, g.experience) > (me.level, me.experience)`
	case domain.LeaderboardStreak:
		ahead = `g.current_streak > me.current_streak`
	default:
		return 0, fmt.Errorf("unknown leaderboard type: %s", by)
	}

	// A learner without a row is unranked and gets 0.
	var rank int64
	err := db.QueryRow(ctx, fmt.Sprintf(`
		SELECT (SELECT count(*) FROM game_states g WHERE %s) + 1
		FROM game_states me
		WHERE me.user_id = $1`, ahead), userID).Scan(&rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query rank: %w", err)
	}
	return rank, nil
}

func leaderboardOrder(by domain.LeaderboardType) (string, error) {
	switch by {
	case domain.LeaderboardPoints:
		return "points DESC", nil
	case domain.LeaderboardLevel:
		return "level DESC, experience DESC", nil
	case domain.LeaderboardStreak:
		return "current_streak DESC", nil
	}
	return "", fmt.Errorf("unknown leaderboard type: %s", by)
}

func marshalSets(state *domain.GameState) ([4]json.RawMessage, error) {
	var out [4]json.RawMessage
	for i, set := range []domain.StringSet{state.UnlockedZones, state.CompletedLessons, state.Achievements, state.Badges} {
		data, err := json.Marshal(set)
		if err != nil {
			return out, fmt.Errorf("marshal set: %w", err)
		}
		out[i] = data
	}
	return out, nil
}

func scanGameState(row pgx.Row) (*domain.GameState, error) {
	var g domain.GameState
	var last pgtype.Date
	var zones, lessons, achievements, badges []byte
	err := row.Scan(
		&g.UserID, &g.Level, &g.Points, &g.Experience, &g.ExperienceToNextLevel, &g.Coins,
		&g.CurrentStreak, &g.LongestStreak, &last,
		&g.TotalCorrectAnswers, &g.TotalQuestionsAttempted, &g.TotalTimeSpent,
		&zones, &lessons, &achievements, &badges,
		&g.Version, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan game state: %w", err)
	}

	if last.Valid {
		d := last.Time
		g.LastActivityDate = &d
	}

	for _, s := range []struct {
		raw []byte
		dst *domain.StringSet
	}{
		{zones, &g.UnlockedZones},
		{lessons, &g.CompletedLessons},
		{achievements, &g.Achievements},
		{badges, &g.Badges},
	} {
		if len(s.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(s.raw, s.dst); err != nil {
			return nil, fmt.Errorf("decode game state set: %w", err)
		}
	}

	return &g, nil
}
