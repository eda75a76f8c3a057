package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
)

type activityRepo struct{}

// NewActivityRepository returns a pgx-backed ActivityRepository.
func NewActivityRepository() ActivityRepository {
	return &activityRepo{}
}

func (r *activityRepo) Insert(ctx context.Context, db DBTX, e *domain.ActivityEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO activity_events (id, user_id, kind, description, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, string(e.Kind), e.Description, e.Metadata,
		nullIfEmpty(e.IPAddress), e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// List builds its WHERE clause from the filter fields that are set.
func (r *activityRepo) List(ctx context.Context, db DBTX, userID uuid.UUID, filter domain.ActivityFilter) ([]domain.ActivityEvent, error) {
	filter = filter.Normalize()

	where := []string{"user_id = $1"}
	args := []interface{}{userID}
	argIdx := 2

	if filter.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Since != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.Since)
		argIdx++
	}
	args = append(args, filter.Limit)

	query := fmt.Sprintf(`
		SELECT id, user_id, kind, description, metadata, COALESCE(ip_address, ''), user_agent, created_at
		FROM activity_events
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, strings.Join(where, " AND "), argIdx)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Description, &e.Metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *activityRepo) ActiveDays(ctx context.Context, db DBTX, userID uuid.UUID) (int64, error) {
	var n int64
	err := db.QueryRow(ctx, `
		SELECT count(DISTINCT (created_at AT TIME ZONE 'UTC')::date)
		FROM activity_events WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active days: %w", err)
	}
	return n, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
