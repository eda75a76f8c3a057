// Package activity appends to and queries the learner activity log. Appends
// happen after the owning transaction commits and never fail the caller.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/repository"
)

type originKey struct{}

// WithOrigin stores request metadata on the context for later appends.
func WithOrigin(ctx context.Context, origin domain.ActivityOrigin) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFromContext returns the request metadata, if any.
func OriginFromContext(ctx context.Context) domain.ActivityOrigin {
	origin, _ := ctx.Value(originKey{}).(domain.ActivityOrigin)
	return origin
}

// Recorder writes activity events on the pool.
type Recorder struct {
	db     repository.DBTX
	repo   repository.ActivityRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(db repository.DBTX, repo repository.ActivityRepository, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, repo: repo, logger: logger, now: time.Now}
}

// Record appends one event and returns its id. Failures are logged and
// reported as uuid.Nil.
func (r *Recorder) Record(ctx context.Context, userID uuid.UUID, draft domain.ActivityDraft) uuid.UUID {
	metadata, err := json.Marshal(draft.Metadata)
	if err != nil || draft.Metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	origin := OriginFromContext(ctx)

	event := &domain.ActivityEvent{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        draft.Kind,
		Description: draft.Description,
		Metadata:    metadata,
		IPAddress:   origin.IPAddress,
		UserAgent:   origin.UserAgent,
		CreatedAt:   r.now(),
	}
	if err := r.repo.Insert(ctx, r.db, event); err != nil {
		r.logger.Error("record activity failed", "user_id", userID, "kind", draft.Kind, "error", err)
		return uuid.Nil
	}
	return event.ID
}

// RecordAll appends drafts in order.
func (r *Recorder) RecordAll(ctx context.Context, userID uuid.UUID, drafts []domain.ActivityDraft) {
	for _, d := range drafts {
		r.Record(ctx, userID, d)
	}
}

// Query returns the learner's events newest first.
func (r *Recorder) Query(ctx context.Context, userID uuid.UUID, filter domain.ActivityFilter) ([]domain.ActivityEvent, error) {
	events, err := r.repo.List(ctx, r.db, userID, filter.Normalize())
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.ActivityEvent{}
	}
	return events, nil
}

// ActiveDays counts distinct calendar days with any activity.
func (r *Recorder) ActiveDays(ctx context.Context, userID uuid.UUID) (int64, error) {
	return r.repo.ActiveDays(ctx, r.db, userID)
}
