// Package engine runs the progress orchestrations. Every command works on a
// locked game state inside the caller's transaction: it validates, applies the
// progression rules, writes completion records and the outbox, and returns the
// activity events to append once the transaction commits.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/progression"
	"github.com/vyakaran/platform/internal/repository"
)

// Engine provides the foundational game state operations:
//  1. LockGameState: get-or-create plus row-level pessimistic lock
//  2. CommitGameState: version-checked update plus outbox events
//
// and the orchestrations built on top of them.
type Engine struct {
	states  repository.GameStateRepository
	content repository.ContentRepository
	records repository.CompletionRepository
	outbox  repository.OutboxRepository
	loc     *time.Location
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone that defines a streak calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

// NewEngine creates an engine with the given repositories.
func NewEngine(
	states repository.GameStateRepository,
	content repository.ContentRepository,
	records repository.CompletionRepository,
	outbox repository.OutboxRepository,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		states:  states,
		content: content,
		records: records,
		outbox:  outbox,
		loc:     time.UTC,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current streak calendar day.
func (e *Engine) Today() time.Time {
	return domain.CalendarDay(e.now(), e.loc)
}

// GetGameState returns the learner's state, creating the default row on first touch.
func (e *Engine) GetGameState(ctx context.Context, db repository.DBTX, userID uuid.UUID) (*domain.GameState, error) {
	if err := e.states.EnsureExists(ctx, db, userID); err != nil {
		return nil, fmt.Errorf("ensure game state: %w", err)
	}
	state, err := e.states.FindByUserID(ctx, db, userID)
	if err != nil {
		return nil, fmt.Errorf("find game state: %w", err)
	}
	if state == nil {
		return nil, domain.ErrNotFound("game state", userID.String())
	}
	return state, nil
}

// LockGameState creates the row if needed and acquires a row-level lock.
// Must be called within a transaction.
func (e *Engine) LockGameState(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.GameState, error) {
	if err := e.states.EnsureExists(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("ensure game state: %w", err)
	}
	state, err := e.states.LockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock game state: %w", err)
	}
	if state == nil {
		return nil, domain.ErrNotFound("game state", userID.String())
	}
	return state, nil
}

// CommitGameState persists the mutated state and writes the outbox events,
// always ending with a progress.updated event carrying the new version.
func (e *Engine) CommitGameState(ctx context.Context, tx pgx.Tx, result *domain.CommandResult, source string) error {
	result.State.UpdatedAt = e.now()
	if err := e.states.Update(ctx, tx, result.State); err != nil {
		return fmt.Errorf("update game state: %w", err)
	}
	result.Finalize()

	result.Events = append(result.Events, domain.NewProgressUpdatedEvent(result.State, source, result.Outcome))
	for _, evt := range result.Events {
		if err := e.outbox.Insert(ctx, tx, evt); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}

// credit applies a reward through the leveling engine and the economy ledger.
func (e *Engine) credit(result *domain.CommandResult, r progression.Reward) error {
	change, err := progression.ApplyReward(result.State, r)
	if err != nil {
		return err
	}
	result.Outcome.PointsAwarded += r.Points
	result.Outcome.CoinsAwarded += r.Coins
	e.noteLevelChange(result, change)
	return nil
}

func (e *Engine) noteLevelChange(result *domain.CommandResult, change progression.LevelChange) {
	if !change.LeveledUp() {
		return
	}
	result.Outcome.LeveledUp = true
	result.Events = append(result.Events, domain.NewLevelUpEvent(result.State.UserID, change.From, change.To))
	result.Record(domain.ActivityLevelUp, fmt.Sprintf("Reached level %d", change.To), map[string]interface{}{
		"from_level": change.From,
		"new_level":  change.To,
	})
}

// touchStreak records activity for today and pays any milestone bonus.
func (e *Engine) touchStreak(result *domain.CommandResult) error {
	state := result.State
	sr := progression.UpdateStreak(state, e.Today())
	if sr.ClockSkew {
		e.logger.Warn("last activity date is in the future, streak reset",
			"user_id", state.UserID, "today", e.Today().Format(time.DateOnly))
	}
	if !sr.Changed {
		return nil
	}

	m, ok := progression.StreakMilestoneFor(sr.Current)
	if !ok {
		return nil
	}
	if err := progression.Earn(state, m.CoinsAwarded); err != nil {
		return err
	}
	result.Outcome.StreakMilestone = &m
	result.Events = append(result.Events, domain.NewStreakMilestoneEvent(state.UserID, m))
	result.Record(domain.ActivityStreakMilestone, fmt.Sprintf("Reached %d-day streak!", m.Days), map[string]interface{}{
		"streak":        m.Days,
		"coins_awarded": m.CoinsAwarded,
	})
	return nil
}

// invalid turns a plain rule error into a validation AppError.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsAppError(err); ok {
		return err
	}
	return domain.ErrValidation(err.Error())
}

func ensureJSON(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage(`{}`)
	}
	return data
}
