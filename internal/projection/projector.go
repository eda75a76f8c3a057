package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
)

// envelope is the subset of the relayed outbox message the projector reads.
type envelope struct {
	AggregateID string           `json:"aggregate_id"`
	EventType   domain.EventType `json:"event_type"`
	Payload     struct {
		Version int64 `json:"version"`
	} `json:"payload"`
}

// Projector drops cached projections when committed progress events arrive
// from the broker. It covers writers whose post-commit invalidation never ran.
type Projector struct {
	store  Store
	logger *slog.Logger
}

// NewProjector creates a Projector over the given store.
func NewProjector(store Store, logger *slog.Logger) *Projector {
	return &Projector{store: store, logger: logger}
}

// Apply handles one relayed outbox message. Malformed messages are logged and
// skipped so one bad record cannot stall the consumer group.
func (p *Projector) Apply(ctx context.Context, value []byte) error {
	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		p.logger.Warn("skipping undecodable progress event", "error", err)
		return nil
	}
	userID, err := uuid.Parse(env.AggregateID)
	if err != nil {
		p.logger.Warn("skipping progress event with bad aggregate id", "aggregate_id", env.AggregateID)
		return nil
	}

	// Every commit emits progress.updated with the committed version, so only
	// that event fences the snapshot. Replayed older events leave newer
	// snapshots alone.
	var errs []error
	if env.EventType == domain.EventProgressUpdated {
		var err error
		if env.Payload.Version > 0 {
			err = InvalidateGameState(ctx, p.store, userID, env.Payload.Version)
		} else {
			err = p.store.Delete(ctx, gameStateKey(userID))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("invalidate game state: %w", err))
		}
	}
	if affectsRanking(env.EventType) {
		if err := InvalidateLeaderboards(ctx, p.store); err != nil {
			errs = append(errs, fmt.Errorf("invalidate leaderboards: %w", err))
		}
	}
	p.logger.Debug("progress event projected", "user_id", userID, "event_type", env.EventType)
	return errors.Join(errs...)
}

// affectsRanking reports whether an event can move a learner on any board.
func affectsRanking(t domain.EventType) bool {
	switch t {
	case domain.EventCoinsSpent, domain.EventZoneUnlocked:
		return false
	default:
		return true
	}
}
