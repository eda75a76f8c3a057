package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vyakaran/platform/internal/domain"
)

const (
	gameStateTTL   = 5 * time.Minute
	leaderboardTTL = 30 * time.Second

	// LeaderboardDepth is how many entries a cached leaderboard holds.
	LeaderboardDepth = 100
)

func gameStateKey(userID uuid.UUID) string {
	return fmt.Sprintf("projection:game_state:%s", userID)
}

func leaderboardKey(by domain.LeaderboardType) string {
	return fmt.Sprintf("projection:leaderboard:%s", by)
}

// PutGameState caches a game state snapshot read from the database. The
// write is dropped when a commit newer than state.Version has already fenced
// the key, so a slow read cannot overwrite fresher progress.
func PutGameState(ctx context.Context, store Store, state *domain.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}
	_, err = store.SetVersioned(ctx, gameStateKey(state.UserID), state.Version, data, gameStateTTL)
	return err
}

// GetGameState returns the cached snapshot, or ErrMiss when the key is
// absent or fenced.
func GetGameState(ctx context.Context, store Store, userID uuid.UUID) (*domain.GameState, error) {
	raw, err := store.Get(ctx, gameStateKey(userID))
	if err != nil {
		return nil, err
	}
	_, data, err := decodeVersioned(raw)
	if err != nil || len(data) == 0 {
		return nil, ErrMiss
	}
	var s domain.GameState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode game state projection: %w", err)
	}
	return &s, nil
}

// InvalidateGameState replaces a learner's cached snapshot with a fence for
// the committed version. The fence lives as long as a snapshot would.
func InvalidateGameState(ctx context.Context, store Store, userID uuid.UUID, version int64) error {
	_, err := store.SetVersioned(ctx, gameStateKey(userID), version, nil, gameStateTTL)
	return err
}

// PutLeaderboard caches the top entries for one ordering.
func PutLeaderboard(ctx context.Context, store Store, by domain.LeaderboardType, entries []domain.LeaderboardEntry) error {
	return SetJSON(ctx, store, leaderboardKey(by), entries, leaderboardTTL)
}

// GetLeaderboard returns up to limit cached entries, or ErrMiss when the cache
// is cold or holds fewer rows than requested while more may exist.
func GetLeaderboard(ctx context.Context, store Store, by domain.LeaderboardType, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	if err := GetJSON(ctx, store, leaderboardKey(by), &entries); err != nil {
		return nil, err
	}
	if limit > len(entries) && len(entries) == LeaderboardDepth {
		return nil, ErrMiss
	}
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// InvalidateLeaderboards drops every cached ordering.
func InvalidateLeaderboards(ctx context.Context, store Store) error {
	return store.Delete(ctx,
		leaderboardKey(domain.LeaderboardPoints),
		leaderboardKey(domain.LeaderboardLevel),
		leaderboardKey(domain.LeaderboardStreak),
	)
}
