package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

func newGameStateEvent(userID uuid.UUID, evtType EventType, payload interface{}) OutboxDraft {
	data, _ := json.Marshal(payload)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateGameState,
		AggregateID:   userID.String(),
		EventType:     evtType,
		PartitionKey:  userID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       data,
		OccurredAt:    time.Now(),
	}
}

// NewProgressUpdatedEvent creates the standard event emitted on every committed mutation.
func NewProgressUpdatedEvent(state *GameState, source string, outcome ProgressOutcome) OutboxDraft {
	return newGameStateEvent(state.UserID, EventProgressUpdated, map[string]interface{}{
		"user_id":        state.UserID.String(),
		"source":         source,
		"points_awarded": outcome.PointsAwarded,
		"coins_awarded":  outcome.CoinsAwarded,
		"points":         state.Points,
		"coins":          state.Coins,
		"level":          state.Level,
		"current_streak": state.CurrentStreak,
		"version":        state.Version,
	})
}

// NewLevelUpEvent records a level transition, possibly skipping levels.
func NewLevelUpEvent(userID uuid.UUID, from, to int) OutboxDraft {
	return newGameStateEvent(userID, EventLevelUp, map[string]interface{}{
		"user_id":    userID.String(),
		"from_level": from,
		"to_level":   to,
	})
}

// NewStreakMilestoneEvent records a streak milestone bonus.
func NewStreakMilestoneEvent(userID uuid.UUID, m StreakMilestone) OutboxDraft {
	return newGameStateEvent(userID, EventStreakMilestone, map[string]interface{}{
		"user_id":       userID.String(),
		"days":          m.Days,
		"coins_awarded": m.CoinsAwarded,
	})
}

// NewCoinsSpentEvent records a purchase.
func NewCoinsSpentEvent(userID uuid.UUID, amount int64, itemID, itemType string) OutboxDraft {
	return newGameStateEvent(userID, EventCoinsSpent, map[string]interface{}{
		"user_id":   userID.String(),
		"amount":    amount,
		"item_id":   itemID,
		"item_type": itemType,
	})
}

// NewZoneUnlockedEvent records a newly unlocked village zone.
func NewZoneUnlockedEvent(userID uuid.UUID, zoneID string) OutboxDraft {
	return newGameStateEvent(userID, EventZoneUnlocked, map[string]string{
		"user_id": userID.String(),
		"zone_id": zoneID,
	})
}

// NewProgressResetEvent records a full progress reset.
func NewProgressResetEvent(userID uuid.UUID) OutboxDraft {
	return newGameStateEvent(userID, EventProgressReset, map[string]string{
		"user_id": userID.String(),
	})
}
