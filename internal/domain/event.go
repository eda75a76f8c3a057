package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventProgressUpdated EventType = "progress.updated"
	EventLevelUp         EventType = "progress.level_up"
	EventStreakMilestone EventType = "progress.streak_milestone"
	EventCoinsSpent      EventType = "progress.coins_spent"
	EventZoneUnlocked    EventType = "progress.zone_unlocked"
	EventProgressReset   EventType = "progress.reset"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateGameState AggregateType = "game_state"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// OutboxRecord is an outbox row as read back by the relay.
type OutboxRecord struct {
	SeqID int64
	OutboxDraft
}

// Topic returns the broker topic the event is published to.
func (d OutboxDraft) Topic(prefix string) string {
	return prefix + "." + string(d.AggregateType) + "." + string(d.EventType)
}
