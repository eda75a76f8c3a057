package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/repository"
)

// Publisher sends one message to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxMessage is the envelope written to Kafka for every outbox event.
type OutboxMessage struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// OutboxPoller polls the event_outbox table and publishes events to Kafka.
type OutboxPoller struct {
	db          repository.DBTX
	outbox      repository.OutboxRepository
	publisher   Publisher
	logger      *slog.Logger
	topicPrefix string
	interval    time.Duration
	batchSize   int
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.DBTX, outbox repository.OutboxRepository, publisher Publisher, cfg *Config, logger *slog.Logger) *OutboxPoller {
	interval := cfg.OutboxInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	batch := cfg.OutboxBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &OutboxPoller{
		db:          db,
		outbox:      outbox,
		publisher:   publisher,
		logger:      logger,
		topicPrefix: cfg.KafkaTopicPrefix,
		interval:    interval,
		batchSize:   batch,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) error {
	p.logger.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.logger.Error("outbox poll error", "error", err)
			}
		}
	}
}

// PollOnce publishes one batch in order and marks the published prefix.
// It stops at the first publish failure so per-learner ordering holds.
func (p *OutboxPoller) PollOnce(ctx context.Context) (int, error) {
	events, err := p.outbox.FetchUnpublished(ctx, p.db, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	for _, e := range events {
		msg, err := json.Marshal(OutboxMessage{
			EventID:       e.EventID.String(),
			AggregateType: string(e.AggregateType),
			AggregateID:   e.AggregateID,
			EventType:     string(e.EventType),
			Payload:       e.Payload,
			OccurredAt:    e.OccurredAt,
		})
		if err != nil {
			p.logger.Error("marshal outbox event", "event_id", e.EventID, "error", err)
			break
		}

		if err := p.publisher.Publish(ctx, e.Topic(p.topicPrefix), []byte(e.PartitionKey), msg); err != nil {
			p.logger.Error("kafka publish failed", "event_id", e.EventID, "error", err)
			break
		}
		published = append(published, e.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, p.db, published); err != nil {
		return 0, err
	}

	p.logger.Debug("outbox poll complete", "published", len(published), "fetched", len(events))
	return len(published), nil
}

// ProgressTopics lists every topic the poller can publish to.
func ProgressTopics(prefix string) []string {
	types := []domain.EventType{
		domain.EventProgressUpdated,
		domain.EventLevelUp,
		domain.EventStreakMilestone,
		domain.EventCoinsSpent,
		domain.EventZoneUnlocked,
		domain.EventProgressReset,
	}
	topics := make([]string, 0, len(types))
	for _, t := range types {
		topics = append(topics, domain.OutboxDraft{AggregateType: domain.AggregateGameState, EventType: t}.Topic(prefix))
	}
	return topics
}
