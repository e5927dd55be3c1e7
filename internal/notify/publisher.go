// Package notify publishes job-lifecycle notifications so downstream
// consumers can react to a job reaching a terminal state without polling the
// query port.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"github.com/ingestord/ingestord/internal/ingestion"
)

// DefaultTopic is the topic job-events are published to when none is configured.
const DefaultTopic = "ingestion.job-events"

// Event is the wire envelope published for every job that reaches a
// terminal (Succeeded or Failed) state, or is retried.
type Event struct {
	JobID      uuid.UUID        `json:"jobId"`
	TenantID   string           `json:"tenantId"`
	Status     ingestion.Status `json:"status"`
	Attempt    int              `json:"attempt"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// Publisher publishes job-lifecycle events. Implementations must be
// safe for concurrent use by multiple worker goroutines.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards every event. It is the default when no broker is
// configured (KAFKA_BROKERS unset), keeping notification an optional concern.
type NopPublisher struct{}

// Publish implements Publisher and always succeeds.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher and always succeeds.
func (NopPublisher) Close() error { return nil }

// KafkaPublisher publishes job-lifecycle events to a Kafka/Redpanda topic
// using a non-transactional, best-effort writer: a failed publish is logged
// and returned, and never changes the state of the job it describes.
// Publish waits for the broker's acknowledgement, so a slow or unreachable
// broker delays the calling worker loop until the write gives up.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher constructs a KafkaPublisher against the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("notify: at least one Kafka broker is required")
	}

	if topic == "" {
		topic = DefaultTopic
	}

	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{writer: writer, logger: logger}, nil
}

// Publish serializes the event and writes it keyed by tenant ID, so that all
// events for one tenant land on the same partition and preserve ordering.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TenantID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(event.JobID.String())},
			{Key: "status", Value: []byte(event.Status)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("failed to publish job event",
			slog.String("job_id", event.JobID.String()),
			slog.String("status", string(event.Status)),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("notify: write message: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("notify: close writer: %w", err)
	}

	return nil
}
