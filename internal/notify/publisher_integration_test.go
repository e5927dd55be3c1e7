package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/ingestord/ingestord/internal/ingestion"
)

// TestKafkaPublisher_RoundTrip publishes a job event to a real broker and
// reads it back, verifying the envelope, the tenant partition key, and the
// headers consumers key on.
func TestKafkaPublisher_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	kafkaContainer, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("ingestord-test"),
	)
	require.NoError(t, err, "Failed to start kafka container")

	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(kafkaContainer)
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "Failed to get broker addresses")

	const topic = "ingestion.job-events.test"

	publisher, err := NewKafkaPublisher(brokers, topic, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = publisher.Close() })

	event := Event{
		JobID:      uuid.New(),
		TenantID:   "tenant-a",
		Status:     ingestion.StatusSucceeded,
		Attempt:    1,
		OccurredAt: time.Now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	require.NoError(t, publisher.Publish(publishCtx, event))

	reader := segkafka.NewReader(segkafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		MaxBytes: 10e6,
	})

	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancelRead := context.WithTimeout(ctx, 30*time.Second)
	defer cancelRead()

	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, []byte(event.TenantID), msg.Key, "messages are keyed by tenant for per-tenant ordering")

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, event.JobID, got.JobID)
	assert.Equal(t, ingestion.StatusSucceeded, got.Status)
	assert.Equal(t, 1, got.Attempt)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	assert.Equal(t, event.JobID.String(), headers["job_id"])
	assert.Equal(t, string(ingestion.StatusSucceeded), headers["status"])
}
