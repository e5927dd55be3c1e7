package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ingestord/ingestord/internal/ingestion"
)

func TestNopPublisher_DiscardsEvents(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var p NopPublisher

	event := Event{JobID: uuid.New(), TenantID: "tenant-a", Status: ingestion.StatusSucceeded, Attempt: 1}

	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish() error = %v, want nil", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if _, err := NewKafkaPublisher(nil, "", nil); err == nil {
		t.Fatal("NewKafkaPublisher() error = nil, want error for empty brokers")
	}
}
