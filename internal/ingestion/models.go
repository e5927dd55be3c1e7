// Package ingestion contains the domain model and pure business logic of the
// durable job-claim and retry engine: job/event/result types, the
// aggregator, and the retry policy. It has no I/O of its own — persistence
// is expressed as the Store interface, implemented in internal/store.
package ingestion

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Job.
type Status string

// Job lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Sentinel validation errors for job construction and submission.
var (
	ErrTenantIDEmpty  = errors.New("tenant_id cannot be empty")
	ErrNoEvents       = errors.New("at least one event is required")
	ErrEventTypeEmpty = errors.New("event type cannot be empty")
	ErrEventTimestamp = errors.New("event timestamp cannot be the zero value")
)

type (
	// Job is the durable unit of work: a tenant-scoped submission of raw
	// events that is claimed, processed, and resolved to a terminal state.
	Job struct {
		ID             uuid.UUID
		TenantID       string
		IdempotencyKey *string
		Status         Status
		Attempt        int
		CreatedAt      time.Time
		UpdatedAt      time.Time
		AvailableAt    *time.Time
		LockedAt       *time.Time
		LockedBy       *string
		Error          *string
		ProcessedAt    *time.Time
	}

	// RawEvent is one immutable, caller-supplied event attached to a Job.
	RawEvent struct {
		ID        int64
		JobID     uuid.UUID
		TenantID  string
		Type      string
		Timestamp time.Time
		Payload   []byte
	}

	// ResultRow is one aggregated (event_type, count) pair produced for a
	// Succeeded job.
	ResultRow struct {
		ID        int64
		JobID     uuid.UUID
		EventType string
		Count     int
	}
)

// EventInput is the caller-supplied shape of a single event at submission
// time, before it is assigned a surrogate ID and job ID.
type EventInput struct {
	Type      string
	Timestamp time.Time
	Payload   []byte
}

// SubmissionRequest is the validated input to the submission port.
type SubmissionRequest struct {
	TenantID       string
	IdempotencyKey *string
	Events         []EventInput
}

// Validate checks the submission request: tenant_id required, at least one
// event, every event with a non-blank type and a non-zero timestamp.
func (r SubmissionRequest) Validate() error {
	if r.TenantID == "" {
		return ErrTenantIDEmpty
	}

	if len(r.Events) == 0 {
		return ErrNoEvents
	}

	for _, e := range r.Events {
		if strings.TrimSpace(e.Type) == "" {
			return ErrEventTypeEmpty
		}

		if e.Timestamp.IsZero() {
			return ErrEventTimestamp
		}
	}

	return nil
}
