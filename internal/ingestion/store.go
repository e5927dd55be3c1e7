package ingestion

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Error taxonomy surfaced by Store implementations to the engine:
// conflict (unique violation), transient (connection loss, serialization
// failure, retryable at the loop level), fatal (schema/permission, not
// retryable). The worker loop logs a fatal claim error and keeps polling,
// as it does for every other claim error; it does not exit the process.
var (
	ErrConflict  = errors.New("store: conflict")
	ErrTransient = errors.New("store: transient failure")
	ErrFatal     = errors.New("store: fatal failure")
	ErrNotFound  = errors.New("store: not found")
)

// SubmitResult is returned by Submit, indicating whether a brand new job
// was created or a pre-existing one was found via its idempotency key.
type SubmitResult struct {
	Job       Job
	Duplicate bool
}

// ClaimResult is one job claimed atomically by the claim protocol, together
// with its raw events loaded in the same transaction.
type ClaimResult struct {
	Job    Job
	Events []RawEvent
}

// Store is the persistence contract required by the engine. It is
// implemented against PostgreSQL in internal/store, and may be faked in
// unit tests.
type Store interface {
	// Submit atomically creates a job and its events, or returns the
	// pre-existing job when idempotency_key already exists for the tenant.
	Submit(ctx context.Context, req SubmissionRequest) (SubmitResult, error)

	// Claim executes the claim protocol: selects and locks at most
	// one eligible job, transitions it to Processing, and loads its
	// events, all within one transaction. Returns ErrNotFound when there
	// is no eligible job ("no work").
	Claim(ctx context.Context, workerID string, staleLockTimeoutSeconds int) (ClaimResult, error)

	// CommitSuccess atomically replaces the job's result rows and
	// transitions it to Succeeded, per worker loop step 4.
	CommitSuccess(ctx context.Context, jobID uuid.UUID, results []ResultRow) error

	// CommitRetry persists a RetryDecision for a job that failed
	// processing, in a fresh transaction per worker loop step 5.
	CommitRetry(ctx context.Context, jobID uuid.UUID, failureReason string, decision RetryDecision) error

	// GetStatus returns a job's current status snapshot, or ErrNotFound.
	GetStatus(ctx context.Context, jobID uuid.UUID) (Job, error)

	// GetResults returns the ordered result rows for a job, or
	// ErrNotFound if the job itself does not exist.
	GetResults(ctx context.Context, jobID uuid.UUID) ([]ResultRow, error)
}
