// Package store provides the PostgreSQL-backed implementation of
// ingestion.Store: the durable job/event/result persistence layer and the
// contention-safe claim protocol.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ingestord/ingestord/internal/ingestion"
)

// Store implements ingestion.Store with a PostgreSQL backend: a thin
// wrapper around a pooled *sql.DB, with structured logging and no other
// mutable state.
type Store struct {
	conn   *Connection
	logger *slog.Logger
}

var _ ingestion.Store = (*Store)(nil)

// New wraps a Connection in a Store. conn must not be nil.
func New(conn *Connection, logger *slog.Logger) (*Store, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Store{conn: conn, logger: logger}, nil
}

// classifyError maps a driver error to the engine's error taxonomy:
// unique violation (23505) -> conflict; connection-class (08), serialization
// failure (40001), or operator-intervention errors (57P, e.g. admin
// shutdown) -> transient; everything else
// -> fatal.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ingestion.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %w", ingestion.ErrConflict, err)
		case pqErr.Code == "40001",
			strings.HasPrefix(string(pqErr.Code), "08"),
			strings.HasPrefix(string(pqErr.Code), "57P"):
			return fmt.Errorf("%w: %w", ingestion.ErrTransient, err)
		default:
			return fmt.Errorf("%w: %w", ingestion.ErrFatal, err)
		}
	}

	return fmt.Errorf("%w: %w", ingestion.ErrFatal, err)
}

// Submit implements the submission port: idempotency-key lookup, atomic
// job+events insert, and re-read-on-conflict fallback.
func (s *Store) Submit(ctx context.Context, req ingestion.SubmissionRequest) (ingestion.SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return ingestion.SubmitResult{}, err
	}

	if req.IdempotencyKey != nil {
		if job, err := s.findByIdempotencyKey(ctx, req.TenantID, *req.IdempotencyKey); err == nil {
			return ingestion.SubmitResult{Job: job, Duplicate: true}, nil
		} else if !errors.Is(err, ingestion.ErrNotFound) {
			return ingestion.SubmitResult{}, err
		}
	}

	job, err := s.insertJobAndEvents(ctx, req)
	if err == nil {
		return ingestion.SubmitResult{Job: job}, nil
	}

	if errors.Is(err, ingestion.ErrConflict) && req.IdempotencyKey != nil {
		existing, readErr := s.findByIdempotencyKey(ctx, req.TenantID, *req.IdempotencyKey)
		if readErr == nil {
			return ingestion.SubmitResult{Job: existing, Duplicate: true}, nil
		}

		return ingestion.SubmitResult{}, readErr
	}

	return ingestion.SubmitResult{}, err
}

func (s *Store) findByIdempotencyKey(ctx context.Context, tenantID, key string) (ingestion.Job, error) {
	const q = `
SELECT id, tenant_id, idempotency_key, status, attempt, created_at, updated_at,
       available_at, locked_at, locked_by, error, processed_at
FROM ingestion_jobs
WHERE tenant_id = $1 AND idempotency_key = $2`

	row := s.conn.QueryRowContext(ctx, q, tenantID, key)

	job, err := scanJob(row)
	if err != nil {
		return ingestion.Job{}, classifyError(err)
	}

	return job, nil
}

func (s *Store) insertJobAndEvents(
	ctx context.Context,
	req ingestion.SubmissionRequest,
) (ingestion.Job, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return ingestion.Job{}, classifyError(err)
	}
	defer rollbackUnlessCommitted(tx, &err)

	now := time.Now().UTC()
	id := uuid.New()

	const insertJob = `
INSERT INTO ingestion_jobs
    (id, tenant_id, idempotency_key, status, attempt, created_at, updated_at, available_at)
VALUES ($1, $2, $3, $4, 0, $5, $5, $5)`

	_, err = tx.ExecContext(ctx, insertJob, id, req.TenantID, req.IdempotencyKey, ingestion.StatusPending, now)
	if err != nil {
		return ingestion.Job{}, classifyError(err)
	}

	const insertEvent = `
INSERT INTO raw_events (job_id, tenant_id, type, "timestamp", payload)
VALUES ($1, $2, $3, $4, $5)`

	for _, e := range req.Events {
		payload := e.Payload
		if len(payload) == 0 {
			payload = []byte("{}")
		}

		// jsonb columns require a text-typed parameter; lib/pq otherwise
		// encodes []byte as bytea, which postgres cannot implicitly cast.
		if _, err = tx.ExecContext(ctx, insertEvent, id, req.TenantID, e.Type, e.Timestamp, string(payload)); err != nil {
			return ingestion.Job{}, classifyError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return ingestion.Job{}, classifyError(err)
	}

	return ingestion.Job{
		ID:             id,
		TenantID:       req.TenantID,
		IdempotencyKey: req.IdempotencyKey,
		Status:         ingestion.StatusPending,
		Attempt:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
		AvailableAt:    &now,
	}, nil
}

// Claim executes the claim protocol inside one serializable
// transaction: select-and-lock one eligible job (skipping rows locked by
// other transactions), transition it to Processing, and load its events.
// Returns ingestion.ErrNotFound when there is no eligible job.
func (s *Store) Claim(
	ctx context.Context,
	workerID string,
	staleLockTimeoutSeconds int,
) (ingestion.ClaimResult, error) {
	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return ingestion.ClaimResult{}, classifyError(err)
	}
	defer rollbackUnlessCommitted(tx, &err)

	now := time.Now().UTC()
	staleInterval := fmt.Sprintf("%d seconds", staleLockTimeoutSeconds)

	const claimQuery = `
UPDATE ingestion_jobs
SET    status = $1, attempt = attempt + 1, locked_at = $2, locked_by = $3, updated_at = $2
WHERE  id = (
    SELECT id FROM ingestion_jobs
    WHERE  status IN ($4, $1)
      AND  (available_at IS NULL OR available_at <= $2)
      AND  (locked_at IS NULL OR locked_at < $2 - $5::interval)
    ORDER BY created_at ASC, id ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, tenant_id, idempotency_key, status, attempt, created_at, updated_at,
          available_at, locked_at, locked_by, error, processed_at`

	row := tx.QueryRowContext(ctx, claimQuery,
		ingestion.StatusProcessing, now, workerID, ingestion.StatusPending, staleInterval)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if commitErr := tx.Commit(); commitErr != nil {
				return ingestion.ClaimResult{}, classifyError(commitErr)
			}

			return ingestion.ClaimResult{}, ingestion.ErrNotFound
		}

		return ingestion.ClaimResult{}, classifyError(err)
	}

	events, err := s.loadEvents(ctx, tx, job.ID)
	if err != nil {
		return ingestion.ClaimResult{}, err
	}

	if err = tx.Commit(); err != nil {
		return ingestion.ClaimResult{}, classifyError(err)
	}

	return ingestion.ClaimResult{Job: job, Events: events}, nil
}

func (s *Store) loadEvents(ctx context.Context, tx *sql.Tx, jobID uuid.UUID) ([]ingestion.RawEvent, error) {
	const q = `
SELECT id, job_id, tenant_id, type, "timestamp", payload
FROM raw_events
WHERE job_id = $1
ORDER BY id ASC`

	rows, err := tx.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var events []ingestion.RawEvent

	for rows.Next() {
		var e ingestion.RawEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.TenantID, &e.Type, &e.Timestamp, &e.Payload); err != nil {
			return nil, classifyError(err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}

	return events, nil
}

// CommitSuccess implements worker loop step 4: within one transaction,
// delete existing result rows for the job, insert the aggregator's output,
// and transition the job to Succeeded.
func (s *Store) CommitSuccess(ctx context.Context, jobID uuid.UUID, results []ingestion.ResultRow) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(err)
	}
	defer rollbackUnlessCommitted(tx, &err)

	if _, err = tx.ExecContext(ctx, `DELETE FROM ingestion_results WHERE job_id = $1`, jobID); err != nil {
		return classifyError(err)
	}

	const insertResult = `INSERT INTO ingestion_results (job_id, event_type, count) VALUES ($1, $2, $3)`

	for _, r := range results {
		if _, err = tx.ExecContext(ctx, insertResult, jobID, r.EventType, r.Count); err != nil {
			return classifyError(err)
		}
	}

	now := time.Now().UTC()

	const updateJob = `
UPDATE ingestion_jobs
SET status = $1, processed_at = $2, updated_at = $2, locked_at = NULL, locked_by = NULL,
    available_at = NULL, error = NULL
WHERE id = $3`

	if _, err = tx.ExecContext(ctx, updateJob, ingestion.StatusSucceeded, now, jobID); err != nil {
		return classifyError(err)
	}

	if err = tx.Commit(); err != nil {
		return classifyError(err)
	}

	return nil
}

// CommitRetry persists a RetryDecision for a job that failed processing,
// in a fresh transaction: Failed jobs are finalised with their last error,
// retryable ones return to Pending with a future available_at.
func (s *Store) CommitRetry(
	ctx context.Context,
	jobID uuid.UUID,
	failureReason string,
	decision ingestion.RetryDecision,
) error {
	now := time.Now().UTC()

	var (
		status      ingestion.Status
		availableAt interface{}
	)

	if decision.Terminal {
		status = ingestion.StatusFailed
		availableAt = nil
	} else {
		status = ingestion.StatusPending
		at := now.Add(decision.Delay)
		availableAt = at
	}

	const q = `
UPDATE ingestion_jobs
SET status = $1, error = $2, available_at = $3, locked_at = NULL, locked_by = NULL, updated_at = $4
WHERE id = $5`

	if _, err := s.conn.ExecContext(ctx, q, status, failureReason, availableAt, now, jobID); err != nil {
		return classifyError(err)
	}

	return nil
}

// GetStatus returns a job's current status snapshot or ingestion.ErrNotFound.
func (s *Store) GetStatus(ctx context.Context, jobID uuid.UUID) (ingestion.Job, error) {
	const q = `
SELECT id, tenant_id, idempotency_key, status, attempt, created_at, updated_at,
       available_at, locked_at, locked_by, error, processed_at
FROM ingestion_jobs
WHERE id = $1`

	row := s.conn.QueryRowContext(ctx, q, jobID)

	job, err := scanJob(row)
	if err != nil {
		return ingestion.Job{}, classifyError(err)
	}

	return job, nil
}

// GetResults returns the ordered result rows for a job, or
// ingestion.ErrNotFound if the job itself does not exist.
func (s *Store) GetResults(ctx context.Context, jobID uuid.UUID) ([]ingestion.ResultRow, error) {
	if _, err := s.GetStatus(ctx, jobID); err != nil {
		return nil, err
	}

	const q = `
SELECT id, job_id, event_type, count
FROM ingestion_results
WHERE job_id = $1
ORDER BY event_type ASC`

	rows, err := s.conn.QueryContext(ctx, q, jobID)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	results := make([]ingestion.ResultRow, 0)

	for rows.Next() {
		var r ingestion.ResultRow
		if err := rows.Scan(&r.ID, &r.JobID, &r.EventType, &r.Count); err != nil {
			return nil, classifyError(err)
		}

		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(err)
	}

	return results, nil
}

// HealthCheck proxies to the underlying connection's health check.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (ingestion.Job, error) {
	var j ingestion.Job

	err := row.Scan(
		&j.ID, &j.TenantID, &j.IdempotencyKey, &j.Status, &j.Attempt,
		&j.CreatedAt, &j.UpdatedAt, &j.AvailableAt, &j.LockedAt, &j.LockedBy,
		&j.Error, &j.ProcessedAt,
	)
	if err != nil {
		return ingestion.Job{}, err
	}

	return j, nil
}

// rollbackUnlessCommitted rolls back tx if it was not already committed,
// following the one-transaction-per-operation shape grounded on the pack's
// TxGuardedJob pattern. Swallows sql.ErrTxDone (the commit succeeded).
func rollbackUnlessCommitted(tx *sql.Tx, errPtr *error) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		if *errPtr == nil {
			*errPtr = classifyError(rbErr)
		}
	}
}
