package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ingestord/ingestord/internal/ingestion"
	"github.com/ingestord/ingestord/internal/notify"
)

// fakeStore is a minimal in-memory ingestion.Store for loop-behavior tests.
type fakeStore struct {
	mu        sync.Mutex
	pending   []ingestion.ClaimResult
	succeeded []uuid.UUID
	retried   []uuid.UUID
	failNext  error
}

func (f *fakeStore) Submit(context.Context, ingestion.SubmissionRequest) (ingestion.SubmitResult, error) {
	return ingestion.SubmitResult{}, errors.New("not implemented")
}

func (f *fakeStore) Claim(context.Context, string, int) (ingestion.ClaimResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		return ingestion.ClaimResult{}, ingestion.ErrNotFound
	}

	claim := f.pending[0]
	f.pending = f.pending[1:]

	return claim, nil
}

func (f *fakeStore) CommitSuccess(_ context.Context, jobID uuid.UUID, _ []ingestion.ResultRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil

		return err
	}

	f.succeeded = append(f.succeeded, jobID)

	return nil
}

func (f *fakeStore) CommitRetry(_ context.Context, jobID uuid.UUID, _ string, _ ingestion.RetryDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retried = append(f.retried, jobID)

	return nil
}

func (f *fakeStore) GetStatus(context.Context, uuid.UUID) (ingestion.Job, error) {
	return ingestion.Job{}, ingestion.ErrNotFound
}

func (f *fakeStore) GetResults(context.Context, uuid.UUID) ([]ingestion.ResultRow, error) {
	return nil, ingestion.ErrNotFound
}

var _ ingestion.Store = (*fakeStore)(nil)

func TestPool_ProcessesClaimedJobToSuccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	jobID := uuid.New()
	store := &fakeStore{pending: []ingestion.ClaimResult{
		{Job: ingestion.Job{ID: jobID, TenantID: "tenant-a", Attempt: 1}},
	}}

	pool := NewPool(store, notify.NopPublisher{}, nil, Config{
		Concurrency: 1, PollInterval: time.Millisecond, IdleBackoffMax: time.Millisecond,
		StaleLockTimeoutSeconds: 300, DefaultRetry: ingestion.DefaultRetryConfig(),
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pool.Run(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.succeeded) != 1 || store.succeeded[0] != jobID {
		t.Errorf("succeeded = %v, want [%v]", store.succeeded, jobID)
	}
}

func TestPool_CommitFailureTriggersRetry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	jobID := uuid.New()
	store := &fakeStore{
		pending:  []ingestion.ClaimResult{{Job: ingestion.Job{ID: jobID, TenantID: "tenant-a", Attempt: 1}}},
		failNext: errors.New("boom"),
	}

	pool := NewPool(store, notify.NopPublisher{}, nil, Config{
		Concurrency: 1, PollInterval: time.Millisecond, IdleBackoffMax: time.Millisecond,
		StaleLockTimeoutSeconds: 300, DefaultRetry: ingestion.DefaultRetryConfig(),
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	pool.Run(ctx)

	store.mu.Lock()
	defer store.mu.Unlock()

	if len(store.retried) != 1 || store.retried[0] != jobID {
		t.Errorf("retried = %v, want [%v]", store.retried, jobID)
	}
}
