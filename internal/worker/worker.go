// Package worker implements the engine's processing loops: long-running
// goroutines that claim a job, aggregate its events, and commit the outcome
// until told to stop.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ingestord/ingestord/internal/ingestion"
	"github.com/ingestord/ingestord/internal/notify"
	"github.com/ingestord/ingestord/internal/policy"
)

// Config parameterises a worker pool.
type Config struct {
	Concurrency             int
	PollInterval            time.Duration
	IdleBackoffMax          time.Duration
	StaleLockTimeoutSeconds int
	DefaultRetry            ingestion.RetryConfig
}

// DefaultConfig returns the process-wide worker defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:             2,
		PollInterval:            time.Second,
		IdleBackoffMax:          time.Second,
		StaleLockTimeoutSeconds: 300,
		DefaultRetry:            ingestion.DefaultRetryConfig(),
	}
}

// Pool runs Config.Concurrency independent loops, each claiming, processing,
// and committing one job at a time.
type Pool struct {
	store     ingestion.Store
	publisher notify.Publisher
	policies  *policy.Resolver
	cfg       Config
	logger    *slog.Logger
}

// NewPool constructs a worker Pool. publisher may be notify.NopPublisher{}
// and policies may be nil (falls back to cfg.DefaultRetry for every tenant).
func NewPool(store ingestion.Store, publisher notify.Publisher, policies *policy.Resolver, cfg Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	if publisher == nil {
		publisher = notify.NopPublisher{}
	}

	if policies == nil {
		policies = policy.NewResolver(&policy.Config{}, cfg.DefaultRetry)
	}

	return &Pool{store: store, publisher: publisher, policies: policies, cfg: cfg, logger: logger}
}

// Run starts Concurrency loops and blocks until ctx is cancelled, at which
// point every loop exits promptly and Run returns.
func (p *Pool) Run(ctx context.Context) {
	workerID := uuid.NewString()

	done := make(chan struct{}, p.cfg.Concurrency)

	for i := 0; i < p.cfg.Concurrency; i++ {
		slot := i

		go func() {
			defer func() { done <- struct{}{} }()
			p.loop(ctx, workerID+"-"+uuid.NewString()[:8], slot)
		}()
	}

	for i := 0; i < p.cfg.Concurrency; i++ {
		<-done
	}
}

// loop is one processing slot's run-to-completion cycle: claim, process,
// and (on idle) back off before polling again.
func (p *Pool) loop(ctx context.Context, workerID string, slot int) {
	idleDelay := p.cfg.PollInterval

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claim, err := p.store.Claim(ctx, workerID, p.cfg.StaleLockTimeoutSeconds)
		if err != nil {
			if errors.Is(err, ingestion.ErrNotFound) {
				if !sleepOrDone(ctx, idleDelay) {
					return
				}

				idleDelay *= 2
				if idleDelay > p.cfg.IdleBackoffMax {
					idleDelay = p.cfg.IdleBackoffMax
				}

				continue
			}

			p.logger.Error("claim failed", slog.Int("slot", slot), slog.String("error", err.Error()))

			if !sleepOrDone(ctx, idleDelay) {
				return
			}

			continue
		}

		idleDelay = p.cfg.PollInterval

		p.process(ctx, claim)
	}
}

// process handles one claimed job: aggregate its events, commit success,
// or persist a retry decision on failure. Never re-raises.
func (p *Pool) process(ctx context.Context, claim ingestion.ClaimResult) {
	job := claim.Job

	results := ingestion.Aggregate(claim.Events)

	if err := p.store.CommitSuccess(ctx, job.ID, results); err != nil {
		p.fail(ctx, job, err)

		return
	}

	p.publish(ctx, job.ID, job.TenantID, ingestion.StatusSucceeded, job.Attempt)
}

// fail evaluates the retry policy for the job's tenant and persists its
// decision in a fresh transaction.
func (p *Pool) fail(ctx context.Context, job ingestion.Job, failure error) {
	retryCfg := p.policies.For(job.TenantID)
	decision := ingestion.NextRetry(job.Attempt, retryCfg)

	if err := p.store.CommitRetry(ctx, job.ID, failure.Error(), decision); err != nil {
		p.logger.Error("failed to persist retry decision",
			slog.String("job_id", job.ID.String()),
			slog.String("error", err.Error()),
		)

		return
	}

	status := ingestion.StatusPending
	if decision.Terminal {
		status = ingestion.StatusFailed
	}

	p.publish(ctx, job.ID, job.TenantID, status, job.Attempt)
}

// publish fires the lifecycle notification for a job's outcome. It is
// non-blocking relative to the already-committed transaction: any error is
// logged at warn and never propagated.
func (p *Pool) publish(ctx context.Context, jobID uuid.UUID, tenantID string, status ingestion.Status, attempt int) {
	event := notify.Event{
		JobID:      jobID,
		TenantID:   tenantID,
		Status:     status,
		Attempt:    attempt,
		OccurredAt: time.Now().UTC(),
	}

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("failed to publish job event",
			slog.String("job_id", jobID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// sleepOrDone sleeps for d, returning false if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
