package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ingestord/ingestord/internal/api/middleware"
	"github.com/ingestord/ingestord/internal/ingestion"
)

const healthCheckTimeout = 2 * time.Second

// IdempotencyKeyHeader carries the tenant-scoped idempotency key on
// submission requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// setupRoutes registers the engine's HTTP surface: the submission and query
// ports, plus the Kubernetes liveness/readiness probes.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", s.handleLive)
	mux.HandleFunc("GET /health/ready", s.handleReady)

	mux.HandleFunc("POST /v1/ingestions", s.handleSubmitIngestion)
	mux.HandleFunc("GET /v1/ingestions/{jobId}", s.handleGetIngestionStatus)
	mux.HandleFunc("GET /v1/results/{jobId}", s.handleGetResults)
}

// handleLive responds to the Kubernetes liveness probe: the process is up
// and serving, regardless of downstream health.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{Status: "live", Version: Version})
}

// handleReady responds to the Kubernetes readiness probe by verifying the
// job store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	healthChecker, ok := s.store.(interface{ HealthCheck(context.Context) error })
	if !ok {
		writeJSON(w, http.StatusOK, HealthStatus{Status: "ready", Version: Version})

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := healthChecker.HealthCheck(ctx); err != nil {
		s.logger.Error("readiness check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("job store is unreachable"))

		return
	}

	writeJSON(w, http.StatusOK, HealthStatus{Status: "ready", Version: Version})
}

// handleSubmitIngestion implements the submission port: POST
// /v1/ingestions accepts a tenant-scoped batch of events and returns the
// created (or, for a repeated idempotency key, pre-existing) job.
func (s *Server) handleSubmitIngestion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	var body SubmitIngestionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, r, s.logger, RequestEntityTooLarge("request body exceeds the configured limit"))

			return
		}

		WriteErrorResponse(w, r, s.logger, BadRequest("malformed request body: "+err.Error()))

		return
	}

	// The body's tenantId is authoritative; the X-Tenant-ID header is an
	// ambient fallback so callers already identifying themselves for rate
	// limiting need not repeat the value.
	tenantID := body.TenantID
	if tenantID == "" {
		tenantID = middleware.GetTenantID(r.Context())
	}

	events := make([]ingestion.EventInput, 0, len(body.Events))
	for _, e := range body.Events {
		events = append(events, ingestion.EventInput{
			Type:      e.Type,
			Timestamp: e.Timestamp,
			Payload:   []byte(e.Payload),
		})
	}

	// The Idempotency-Key header takes precedence over the body field, so
	// callers following the header convention are never affected by a stale
	// body value.
	idempotencyKey := body.IdempotencyKey
	if header := r.Header.Get(IdempotencyKeyHeader); header != "" {
		idempotencyKey = &header
	}

	req := ingestion.SubmissionRequest{
		TenantID:       tenantID,
		IdempotencyKey: idempotencyKey,
		Events:         events,
	}

	if err := req.Validate(); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))

		return
	}

	result, err := s.store.Submit(r.Context(), req)
	if err != nil {
		s.writeStoreError(w, r, err)

		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}

	writeJSON(w, status, SubmitIngestionResponse{
		JobID:     result.Job.ID.String(),
		Status:    string(result.Job.Status),
		Duplicate: result.Duplicate,
	})
}

// handleGetIngestionStatus implements the query port's status lookup:
// GET /v1/ingestions/{jobId}.
func (s *Server) handleGetIngestionStatus(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetStatus(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:       job.ID.String(),
		TenantID:    job.TenantID,
		Status:      string(job.Status),
		Attempt:     job.Attempt,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		ProcessedAt: job.ProcessedAt,
	})
}

// handleGetResults implements the query port's results lookup: GET
// /v1/results/{jobId}.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := s.store.GetStatus(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, r, err)

		return
	}

	results, err := s.store.GetResults(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, r, err)

		return
	}

	rows := make([]ResultRowResponse, 0, len(results))
	for _, row := range results {
		rows = append(rows, ResultRowResponse{EventType: row.EventType, Count: row.Count})
	}

	writeJSON(w, http.StatusOK, JobResultsResponse{
		JobID:   job.ID.String(),
		Status:  string(job.Status),
		Results: rows,
	})
}

func (s *Server) parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("jobId")

	jobID, err := uuid.Parse(raw)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("jobId must be a valid UUID"))

		return uuid.UUID{}, false
	}

	return jobID, true
}

// writeStoreError translates the ingestion.Store error taxonomy into an
// RFC 7807 problem response.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := middleware.GetCorrelationID(r.Context())

	switch {
	case errors.Is(err, ingestion.ErrNotFound):
		WriteErrorResponse(w, r, s.logger, NotFound("job not found"))
	case errors.Is(err, ingestion.ErrTenantIDEmpty),
		errors.Is(err, ingestion.ErrNoEvents),
		errors.Is(err, ingestion.ErrEventTypeEmpty),
		errors.Is(err, ingestion.ErrEventTimestamp):
		WriteErrorResponse(w, r, s.logger, BadRequest(err.Error()))
	case errors.Is(err, ingestion.ErrTransient):
		s.logger.Warn("transient store failure", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
		WriteErrorResponse(w, r, s.logger, ServiceUnavailable("job store is temporarily unavailable"))
	default:
		s.logger.Error("store operation failed", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
		WriteErrorResponse(w, r, s.logger, InternalServerError("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
