package api

import (
	"encoding/json"
	"time"
)

// SubmitEventRequest is the wire shape of one event within a submission.
type SubmitEventRequest struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SubmitIngestionRequest is the body of POST /v1/ingestions.
type SubmitIngestionRequest struct {
	TenantID       string               `json:"tenantId"`
	IdempotencyKey *string              `json:"idempotencyKey,omitempty"`
	Events         []SubmitEventRequest `json:"events"`
}

// SubmitIngestionResponse is the body returned by POST /v1/ingestions.
type SubmitIngestionResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// JobStatusResponse is the body returned by GET /v1/ingestions/{jobId}.
type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	TenantID    string     `json:"tenantId"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// ResultRowResponse is one aggregated (event type, count) pair.
type ResultRowResponse struct {
	EventType string `json:"eventType"`
	Count     int    `json:"count"`
}

// JobResultsResponse is the body returned by GET /v1/results/{jobId}.
type JobResultsResponse struct {
	JobID   string              `json:"jobId"`
	Status  string              `json:"status"`
	Results []ResultRowResponse `json:"results"`
}

// HealthStatus is the body returned by the liveness and readiness endpoints.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Version is the engine's build version reported by the health endpoints.
// cmd/api assigns it at startup; it is "dev" otherwise.
var Version = "dev"
