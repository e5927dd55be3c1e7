// Package middleware provides HTTP middleware components for the ingestord API.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const contentTypeProblemJSON = "application/problem+json"

// problemDetail mirrors the RFC 7807 shape used across the API package.
// Defined locally to avoid an import cycle with the api package (which
// imports middleware for the chain).
type problemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// writeRFC7807Error writes an RFC 7807 application/problem+json response.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, status int, detail, correlationID string) error {
	problem := problemDetail{
		Type:          fmt.Sprintf("https://ingestord.io/problems/%d", status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", contentTypeProblemJSON)
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
