// Package middleware provides HTTP middleware components for the ingestord API.
package middleware

import (
	"context"
	"net/http"
)

// TenantHeader is the header submitters use to identify their tenant.
// There is no authentication behind this value — it is an ambient routing
// hint used for rate-limit bucketing and request logging, not an access
// control decision.
const TenantHeader = "X-Tenant-ID"

type tenantIDKey struct{}

// TenantID extracts the tenant identifier from the incoming request and
// stores it in the request context so downstream middleware (rate limiting,
// logging) and handlers can key off it without re-parsing headers.
func TenantID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get(TenantHeader)

			ctx := context.WithValue(r.Context(), tenantIDKey{}, tenantID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantID extracts the tenant ID from the request context. Returns
// empty string for requests that omitted the tenant header.
func GetTenantID(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantIDKey{}).(string)

	return tenantID
}
