// Package middleware provides HTTP middleware components for the ingestord API.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    int     = 2
	defaultMaxTenants          int     = 10000
	defaultGlobalRPS           int     = 100
	defaultTenantRPS           int     = 50
	defaultUnAuthRPS           int     = 10
	thresholdMultiplier        float64 = 0.8
	thresholdPercentage        int     = 80
	rateLimiterCleanupInterval         = 5 * time.Minute
	rateLimiterIdleTimeout             = 1 * time.Hour
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (single-node deployment)
	// or distributed stores like Redis (multi-node deployment).
	RateLimiter interface {
		// Allow checks if a request should be allowed based on rate limits.
		// Returns true if allowed, false if rate limited.
		//
		// tenantID identifies the submitting tenant; empty string for
		// requests that did not set the tenant header.
		Allow(tenantID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate.
	//
	// Provides three-tier rate limiting:
	// 1. Global limit (applied to all requests)
	// 2. Per-tenant limit (applied to requests carrying a tenant ID)
	// 3. Unidentified limit (applied to requests without a tenant ID)
	//
	// Memory cleanup runs periodically to prevent unbounded growth; tenants
	// idle longer than IdleTimeout are removed.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		perTenant     map[string]*tenantLimiter
		unidentified  *rate.Limiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}

		tenantRPS       int
		tenantBurst     int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxTenants      int
	}

	// tenantLimiter tracks rate limit state for a single tenant.
	tenantLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter with three-tier limits.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
// Cleanup runs periodically to prevent unbounded memory growth.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	tenantBurst := computeBurstCapacity(config.TenantRPS, config.TenantBurst)
	unauthBurst := computeBurstCapacity(config.UnAuthRPS, config.UnAuthBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perTenant:       make(map[string]*tenantLimiter),
		unidentified:    rate.NewLimiter(rate.Limit(config.UnAuthRPS), unauthBurst),
		done:            make(chan struct{}),
		tenantRPS:       config.TenantRPS,
		tenantBurst:     tenantBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxTenants:      config.MaxTenants,
	}

	rl.startCleanup()

	return rl
}

// computeBurstCapacity computes the burst capacity based on the rate and optional override.
func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow checks if a request should be allowed based on rate limits.
// Implements the RateLimiter interface.
func (rl *InMemoryRateLimiter) Allow(tenantID string) bool {
	if !rl.global.Allow() {
		return false
	}

	if tenantID == "" {
		return rl.unidentified.Allow()
	}

	rl.mu.RLock()
	tl, ok := rl.perTenant[tenantID]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if tl, ok = rl.perTenant[tenantID]; !ok {
			tl = &tenantLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.tenantRPS), rl.tenantBurst),
				lastAccess: time.Now(),
			}

			rl.perTenant[tenantID] = tl

			currentCount := len(rl.perTenant)
			threshold := int(float64(rl.maxTenants) * thresholdMultiplier)

			if currentCount >= threshold {
				slog.Warn("rate limiter approaching max tenants limit",
					"current_tenants", currentCount,
					"max_tenants", rl.maxTenants,
					"threshold_percent", thresholdPercentage,
					"recommendation", "investigate potential tenant ID proliferation or increase max_tenants limit")
			}
		}

		rl.mu.Unlock()
	}

	tl.mu.Lock()
	tl.lastAccess = time.Now()
	tl.mu.Unlock()

	return tl.limiter.Allow()
}

// Close stops the cleanup goroutine and releases resources.
// Must be called when the InMemoryRateLimiter is no longer needed.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

// startCleanup starts a background goroutine that periodically removes
// stale tenant limiters to prevent memory leaks.
func (rl *InMemoryRateLimiter) startCleanup() {
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes tenant limiters that haven't been accessed recently.
func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for tenantID, tl := range rl.perTenant {
		tl.mu.Lock()
		lastAccess := tl.lastAccess
		tl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perTenant, tenantID)
		}
	}
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
//
// Rate limiting is applied in three tiers:
//  1. Global limit (all requests)
//  2. Per-tenant limit (requests carrying an X-Tenant-ID header)
//  3. Unidentified limit (requests without a tenant header)
//
// The middleware must run after TenantID() in the chain so GetTenantID can
// read the tenant header from context.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := GetTenantID(r.Context())

			if !limiter.Allow(tenantID) {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write response with RFC 7807 error format",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("detail", detail),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
