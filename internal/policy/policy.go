// Package policy provides per-tenant overrides of the engine's default
// retry policy, loaded from a YAML file and resolved by tenant ID.
//
// Example overrides file:
//
//	tenants:
//	  - tenant_id: "acme-corp"
//	    max_attempts: 10
//	    base_backoff_seconds: 5
//
// A tenant absent from the file falls back to the engine-wide default.
package policy

import (
	"errors"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ingestord/ingestord/internal/ingestion"
)

type (
	// TenantOverride is one tenant's retry-policy overrides. Fields left at
	// their zero value fall back to the engine-wide default.
	TenantOverride struct {
		//nolint:tagliatelle // snake_case is intentional for YAML config files
		TenantID string `yaml:"tenant_id"`
		//nolint:tagliatelle
		MaxAttempts int `yaml:"max_attempts"`
		//nolint:tagliatelle
		BaseBackoffSeconds int `yaml:"base_backoff_seconds"`
	}

	// Config holds tenant retry-policy overrides loaded from a YAML file.
	Config struct {
		Tenants []TenantOverride `yaml:"tenants"`
	}
)

// ConfigPathEnvVar is the environment variable naming the overrides file.
const ConfigPathEnvVar = "POLICY_OVERRIDES_PATH"

// LoadConfig loads tenant overrides from a YAML file at the given path.
//
// Behavior mirrors the engine's other optional-config loaders: a missing or
// empty path, a missing file, or invalid YAML all degrade gracefully to an
// empty config rather than failing startup, since per-tenant overrides are
// never required for the engine to run.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Tenants: []TenantOverride{}}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("policy overrides file not found, continuing with defaults", slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("failed to read policy overrides file, continuing with defaults",
			slog.String("path", path), slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("failed to parse policy overrides file, continuing with defaults",
			slog.String("path", path), slog.String("error", err.Error()))

		return &Config{Tenants: []TenantOverride{}}, nil
	}

	if cfg.Tenants == nil {
		cfg.Tenants = []TenantOverride{}
	}

	return cfg, nil
}

// Resolver resolves a tenant's effective retry configuration, falling back
// to a shared default for tenants with no override on file.
type Resolver struct {
	byTenant map[string]ingestion.RetryConfig
	fallback ingestion.RetryConfig
}

// NewResolver builds a Resolver from loaded overrides and the engine default.
func NewResolver(cfg *Config, fallback ingestion.RetryConfig) *Resolver {
	byTenant := make(map[string]ingestion.RetryConfig, len(cfg.Tenants))

	for _, t := range cfg.Tenants {
		rc := fallback

		if t.MaxAttempts > 0 {
			rc.MaxAttempts = t.MaxAttempts
		}

		if t.BaseBackoffSeconds > 0 {
			rc.BaseBackoffSeconds = t.BaseBackoffSeconds
		}

		byTenant[t.TenantID] = rc
	}

	return &Resolver{byTenant: byTenant, fallback: fallback}
}

// For returns the effective retry configuration for a tenant.
func (r *Resolver) For(tenantID string) ingestion.RetryConfig {
	if rc, ok := r.byTenant[tenantID]; ok {
		return rc
	}

	return r.fallback
}
