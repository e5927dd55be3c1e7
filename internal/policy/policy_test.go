package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ingestord/ingestord/internal/ingestion"
)

func TestLoadConfig_MissingPathDegradesGracefully(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if len(cfg.Tenants) != 0 {
		t.Errorf("Tenants = %v, want empty", cfg.Tenants)
	}
}

func TestLoadConfig_NonexistentFileDegradesGracefully(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg, err := LoadConfig("/nonexistent/policy-overrides.yaml")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if len(cfg.Tenants) != 0 {
		t.Errorf("Tenants = %v, want empty", cfg.Tenants)
	}
}

func TestLoadConfig_ParsesOverridesFile(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	path := filepath.Join(t.TempDir(), "overrides.yaml")

	content := []byte(`tenants:
  - tenant_id: "acme-corp"
    max_attempts: 10
    base_backoff_seconds: 5
  - tenant_id: "globex"
    max_attempts: 2
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write overrides file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if len(cfg.Tenants) != 2 {
		t.Fatalf("len(Tenants) = %d, want 2", len(cfg.Tenants))
	}

	if cfg.Tenants[0].TenantID != "acme-corp" || cfg.Tenants[0].MaxAttempts != 10 || cfg.Tenants[0].BaseBackoffSeconds != 5 {
		t.Errorf("Tenants[0] = %+v, want acme-corp/10/5", cfg.Tenants[0])
	}

	if cfg.Tenants[1].TenantID != "globex" || cfg.Tenants[1].MaxAttempts != 2 {
		t.Errorf("Tenants[1] = %+v, want globex/2", cfg.Tenants[1])
	}
}

func TestLoadConfig_InvalidYAMLDegradesGracefully(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	path := filepath.Join(t.TempDir(), "overrides.yaml")
	if err := os.WriteFile(path, []byte("tenants: ["), 0o600); err != nil {
		t.Fatalf("failed to write overrides file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v, want nil", err)
	}

	if len(cfg.Tenants) != 0 {
		t.Errorf("Tenants = %v, want empty", cfg.Tenants)
	}
}

func TestResolver_FallsBackForUnknownTenant(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	fallback := ingestion.DefaultRetryConfig()
	cfg := &Config{Tenants: []TenantOverride{
		{TenantID: "acme-corp", MaxAttempts: 10, BaseBackoffSeconds: 5},
	}}

	resolver := NewResolver(cfg, fallback)

	if got := resolver.For("unknown-tenant"); got != fallback {
		t.Errorf("For(unknown) = %+v, want fallback %+v", got, fallback)
	}

	want := ingestion.RetryConfig{MaxAttempts: 10, BaseBackoffSeconds: 5}
	if got := resolver.For("acme-corp"); got.MaxAttempts != want.MaxAttempts || got.BaseBackoffSeconds != want.BaseBackoffSeconds {
		t.Errorf("For(acme-corp) = %+v, want %+v", got, want)
	}
}
