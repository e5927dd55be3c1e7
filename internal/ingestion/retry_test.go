package ingestion

import (
	"testing"
	"time"
)

func TestNextRetry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := RetryConfig{MaxAttempts: 5, BaseBackoffSeconds: 2}

	tests := []struct {
		name      string
		attempt   int
		wantDelay time.Duration
		wantTerm  bool
	}{
		{name: "attempt 1", attempt: 1, wantDelay: 2 * time.Second},
		{name: "attempt 2", attempt: 2, wantDelay: 4 * time.Second},
		{name: "attempt 3", attempt: 3, wantDelay: 8 * time.Second},
		{name: "attempt 4", attempt: 4, wantDelay: 16 * time.Second},
		{name: "attempt 5 is terminal (>= max_attempts)", attempt: 5, wantTerm: true},
		{name: "attempt beyond max is terminal", attempt: 9, wantTerm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextRetry(tt.attempt, cfg)

			if got.Terminal != tt.wantTerm {
				t.Fatalf("Terminal = %v, want %v", got.Terminal, tt.wantTerm)
			}

			if !tt.wantTerm && got.Delay != tt.wantDelay {
				t.Errorf("Delay = %v, want %v", got.Delay, tt.wantDelay)
			}
		})
	}
}

func TestNextRetry_CeilingAt300Seconds(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := RetryConfig{MaxAttempts: 20, BaseBackoffSeconds: 2}

	// a clamps at 10: delay = min(300, 2 * 2^9) = min(300, 1024) = 300
	got := NextRetry(12, cfg)

	if got.Terminal {
		t.Fatal("expected non-terminal decision")
	}

	if got.Delay != 300*time.Second {
		t.Errorf("Delay = %v, want %v", got.Delay, 300*time.Second)
	}
}

func TestNextRetry_AttemptClampedToOne(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cfg := RetryConfig{MaxAttempts: 5, BaseBackoffSeconds: 2}

	got := NextRetry(0, cfg)

	if got.Terminal {
		t.Fatal("expected non-terminal decision")
	}

	if got.Delay != 2*time.Second {
		t.Errorf("Delay = %v, want %v", got.Delay, 2*time.Second)
	}
}
