package api

import (
	"errors"
	"testing"
	"time"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	config := LoadServerConfig()

	if config.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", config.Addr, DefaultAddr)
	}

	if config.MaxRequestSize != DefaultMaxRequestSize {
		t.Errorf("MaxRequestSize = %d, want %d", config.MaxRequestSize, DefaultMaxRequestSize)
	}

	if config.RateLimitRPS != DefaultRateLimitRPS {
		t.Errorf("RateLimitRPS = %d, want %d", config.RateLimitRPS, DefaultRateLimitRPS)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestServerConfig_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		config  ServerConfig
		wantErr error
	}{
		{
			name: "valid config",
			config: ServerConfig{
				Addr: "0.0.0.0:8080", ReadTimeout: time.Second, WriteTimeout: time.Second,
				ShutdownTimeout: time.Second, MaxRequestSize: 1024, RateLimitRPS: 10,
			},
		},
		{
			name:    "empty addr",
			config:  ServerConfig{ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second, MaxRequestSize: 1, RateLimitRPS: 1},
			wantErr: ErrEmptyAddr,
		},
		{
			name:    "zero read timeout",
			config:  ServerConfig{Addr: "a", WriteTimeout: time.Second, ShutdownTimeout: time.Second, MaxRequestSize: 1, RateLimitRPS: 1},
			wantErr: ErrInvalidReadTimeout,
		},
		{
			name:    "zero max request size",
			config:  ServerConfig{Addr: "a", ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second, RateLimitRPS: 1},
			wantErr: ErrInvalidMaxRequestSize,
		},
		{
			name:    "zero rate limit",
			config:  ServerConfig{Addr: "a", ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second, MaxRequestSize: 1},
			wantErr: ErrInvalidRateLimitRPS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want error wrapping %v", err, tt.wantErr)
			}
		})
	}
}
