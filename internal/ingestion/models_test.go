package ingestion

import (
	"errors"
	"testing"
	"time"
)

func TestSubmissionRequest_Validate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	now := time.Now()

	tests := []struct {
		name    string
		req     SubmissionRequest
		wantErr error
	}{
		{
			name: "valid request",
			req: SubmissionRequest{
				TenantID: "tenant-a",
				Events:   []EventInput{{Type: "click", Timestamp: now}},
			},
		},
		{
			name: "empty tenant id",
			req: SubmissionRequest{
				Events: []EventInput{{Type: "click", Timestamp: now}},
			},
			wantErr: ErrTenantIDEmpty,
		},
		{
			name: "no events",
			req: SubmissionRequest{
				TenantID: "tenant-a",
			},
			wantErr: ErrNoEvents,
		},
		{
			name: "event with blank type",
			req: SubmissionRequest{
				TenantID: "tenant-a",
				Events:   []EventInput{{Timestamp: now}},
			},
			wantErr: ErrEventTypeEmpty,
		},
		{
			name: "event with zero timestamp",
			req: SubmissionRequest{
				TenantID: "tenant-a",
				Events:   []EventInput{{Type: "click"}},
			},
			wantErr: ErrEventTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}

				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
