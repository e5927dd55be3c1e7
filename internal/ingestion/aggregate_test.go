package ingestion

import (
	"reflect"
	"testing"
	"time"
)

func TestAggregate(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	now := time.Now()

	tests := []struct {
		name   string
		events []RawEvent
		want   []ResultRow
	}{
		{
			name:   "empty input produces empty output",
			events: nil,
			want:   []ResultRow{},
		},
		{
			name: "single event type",
			events: []RawEvent{
				{Type: "click", Timestamp: now},
				{Type: "click", Timestamp: now},
			},
			want: []ResultRow{
				{EventType: "click", Count: 2},
			},
		},
		{
			name: "case-insensitive grouping retains first-observed spelling",
			events: []RawEvent{
				{Type: "Click", Timestamp: now},
				{Type: "click", Timestamp: now},
				{Type: "CLICK", Timestamp: now},
			},
			want: []ResultRow{
				{EventType: "Click", Count: 3},
			},
		},
		{
			name: "sorted case-insensitive ascending",
			events: []RawEvent{
				{Type: "view", Timestamp: now},
				{Type: "Click", Timestamp: now},
				{Type: "ADD_TO_CART", Timestamp: now},
			},
			want: []ResultRow{
				{EventType: "ADD_TO_CART", Count: 1},
				{EventType: "Click", Count: 1},
				{EventType: "view", Count: 1},
			},
		},
		{
			name: "case variants merged before sorting",
			events: []RawEvent{
				{Type: "Beta", Timestamp: now},
				{Type: "beta", Timestamp: now},
				{Type: "alpha", Timestamp: now},
			},
			want: []ResultRow{
				{EventType: "alpha", Count: 1},
				{EventType: "Beta", Count: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.events)

			if len(got) == 0 && len(tt.want) == 0 {
				return
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Aggregate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregate_EveryRowCountAtLeastOne(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	events := []RawEvent{
		{Type: "a", Timestamp: time.Now()},
		{Type: "b", Timestamp: time.Now()},
		{Type: "a", Timestamp: time.Now()},
	}

	for _, row := range Aggregate(events) {
		if row.Count < 1 {
			t.Errorf("event type %q has count %d, want >= 1", row.EventType, row.Count)
		}
	}
}
