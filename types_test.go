package pulse

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBucket_UnmarshalLastUpdatedKeys(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{
			name: "last_updated key",
			data: `{"id": "b1", "created": "2024-01-01T00:00:00Z", "last_updated": "2024-01-02T00:00:00Z"}`,
			want: true,
		},
		{
			name: "last_update key",
			data: `{"id": "b1", "created": "2024-01-01T00:00:00Z", "last_update": "2024-01-02T00:00:00Z"}`,
			want: true,
		},
		{
			name: "no update key",
			data: `{"id": "b1", "created": "2024-01-01T00:00:00Z"}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bucket
			if err := json.Unmarshal([]byte(tt.data), &b); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if b.ID != "b1" {
				t.Errorf("ID = %v, want b1", b.ID)
			}
			if (b.LastUpdated != nil) != tt.want {
				t.Errorf("LastUpdated set = %v, want %v", b.LastUpdated != nil, tt.want)
			}
			if tt.want {
				wantTime := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
				if !b.LastUpdated.Equal(wantTime) {
					t.Errorf("LastUpdated = %v, want %v", b.LastUpdated, wantTime)
				}
			}
		})
	}
}

func TestTimePeriod_Format(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if got := Period(start, end).Format(); got != "2024-01-01T00:00:00Z/2024-01-02T00:00:00Z" {
		t.Errorf("Format() = %v", got)
	}
	if got := RawPeriod("a/b").Format(); got != "a/b" {
		t.Errorf("RawPeriod Format() = %v, want a/b", got)
	}

	out, err := json.Marshal(Period(start, end))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2024-01-01T00:00:00Z/2024-01-02T00:00:00Z"` {
		t.Errorf("MarshalJSON = %s", out)
	}
}

func TestEvent_RoundTrip(t *testing.T) {
	ev := Event{
		ID:        3,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:  12.5,
		Data:      map[string]interface{}{"file": "main.go"},
	}

	out, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Event
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ev.Timestamp)
	}
	if got.ID != ev.ID || got.Duration != ev.Duration {
		t.Errorf("round trip = %+v, want %+v", got, ev)
	}
	if got.Data["file"] != "main.go" {
		t.Errorf("Data = %v, want file=main.go", got.Data)
	}
}

func TestNormalizeEvents(t *testing.T) {
	events, err := normalizeEvents([]byte(`  {"id": 1, "timestamp": "2024-01-01T00:00:00Z", "duration": 0, "data": {}}`))
	if err != nil {
		t.Fatalf("normalizeEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != 1 {
		t.Errorf("events = %+v, want single event id=1", events)
	}

	events, err = normalizeEvents(nil)
	if err != nil {
		t.Fatalf("normalizeEvents(nil): %v", err)
	}
	if events != nil {
		t.Errorf("events = %+v, want nil", events)
	}
}
