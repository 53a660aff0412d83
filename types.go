package pulse

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single activity record in a bucket. A heartbeat is an Event
// whose Duration may be zero; the server extends the duration of a matching
// prior event when heartbeats arrive within the pulsetime window.
type Event struct {
	// ID is assigned by the server; zero on events that have not been stored.
	ID int64 `json:"id,omitempty"`

	// Timestamp is the start of the activity interval.
	Timestamp time.Time `json:"timestamp"`

	// Duration is the interval length in seconds.
	Duration float64 `json:"duration"`

	// Data carries the domain payload (active file, window title, and so on).
	Data map[string]interface{} `json:"data"`
}

// Bucket is a named, typed container of events owned by the server.
type Bucket struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Client      string     `json:"client"`
	Hostname    string     `json:"hostname"`
	Created     time.Time  `json:"created"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// UnmarshalJSON accepts both "last_updated" and the older "last_update"
// wire key for the last update timestamp.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	type bucketAlias Bucket
	aux := struct {
		*bucketAlias
		LastUpdate *time.Time `json:"last_update"`
	}{bucketAlias: (*bucketAlias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.LastUpdated == nil {
		b.LastUpdated = aux.LastUpdate
	}
	return nil
}

// Info describes the server instance.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Testing  bool   `json:"testing"`
}

// TimePeriod is a query time range. Use Period for a pair of instants or
// RawPeriod for a pre-formatted "start/end" string.
type TimePeriod struct {
	Start time.Time
	End   time.Time

	// Raw, when non-empty, is sent as-is and takes precedence over Start/End.
	Raw string
}

// Period creates a TimePeriod from a pair of instants.
func Period(start, end time.Time) TimePeriod {
	return TimePeriod{Start: start, End: end}
}

// RawPeriod creates a TimePeriod from a pre-formatted "start/end" string.
func RawPeriod(s string) TimePeriod {
	return TimePeriod{Raw: s}
}

// Format returns the wire form "{startISO}/{endISO}".
func (p TimePeriod) Format() string {
	if p.Raw != "" {
		return p.Raw
	}
	return fmt.Sprintf("%s/%s", p.Start.Format(time.RFC3339Nano), p.End.Format(time.RFC3339Nano))
}

// MarshalJSON serializes the period as its wire string.
func (p TimePeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Format())
}
