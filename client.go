// Package pulse provides a client for an activity-tracking server.
//
// The client maps bucket, event, and query operations directly onto the
// server's HTTP API. Heartbeats go through a per-bucket queue that delivers
// them strictly one at a time, in submission order, even when callers submit
// concurrently; see Heartbeat and HeartbeatAsync.
//
// Example usage:
//
//	client, err := pulse.New(pulse.Config{ClientName: "my-watcher"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx := context.Background()
//	if _, err := client.EnsureBucket(ctx, "my-bucket", "currently-active", ""); err != nil {
//	    log.Fatal(err)
//	}
//	hb := &pulse.Event{Timestamp: time.Now(), Data: map[string]interface{}{"app": "editor"}}
//	if _, err := client.Heartbeat(ctx, "my-bucket", 60, hb); err != nil {
//	    log.Fatal(err)
//	}
package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bft-labs/pulse/pkg/log"
	"github.com/bft-labs/pulse/pkg/transport"
)

// apiPrefix is appended to the configured base URL for all requests.
const apiPrefix = "/api/0"

// Client talks to an activity-tracking server.
// Use New() to create an instance. A Client is safe for concurrent use.
type Client struct {
	config    Config
	transport *transport.Transport
	logger    log.Logger

	queueMu sync.Mutex
	queues  map[string]*bucketQueue
}

// New creates a new Client with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config, opts ...Option) (*Client, error) {
	// Set defaults
	cfg.SetDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Client{
		config:    cfg,
		transport: transport.New(cfg.BaseURL+apiPrefix, httpClient, logger),
		logger:    logger,
		queues:    make(map[string]*bucketQueue),
	}, nil
}

// Info retrieves server information.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.transport.Get(ctx, "/info", &info); err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}
	return &info, nil
}

// createBucketRequest is the POST /buckets/{id} payload.
type createBucketRequest struct {
	Client   string `json:"client"`
	Type     string `json:"type"`
	Hostname string `json:"hostname"`
}

// CreateBucket creates a bucket on the server. An empty hostname falls back
// to the configured client hostname. If the bucket already exists the server
// responds 304, which surfaces as a *transport.StatusError like any other
// non-2xx status; use EnsureBucket for create-if-absent semantics.
func (c *Client) CreateBucket(ctx context.Context, bucketID, bucketType, hostname string) error {
	if hostname == "" {
		hostname = c.config.Hostname
	}
	body := createBucketRequest{
		Client:   c.config.ClientName,
		Type:     bucketType,
		Hostname: hostname,
	}
	if err := c.transport.Post(ctx, bucketPath(bucketID), body, nil); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketID, err)
	}
	return nil
}

// EnsureBucket creates a bucket if it does not exist. It returns true if the
// bucket already existed (server responded 304) and false if it was created.
// Any other failure propagates unchanged.
func (c *Client) EnsureBucket(ctx context.Context, bucketID, bucketType, hostname string) (bool, error) {
	err := c.CreateBucket(ctx, bucketID, bucketType, hostname)
	if err == nil {
		return false, nil
	}
	if transport.IsStatus(err, http.StatusNotModified) {
		c.logger.Debug("bucket already exists", log.String("bucket", bucketID))
		return true, nil
	}
	return false, err
}

// DeleteBucket removes a bucket and all of its events.
func (c *Client) DeleteBucket(ctx context.Context, bucketID string) error {
	if err := c.transport.Delete(ctx, bucketPath(bucketID)+"?force=1"); err != nil {
		return fmt.Errorf("delete bucket %s: %w", bucketID, err)
	}
	return nil
}

// Buckets lists all buckets on the server, keyed by bucket id.
func (c *Client) Buckets(ctx context.Context) (map[string]Bucket, error) {
	var buckets map[string]Bucket
	if err := c.transport.Get(ctx, "/buckets/", &buckets); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return buckets, nil
}

// Bucket retrieves metadata for a single bucket.
func (c *Client) Bucket(ctx context.Context, bucketID string) (*Bucket, error) {
	var bucket Bucket
	if err := c.transport.Get(ctx, bucketPath(bucketID), &bucket); err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", bucketID, err)
	}
	return &bucket, nil
}

// EventQuery narrows an Events listing. Zero values are omitted.
type EventQuery struct {
	Limit int
	Start time.Time
	End   time.Time
}

// Events retrieves events from a bucket, most recent first.
func (c *Client) Events(ctx context.Context, bucketID string, q EventQuery) ([]Event, error) {
	params := url.Values{}
	if q.Limit != 0 {
		params.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if !q.Start.IsZero() {
		params.Set("start", q.Start.Format(time.RFC3339Nano))
	}
	if !q.End.IsZero() {
		params.Set("end", q.End.Format(time.RFC3339Nano))
	}

	path := bucketPath(bucketID) + "/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var events []Event
	if err := c.transport.Get(ctx, path, &events); err != nil {
		return nil, fmt.Errorf("get events for %s: %w", bucketID, err)
	}
	return events, nil
}

// EventCount returns the number of events in a bucket. Zero-valued start
// and end are omitted and count the whole bucket.
func (c *Client) EventCount(ctx context.Context, bucketID string, start, end time.Time) (int, error) {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start", start.Format(time.RFC3339Nano))
	}
	if !end.IsZero() {
		params.Set("end", end.Format(time.RFC3339Nano))
	}

	path := bucketPath(bucketID) + "/events/count"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var count int
	if err := c.transport.Get(ctx, path, &count); err != nil {
		return 0, fmt.Errorf("count events for %s: %w", bucketID, err)
	}
	return count, nil
}

// InsertEvent stores a single finalized event in a bucket.
func (c *Client) InsertEvent(ctx context.Context, bucketID string, event *Event) error {
	if err := c.transport.Post(ctx, bucketPath(bucketID)+"/events", event, nil); err != nil {
		return fmt.Errorf("insert event into %s: %w", bucketID, err)
	}
	return nil
}

// InsertEvents stores events in a bucket and returns the stored records.
// Servers respond with a bare object instead of an array when a single event
// is inserted; the result is normalized to a slice either way.
func (c *Client) InsertEvents(ctx context.Context, bucketID string, events ...*Event) ([]Event, error) {
	var raw json.RawMessage
	if err := c.transport.Post(ctx, bucketPath(bucketID)+"/events", events, &raw); err != nil {
		return nil, fmt.Errorf("insert events into %s: %w", bucketID, err)
	}
	return normalizeEvents(raw)
}

// normalizeEvents decodes a server event response that may be either a
// single object or an array.
func normalizeEvents(raw json.RawMessage) ([]Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return events, nil
	}
	var event Event
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return []Event{event}, nil
}

// queryRequest is the POST /query/ payload.
type queryRequest struct {
	Timeperiods []TimePeriod `json:"timeperiods"`
	Query       []string     `json:"query"`
}

// Query submits a query to the server and returns one raw JSON result per
// time period. The query is a list of statements in the server's query
// language.
func (c *Client) Query(ctx context.Context, periods []TimePeriod, query []string) ([]json.RawMessage, error) {
	body := queryRequest{
		Timeperiods: periods,
		Query:       query,
	}
	var results []json.RawMessage
	if err := c.transport.Post(ctx, "/query/", body, &results); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return results, nil
}

// bucketPath returns the API path for a bucket, escaping the id.
func bucketPath(bucketID string) string {
	return "/buckets/" + url.PathEscape(bucketID)
}
