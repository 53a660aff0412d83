// Package watcher turns filesystem activity into heartbeats.
// It watches directories with fsnotify and submits a heartbeat through the
// client's per-bucket queue for every file change, throttled per file.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pulse"
	"github.com/bft-labs/pulse/pkg/log"
)

// BucketType is the bucket type recorded for file-activity buckets.
const BucketType = "file-activity"

// Config holds configuration options for the file-activity watcher.
type Config struct {
	// Client submits heartbeats. Required.
	Client *pulse.Client

	// BucketID is the bucket heartbeats are sent to. Required.
	BucketID string

	// Dirs are the directories to watch. At least one is required.
	Dirs []string

	// Pulsetime is the merge window forwarded to the server.
	// Default: 60 seconds.
	Pulsetime float64

	// Throttle is the minimum gap between heartbeats for the same file.
	// Default: 1 second.
	Throttle time.Duration

	// Logger receives watcher activity. Optional.
	Logger log.Logger
}

// Watcher streams file-change heartbeats to a bucket.
type Watcher struct {
	client    *pulse.Client
	bucketID  string
	dirs      []string
	pulsetime float64
	throttle  time.Duration
	logger    log.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New creates a new file-activity watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.BucketID == "" {
		return nil, fmt.Errorf("bucket id is required")
	}
	if len(cfg.Dirs) == 0 {
		return nil, fmt.Errorf("at least one directory is required")
	}
	if cfg.Pulsetime <= 0 {
		cfg.Pulsetime = 60
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Watcher{
		client:    cfg.Client,
		bucketID:  cfg.BucketID,
		dirs:      cfg.Dirs,
		pulsetime: cfg.Pulsetime,
		throttle:  cfg.Throttle,
		logger:    logger,
		lastSent:  make(map[string]time.Time),
	}, nil
}

// Run ensures the target bucket exists, then watches for file changes until
// the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.client.EnsureBucket(ctx, w.bucketID, BucketType, ""); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Info("watching directory", log.String("dir", dir))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", log.Err(err))
		}
	}
}

// handleEvent submits a heartbeat for a file change unless the file was
// reported within the throttle window.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	now := time.Now()

	w.mu.Lock()
	if last, ok := w.lastSent[event.Name]; ok && now.Sub(last) < w.throttle {
		w.mu.Unlock()
		return
	}
	w.lastSent[event.Name] = now
	w.mu.Unlock()

	hb := &pulse.Event{
		Timestamp: now,
		Data: map[string]interface{}{
			"file":   event.Name,
			"action": strings.ToLower(event.Op.String()),
		},
	}

	done := w.client.HeartbeatAsync(w.bucketID, w.pulsetime, hb)
	go func() {
		if res := <-done; res.Err != nil {
			w.logger.Warn("heartbeat failed",
				log.String("file", event.Name),
				log.Err(res.Err))
		} else {
			w.logger.Debug("heartbeat sent", log.String("file", event.Name))
		}
	}()
}
