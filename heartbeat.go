package pulse

import (
	"context"
	"strconv"
	"sync"

	"github.com/bft-labs/pulse/pkg/log"
)

// HeartbeatResult is the completion record for a queued heartbeat.
// Exactly one of Heartbeat or Err is set.
type HeartbeatResult struct {
	// Heartbeat is the event as processed by the server.
	Heartbeat *Event

	// Err is the delivery failure, if any.
	Err error
}

// heartbeatItem is a pending heartbeat plus the channel its result is
// delivered on. The channel is buffered and receives exactly one send.
type heartbeatItem struct {
	heartbeat *Event
	pulsetime float64
	done      chan HeartbeatResult
}

// bucketQueue serializes heartbeat delivery for one bucket.
// Invariant: draining is true exactly while a drain goroutine is live for
// this queue, so at most one heartbeat request per bucket is in flight.
type bucketQueue struct {
	mu       sync.Mutex
	items    []*heartbeatItem
	draining bool
}

// HeartbeatAsync enqueues a heartbeat for a bucket and returns immediately.
// The returned channel receives exactly one HeartbeatResult once the server
// has processed (or rejected) this heartbeat.
//
// Heartbeats for the same bucket are sent one at a time, in submission
// order, regardless of how many callers submit concurrently. A failed
// delivery settles only its own result; later heartbeats in the queue are
// still sent. Queues for different buckets are independent.
//
// The queue is unbounded and enqueued heartbeats cannot be cancelled; once
// accepted, an item is always dispatched.
func (c *Client) HeartbeatAsync(bucketID string, pulsetime float64, heartbeat *Event) <-chan HeartbeatResult {
	item := &heartbeatItem{
		heartbeat: heartbeat,
		pulsetime: pulsetime,
		done:      make(chan HeartbeatResult, 1),
	}

	q := c.queue(bucketID)

	q.mu.Lock()
	q.items = append(q.items, item)
	start := !q.draining
	if start {
		q.draining = true
	}
	depth := len(q.items)
	q.mu.Unlock()

	c.logger.Debug("heartbeat enqueued",
		log.String("bucket", bucketID),
		log.Int("depth", depth))

	if start {
		go c.drain(bucketID, q)
	}
	return item.done
}

// Heartbeat enqueues a heartbeat and waits for its result. Cancelling ctx
// abandons the wait only; the heartbeat itself is still dispatched in order.
func (c *Client) Heartbeat(ctx context.Context, bucketID string, pulsetime float64, heartbeat *Event) (*Event, error) {
	done := c.HeartbeatAsync(bucketID, pulsetime, heartbeat)
	select {
	case res := <-done:
		return res.Heartbeat, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// queue returns the bucket's queue, creating it on first use.
// Queues live for the lifetime of the Client.
func (c *Client) queue(bucketID string) *bucketQueue {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	q, ok := c.queues[bucketID]
	if !ok {
		q = &bucketQueue{}
		c.queues[bucketID] = q
	}
	return q
}

// drain sends queued heartbeats one at a time until the queue is empty.
// The empty check and the draining reset happen under the same lock
// acquisition, so a concurrent enqueue either sees draining still set or
// finds the queue idle and starts a new drain; items are never stranded.
func (c *Client) drain(bucketID string, q *bucketQueue) {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		hb, err := c.postHeartbeat(bucketID, item)
		if err != nil {
			c.logger.Warn("heartbeat delivery failed",
				log.String("bucket", bucketID),
				log.Err(err))
		}
		item.done <- HeartbeatResult{Heartbeat: hb, Err: err}
	}
}

// postHeartbeat performs the HTTP exchange for one queue item. Dispatch is
// detached from caller contexts; only the transport timeout bounds it.
func (c *Client) postHeartbeat(bucketID string, item *heartbeatItem) (*Event, error) {
	path := bucketPath(bucketID) + "/heartbeat?pulsetime=" +
		strconv.FormatFloat(item.pulsetime, 'f', -1, 64)

	var out Event
	if err := c.transport.Post(context.Background(), path, item.heartbeat, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
