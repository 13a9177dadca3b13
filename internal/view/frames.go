package view

import (
	"sync"
	"time"
)

// FrameQueue is a Scheduler for hosts that tick on their own clock. Each
// Flush runs the callbacks queued before it started; anything requested
// during a flush waits for the next one.
type FrameQueue struct {
	mu      sync.Mutex
	pending []func(time.Time)
}

func (q *FrameQueue) RequestFrame(fn func(now time.Time)) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Flush runs one frame and reports how many callbacks ran.
func (q *FrameQueue) Flush(now time.Time) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn(now)
	}
	return len(batch)
}

// Pending reports whether a frame has been requested.
func (q *FrameQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}
