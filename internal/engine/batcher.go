package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCoalesceWindow = 50 * time.Millisecond

// Applier consumes one update during a drain. An error fails only that
// update; the rest of the drain proceeds.
type Applier func(Update) error

// BatcherStatus is a point-in-time view of the batcher's internals.
type BatcherStatus struct {
	QueueLen int
	Draining bool
	Appliers int
}

// Batcher coalesces inbound state deltas from push and poll into a single
// ordered queue and drains them on a bounded cadence. Bursts of rapid
// updates inside one coalescing window collapse into a single apply pass,
// so downstream consumers re-render at a bounded rate no matter how fast
// messages arrive. Only the drain path writes to the canonical stores.
type Batcher struct {
	window time.Duration
	log    zerolog.Logger

	mu       sync.Mutex
	queue    []Update
	timer    *time.Timer
	draining bool
	closed   bool
	appliers []Applier
}

// NewBatcher returns a Batcher draining after the given coalescing
// window. A non-positive window uses the default.
func NewBatcher(window time.Duration, log zerolog.Logger) *Batcher {
	if window <= 0 {
		window = defaultCoalesceWindow
	}
	return &Batcher{window: window, log: log}
}

// OnApply registers a downstream applier invoked for every drained
// update, in registration order.
func (b *Batcher) OnApply(fn Applier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appliers = append(b.appliers, fn)
}

// Enqueue appends an update and, when no drain is scheduled or running,
// arms the coalescing timer. Enqueueing while a drain is running never
// starts a second drain: the running drain picks up everything added
// before it finishes.
func (b *Batcher) Enqueue(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.queue = append(b.queue, u)
	if b.draining || b.timer != nil {
		return
	}
	b.timer = time.AfterFunc(b.window, b.Drain)
}

// Drain applies every queued update in enqueue order. It is re-entrant
// safe: a call while another drain is running returns immediately.
// Draining an empty queue is a no-op.
func (b *Batcher) Drain() {
	b.mu.Lock()
	if b.draining || b.closed {
		b.mu.Unlock()
		return
	}
	b.draining = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	for len(b.queue) > 0 {
		batch := b.queue
		b.queue = nil
		appliers := b.appliers
		b.mu.Unlock()

		for _, u := range batch {
			for _, apply := range appliers {
				if err := apply(u); err != nil {
					// One bad payload must not abort the rest.
					b.log.Error().
						Err(err).
						Str("host", u.Hostname).
						Str("origin", string(u.Origin)).
						Msg("apply update failed")
				}
			}
		}

		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}

// Status reports queue size, the in-flight flag, and the number of
// registered appliers.
func (b *Batcher) Status() BatcherStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BatcherStatus{
		QueueLen: len(b.queue),
		Draining: b.draining,
		Appliers: len(b.appliers),
	}
}

// Close discards the pending queue and cancels the coalescing timer.
// Further enqueues are dropped.
func (b *Batcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.queue = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
