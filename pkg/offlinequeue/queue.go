package offlinequeue

import (
	"context"
	"sync"
	"time"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
)

// Defaults
const (
	DefaultCapacity   = 50
	DefaultMaxRetries = 5
)

const entriesKey = "entries"

// Drop reasons
const (
	ReasonEvicted   = "evicted"
	ReasonExhausted = "retries_exhausted"
)

// QueuedEvent is an event waiting for redelivery
type QueuedEvent struct {
	Event         event.Event `json:"event"`
	RetryCount    int         `json:"retryCount"`
	EnqueuedAt    time.Time   `json:"enqueuedAt"`
	NextAttemptAt time.Time   `json:"nextAttemptAt"`
}

// Due reports whether the entry may be retried at now
func (q QueuedEvent) Due(now time.Time) bool {
	return !now.Before(q.NextAttemptAt)
}

// Options configures a Queue
type Options struct {
	Capacity   int
	MaxRetries int
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Queue is a bounded FIFO of events awaiting redelivery, persisted on every
// mutation.
type Queue struct {
	store      storage.Store
	capacity   int
	maxRetries int
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	entries  []QueuedEvent
	durable  bool
	degraded bool
}

// New creates a queue and loads any entries persisted by an earlier run
func New(ctx context.Context, store storage.Store, opts Options) *Queue {
	observability.EnsureRegistered()

	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	q := &Queue{
		store:      store,
		capacity:   opts.Capacity,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		logger:     opts.Logger.With().Str("component", "offlinequeue").Logger(),
		durable:    true,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.loadLocked(ctx)
	observability.SetOfflineQueueSize(len(q.entries))

	return q
}

// Capacity returns the queue bound
func (q *Queue) Capacity() int {
	return q.capacity
}

// MaxRetries returns the retry ceiling
func (q *Queue) MaxRetries() int {
	return q.maxRetries
}

// Enqueue appends evt. When the queue is full the oldest entry is evicted and
// returned. Enqueueing an event already present does nothing.
func (q *Queue) Enqueue(ctx context.Context, evt event.Event) *QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.Event.ID == evt.ID {
			return nil
		}
	}

	now := q.now()
	q.entries = append(q.entries, QueuedEvent{
		Event:         evt,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	})

	var evicted *QueuedEvent
	if len(q.entries) > q.capacity {
		oldest := q.entries[0]
		evicted = &oldest
		q.entries = append([]QueuedEvent(nil), q.entries[1:]...)

		observability.RecordQueueDrop(ReasonEvicted)
		q.logger.Warn().
			Str("event_id", oldest.Event.ID).
			Str("event_name", oldest.Event.Name).
			Int("capacity", q.capacity).
			Msg("Offline queue full, evicted oldest event")
	}

	q.persistLocked(ctx)
	return evicted
}

// Drain returns a snapshot of the queue in FIFO order. The queue itself is
// not modified.
func (q *Queue) Drain(ctx context.Context) []QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedEvent, len(q.entries))
	copy(out, q.entries)
	return out
}

// Remove deletes the entry for eventID and reports whether it was present
func (q *Queue) Remove(ctx context.Context, eventID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(eventID)
	if i < 0 {
		return false
	}

	q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
	q.persistLocked(ctx)
	return true
}

// Bump records a failed retry of eventID. The entry is dropped, and true is
// returned, once its retry count reaches the ceiling; otherwise it waits
// until nextAttemptAt.
func (q *Queue) Bump(ctx context.Context, eventID string, nextAttemptAt time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(eventID)
	if i < 0 {
		return false
	}

	entry := &q.entries[i]
	entry.RetryCount++
	entry.NextAttemptAt = nextAttemptAt

	if entry.RetryCount >= q.maxRetries {
		dropped := *entry
		q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
		q.persistLocked(ctx)

		observability.RecordQueueDrop(ReasonExhausted)
		q.logger.Warn().
			Str("event_id", dropped.Event.ID).
			Str("event_name", dropped.Event.Name).
			Int("retries", dropped.RetryCount).
			Msg("Dropping event after exhausting retries")
		return true
	}

	q.persistLocked(ctx)
	return false
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear removes every queued event
func (q *Queue) Clear(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	q.entries = nil

	if !q.degraded {
		if err := q.store.Clear(context.WithoutCancel(ctx), storage.NamespaceQueue); err != nil {
			q.degradeLocked(err)
		}
	}
	observability.SetOfflineQueueSize(0)
	return n
}

// Durable reports whether the queue contents are being persisted
func (q *Queue) Durable() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.durable
}

func (q *Queue) indexLocked(eventID string) int {
	for i, e := range q.entries {
		if e.Event.ID == eventID {
			return i
		}
	}
	return -1
}

func (q *Queue) loadLocked(ctx context.Context) {
	var stored []QueuedEvent
	ok, err := q.store.Get(context.WithoutCancel(ctx), storage.NamespaceQueue, entriesKey, &stored)
	if err != nil {
		q.degradeLocked(err)
		return
	}
	if !ok {
		return
	}

	if len(stored) > q.capacity {
		q.logger.Warn().
			Int("stored", len(stored)).
			Int("capacity", q.capacity).
			Msg("Persisted queue exceeds capacity, trimming oldest entries")
		stored = stored[len(stored)-q.capacity:]
	}

	q.entries = stored
	if len(stored) > 0 {
		q.logger.Info().Int("entries", len(stored)).Msg("Restored offline queue")
	}
}

func (q *Queue) persistLocked(ctx context.Context) {
	observability.SetOfflineQueueSize(len(q.entries))

	if q.degraded {
		return
	}
	if err := q.store.Put(context.WithoutCancel(ctx), storage.NamespaceQueue, entriesKey, q.entries); err != nil {
		q.degradeLocked(err)
	}
}

func (q *Queue) degradeLocked(err error) {
	if q.degraded || storage.Interrupted(err) {
		return
	}
	q.degraded = true
	q.durable = false
	observability.RecordStorageDegraded("offlinequeue")
	q.logger.Warn().Err(err).Msg("Offline queue storage unavailable, continuing in memory")
}
