package offlinequeue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, store storage.Store) *Queue {
	t.Helper()
	return New(context.Background(), store, Options{Logger: zerolog.Nop()})
}

func evt(i int) event.Event {
	return event.Event{
		ID:        fmt.Sprintf("evt-%02d", i),
		Name:      "click",
		Type:      event.TypeClick,
		SessionID: "s",
		Timestamp: "2026-03-01T12:00:00.000Z",
		Metadata:  map[string]interface{}{},
	}
}

func ids(entries []QueuedEvent) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Event.ID
	}
	return out
}

func TestQueue_Defaults(t *testing.T) {
	q := newTestQueue(t, storage.NewMemoryStore())
	assert.Equal(t, DefaultCapacity, q.Capacity())
	assert.Equal(t, DefaultMaxRetries, q.MaxRetries())
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Durable())
}

func TestQueue_CapacityEvictsOldestFIFO(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, storage.NewMemoryStore())

	var evicted []string
	for i := 0; i < 60; i++ {
		if e := q.Enqueue(ctx, evt(i)); e != nil {
			evicted = append(evicted, e.Event.ID)
		}
	}

	assert.Equal(t, 50, q.Len())

	want := make([]string, 10)
	for i := range want {
		want[i] = evt(i).ID
	}
	assert.Equal(t, want, evicted)

	entries := q.Drain(ctx)
	assert.Equal(t, evt(10).ID, entries[0].Event.ID)
	assert.Equal(t, evt(59).ID, entries[49].Event.ID)
}

func TestQueue_DuplicateEnqueueIgnored(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, storage.NewMemoryStore())

	q.Enqueue(ctx, evt(1))
	q.Enqueue(ctx, evt(1))
	assert.Equal(t, 1, q.Len())
}

func TestQueue_DrainIsSnapshot(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, storage.NewMemoryStore())
	q.Enqueue(ctx, evt(1))
	q.Enqueue(ctx, evt(2))

	snapshot := q.Drain(ctx)
	require.True(t, q.Remove(ctx, evt(1).ID))

	assert.Equal(t, []string{evt(1).ID, evt(2).ID}, ids(snapshot))
	assert.Equal(t, []string{evt(2).ID}, ids(q.Drain(ctx)))
	assert.False(t, q.Remove(ctx, "missing"))
}

func TestQueue_BumpDropsAtCeiling(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, storage.NewMemoryStore())
	q.Enqueue(ctx, evt(1))

	next := time.Now().Add(time.Minute)
	for i := 1; i < DefaultMaxRetries; i++ {
		assert.False(t, q.Bump(ctx, evt(1).ID, next))
		entries := q.Drain(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, i, entries[0].RetryCount)
		assert.Equal(t, next, entries[0].NextAttemptAt)
	}

	assert.True(t, q.Bump(ctx, evt(1).ID, next))
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Bump(ctx, evt(1).ID, next))
}

func TestQueue_Due(t *testing.T) {
	now := time.Now()
	assert.True(t, QueuedEvent{NextAttemptAt: now}.Due(now))
	assert.True(t, QueuedEvent{NextAttemptAt: now.Add(-time.Second)}.Due(now))
	assert.False(t, QueuedEvent{NextAttemptAt: now.Add(time.Second)}.Due(now))
}

func TestQueue_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	q := newTestQueue(t, store)
	q.Enqueue(ctx, evt(1))
	q.Enqueue(ctx, evt(2))
	q.Bump(ctx, evt(1).ID, time.Now())

	reloaded := newTestQueue(t, store)
	entries := reloaded.Drain(ctx)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{evt(1).ID, evt(2).ID}, ids(entries))
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Equal(t, "click", entries[0].Event.Name)
}

func TestQueue_LoadTrimsToCapacity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	big := New(ctx, store, Options{Capacity: 10, Logger: zerolog.Nop()})
	for i := 0; i < 10; i++ {
		big.Enqueue(ctx, evt(i))
	}

	small := New(ctx, store, Options{Capacity: 4, Logger: zerolog.Nop()})
	assert.Equal(t, []string{evt(6).ID, evt(7).ID, evt(8).ID, evt(9).ID}, ids(small.Drain(ctx)))
}

func TestQueue_DegradesToMemory(t *testing.T) {
	ctx := context.Background()
	faulty := storage.NewFaulty(storage.NewMemoryStore())
	q := newTestQueue(t, faulty)

	q.Enqueue(ctx, evt(1))
	faulty.SetFailWrites(true)
	q.Enqueue(ctx, evt(2))

	assert.False(t, q.Durable())
	assert.Equal(t, 2, q.Len())

	assert.True(t, q.Remove(ctx, evt(1).ID))
	assert.Equal(t, []string{evt(2).ID}, ids(q.Drain(ctx)))
}

func TestQueue_Clear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	q := newTestQueue(t, store)
	q.Enqueue(ctx, evt(1))
	q.Enqueue(ctx, evt(2))

	assert.Equal(t, 2, q.Clear(ctx))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, newTestQueue(t, store).Len())
}
