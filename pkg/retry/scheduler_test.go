package retry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/beacon/pkg/dispatch"
	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/offlinequeue"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSender struct {
	mu    sync.Mutex
	kinds map[string]dispatch.Kind
	def   dispatch.Kind
	sent  []string
	block chan struct{}
	calls atomic.Int32
}

func (f *fakeSender) Send(ctx context.Context, evt event.Event) dispatch.Outcome {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, evt.ID)
	kind, ok := f.kinds[evt.ID]
	if !ok {
		kind = f.def
	}
	return dispatch.Outcome{Kind: kind, Attempted: true}
}

type fakeConsent struct {
	granted atomic.Bool
}

func (f *fakeConsent) HasConsent(ctx context.Context) bool {
	return f.granted.Load()
}

type harness struct {
	queue     *offlinequeue.Queue
	sender    *fakeSender
	consent   *fakeConsent
	clock     *fakeClock
	scheduler *Scheduler
}

func newHarness(t *testing.T, def dispatch.Kind) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	h := &harness{
		queue: offlinequeue.New(context.Background(), storage.NewMemoryStore(), offlinequeue.Options{
			Now:    clock.Now,
			Logger: zerolog.Nop(),
		}),
		sender:  &fakeSender{def: def, kinds: map[string]dispatch.Kind{}},
		consent: &fakeConsent{},
		clock:   clock,
	}
	h.consent.granted.Store(true)

	s, err := New(h.queue, h.sender, h.consent, Options{Now: clock.Now, Logger: zerolog.Nop()})
	require.NoError(t, err)
	h.scheduler = s
	t.Cleanup(s.Stop)
	return h
}

func (h *harness) enqueue(n int) {
	for i := 0; i < n; i++ {
		h.queue.Enqueue(context.Background(), event.Event{
			ID:        fmt.Sprintf("evt-%d", i),
			Name:      "click",
			Type:      event.TypeClick,
			SessionID: "s",
			Metadata:  map[string]interface{}{},
		})
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 5 * time.Minute}

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{5, 64 * time.Second},
		{7, 256 * time.Second},
		{8, 5 * time.Minute},
		{100, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.retries), func(t *testing.T) {
			assert.Equal(t, tt.want, b.Delay(tt.retries))
		})
	}

	assert.Equal(t, DefaultBaseDelay, Backoff{}.Delay(0))
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 30s", "*/5 * * * *", "@hourly"} {
		_, err := ParseSchedule(spec)
		assert.NoError(t, err, spec)
	}
	for _, spec := range []string{"", "every 30s", "* * *"} {
		_, err := ParseSchedule(spec)
		assert.Error(t, err, spec)
	}
}

func TestDrainOnce_DeliveredRemoved(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	h.enqueue(3)

	report := h.scheduler.DrainOnce(context.Background())

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, 0, h.queue.Len())
	assert.Equal(t, []string{"evt-0", "evt-1", "evt-2"}, h.sender.sent)
}

func TestDrainOnce_RejectedAndDuplicateRemoved(t *testing.T) {
	h := newHarness(t, dispatch.TransientFailure)
	h.enqueue(3)
	h.sender.kinds["evt-0"] = dispatch.Rejected
	h.sender.kinds["evt-1"] = dispatch.Duplicate

	report := h.scheduler.DrainOnce(context.Background())

	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Retried)
	entries := h.queue.Drain(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-2", entries[0].Event.ID)
}

func TestDrainOnce_DropsAfterMaxRetries(t *testing.T) {
	h := newHarness(t, dispatch.TransientFailure)
	h.enqueue(1)

	for pass := 1; pass <= 6; pass++ {
		h.scheduler.DrainOnce(context.Background())
		h.clock.Advance(10 * time.Minute)

		if pass < offlinequeue.DefaultMaxRetries {
			assert.Equal(t, 1, h.queue.Len(), "pass %d", pass)
		}
	}

	assert.Equal(t, 0, h.queue.Len())
	assert.Equal(t, int32(offlinequeue.DefaultMaxRetries), h.sender.calls.Load())
}

func TestDrainOnce_BackoffDefersEntries(t *testing.T) {
	h := newHarness(t, dispatch.TransientFailure)
	h.enqueue(1)

	h.scheduler.DrainOnce(context.Background())
	entries := h.queue.Drain(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, h.clock.Now().Add(DefaultBaseDelay), entries[0].NextAttemptAt)

	// Not yet due
	report := h.scheduler.DrainOnce(context.Background())
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 0, report.Attempted)

	h.clock.Advance(DefaultBaseDelay)
	report = h.scheduler.DrainOnce(context.Background())
	assert.Equal(t, 1, report.Attempted)
}

func TestDrainOnce_SkippedWithoutConsent(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	h.enqueue(2)
	h.consent.granted.Store(false)

	report := h.scheduler.DrainOnce(context.Background())

	assert.True(t, report.Skipped)
	assert.Equal(t, ReasonNoConsent, report.Reason)
	assert.Equal(t, int32(0), h.sender.calls.Load())
	assert.Equal(t, 2, h.queue.Len())
}

func TestDrainOnce_OverlapSuppressed(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	h.enqueue(1)
	h.sender.block = make(chan struct{})

	done := make(chan Report)
	go func() {
		done <- h.scheduler.DrainOnce(context.Background())
	}()

	require.Eventually(t, func() bool { return h.sender.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.scheduler.Running())

	second := h.scheduler.DrainOnce(context.Background())
	assert.True(t, second.Skipped)
	assert.Equal(t, ReasonInProgress, second.Reason)

	close(h.sender.block)
	first := <-done
	assert.Equal(t, 1, first.Delivered)
	assert.Equal(t, int32(1), h.sender.calls.Load())
}

func TestDrainOnce_CancelledContextInterrupts(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	h.enqueue(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := h.scheduler.DrainOnce(ctx)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 3, h.queue.Len())
}

func TestTrigger_DrainsInBackground(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	h.enqueue(2)

	h.scheduler.Trigger()

	assert.Eventually(t, func() bool { return h.queue.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStart_PeriodicDrain(t *testing.T) {
	h := newHarness(t, dispatch.Delivered)
	s, err := New(h.queue, h.sender, h.consent, Options{Schedule: "@every 1s", Now: h.clock.Now, Logger: zerolog.Nop()})
	require.NoError(t, err)

	h.enqueue(1)
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool { return h.queue.Len() == 0 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()

	// Stopped schedulers ignore triggers
	h.enqueue(1)
	s.Trigger()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.queue.Len())
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(nil, nil, nil, Options{Schedule: "whenever"})
	assert.Error(t, err)
}
