package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/harun/beacon/internal/config"
	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/attribution"
	"github.com/harun/beacon/pkg/commandqueue"
	"github.com/harun/beacon/pkg/consent"
	"github.com/harun/beacon/pkg/dispatch"
	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/offlinequeue"
	"github.com/harun/beacon/pkg/retry"
	"github.com/harun/beacon/pkg/session"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// laneDispatch is the serial lane every send goes through
const laneDispatch = "dispatch"

// ErrClosed is carried by results produced after Close
var ErrClosed = errors.New("tracker: closed")

// Tracker wires the pipeline together. Construct one per data directory.
type Tracker struct {
	cfg        config.Config
	store      storage.Store
	ownsStore  bool
	gate       *consent.Gate
	sessions   *session.Manager
	attr       *attribution.Store
	normalizer *event.Normalizer
	dispatcher *dispatch.Dispatcher
	queue      *offlinequeue.Queue
	scheduler  *retry.Scheduler
	lanes      *commandqueue.CommandQueue
	actor      string
	logger     zerolog.Logger

	initOnce  sync.Once
	closeOnce sync.Once

	mu         sync.Mutex
	page       pageState
	pendingURL string
	stopWatch  func()
	closed     bool
}

type pageState struct {
	path     string
	url      string
	referrer string
}

// New builds a tracker from cfg. Nothing is sent until consent is granted.
func New(cfg config.Config, opts ...Option) (*Tracker, error) {
	o := options{actor: "api"}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	store := o.store
	ownsStore := false
	if store == nil {
		s, err := storage.Open(cfg.Storage.Driver, cfg.StoragePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		store = s
		ownsStore = true
	}

	client := event.ClientContext{
		UserAgent: cfg.Client.UserAgent,
		Screen:    cfg.Client.Screen,
		Language:  cfg.Client.Language,
	}
	if o.client != nil {
		client = *o.client
	}

	t := &Tracker{
		cfg:       cfg,
		store:     store,
		ownsStore: ownsStore,
		actor:     o.actor,
		logger:    logger.With().Str("component", "tracker").Logger(),
	}

	t.gate = consent.NewGate(store, logger)
	t.sessions = session.NewManager(store, session.Options{
		Timeout: cfg.SessionTimeout(),
		Now:     now,
		Logger:  logger,
	})
	t.attr = attribution.NewStore(store, logger)

	normalizer, err := event.NewNormalizer(t.sessions, t.attr, event.Options{
		Client: client,
		Now:    now,
		Logger: logger,
	})
	if err != nil {
		t.closeStore()
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	t.normalizer = normalizer

	dispatcher, err := dispatch.New(dispatch.Config{
		CollectorURL: cfg.Collector.URL,
		Timeout:      cfg.CollectorTimeout(),
		UserAgent:    cfg.Collector.UserAgent,
		DedupSize:    cfg.Dispatch.DedupSize,
		HTTPClient:   o.httpClient,
		Logger:       logger,
	})
	if err != nil {
		t.closeStore()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	t.dispatcher = dispatcher

	t.queue = offlinequeue.New(context.Background(), store, offlinequeue.Options{
		Capacity:   cfg.Queue.Capacity,
		MaxRetries: cfg.Queue.MaxRetries,
		Now:        now,
		Logger:     logger,
	})

	scheduler, err := retry.New(t.queue, dispatcher, t.gate, retry.Options{
		Schedule: cfg.Retry.Schedule,
		Backoff:  retry.Backoff{Base: cfg.RetryBaseDelay(), Max: cfg.RetryMaxDelay()},
		Now:      now,
		Logger:   logger,
	})
	if err != nil {
		t.closeStore()
		return nil, fmt.Errorf("failed to create retry scheduler: %w", err)
	}
	t.scheduler = scheduler

	t.lanes = commandqueue.New()
	t.lanes.SetConcurrency(laneDispatch, 1)

	return t, nil
}

// Init captures attribution from the entry URL, starts the periodic drain
// and subscribes to consent changes. Only the first call has any effect.
// Without consent the entry URL is held and captured once consent arrives.
func (t *Tracker) Init(ctx context.Context, entryURL string) {
	t.initOnce.Do(func() {
		if entryURL != "" {
			if u, err := url.Parse(entryURL); err == nil && u.Path != "" {
				t.SetPage(u.Path, entryURL, "")
			}

			if t.gate.HasConsent(ctx) {
				t.attr.CaptureFromURL(ctx, entryURL)
			} else {
				t.mu.Lock()
				t.pendingURL = entryURL
				t.mu.Unlock()
			}
		}

		t.scheduler.Start()

		stop, err := t.gate.Watch(func(granted bool) {
			if granted {
				t.consentGranted(context.Background())
			}
		})
		if err != nil {
			t.logger.Warn().Err(err).Msg("Consent changes from other processes will not be noticed")
			return
		}

		t.mu.Lock()
		t.stopWatch = stop
		t.mu.Unlock()

		t.logger.Info().
			Str("collector", t.cfg.Collector.URL).
			Int("queued", t.queue.Len()).
			Msg("Tracking initialized")
	})
}

// GrantConsent records consent, captures held attribution and replays the queue
func (t *Tracker) GrantConsent(ctx context.Context) {
	t.gate.Grant(ctx)
	observability.RecordConsentAudit(ctx, true, t.actor)
	t.consentGranted(ctx)
}

// RevokeConsent withdraws consent. Queued events are kept but not sent.
func (t *Tracker) RevokeConsent(ctx context.Context) {
	t.gate.Revoke(ctx)
	observability.RecordConsentAudit(ctx, false, t.actor)
}

// HasConsent reports the current consent state
func (t *Tracker) HasConsent(ctx context.Context) bool {
	return t.gate.HasConsent(ctx)
}

func (t *Tracker) consentGranted(ctx context.Context) {
	t.mu.Lock()
	pending := t.pendingURL
	t.pendingURL = ""
	closed := t.closed
	t.mu.Unlock()

	if pending != "" {
		t.attr.CaptureFromURL(ctx, pending)
	}
	if !closed {
		t.scheduler.Trigger()
	}
}

// SessionID returns the live session id without extending the session
func (t *Tracker) SessionID(ctx context.Context) string {
	return t.sessions.ID(ctx)
}

// SetPage records the page subsequent events are attributed to
func (t *Tracker) SetPage(path, pageURL, referrer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = pageState{path: path, url: pageURL, referrer: referrer}
}

func (t *Tracker) currentPage() pageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// NotifyOnline tells the pipeline connectivity is back; the queue is replayed
func (t *Tracker) NotifyOnline() {
	t.scheduler.Trigger()
}

// Flush waits until every accepted event has been sent or queued
func (t *Tracker) Flush(ctx context.Context) error {
	if !t.lanes.WaitIdle(ctx) {
		return ctx.Err()
	}
	return nil
}

// Drain runs one replay pass over the offline queue and waits for it
func (t *Tracker) Drain(ctx context.Context) retry.Report {
	return t.scheduler.DrainOnce(ctx)
}

// Pending returns a snapshot of the offline queue
func (t *Tracker) Pending(ctx context.Context) []offlinequeue.QueuedEvent {
	return t.queue.Drain(ctx)
}

// ClearQueue discards every queued event and returns how many were dropped
func (t *Tracker) ClearQueue(ctx context.Context) int {
	n := t.queue.Clear(ctx)
	observability.RecordDataAudit(ctx, "data:clear_queue", t.actor, map[string]interface{}{"count": n})
	return n
}

// Forget purges the queue, the session and the captured attribution.
// Consent is left as it is.
func (t *Tracker) Forget(ctx context.Context) {
	n := t.queue.Clear(ctx)
	t.sessions.Reset(ctx)
	t.attr.Clear(ctx)

	t.mu.Lock()
	t.pendingURL = ""
	t.mu.Unlock()

	observability.RecordDataAudit(ctx, "data:forget", t.actor, map[string]interface{}{"queued": n})
	t.logger.Info().Int("queued", n).Msg("Local tracking data purged")
}

// Stats is a point-in-time view of the pipeline
type Stats struct {
	Consent         bool                      `json:"consent"`
	SessionID       string                    `json:"sessionId,omitempty"`
	SessionStarted  time.Time                 `json:"sessionStarted,omitempty"`
	SessionLastSeen time.Time                 `json:"sessionLastSeen,omitempty"`
	Attribution     attribution.Context       `json:"attribution"`
	Queued          int                       `json:"queued"`
	QueueCapacity   int                       `json:"queueCapacity"`
	MaxRetries      int                       `json:"maxRetries"`
	Durable         bool                      `json:"durable"`
	SessionDegraded bool                      `json:"sessionDegraded"`
	Draining        bool                      `json:"draining"`
	Lanes           map[string]map[string]int `json:"lanes"`
}

// Stats reports the pipeline state without touching the session
func (t *Tracker) Stats(ctx context.Context) Stats {
	stats := Stats{
		Consent:         t.gate.HasConsent(ctx),
		Attribution:     t.attr.Current(ctx),
		Queued:          t.queue.Len(),
		QueueCapacity:   t.queue.Capacity(),
		MaxRetries:      t.queue.MaxRetries(),
		Durable:         t.queue.Durable(),
		SessionDegraded: t.sessions.Degraded(),
		Draining:        t.scheduler.Running(),
		Lanes:           t.lanes.GetStats(),
	}

	if sess, ok := t.sessions.Peek(ctx); ok {
		stats.SessionID = sess.ID
		stats.SessionStarted = sess.CreatedAt
		stats.SessionLastSeen = sess.LastSeenAt
	}

	return stats
}

// Close lets accepted sends finish, stops the scheduler and releases the
// store when the tracker opened it.
func (t *Tracker) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		stop := t.stopWatch
		t.stopWatch = nil
		t.mu.Unlock()

		if stop != nil {
			stop()
		}

		t.lanes.Close()
		t.scheduler.Stop()
		err = t.closeStore()

		t.logger.Info().Int("queued", t.queue.Len()).Msg("Tracker closed")
	})
	return err
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tracker) closeStore() error {
	if !t.ownsStore {
		return nil
	}
	if err := t.store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
