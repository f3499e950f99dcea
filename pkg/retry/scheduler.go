package retry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/dispatch"
	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/offlinequeue"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Sender delivers one event
type Sender interface {
	Send(ctx context.Context, evt event.Event) dispatch.Outcome
}

// ConsentChecker reports whether sending is permitted
type ConsentChecker interface {
	HasConsent(ctx context.Context) bool
}

// Queue is the part of the offline queue the scheduler drives
type Queue interface {
	Drain(ctx context.Context) []offlinequeue.QueuedEvent
	Remove(ctx context.Context, eventID string) bool
	Bump(ctx context.Context, eventID string, nextAttemptAt time.Time) bool
}

// Options configures a Scheduler
type Options struct {
	Schedule string
	Backoff  Backoff
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Report summarizes one drain pass
type Report struct {
	// Skipped is set when the pass did not run; Reason says why
	Skipped     bool   `json:"skipped"`
	Reason      string `json:"reason,omitempty"`
	Attempted   int    `json:"attempted"`
	Delivered   int    `json:"delivered"`
	Rejected    int    `json:"rejected"`
	Retried     int    `json:"retried"`
	Dropped     int    `json:"dropped"`
	Deferred    int    `json:"deferred"`
	Interrupted bool   `json:"interrupted"`
}

// Skip reasons
const (
	ReasonInProgress = "drain already in progress"
	ReasonNoConsent  = "consent not granted"
)

// Scheduler replays the offline queue through the dispatcher, periodically
// and on demand. Passes never overlap.
type Scheduler struct {
	queue    Queue
	sender   Sender
	consent  ConsentChecker
	schedule cron.Schedule
	spec     string
	backoff  Backoff
	now      func() time.Time
	logger   zerolog.Logger

	running atomic.Bool

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a scheduler; call Start to begin periodic passes
func New(queue Queue, sender Sender, consent ConsentChecker, opts Options) (*Scheduler, error) {
	observability.EnsureRegistered()

	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	sched, err := ParseSchedule(opts.Schedule)
	if err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		queue:    queue,
		sender:   sender,
		consent:  consent,
		schedule: sched,
		spec:     opts.Schedule,
		backoff:  opts.Backoff,
		now:      opts.Now,
		logger:   opts.Logger.With().Str("component", "retry").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins periodic drain passes. Calling it again has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.DrainOnce(s.ctx)
	}))
	s.cron.Start()

	s.logger.Info().Str("schedule", s.spec).Msg("Retry scheduler started")
}

// Trigger starts a drain pass in the background, e.g. when connectivity
// returns. It is a no-op while another pass runs or after Stop.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.DrainOnce(s.ctx)
	}()
}

// Stop halts periodic passes and waits for running ones to finish.
// A pass in progress stops after its current send.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	c := s.cron
	s.mu.Unlock()

	s.cancel()
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()

	s.logger.Info().Msg("Retry scheduler stopped")
}

// Running reports whether a pass is in progress
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// DrainOnce runs one synchronous pass over the queue
func (s *Scheduler) DrainOnce(ctx context.Context) Report {
	if !s.running.CompareAndSwap(false, true) {
		observability.RecordDrainPass("overlap")
		return Report{Skipped: true, Reason: ReasonInProgress}
	}
	defer s.running.Store(false)

	if !s.consent.HasConsent(ctx) {
		observability.RecordDrainPass("no_consent")
		return Report{Skipped: true, Reason: ReasonNoConsent}
	}

	ctx = tracing.WithPassID(ctx, uuid.NewString())
	ctx, span := tracing.StartSpan(ctx, "beacon.retry", "retry.drain")
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)

	var report Report
	for _, entry := range s.queue.Drain(ctx) {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		now := s.now()
		if !entry.Due(now) {
			report.Deferred++
			continue
		}

		// Consent may be revoked while the pass runs
		if !s.consent.HasConsent(ctx) {
			report.Interrupted = true
			break
		}

		report.Attempted++
		out := s.sender.Send(ctx, entry.Event)

		switch out.Kind {
		case dispatch.Delivered, dispatch.Duplicate:
			s.queue.Remove(ctx, entry.Event.ID)
			report.Delivered++

		case dispatch.Rejected:
			s.queue.Remove(ctx, entry.Event.ID)
			report.Rejected++
			logger.Warn().
				Str("event_id", entry.Event.ID).
				Str("reason", out.Reason).
				Msg("Collector rejected queued event, removing it")

		default:
			next := s.now().Add(s.backoff.Delay(entry.RetryCount))
			if s.queue.Bump(ctx, entry.Event.ID, next) {
				report.Dropped++
			} else {
				report.Retried++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("attempted", report.Attempted),
		attribute.Int("delivered", report.Delivered),
		attribute.Int("dropped", report.Dropped),
	)

	status := "completed"
	if report.Interrupted {
		status = "interrupted"
	}
	observability.RecordDrainPass(status)

	if report.Attempted > 0 {
		logger.Info().
			Int("attempted", report.Attempted).
			Int("delivered", report.Delivered).
			Int("rejected", report.Rejected).
			Int("retried", report.Retried).
			Int("dropped", report.Dropped).
			Msg("Drain pass finished")
	}

	return report
}
