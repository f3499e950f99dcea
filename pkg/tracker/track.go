package tracker

import (
	"context"
	"errors"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/dispatch"
	"github.com/harun/beacon/pkg/event"
	"github.com/rs/zerolog"
)

// Skip reasons
const (
	ReasonNoConsent = "consent not granted"
	ReasonClosed    = "tracker closed"
)

// Result is what the caller learns about one tracked event. Delivery problems
// are reported here, never as panics or returned errors.
type Result struct {
	Kind    dispatch.Kind `json:"kind"`
	Reason  string        `json:"reason,omitempty"`
	EventID string        `json:"eventId,omitempty"`
	// Err is set for Invalid results (a *event.ValidationError) and for
	// results produced after Close
	Err error `json:"-"`
}

// TrackPageView emits a pageview for path, or for the page set by SetPage
// when path is empty.
func (t *Tracker) TrackPageView(ctx context.Context, path string) Result {
	page := t.currentPage()
	raw := event.RawEvent{
		Name:     event.PageViewName,
		Type:     event.TypePageView,
		Page:     page.path,
		URL:      page.url,
		Referrer: page.referrer,
	}

	if path != "" && path != page.path {
		raw.Page = path
		raw.URL = ""
		raw.Referrer = page.url
		t.SetPage(path, "", page.url)
	}

	return t.Track(ctx, raw)
}

// TrackEvent emits a named event on the current page. An empty eventType
// defaults to custom.
func (t *Tracker) TrackEvent(ctx context.Context, name string, eventType event.Type, metadata map[string]interface{}) Result {
	page := t.currentPage()
	return t.Track(ctx, event.RawEvent{
		Name:     name,
		Type:     eventType,
		Page:     page.path,
		URL:      page.url,
		Referrer: page.referrer,
		Metadata: metadata,
	})
}

// TrackAffiliateClick records activation of an affiliate link
func (t *Tracker) TrackAffiliateClick(ctx context.Context, network, destination string, metadata map[string]interface{}) Result {
	md := merge(metadata, map[string]interface{}{
		"network":     network,
		"destination": destination,
	})
	return t.TrackEvent(ctx, "affiliate_click", event.TypeClick, md)
}

// TrackOutboundClick records a click on a link leaving the site
func (t *Tracker) TrackOutboundClick(ctx context.Context, destination, label string) Result {
	md := map[string]interface{}{"destination": destination}
	if label != "" {
		md["label"] = label
	}
	return t.TrackEvent(ctx, "outbound_click", event.TypeClick, md)
}

// TrackError reports a host-side error
func (t *Tracker) TrackError(ctx context.Context, err error, metadata map[string]interface{}) Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return t.TrackEvent(ctx, "error", event.TypeError, merge(metadata, map[string]interface{}{"message": msg}))
}

// TrackPerformance reports one measurement, e.g. ("lcp", 1830, "ms")
func (t *Tracker) TrackPerformance(ctx context.Context, metric string, value float64, unit string) Result {
	md := map[string]interface{}{"value": value}
	if unit != "" {
		md["unit"] = unit
	}
	return t.TrackEvent(ctx, metric, event.TypePerformance, md)
}

// Track validates raw and hands it to the background sender. It returns
// Accepted, Skipped or Invalid without waiting for the network.
func (t *Tracker) Track(ctx context.Context, raw event.RawEvent) Result {
	evt, res, ok := t.prepare(ctx, raw)
	if !ok {
		return res
	}

	// The pipeline owns the event from here on
	taskCtx := context.WithoutCancel(ctx)
	err := t.lanes.Submit(taskCtx, laneDispatch, func(ctx context.Context) (interface{}, error) {
		return t.deliver(ctx, evt), nil
	})
	if err != nil {
		return t.park(taskCtx, evt, ReasonClosed)
	}

	observability.RecordEventTracked(string(evt.Type), string(dispatch.Accepted))
	return Result{Kind: dispatch.Accepted, EventID: evt.ID}
}

// Send is Track that waits for the outcome: Delivered, Duplicate, Rejected,
// Queued, Skipped or Invalid. Sends stay ordered with earlier Track calls.
func (t *Tracker) Send(ctx context.Context, raw event.RawEvent) Result {
	evt, res, ok := t.prepare(ctx, raw)
	if !ok {
		return res
	}

	taskCtx := context.WithoutCancel(ctx)
	value, err := t.lanes.Enqueue(taskCtx, laneDispatch, func(ctx context.Context) (interface{}, error) {
		return t.deliver(ctx, evt), nil
	})
	if err != nil {
		return t.park(taskCtx, evt, ReasonClosed)
	}

	return value.(Result)
}

// prepare applies the consent gate and normalizes raw. ok is false when res
// is final.
func (t *Tracker) prepare(ctx context.Context, raw event.RawEvent) (evt event.Event, res Result, ok bool) {
	eventType := string(event.ResolveType(raw))

	if t.isClosed() {
		observability.RecordEventTracked(eventType, string(dispatch.Skipped))
		return evt, Result{Kind: dispatch.Skipped, Reason: ReasonClosed, Err: ErrClosed}, false
	}

	if !t.gate.HasConsent(ctx) {
		observability.RecordEventTracked(eventType, string(dispatch.Skipped))
		return evt, Result{Kind: dispatch.Skipped, Reason: ReasonNoConsent}, false
	}

	evt, err := t.normalizer.Normalize(ctx, raw)
	if err != nil {
		var verr *event.ValidationError
		field := ""
		if errors.As(err, &verr) {
			field = verr.Field
		}
		t.logger.Warn().
			Str("event_name", raw.Name).
			Str("field", field).
			Err(err).
			Msg("Event rejected by validation")
		observability.RecordEventTracked(eventType, string(dispatch.Invalid))
		return evt, Result{Kind: dispatch.Invalid, Reason: err.Error(), Err: err}, false
	}

	return evt, Result{}, true
}

// deliver sends evt once and parks transient failures in the offline queue
func (t *Tracker) deliver(ctx context.Context, evt event.Event) Result {
	ctx = tracing.WithEventID(tracing.WithSessionID(ctx, evt.SessionID), evt.ID)
	logger := tracing.LoggerFromContext(ctx, t.logger)

	out := t.dispatcher.Send(ctx, evt)
	switch out.Kind {
	case dispatch.Delivered, dispatch.Duplicate:
		observability.RecordEventTracked(string(evt.Type), string(out.Kind))
		return Result{Kind: out.Kind, EventID: evt.ID}

	case dispatch.Rejected:
		logger.Warn().
			Int("status", out.StatusCode).
			Str("reason", out.Reason).
			Msg("Collector rejected event")
		observability.RecordEventTracked(string(evt.Type), string(out.Kind))
		return Result{Kind: dispatch.Rejected, Reason: out.Reason, EventID: evt.ID}

	default:
		return t.parkWith(ctx, logger, evt, out.Reason)
	}
}

func (t *Tracker) park(ctx context.Context, evt event.Event, reason string) Result {
	return t.parkWith(ctx, tracing.LoggerFromContext(ctx, t.logger), evt, reason)
}

// parkWith queues evt for replay. The queue never refuses the newest event;
// the oldest entry is evicted instead.
func (t *Tracker) parkWith(ctx context.Context, logger zerolog.Logger, evt event.Event, reason string) Result {
	ev := logger.Debug().Str("reason", reason)
	if evicted := t.queue.Enqueue(ctx, evt); evicted != nil {
		ev = ev.Str("evicted_event_id", evicted.Event.ID)
	}
	ev.Msg("Event queued for retry")
	observability.RecordEventTracked(string(evt.Type), string(dispatch.Queued))
	return Result{Kind: dispatch.Queued, Reason: reason, EventID: evt.ID}
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
