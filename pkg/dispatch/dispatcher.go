package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/internal/tracing"
	"github.com/harun/beacon/pkg/event"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultTimeout bounds a single collector request
const DefaultTimeout = 10 * time.Second

// maxAckBody is how much of a 2xx response body is inspected
const maxAckBody = 64 * 1024

// Config configures a Dispatcher
type Config struct {
	CollectorURL string
	Timeout      time.Duration
	UserAgent    string
	DedupSize    int
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Dispatcher sends normalized events to the collector
type Dispatcher struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	client    *http.Client
	delivered *dedupSet
	logger    zerolog.Logger
}

// New creates a dispatcher
func New(cfg Config) (*Dispatcher, error) {
	observability.EnsureRegistered()

	u, err := url.Parse(cfg.CollectorURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse collector URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("collector URL must be http or https, got %q", cfg.CollectorURL)
	}
	if u.Host == "" {
		return nil, errors.New("collector URL has no host")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "beacon/1.0"
	}

	return &Dispatcher{
		baseURL:   strings.TrimRight(cfg.CollectorURL, "/"),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		client:    cfg.HTTPClient,
		delivered: newDedupSet(cfg.DedupSize),
		logger:    cfg.Logger.With().Str("component", "dispatch").Logger(),
	}, nil
}

// Send posts evt to the collector and classifies the result. Cancelling ctx
// does not abort an in-flight request; only the dispatcher timeout does.
func (d *Dispatcher) Send(ctx context.Context, evt event.Event) Outcome {
	ctx = tracing.WithEventID(ctx, evt.ID)
	ctx = tracing.WithSessionID(ctx, evt.SessionID)
	ctx, span := tracing.StartSpan(
		ctx,
		"beacon.dispatch",
		"dispatch.send",
		attribute.String("event_id", evt.ID),
		attribute.String("event_type", string(evt.Type)),
		attribute.String("endpoint", evt.Endpoint()),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, d.logger)

	start := time.Now()
	outcome := d.send(ctx, evt, logger)
	duration := time.Since(start)

	span.SetAttributes(
		attribute.String("outcome", string(outcome.Kind)),
		attribute.Int("status_code", outcome.StatusCode),
	)
	if outcome.Kind != Delivered && outcome.Kind != Duplicate {
		span.SetStatus(codes.Error, outcome.Reason)
	}
	observability.RecordDispatch(string(outcome.Kind), duration, outcome.Attempted)

	logger.Debug().
		Str("outcome", string(outcome.Kind)).
		Int("status", outcome.StatusCode).
		Dur("duration", duration).
		Msg("Event dispatched")

	return outcome
}

func (d *Dispatcher) send(ctx context.Context, evt event.Event, logger zerolog.Logger) Outcome {
	if d.delivered.Contains(evt.ID) {
		return Outcome{Kind: Duplicate, Reason: "event already delivered"}
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return Outcome{Kind: Rejected, Reason: fmt.Sprintf("failed to marshal event: %v", err)}
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", d.baseURL+evt.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: Rejected, Reason: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", evt.ID)
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		reason := err.Error()
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("collector did not answer within %s", d.timeout)
		}
		return Outcome{Kind: TransientFailure, Reason: reason, Attempted: true}
	}
	defer resp.Body.Close()

	kind := Classify(resp.StatusCode)
	outcome := Outcome{Kind: kind, StatusCode: resp.StatusCode, Attempted: true}

	if kind != Delivered {
		outcome.Reason = fmt.Sprintf("collector returned %s", resp.Status)
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxAckBody))
		return outcome
	}

	d.delivered.Add(evt.ID)
	d.inspectAck(resp.Body, logger)

	return outcome
}

// inspectAck looks at a 2xx body for diagnostics only. The status code
// alone decides delivery.
func (d *Dispatcher) inspectAck(body io.Reader, logger zerolog.Logger) {
	data, err := io.ReadAll(io.LimitReader(body, maxAckBody))
	if err != nil || len(data) == 0 {
		return
	}

	var ack struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return
	}
	if ack.Success != nil && !*ack.Success {
		logger.Debug().Str("message", ack.Message).Msg("Collector acknowledged with success=false")
	}
}

// Delivered reports whether id is remembered as delivered
func (d *Dispatcher) Delivered(id string) bool {
	return d.delivered.Contains(id)
}
