package event

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harun/beacon/pkg/attribution"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// SessionSource supplies the session id stamped onto events
type SessionSource interface {
	CurrentSessionID(ctx context.Context) string
}

// AttributionSource supplies campaign fields
type AttributionSource interface {
	Current(ctx context.Context) attribution.Context
}

// Options configures a Normalizer
type Options struct {
	Client ClientContext
	Now    func() time.Time
	NewID  func() string
	Logger zerolog.Logger
}

// Normalizer validates raw events and shapes them for the wire
type Normalizer struct {
	sessions    SessionSource
	attribution AttributionSource
	client      ClientContext
	now         func() time.Time
	newID       func() string
	schema      *gojsonschema.Schema
	logger      zerolog.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(sessions SessionSource, attr AttributionSource, opts Options) (*Normalizer, error) {
	schema, err := rawEventSchema()
	if err != nil {
		return nil, err
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	client := opts.Client
	client.Language = NormalizeLanguage(client.Language)

	return &Normalizer{
		sessions:    sessions,
		attribution: attr,
		client:      client,
		now:         opts.Now,
		newID:       opts.NewID,
		schema:      schema,
		logger:      opts.Logger.With().Str("component", "normalizer").Logger(),
	}, nil
}

// Validate checks raw without touching the session or stamping anything
func (n *Normalizer) Validate(raw RawEvent) error {
	if err := validateShape(n.schema, raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.Name) == "" {
		return invalid("eventName", "is required")
	}
	if ResolveType(raw) == TypePageView && strings.TrimSpace(raw.Page) == "" {
		return invalid("page", "is required for pageview events")
	}
	return nil
}

// ResolveType applies the default event type: "page_view" implies pageview,
// anything else without a type is custom.
func ResolveType(raw RawEvent) Type {
	if raw.Type != "" {
		return raw.Type
	}
	if strings.TrimSpace(raw.Name) == PageViewName {
		return TypePageView
	}
	return TypeCustom
}

// Normalize validates raw and returns the event to send. The session is
// touched only for valid events.
func (n *Normalizer) Normalize(ctx context.Context, raw RawEvent) (Event, error) {
	if err := n.Validate(raw); err != nil {
		return Event{}, err
	}

	evt := Event{
		ID:        n.newID(),
		Name:      strings.TrimSpace(raw.Name),
		Type:      ResolveType(raw),
		SessionID: n.sessions.CurrentSessionID(ctx),
		Page:      strings.TrimSpace(raw.Page),
		URL:       raw.URL,
		Referrer:  raw.Referrer,
		Timestamp: n.now().UTC().Format(TimestampLayout),
		Metadata:  copyMetadata(raw.Metadata),
	}

	if evt.SessionID == "" {
		return Event{}, invalid("sessionId", "is required")
	}

	if n.attribution != nil {
		utm := n.attribution.Current(ctx)
		evt.UTMSource = utm.Source
		evt.UTMMedium = utm.Medium
		evt.UTMCampaign = utm.Campaign
		evt.UTMContent = utm.Content
		evt.UTMTerm = utm.Term
	}

	if !n.client.IsZero() {
		client := n.client
		evt.Context = &client
	}

	return evt, nil
}

// copyMetadata deep-copies metadata so the event owns every nested value.
// Scalars are kept as they are; containers the switch does not know are
// rebuilt from their JSON form, which validation has already proven exists.
func copyMetadata(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return val
	case map[string]interface{}:
		return copyMetadata(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		var decoded interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}
