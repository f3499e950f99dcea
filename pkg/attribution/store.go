package attribution

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
)

const firstTouchKey = "first_touch"

// Context holds the campaign parameters of the first touch
type Context struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Content  string `json:"utm_content,omitempty"`
	Term     string `json:"utm_term,omitempty"`
}

// IsZero reports whether no field is set
func (c Context) IsZero() bool {
	return c == Context{}
}

// Fields returns the non-empty fields keyed by their query parameter name
func (c Context) Fields() map[string]string {
	fields := make(map[string]string, 5)
	for k, v := range map[string]string{
		"utm_source":   c.Source,
		"utm_medium":   c.Medium,
		"utm_campaign": c.Campaign,
		"utm_content":  c.Content,
		"utm_term":     c.Term,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// ParseQuery extracts the utm_* parameters from a raw query, a "?"-prefixed
// query or a full URL. Unparseable input yields an empty Context.
func ParseQuery(raw string) Context {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Context{}
	}

	query := raw
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}
	// Anything before the first '?' is a URL (with or without scheme); drop it.
	if i := strings.IndexByte(query, '?'); i >= 0 {
		query = query[i+1:]
	} else if strings.Contains(query, "://") || strings.HasPrefix(query, "/") {
		return Context{}
	}

	values, err := url.ParseQuery(query)
	if err != nil && len(values) == 0 {
		return Context{}
	}

	return Context{
		Source:   strings.TrimSpace(values.Get("utm_source")),
		Medium:   strings.TrimSpace(values.Get("utm_medium")),
		Campaign: strings.TrimSpace(values.Get("utm_campaign")),
		Content:  strings.TrimSpace(values.Get("utm_content")),
		Term:     strings.TrimSpace(values.Get("utm_term")),
	}
}

// Store owns the first-touch attribution context
type Store struct {
	store  storage.Store
	logger zerolog.Logger

	mu       sync.Mutex
	degraded bool
	mem      Context
}

// NewStore creates an attribution store over kv
func NewStore(kv storage.Store, logger zerolog.Logger) *Store {
	return &Store{
		store:  kv,
		logger: logger.With().Str("component", "attribution").Logger(),
	}
}

// CaptureFromURL records the utm_* parameters of raw unless a context was
// already captured. It reports whether anything was stored.
func (s *Store) CaptureFromURL(ctx context.Context, raw string) bool {
	parsed := ParseQuery(raw)
	if parsed.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.loadLocked(ctx); !current.IsZero() {
		return false
	}

	s.mem = parsed
	if !s.degraded {
		if err := s.store.Put(context.WithoutCancel(ctx), storage.NamespaceAttribution, firstTouchKey, parsed); err != nil {
			s.degradeLocked(err)
		}
	}

	s.logger.Debug().
		Str("utm_source", parsed.Source).
		Str("utm_campaign", parsed.Campaign).
		Msg("First-touch attribution captured")
	return true
}

// Current returns the stored context, empty when nothing was captured
func (s *Store) Current(ctx context.Context) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Clear drops the stored context so that the next capture wins
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem = Context{}
	if s.degraded {
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), storage.NamespaceAttribution, firstTouchKey); err != nil {
		s.degradeLocked(err)
	}
}

func (s *Store) loadLocked(ctx context.Context) Context {
	if s.degraded {
		return s.mem
	}

	var stored Context
	ok, err := s.store.Get(context.WithoutCancel(ctx), storage.NamespaceAttribution, firstTouchKey, &stored)
	if err != nil {
		s.degradeLocked(err)
		return s.mem
	}
	if !ok {
		return Context{}
	}
	return stored
}

func (s *Store) degradeLocked(err error) {
	if s.degraded || storage.Interrupted(err) {
		return
	}
	s.degraded = true
	observability.RecordStorageDegraded("attribution")
	s.logger.Warn().Err(err).Msg("Attribution storage unavailable, continuing in memory")
}
