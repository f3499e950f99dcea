package tracker

import (
	"net/http"
	"time"

	"github.com/harun/beacon/pkg/event"
	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
)

// Option customizes a Tracker
type Option func(*options)

type options struct {
	store      storage.Store
	httpClient *http.Client
	now        func() time.Time
	logger     *zerolog.Logger
	client     *event.ClientContext
	actor      string
}

// WithStore uses store instead of opening one from the configuration.
// The caller keeps ownership; Close does not close it.
func WithStore(store storage.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithHTTPClient sets the client used to reach the collector
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithClock replaces time.Now for session expiry, timestamps and backoff
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithClient sets the client context attached to every event
func WithClient(client event.ClientContext) Option {
	return func(o *options) {
		o.client = &client
	}
}

// WithAuditActor names who consent changes and purges are attributed to
// in the audit log ("api" by default)
func WithAuditActor(actor string) Option {
	return func(o *options) {
		o.actor = actor
	}
}
