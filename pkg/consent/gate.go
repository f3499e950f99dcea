package consent

import (
	"context"
	"sync"

	"github.com/harun/beacon/pkg/storage"
	"github.com/rs/zerolog"
)

const grantedKey = "granted"

// Gate reads and writes the persisted consent flag
type Gate struct {
	store  storage.Store
	logger zerolog.Logger

	mu       sync.Mutex
	override *bool
	warned   bool
}

// NewGate creates a consent gate over store
func NewGate(store storage.Store, logger zerolog.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: logger.With().Str("component", "consent").Logger(),
	}
}

// HasConsent reports whether tracking is currently permitted
func (g *Gate) HasConsent(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.override != nil {
		return *g.override
	}

	var granted bool
	ok, err := g.store.Get(context.WithoutCancel(ctx), storage.NamespaceConsent, grantedKey, &granted)
	if err != nil {
		if !g.warned {
			g.logger.Warn().Err(err).Msg("Consent flag unreadable, treating as not granted")
			g.warned = true
		}
		return false
	}

	return ok && granted
}

// Grant records consent
func (g *Gate) Grant(ctx context.Context) {
	g.set(ctx, true)
}

// Revoke withdraws consent. Queued events are kept but not sent.
func (g *Gate) Revoke(ctx context.Context) {
	g.set(ctx, false)
}

func (g *Gate) set(ctx context.Context, granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.Put(context.WithoutCancel(ctx), storage.NamespaceConsent, grantedKey, granted); err != nil {
		g.logger.Warn().
			Err(err).
			Bool("granted", granted).
			Msg("Failed to persist consent, keeping it in memory")
		g.override = &granted
		return
	}

	g.override = nil
	g.logger.Info().Bool("granted", granted).Msg("Consent updated")
}

// Watch calls fn whenever the persisted flag may have changed, including
// changes made by another process. Stores without change notification
// return a no-op stop function.
func (g *Gate) Watch(fn func(granted bool)) (stop func(), err error) {
	w, ok := g.store.(storage.Watcher)
	if !ok {
		return func() {}, nil
	}

	return w.Watch(storage.NamespaceConsent, func() {
		fn(g.HasConsent(context.Background()))
	})
}
