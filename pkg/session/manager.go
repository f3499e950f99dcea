package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/storage"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the inactivity window after which a session expires
const DefaultTimeout = 30 * time.Minute

const currentKey = "current"

// Session is the persisted session record
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Expired reports whether the session has been idle longer than timeout
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastSeenAt) > timeout
}

// Options configures a Manager
type Options struct {
	Timeout time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
}

// Manager owns the current session
type Manager struct {
	store   storage.Store
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu       sync.Mutex
	degraded bool
	mem      *Session
}

// NewManager creates a session manager
func NewManager(store storage.Store, opts Options) *Manager {
	observability.EnsureRegistered()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		store:   store,
		timeout: opts.Timeout,
		now:     opts.Now,
		logger:  opts.Logger.With().Str("component", "session").Logger(),
	}
}

// CurrentSessionID returns the live session id, touching it, or starts a new
// session when none exists or the previous one expired.
func (m *Manager) CurrentSessionID(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sess, ok := m.loadLocked(ctx)
	if !ok || sess.Expired(now, m.timeout) {
		sess = m.startLocked(now)
	} else {
		sess.LastSeenAt = now
	}

	m.saveLocked(ctx, sess)
	return sess.ID
}

// ID returns the live session id without extending it. A session is started
// when none is live.
func (m *Manager) ID(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sess, ok := m.loadLocked(ctx)
	if ok && !sess.Expired(now, m.timeout) {
		return sess.ID
	}

	sess = m.startLocked(now)
	m.saveLocked(ctx, sess)
	return sess.ID
}

// Peek returns the live session, if any, without touching it
func (m *Manager) Peek(ctx context.Context) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.loadLocked(ctx)
	if !ok || sess.Expired(m.now(), m.timeout) {
		return Session{}, false
	}
	return sess, true
}

// Reset forgets the current session; the next tracked action starts a new one
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mem = nil
	if m.degraded {
		return
	}
	if err := m.store.Delete(context.WithoutCancel(ctx), storage.NamespaceSession, currentKey); err != nil {
		m.degradeLocked(err)
	}
}

// Degraded reports whether the manager lost its store and runs in memory
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Manager) startLocked(now time.Time) Session {
	sess := Session{
		ID:         newID(now),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	observability.RecordSessionStarted()
	m.logger.Debug().Str("session_id", sess.ID).Msg("Session started")
	return sess
}

func (m *Manager) loadLocked(ctx context.Context) (Session, bool) {
	if m.degraded {
		if m.mem == nil {
			return Session{}, false
		}
		return *m.mem, true
	}

	var sess Session
	ok, err := m.store.Get(context.WithoutCancel(ctx), storage.NamespaceSession, currentKey, &sess)
	if err != nil {
		m.degradeLocked(err)
		if m.mem == nil {
			return Session{}, false
		}
		return *m.mem, true
	}
	if !ok || sess.ID == "" {
		return Session{}, false
	}
	return sess, true
}

func (m *Manager) saveLocked(ctx context.Context, sess Session) {
	m.mem = &sess
	if m.degraded {
		return
	}
	if err := m.store.Put(context.WithoutCancel(ctx), storage.NamespaceSession, currentKey, sess); err != nil {
		m.degradeLocked(err)
	}
}

func (m *Manager) degradeLocked(err error) {
	if m.degraded || storage.Interrupted(err) {
		return
	}
	m.degraded = true
	observability.RecordStorageDegraded("session")
	m.logger.Warn().Err(err).Msg("Session storage unavailable, continuing in memory")
}

// newID builds "<unix-ms base36>-<random>"
func newID(now time.Time) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 36)

	suffix, err := gonanoid.New(16)
	if err != nil {
		suffix = strconv.FormatInt(now.UnixNano(), 36)
	}

	return prefix + "-" + suffix
}
