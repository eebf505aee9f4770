// Package session keeps one set of client-state stores per browser session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/feed"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/recent"
	"github.com/xenking/storefront/internal/storage"
)

// DefaultIdleTTL is how long an unused session stays in memory.
const DefaultIdleTTL = 30 * time.Minute

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an id issued by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Session is the client state of one browser session. The persisted stores
// are scoped to the session id; the feed controller is in-memory only.
type Session struct {
	ID     string
	Cart   *cart.Store
	Recent *recent.Store
	Feed   *feed.Controller
}

type entry struct {
	sess     *Session
	lastSeen time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for idle tracking.
func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the registry logger.
func WithLogger(lg *zap.Logger) Option {
	return func(r *Registry) { r.lg = lg }
}

// WithIdleTTL overrides DefaultIdleTTL.
func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) { r.idleTTL = d }
}

// WithFeedOptions are passed to every feed controller the registry creates.
func WithFeedOptions(opts ...feed.Option) Option {
	return func(r *Registry) { r.feedOpts = append(r.feedOpts, opts...) }
}

// Registry maps session ids to live Sessions. Concurrent requests for the
// same id share one Session and therefore one set of locks.
type Registry struct {
	store    storage.Store
	repo     product.Repository
	clock    clockwork.Clock
	lg       *zap.Logger
	idleTTL  time.Duration
	feedOpts []feed.Option

	group    singleflight.Group
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a Registry persisting to store and reading products
// from repo.
func NewRegistry(store storage.Store, repo product.Repository, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		repo:     repo,
		clock:    clockwork.NewRealClock(),
		lg:       zap.NewNop(),
		idleTTL:  DefaultIdleTTL,
		sessions: make(map[string]*entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the session for id, rehydrating it from storage on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if s := r.lookup(id); s != nil {
		return s, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if s := r.lookup(id); s != nil {
			return s, nil
		}
		s, err := r.open(ctx, id)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[id] = &entry{sess: s, lastSeen: r.clock.Now()}
		n := len(r.sessions)
		r.mu.Unlock()

		r.lg.Debug("Session opened", zap.String("session", id), zap.Int("active", n))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) lookup(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = r.clock.Now()
	return e.sess
}

func (r *Registry) open(ctx context.Context, id string) (*Session, error) {
	scoped := storage.Scoped(r.store, id)

	c, err := cart.Open(ctx, scoped)
	if err != nil {
		return nil, errors.Wrapf(err, "open cart for session %s", id)
	}
	rv, err := recent.Open(ctx, scoped)
	if err != nil {
		return nil, errors.Wrapf(err, "open recent for session %s", id)
	}

	opts := append([]feed.Option{feed.WithLogger(r.lg.With(zap.String("session", id)))}, r.feedOpts...)
	return &Session{
		ID:     id,
		Cart:   c,
		Recent: rv,
		Feed:   feed.New(r.repo, opts...),
	}, nil
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL and returns how
// many were removed. Persisted state is untouched; the next Get rehydrates.
func (r *Registry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Feed.Close()
	}
	return len(idle)
}

// Run sweeps idle sessions every half idle TTL until ctx is done, then
// closes every remaining session.
func (r *Registry) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.Chan():
			if n := r.Sweep(); n > 0 {
				r.lg.Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.sess.Feed.Close()
	}
}
