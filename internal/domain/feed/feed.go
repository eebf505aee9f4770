// Package feed implements the landing page product feed: pages of the
// catalog accumulated on demand, with a debounced search mode that replaces
// the feed while a query is active.
package feed

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	DefaultPageSize = 20
	DefaultThrottle = time.Second
	DefaultDebounce = 500 * time.Millisecond
)

// State is the externally visible mode of the controller.
type State int

const (
	Idle State = iota
	LoadingPage
	Searching
	SearchActive
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingPage:
		return "loading"
	case Searching:
		return "searching"
	case SearchActive:
		return "search_active"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	// Products is what should be displayed: search results while a query is
	// active, the accumulated feed otherwise.
	Products  []product.Product
	State     State
	Query     string
	Offset    int
	HasMore   bool
	LastError error
}

// Listener is notified with a fresh snapshot after every state change.
type Listener func(Snapshot)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for the page throttle and query debounce.
func WithClock(c clockwork.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger for fetch failures.
func WithLogger(lg *zap.Logger) Option {
	return func(ctl *Controller) { ctl.lg = lg }
}

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(ctl *Controller) { ctl.pageSize = n }
}

// WithThrottle overrides the minimum latency applied before each page fetch.
func WithThrottle(d time.Duration) Option {
	return func(ctl *Controller) { ctl.throttle = d }
}

// WithDebounce overrides the quiet period required before a query is applied.
func WithDebounce(d time.Duration) Option {
	return func(ctl *Controller) { ctl.debounce = d }
}

// Controller drives the feed. All methods are safe for concurrent use.
type Controller struct {
	repo     product.Repository
	clock    clockwork.Clock
	lg       *zap.Logger
	pageSize int
	throttle time.Duration
	debounce time.Duration

	// ctx parents every search and is cancelled by Close.
	ctx      context.Context
	cancel   context.CancelFunc
	searches sync.WaitGroup

	mu        sync.Mutex
	products  []product.Product
	offset    int
	hasMore   bool
	loading   bool
	searching bool
	results   []product.Product // nil when no query is active
	query     string
	gen       uint64
	pending   uint64 // sequence of the latest SetQuery call
	timer     clockwork.Timer
	lastErr   error
	closed    bool
	listeners map[int]Listener
	nextID    int
}

// New returns an idle controller with an empty feed.
func New(repo product.Repository, opts ...Option) *Controller {
	c := &Controller{
		repo:      repo,
		clock:     clockwork.NewRealClock(),
		lg:        zap.NewNop(),
		pageSize:  DefaultPageSize,
		throttle:  DefaultThrottle,
		debounce:  DefaultDebounce,
		hasMore:   true,
		listeners: make(map[int]Listener),
	}
	for _, o := range opts {
		o(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// LoadMore fetches the next page. It is a no-op while a page is already
// loading or once the catalog has been exhausted. Fetch failures are
// recorded as LastError and returned; nothing is retried.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.loading || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	offset := c.offset
	c.mu.Unlock()
	c.notify()

	select {
	case <-c.clock.After(c.throttle):
	case <-ctx.Done():
		c.finishPage(func() {})
		return ctx.Err()
	}

	page, err := c.repo.List(ctx, c.pageSize, offset)
	if err != nil {
		c.lg.Warn("Load page failed", zap.Int("offset", offset), zap.Error(err))
		c.finishPage(func() { c.lastErr = err })
		return errors.Wrapf(err, "load page at %d", offset)
	}

	c.finishPage(func() {
		c.lastErr = nil
		if len(page.Products) == 0 {
			c.hasMore = false
			return
		}
		c.products = append(c.products, page.Products...)
		c.offset += c.pageSize
	})
	return nil
}

// finishPage leaves LoadingPage, applying fn unless the controller was
// closed while the fetch was in flight.
func (c *Controller) finishPage(fn func()) {
	c.mu.Lock()
	c.loading = false
	if c.closed {
		c.mu.Unlock()
		return
	}
	fn()
	c.mu.Unlock()
	c.notify()
}

// OnScrollEnd is the visibility trigger for the end of the list. It loads
// the next page only when no search is in flight or displayed.
func (c *Controller) OnScrollEnd(ctx context.Context) error {
	c.mu.Lock()
	suspended := c.searching || c.results != nil
	c.mu.Unlock()
	if suspended {
		return nil
	}
	return c.LoadMore(ctx)
}

// SetQuery records a raw query. The query takes effect once no further
// SetQuery call arrives within the debounce period, and only if it differs
// from the query already in effect.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending++
	seq := c.pending
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.applyQuery(seq, q) })
}

// applyQuery makes q the effective query. A timer that fired before a later
// SetQuery could stop it carries an old seq and is dropped.
func (c *Controller) applyQuery(seq uint64, q string) {
	c.mu.Lock()
	if c.closed || seq != c.pending || q == c.query {
		c.mu.Unlock()
		return
	}
	c.query = q
	c.gen++
	if q == "" {
		c.searching = false
		c.results = nil
		c.mu.Unlock()
		c.notify()
		return
	}
	gen := c.gen
	c.searching = true
	c.results = []product.Product{}
	c.searches.Add(1)
	c.mu.Unlock()
	c.notify()

	go c.search(gen, q)
}

func (c *Controller) search(gen uint64, q string) {
	defer c.searches.Done()

	page, err := c.repo.Search(c.ctx, q)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.searching = false
	if err != nil {
		c.lg.Warn("Search failed", zap.String("query", q), zap.Error(err))
		c.lastErr = err
	} else {
		c.lastErr = nil
		c.results = append([]product.Product{}, page.Products...)
	}
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Query:     c.query,
		Offset:    c.offset,
		HasMore:   c.hasMore,
		LastError: c.lastErr,
	}
	switch {
	case c.searching:
		s.State = Searching
	case c.results != nil:
		s.State = SearchActive
	case c.loading:
		s.State = LoadingPage
	default:
		s.State = Idle
	}
	if c.results != nil {
		s.Products = slices.Clone(c.results)
	} else {
		s.Products = slices.Clone(c.products)
	}
	return s
}

// Subscribe registers fn for change notifications.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	if c.closed || len(c.listeners) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Close stops the pending debounce, cancels in-flight searches and waits
// for them to return. Results arriving afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	c.searches.Wait()
}
