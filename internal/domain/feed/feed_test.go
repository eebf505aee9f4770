package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
)

// --- Mock implementations ---

type searchReply struct {
	page *product.Page
	err  error
}

type mockRepo struct {
	mu       sync.Mutex
	pages    map[int][]product.Product // by skip
	listErr  error
	offsets  []int
	queries  []string
	replies  map[string]chan searchReply
	canceled []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		pages:   make(map[int][]product.Product),
		replies: make(map[string]chan searchReply),
	}
}

func (m *mockRepo) List(_ context.Context, limit, skip int) (*product.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets = append(m.offsets, skip)
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &product.Page{Products: m.pages[skip], Skip: skip, Limit: limit}, nil
}

func (m *mockRepo) GetByID(context.Context, int) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockRepo) ListByCategory(context.Context, string, int) (*product.Page, error) {
	return &product.Page{}, nil
}

// Search blocks until the test sends a reply on the query's channel, or the
// context is cancelled. Queries without a registered channel return an
// empty page immediately.
func (m *mockRepo) Search(ctx context.Context, q string) (*product.Page, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	ch := m.replies[q]
	m.mu.Unlock()

	if ch == nil {
		return &product.Page{Products: []product.Product{}}, nil
	}
	select {
	case r := <-ch:
		return r.page, r.err
	case <-ctx.Done():
		m.mu.Lock()
		m.canceled = append(m.canceled, q)
		m.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (m *mockRepo) block(q string) chan searchReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan searchReply, 1)
	m.replies[q] = ch
	return ch
}

func (m *mockRepo) listCalls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.offsets...)
}

func (m *mockRepo) searchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// --- Helpers ---

func makePage(from, n int) []product.Product {
	out := make([]product.Product, n)
	for i := range out {
		out[i] = product.Product{ID: from + i, Price: decimal.NewFromInt(10)}
	}
	return out
}

func productIDs(ps []product.Product) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func newController(repo *mockRepo) (*Controller, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	c := New(repo, WithClock(fc), WithPageSize(2))
	return c, fc
}

// loadMore runs LoadMore to completion by advancing the fake clock past the
// throttle.
func loadMore(t *testing.T, c *Controller, fc *clockwork.FakeClock) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(ctx) }()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(DefaultThrottle)
	return <-done
}

// applyQuery sets q and advances past the debounce period.
func applyQuery(t *testing.T, c *Controller, fc *clockwork.FakeClock, q string) {
	t.Helper()
	c.SetQuery(q)
	fc.Advance(DefaultDebounce)
}

// --- Tests ---

func TestLoadMore_AppendsPages(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 2)
	repo.pages[2] = makePage(3, 2)
	c, fc := newController(repo)
	defer c.Close()

	s := c.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.True(t, s.HasMore)
	assert.Empty(t, s.Products)

	require.NoError(t, loadMore(t, c, fc))
	require.NoError(t, loadMore(t, c, fc))

	s = c.Snapshot()
	assert.Equal(t, []int{1, 2, 3, 4}, productIDs(s.Products))
	assert.Equal(t, 4, s.Offset)
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, []int{0, 2}, repo.listCalls())
}

func TestLoadMore_SingleFlight(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 2)
	c, fc := newController(repo)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(ctx) }()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	assert.Equal(t, LoadingPage, c.Snapshot().State)

	// Second trigger while the first is pending returns immediately.
	require.NoError(t, c.LoadMore(ctx))

	fc.Advance(DefaultThrottle)
	require.NoError(t, <-done)
	assert.Equal(t, []int{0}, repo.listCalls())
}

func TestLoadMore_ThrottleDelaysFetch(t *testing.T) {
	repo := newMockRepo()
	c, fc := newController(repo)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(ctx) }()
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	fc.Advance(DefaultThrottle / 2)
	assert.Empty(t, repo.listCalls())

	fc.Advance(DefaultThrottle / 2)
	require.NoError(t, <-done)
	assert.Equal(t, []int{0}, repo.listCalls())
}

func TestLoadMore_EmptyPageEndsFeed(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 2)
	c, fc := newController(repo)
	defer c.Close()

	require.NoError(t, loadMore(t, c, fc))
	require.NoError(t, loadMore(t, c, fc))

	s := c.Snapshot()
	assert.False(t, s.HasMore)
	assert.Equal(t, 2, s.Offset)

	// Exhausted: no further requests.
	require.NoError(t, c.LoadMore(context.Background()))
	require.NoError(t, c.OnScrollEnd(context.Background()))
	assert.Equal(t, []int{0, 2}, repo.listCalls())
}

func TestLoadMore_FailureRecorded(t *testing.T) {
	repo := newMockRepo()
	repo.listErr = errors.New("upstream down")
	c, fc := newController(repo)
	defer c.Close()

	err := loadMore(t, c, fc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	s := c.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.True(t, s.HasMore)
	assert.EqualError(t, s.LastError, "upstream down")
	assert.Equal(t, 0, s.Offset)

	// A later explicit trigger tries again and clears the error.
	repo.mu.Lock()
	repo.listErr = nil
	repo.pages[0] = makePage(1, 1)
	repo.mu.Unlock()

	require.NoError(t, loadMore(t, c, fc))
	s = c.Snapshot()
	assert.NoError(t, s.LastError)
	assert.Equal(t, []int{1}, productIDs(s.Products))
}

func TestLoadMore_ContextCancelledDuringThrottle(t *testing.T) {
	repo := newMockRepo()
	c, fc := newController(repo)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.LoadMore(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, fc.BlockUntilContext(waitCtx, 1))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Empty(t, repo.listCalls())
}

func TestSetQuery_Debounce(t *testing.T) {
	repo := newMockRepo()
	c, fc := newController(repo)
	defer c.Close()

	c.SetQuery("ph")
	fc.Advance(300 * time.Millisecond)
	c.SetQuery("phone")
	fc.Advance(300 * time.Millisecond)
	assert.Empty(t, repo.searchCalls())

	fc.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"phone"}, repo.searchCalls())
	assert.Equal(t, "phone", c.Snapshot().Query)
}

func TestSetQuery_UnchangedQueryKeepsResults(t *testing.T) {
	repo := newMockRepo()
	reply := repo.block("phone")
	c, fc := newController(repo)
	defer c.Close()

	applyQuery(t, c, fc, "phone")
	reply <- searchReply{page: &product.Page{Products: makePage(7, 1)}}
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)

	c.SetQuery("phon")
	fc.Advance(100 * time.Millisecond)
	c.SetQuery("phone")
	fc.Advance(DefaultDebounce)
	c.searches.Wait()

	s := c.Snapshot()
	assert.Equal(t, SearchActive, s.State)
	assert.Equal(t, []int{7}, productIDs(s.Products))
	assert.Equal(t, []string{"phone"}, repo.searchCalls())
}

func TestSetQuery_SupersededTimerDropped(t *testing.T) {
	repo := newMockRepo()
	c, fc := newController(repo)
	defer c.Close()

	c.SetQuery("old")
	c.SetQuery("new")
	// A callback for "old" that fired before the second call stopped it.
	c.applyQuery(1, "old")
	assert.Empty(t, repo.searchCalls())
	assert.Equal(t, "", c.Snapshot().Query)

	fc.Advance(DefaultDebounce)
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"new"}, repo.searchCalls())
}

func TestSearch_ReplacesFeedAndSuspendsPaging(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 2)
	reply := repo.block("mouse")
	c, fc := newController(repo)
	defer c.Close()

	require.NoError(t, loadMore(t, c, fc))
	applyQuery(t, c, fc, "mouse")

	require.Eventually(t, func() bool {
		return c.Snapshot().State == Searching
	}, time.Second, 5*time.Millisecond)
	s := c.Snapshot()
	assert.NotNil(t, s.Products)
	assert.Empty(t, s.Products)

	require.NoError(t, c.OnScrollEnd(context.Background()))
	assert.Equal(t, []int{0}, repo.listCalls())

	reply <- searchReply{page: &product.Page{Products: makePage(100, 1)}}
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{100}, productIDs(c.Snapshot().Products))

	require.NoError(t, c.OnScrollEnd(context.Background()))
	assert.Equal(t, []int{0}, repo.listCalls())
}

func TestSearch_ClearingQueryRestoresFeed(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 2)
	c, fc := newController(repo)
	defer c.Close()

	require.NoError(t, loadMore(t, c, fc))
	applyQuery(t, c, fc, "lamp")
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)

	applyQuery(t, c, fc, "")
	require.Eventually(t, func() bool {
		return c.Snapshot().State == Idle
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []int{1, 2}, productIDs(c.Snapshot().Products))
	assert.Equal(t, []int{0}, repo.listCalls())
}

func TestSearch_StaleResultsDiscarded(t *testing.T) {
	repo := newMockRepo()
	slow := repo.block("a")
	fast := repo.block("ab")
	c, fc := newController(repo)
	defer c.Close()

	applyQuery(t, c, fc, "a")
	require.Eventually(t, func() bool {
		return len(repo.searchCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	applyQuery(t, c, fc, "ab")
	require.Eventually(t, func() bool {
		return len(repo.searchCalls()) == 2
	}, time.Second, 5*time.Millisecond)

	fast <- searchReply{page: &product.Page{Products: makePage(2, 1)}}
	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)

	slow <- searchReply{page: &product.Page{Products: makePage(1, 1)}}
	c.searches.Wait()

	s := c.Snapshot()
	assert.Equal(t, "ab", s.Query)
	assert.Equal(t, []int{2}, productIDs(s.Products))
}

func TestSearch_FailureKeepsEmptyResults(t *testing.T) {
	repo := newMockRepo()
	reply := repo.block("x")
	c, fc := newController(repo)
	defer c.Close()

	applyQuery(t, c, fc, "x")
	reply <- searchReply{err: errors.New("timeout")}

	require.Eventually(t, func() bool {
		return c.Snapshot().State == SearchActive
	}, time.Second, 5*time.Millisecond)
	s := c.Snapshot()
	assert.Empty(t, s.Products)
	assert.EqualError(t, s.LastError, "timeout")
}

func TestClose_CancelsPendingWork(t *testing.T) {
	repo := newMockRepo()
	repo.block("late")
	c, fc := newController(repo)

	applyQuery(t, c, fc, "late")
	require.Eventually(t, func() bool {
		return len(repo.searchCalls()) == 1
	}, time.Second, 5*time.Millisecond)

	c.SetQuery("never")
	c.Close()
	fc.Advance(DefaultDebounce)

	assert.Equal(t, []string{"late"}, repo.searchCalls())
	repo.mu.Lock()
	assert.Equal(t, []string{"late"}, repo.canceled)
	repo.mu.Unlock()

	// Idempotent, and further calls are ignored.
	c.Close()
	c.SetQuery("ignored")
	require.NoError(t, c.LoadMore(context.Background()))
	assert.Empty(t, repo.listCalls())
}

func TestSubscribe(t *testing.T) {
	repo := newMockRepo()
	repo.pages[0] = makePage(1, 1)
	c, fc := newController(repo)
	defer c.Close()

	var mu sync.Mutex
	var states []State
	unsubscribe := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
	})

	require.NoError(t, loadMore(t, c, fc))
	unsubscribe()
	require.NoError(t, loadMore(t, c, fc))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{LoadingPage, Idle}, states)
}
