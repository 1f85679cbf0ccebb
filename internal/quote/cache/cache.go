package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"futuresquotes/internal/aggregate"
	"futuresquotes/internal/quote"
)

const (
	DefaultFreshness    = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultBatchTimeout = 20 * time.Second
)

// refreshKey is the only singleflight key: one batch covers every symbol.
const refreshKey = "refresh"

// Cache holds the last known-good snapshot per tracked symbol and refreshes
// all of them in one coalesced batch once the freshness window has passed.
// It is safe for concurrent use.
type Cache struct {
	src          quote.Source
	symbols      []string
	freshness    time.Duration
	fetchTimeout time.Duration
	batchTimeout time.Duration
	concurrency  int
	now          func() time.Time
	log          zerolog.Logger

	mu          sync.Mutex
	snaps       map[string]quote.Snapshot
	lastRefresh time.Time
	view        quote.Prices

	sf singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithFreshness sets how long a complete batch is served without refreshing.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

// WithFetchTimeout bounds a single upstream fetch. A timed-out fetch counts
// as a failure for that symbol only.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithBatchTimeout bounds a whole refresh batch.
func WithBatchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

// WithMaxConcurrency limits parallel fetches inside a batch.
func WithMaxConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for refresh and fetch failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates an empty cache tracking symbols, in the given order.
func New(src quote.Source, symbols []string, opts ...Option) *Cache {
	c := &Cache{
		src:          src,
		symbols:      append([]string(nil), symbols...),
		freshness:    DefaultFreshness,
		fetchTimeout: DefaultFetchTimeout,
		batchTimeout: DefaultBatchTimeout,
		concurrency:  len(symbols),
		now:          time.Now,
		log:          zerolog.Nop(),
		snaps:        map[string]quote.Snapshot{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = 1
	}
	c.view = aggregate.View(c.symbols, c.snaps)
	return c
}

// Symbols returns the tracked symbols.
func (c *Cache) Symbols() []string { return append([]string(nil), c.symbols...) }

// LastRefresh returns the start time of the last batch that produced at
// least one snapshot, or the zero time.
func (c *Cache) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Get returns the freshest known snapshot for every tracked symbol. It never
// fails: symbols that have never been fetched successfully map to nil.
//
// When the cache is stale or incomplete, Get joins the in-flight batch or
// starts one. ctx only bounds how long this caller waits; if it ends first,
// Get returns the current view and the batch keeps running for the others.
func (c *Cache) Get(ctx context.Context) quote.Prices {
	if v, ok := c.fresh(); ok {
		return v
	}
	ch := c.sf.DoChan(refreshKey, c.refresh)
	select {
	case res := <-ch:
		return res.Val.(quote.Prices)
	case <-ctx.Done():
		c.log.Debug().Err(ctx.Err()).Msg("caller stopped waiting for refresh")
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.view
	}
}

func (c *Cache) fresh() (quote.Prices, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view, c.freshLocked(c.now())
}

func (c *Cache) freshLocked(now time.Time) bool {
	if c.lastRefresh.IsZero() || now.Sub(c.lastRefresh) >= c.freshness {
		return false
	}
	return aggregate.Complete(c.symbols, c.snaps)
}

// refresh runs inside the singleflight slot, so at most one executes at a time.
func (c *Cache) refresh() (any, error) {
	// A batch may have completed between the caller's freshness check and
	// taking the slot.
	if v, ok := c.fresh(); ok {
		return v, nil
	}

	started := c.now()
	batch := c.fetchBatch()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = aggregate.Merge(c.snaps, batch)
	if len(batch) > 0 && started.After(c.lastRefresh) {
		c.lastRefresh = started
	}
	c.view = aggregate.View(c.symbols, c.snaps)

	c.log.Debug().
		Int("fetched", len(batch)).
		Int("tracked", len(c.symbols)).
		Time("last_refresh", c.lastRefresh).
		Msg("refresh batch complete")
	return c.view, nil
}

// fetchBatch fetches every symbol independently and returns only the ones
// that succeeded. It runs on its own context so no caller can cancel it.
func (c *Cache) fetchBatch() map[string]quote.Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), c.batchTimeout)
	defer cancel()

	var mu sync.Mutex
	out := make(map[string]quote.Snapshot, len(c.symbols))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, sym := range c.symbols {
		g.Go(func() error {
			s, err := c.fetchOne(ctx, sym)
			if err != nil {
				c.log.Warn().Err(err).Str("symbol", sym).Str("source", c.src.Name()).Msg("fetch failed")
				return nil
			}
			mu.Lock()
			out[sym] = s
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fetchOne bounds a single fetch by the fetch timeout even if the source
// does not honour its context.
func (c *Cache) fetchOne(ctx context.Context, sym string) (quote.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	type result struct {
		s   quote.Snapshot
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				ch <- result{err: fmt.Errorf("%s %s: panic: %v", c.src.Name(), sym, rec)}
			}
		}()
		s, err := c.src.Fetch(ctx, sym)
		ch <- result{s, err}
	}()
	select {
	case r := <-ch:
		return r.s, r.err
	case <-ctx.Done():
		return quote.Snapshot{}, ctx.Err()
	}
}
