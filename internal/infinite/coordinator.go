package infinite

import (
	"context"
	"fmt"

	"github.com/golang/glog"
)

// Fetcher loads the page that follows cursor. An empty cursor asks for the first page.
type Fetcher[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Frontier is the position of the next fetch.
type Frontier struct {
	// Cursor is the end cursor of the last fetched page, empty before any fetch.
	Cursor  string
	HasNext bool
	// Pages counts successful fetches.
	Pages int
}

// FetchError is returned by Settle when the remote source failed. The frontier is left as
// it was, so the same cursor can be requested again.
type FetchError struct {
	Cursor string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("fetch first page: %v", e.Err)
	}
	return fmt.Sprintf("fetch page after %q: %v", e.Cursor, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Request is one issued fetch. Do may run on any goroutine; its Result must be handed back
// to the coordinator that issued it.
type Request[T any] struct {
	Cursor string
	ticket uint64
	fetch  Fetcher[T]
}

// Result is the settled outcome of a Request.
type Result[T any] struct {
	Cursor string
	Page   Page[T]
	Err    error
	ticket uint64
}

// Do performs the fetch.
func (r *Request[T]) Do(ctx context.Context) Result[T] {
	page, err := r.fetch(ctx, r.Cursor)
	return Result[T]{Cursor: r.Cursor, Page: page, Err: err, ticket: r.ticket}
}

// Coordinator issues page fetches against a frontier and applies their results to a cache.
// At most one fetch is outstanding at any time. It is not safe for concurrent use: call it
// from the goroutine that owns the cache.
type Coordinator[T any] struct {
	cache    *Cache[T]
	fetch    Fetcher[T]
	frontier Frontier
	inFlight bool
	ticket   uint64
	closed   bool
	requests int
}

// NewCoordinator returns a coordinator whose frontier points at the first page.
func NewCoordinator[T any](cache *Cache[T], fetch Fetcher[T]) *Coordinator[T] {
	return &Coordinator[T]{
		cache:    cache,
		fetch:    fetch,
		frontier: Frontier{HasNext: true},
	}
}

// Seed records a page obtained outside the coordinator as if it had been fetched.
func (c *Coordinator[T]) Seed(page Page[T]) {
	c.cache.Append(page)
	c.advance(page)
}

// RequestNext starts a fetch for the current frontier. It returns false without side
// effects when there is no next page, a fetch is already outstanding, or the coordinator
// has been closed.
func (c *Coordinator[T]) RequestNext() (*Request[T], bool) {
	if c.closed || c.inFlight || !c.frontier.HasNext {
		return nil, false
	}
	c.inFlight = true
	c.ticket++
	c.requests++
	return &Request[T]{Cursor: c.frontier.Cursor, ticket: c.ticket, fetch: c.fetch}, true
}

// Settle applies a result. It reports whether the cache changed. Results that do not
// belong to the outstanding request, or that arrive after Close, are ignored. A failed
// fetch clears the in-flight flag and returns a *FetchError.
func (c *Coordinator[T]) Settle(res Result[T]) (bool, error) {
	if c.closed {
		glog.V(1).Infof("[coordinator] dropping result for %q after close", res.Cursor)
		return false, nil
	}
	if !c.inFlight || res.ticket != c.ticket || res.Cursor != c.frontier.Cursor {
		glog.V(1).Infof("[coordinator] ignoring stale result for %q", res.Cursor)
		return false, nil
	}
	c.inFlight = false
	if res.Err != nil {
		return false, &FetchError{Cursor: res.Cursor, Err: res.Err}
	}
	c.cache.Append(res.Page)
	c.advance(res.Page)
	return true, nil
}

func (c *Coordinator[T]) advance(page Page[T]) {
	c.frontier.Pages++
	c.frontier.HasNext = page.HasNext && page.EndCursor != ""
	if page.EndCursor != "" {
		c.frontier.Cursor = page.EndCursor
	}
}

// Close stops the coordinator. Outstanding results are discarded when they settle.
func (c *Coordinator[T]) Close() {
	c.closed = true
	c.inFlight = false
}

// Frontier returns the current frontier.
func (c *Coordinator[T]) Frontier() Frontier {
	return c.frontier
}

// InFlight reports whether a fetch is outstanding.
func (c *Coordinator[T]) InFlight() bool {
	return c.inFlight
}

// Requests counts the fetches issued so far.
func (c *Coordinator[T]) Requests() int {
	return c.requests
}

// Closed reports whether Close has been called.
func (c *Coordinator[T]) Closed() bool {
	return c.closed
}
