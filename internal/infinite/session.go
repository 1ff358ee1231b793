// Package infinite implements the windowed infinite-list controller: a page cache fed by a
// single-flight fetch coordinator, a window calculator that turns scroll geometry into the
// rows to materialize, a prefetch trigger that couples the two, and a restorer that lands a
// deep link on the right row.
//
// A Session is owned by one goroutine. Fetches are handed out as Requests whose Do method
// may run elsewhere; their Results come back through Settle on the owning goroutine.
package infinite

import (
	"context"
	"slices"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"
)

// Options configures a Session.
type Options[T any] struct {
	// ID names the session in logs. A ULID is generated when empty.
	ID    string
	Fetch Fetcher[T]
	// PageSize is the expected page length; it sets the prefetch threshold.
	PageSize int
	Overscan int
	// ItemSize is the uniform row size. SizeFunc takes precedence when set.
	ItemSize      int
	SizeFunc      SizeFunc
	ScrollMargin  int
	ContainerSize int
	// Position and InitialPage are consumed once, when the session is created.
	Position    *Position
	InitialPage *Page[T]
	// ManualOnly disables the prefetch trigger; pages past the first load through LoadMore.
	ManualOnly bool
}

// Row is what a row renderer receives: geometry plus the item, or a placeholder when the
// row has not been loaded yet.
type Row[T any] struct {
	VirtualItem
	Item   T
	Loaded bool
}

// Session is one mounted list: it owns its cache and frontier for its whole lifetime.
type Session[T any] struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	cache    *Cache[T]
	coord    *Coordinator[T]
	calc     *Calculator
	trigger  Trigger
	manual   bool
	pageSize int

	viewport  Viewport
	window    Window
	countHint int
	lastErr   error

	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Window)
}

// NewSession creates a session and applies the initial position and page.
func NewSession[T any](parent context.Context, opts Options[T]) *Session[T] {
	id := opts.ID
	if id == "" {
		id = ulid.Make().String()
	}
	calc := NewFixedCalculator(opts.ItemSize)
	if opts.SizeFunc != nil {
		calc = NewCalculator(opts.SizeFunc)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 && opts.Position != nil {
		pageSize = opts.Position.Limit
	}
	ctx, cancel := context.WithCancel(parent)
	cache := NewCache[T]()
	s := &Session[T]{
		id:       id,
		ctx:      ctx,
		cancel:   cancel,
		cache:    cache,
		coord:    NewCoordinator(cache, opts.Fetch),
		calc:     calc,
		trigger:  Trigger{Threshold: pageSize},
		manual:   opts.ManualOnly,
		pageSize: pageSize,
		viewport: Viewport{
			ScrollMargin:  opts.ScrollMargin,
			ContainerSize: opts.ContainerSize,
			Overscan:      opts.Overscan,
		},
		window: Window{Visible: emptyRange, Overscan: emptyRange},
	}

	restorer := NewRestorer(opts.Position, opts.InitialPage)
	if r, ok := restorer.Restore(s.coord, calc, opts.ScrollMargin); ok {
		s.viewport.ScrollOffset = r.ScrollOffset
		s.countHint = r.CountHint
		if r.Seeded || r.ScrollOffset > 0 {
			glog.Infof("[list %s] restored offset=%d seeded=%t", id, r.ScrollOffset, r.Seeded)
		}
	}
	s.recompute()
	return s
}

// ID returns the session identifier.
func (s *Session[T]) ID() string {
	return s.id
}

// Context is cancelled when the session closes. Requests should run under it.
func (s *Session[T]) Context() context.Context {
	return s.ctx
}

// Mount returns the first fetch the session needs, if any.
func (s *Session[T]) Mount() *Request[T] {
	return s.maybeFetch()
}

// ScrollTo moves the viewport to offset and returns a fetch when the new window calls for
// one.
func (s *Session[T]) ScrollTo(offset int) *Request[T] {
	s.viewport.ScrollOffset = offset
	if !s.recompute() {
		return nil
	}
	return s.maybeFetch()
}

// ScrollBy moves the viewport by delta.
func (s *Session[T]) ScrollBy(delta int) *Request[T] {
	return s.ScrollTo(s.viewport.ScrollOffset + delta)
}

// ScrollToIndex scrolls just far enough for the row at index to be fully visible.
func (s *Session[T]) ScrollToIndex(index int) *Request[T] {
	if s.viewport.Count == 0 {
		return nil
	}
	index = clamp(index, 0, s.viewport.Count-1)
	return s.ScrollTo(s.calc.OffsetFor(index, s.viewport))
}

// Resize changes the container size.
func (s *Session[T]) Resize(containerSize int) *Request[T] {
	s.viewport.ContainerSize = containerSize
	if !s.recompute() {
		return nil
	}
	return s.maybeFetch()
}

// Settle applies the result of a request issued by this session. It returns the follow-up
// fetch, if the refreshed window wants one. A failed fetch is returned as a *FetchError and
// suspends prefetching until Retry.
func (s *Session[T]) Settle(res Result[T]) (*Request[T], error) {
	applied, err := s.coord.Settle(res)
	if err != nil {
		s.lastErr = err
		glog.Warningf("[list %s] %v", s.id, err)
		return nil, err
	}
	if !applied {
		return nil, nil
	}
	s.lastErr = nil
	glog.V(1).Infof("[list %s] page %d settled: %d/%d rows", s.id, s.cache.PageCount(), s.cache.Len(), s.viewport.Count)
	s.recompute()
	return s.maybeFetch(), nil
}

// Retry requests the frontier again after a failure.
func (s *Session[T]) Retry() *Request[T] {
	s.lastErr = nil
	req, ok := s.coord.RequestNext()
	if !ok {
		return nil
	}
	glog.Infof("[list %s] retry cursor=%q", s.id, req.Cursor)
	return req
}

// LoadMore requests the next page regardless of the window.
func (s *Session[T]) LoadMore() *Request[T] {
	if s.lastErr != nil {
		return nil
	}
	req, ok := s.coord.RequestNext()
	if !ok {
		return nil
	}
	return req
}

// Close ends the session. Results arriving afterwards leave it untouched.
func (s *Session[T]) Close() {
	if s.coord.Closed() {
		return
	}
	s.coord.Close()
	s.cancel()
	s.subs = nil
	glog.V(1).Infof("[list %s] closed", s.id)
}

// Subscribe registers fn to receive every new window, including windows whose rows only
// changed from placeholders to loaded items. Subscribers run in subscription order. The
// returned func unsubscribes.
func (s *Session[T]) Subscribe(fn func(Window)) func() {
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

// Window returns the current window.
func (s *Session[T]) Window() Window {
	return s.window
}

// Rows returns the rows of the current window, loaded or placeholder.
func (s *Session[T]) Rows() []Row[T] {
	rows := make([]Row[T], 0, len(s.window.Items))
	for _, vi := range s.window.Items {
		item, ok := s.cache.At(vi.Index)
		rows = append(rows, Row[T]{VirtualItem: vi, Item: item, Loaded: ok})
	}
	return rows
}

// Item returns the loaded item at index.
func (s *Session[T]) Item(index int) (T, bool) {
	return s.cache.At(index)
}

// Count is the number of rows the list currently spans.
func (s *Session[T]) Count() int {
	return s.viewport.Count
}

// Loaded is the number of rows fetched so far.
func (s *Session[T]) Loaded() int {
	return s.cache.Len()
}

// Total is the session's authoritative total.
func (s *Session[T]) Total() int {
	return s.cache.Total()
}

// Frontier returns the fetch frontier.
func (s *Session[T]) Frontier() Frontier {
	return s.coord.Frontier()
}

// InFlight reports whether a fetch is outstanding.
func (s *Session[T]) InFlight() bool {
	return s.coord.InFlight()
}

// Requests counts the fetches issued by this session.
func (s *Session[T]) Requests() int {
	return s.coord.Requests()
}

// Err returns the last fetch failure, cleared by a successful fetch or Retry.
func (s *Session[T]) Err() error {
	return s.lastErr
}

// ItemStart returns the document offset of the row at index.
func (s *Session[T]) ItemStart(index int) int {
	return s.viewport.ScrollMargin + s.calc.Start(index)
}

// Position describes where the list is scrolled, suitable for persisting as a deep link.
func (s *Session[T]) Position() Position {
	start := 0
	if !s.window.Visible.Empty() {
		start = s.window.Visible.Start
	}
	return Position{Start: start, Cursor: s.cache.CursorBefore(start), Limit: s.pageSize}
}

// count applies the row-count policy: the session's first total while more pages exist,
// never fewer rows than were loaded, and exactly the loaded rows once the source is
// exhausted.
func (s *Session[T]) count() int {
	loaded := s.cache.Len()
	f := s.coord.Frontier()
	if f.Pages > 0 && !f.HasNext {
		return loaded
	}
	n := max(s.cache.Total(), loaded)
	if !s.cache.HasTotal() {
		n = max(n, s.countHint)
	}
	return n
}

func (s *Session[T]) recompute() bool {
	s.viewport.Count = s.count()
	w := s.calc.Compute(s.viewport)
	w.Loaded = s.cache.Len()
	s.viewport.ScrollOffset = w.Viewport.ScrollOffset
	if w.Same(s.window) {
		return false
	}
	s.window = w
	glog.V(2).Infof("[list %s] window visible=%v overscan=%v offset=%d count=%d loaded=%d",
		s.id, w.Visible, w.Overscan, w.Viewport.ScrollOffset, w.Viewport.Count, w.Loaded)
	// A subscriber may unsubscribe while being notified.
	for _, sub := range slices.Clone(s.subs) {
		sub.fn(w)
	}
	return true
}

func (s *Session[T]) maybeFetch() *Request[T] {
	if s.lastErr != nil {
		return nil
	}
	loaded := s.cache.Len()
	if s.manual && loaded > 0 {
		return nil
	}
	if !s.trigger.ShouldFetch(s.window, loaded, s.coord.Frontier(), s.coord.InFlight()) {
		return nil
	}
	req, ok := s.coord.RequestNext()
	if !ok {
		return nil
	}
	glog.V(1).Infof("[list %s] fetch cursor=%q (overscan end %d, loaded %d)", s.id, req.Cursor, s.window.Overscan.End, loaded)
	return req
}
