package infinite

// Position is a scroll position carried over from persisted deep-link parameters.
type Position struct {
	// Start is the first row that was visible.
	Start int
	// Cursor is the cursor that fetched the page holding Start. It is kept for the deep
	// link only: the cache always grows from the first page.
	Cursor string
	// Limit is the page length the position was recorded with.
	Limit int
}

// Restorer applies an initial position and a prefetched first page to a fresh session.
// It acts exactly once.
type Restorer[T any] struct {
	position *Position
	page     *Page[T]
	done     bool
}

// NewRestorer returns a restorer for pos and page. Either may be nil.
func NewRestorer[T any](pos *Position, page *Page[T]) *Restorer[T] {
	return &Restorer[T]{position: pos, page: page}
}

// Restoration is what a restorer seeded.
type Restoration struct {
	// ScrollOffset is the initial scroll offset for the first paint.
	ScrollOffset int
	// CountHint is the row count to assume until the source reports a total.
	CountHint int
	// Seeded reports whether a prefetched page was placed in the cache.
	Seeded bool
}

// Restore seeds coord with the prefetched page and derives the initial scroll offset from
// the row estimate. Calls after the first return false.
func (r *Restorer[T]) Restore(coord *Coordinator[T], calc *Calculator, scrollMargin int) (Restoration, bool) {
	if r.done {
		return Restoration{}, false
	}
	r.done = true

	var out Restoration
	if r.page != nil {
		coord.Seed(*r.page)
		out.Seeded = true
	}
	if r.position != nil && r.position.Start > 0 {
		out.ScrollOffset = scrollMargin + calc.Start(r.position.Start)
		out.CountHint = r.position.Start + max(r.position.Limit, 1)
	}
	r.position = nil
	r.page = nil
	return out, true
}

// Done reports whether Restore has run.
func (r *Restorer[T]) Done() bool {
	return r.done
}
