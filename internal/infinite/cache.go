package infinite

import "github.com/golang/glog"

// UnknownTotal marks a page whose source did not report a total count.
const UnknownTotal = -1

// Page is the result of one fetch. Pages are never modified after they are received.
type Page[T any] struct {
	Items     []T
	Total     int
	HasNext   bool
	EndCursor string
}

// Cache keeps fetched pages in fetch order and exposes them as one flat sequence.
type Cache[T any] struct {
	pages   []Page[T]
	flat    []T
	total   int
	cursors []string
}

// NewCache returns an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{total: UnknownTotal}
}

// Append adds page after every page already held. No deduplication is done across pages.
func (c *Cache[T]) Append(page Page[T]) {
	prevCursor := ""
	if last, ok := c.LastPage(); ok {
		prevCursor = last.EndCursor
	}
	if len(c.pages) == 0 {
		if page.Total >= 0 {
			c.total = page.Total
		}
	} else if page.Total >= 0 && c.total >= 0 && page.Total != c.total {
		glog.Warningf("[cache] page %d reports total %d, keeping %d", len(c.pages), page.Total, c.total)
	}
	c.pages = append(c.pages, page)
	c.cursors = append(c.cursors, prevCursor)
	c.flat = append(c.flat, page.Items...)
}

// Flatten returns every loaded item in page order then item order. The returned slice
// must not be modified.
func (c *Cache[T]) Flatten() []T {
	return c.flat[:len(c.flat):len(c.flat)]
}

// Len reports how many items have been loaded.
func (c *Cache[T]) Len() int {
	return len(c.flat)
}

// At returns the loaded item at index.
func (c *Cache[T]) At(index int) (T, bool) {
	if index < 0 || index >= len(c.flat) {
		var zero T
		return zero, false
	}
	return c.flat[index], true
}

// PageCount reports how many pages have been appended.
func (c *Cache[T]) PageCount() int {
	return len(c.pages)
}

// LastPage returns the most recently appended page.
func (c *Cache[T]) LastPage() (Page[T], bool) {
	if len(c.pages) == 0 {
		return Page[T]{}, false
	}
	return c.pages[len(c.pages)-1], true
}

// Total is the authoritative item count for the session: the first page's total when it
// reported one, otherwise the number of loaded items. Totals reported by later pages never
// replace it.
func (c *Cache[T]) Total() int {
	if c.total >= 0 {
		return c.total
	}
	return len(c.flat)
}

// HasTotal reports whether the first page carried a total count.
func (c *Cache[T]) HasTotal() bool {
	return c.total >= 0
}

// CursorBefore returns the cursor that was used to fetch the page holding index. Indices
// past the loaded prefix resolve to the cursor of the next fetch.
func (c *Cache[T]) CursorBefore(index int) string {
	if index < 0 || len(c.pages) == 0 {
		return ""
	}
	seen := 0
	for i, page := range c.pages {
		seen += len(page.Items)
		if index < seen {
			return c.cursors[i]
		}
	}
	return c.pages[len(c.pages)-1].EndCursor
}
