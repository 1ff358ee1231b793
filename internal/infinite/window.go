package infinite

import "sort"

// Range is an inclusive span of indices. It is empty when End < Start.
type Range struct {
	Start int
	End   int
}

var emptyRange = Range{Start: 0, End: -1}

// Empty reports whether the range holds no index.
func (r Range) Empty() bool {
	return r.End < r.Start
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index lies within the range.
func (r Range) Contains(index int) bool {
	return !r.Empty() && index >= r.Start && index <= r.End
}

// VirtualItem is one materialized row: its index, its offset from the top of the document
// (scroll margin included) and its size.
type VirtualItem struct {
	Index int
	Start int
	Size  int
}

// End is the offset just past the item.
func (v VirtualItem) End() int {
	return v.Start + v.Size
}

// Viewport describes the scroll geometry a window is computed for.
type Viewport struct {
	// Count is the number of rows in the list, loaded or not.
	Count         int
	ScrollOffset  int
	ContainerSize int
	// ScrollMargin is the distance from the top of the document to the top of the list.
	ScrollMargin int
	// Overscan is the number of extra rows kept on each side of the visible range.
	Overscan int
}

// Window is the derived render plan for one viewport. Windows are values; a new one is
// computed for every change.
type Window struct {
	// Viewport holds the inputs, with ScrollOffset clamped to the scrollable extent.
	Viewport  Viewport
	Visible   Range
	Overscan  Range
	Items     []VirtualItem
	TotalSize int
	// Loaded is the length of the loaded prefix when the window was published. Rows in
	// Items at or past it render as placeholders.
	Loaded int
}

// Same reports whether two windows would materialize the same rows at the same offsets.
func (w Window) Same(other Window) bool {
	return w.Viewport == other.Viewport &&
		w.Visible == other.Visible &&
		w.Overscan == other.Overscan &&
		w.TotalSize == other.TotalSize &&
		w.Loaded == other.Loaded
}

// SizeFunc estimates the size of the row at index.
type SizeFunc func(index int) int

// Calculator maps viewports to windows. Uniform sizes are resolved arithmetically;
// per-index sizes go through a prefix table that is built once and extended as the count
// grows.
type Calculator struct {
	fixed int
	size  SizeFunc
	ends  []int
}

// NewFixedCalculator returns a calculator for rows that all have the same size.
func NewFixedCalculator(size int) *Calculator {
	if size < 1 {
		size = 1
	}
	return &Calculator{fixed: size}
}

// NewCalculator returns a calculator that asks size for every row.
func NewCalculator(size SizeFunc) *Calculator {
	return &Calculator{size: size}
}

// Reset drops memoized row offsets. Call it when the size estimates change.
func (c *Calculator) Reset() {
	c.ends = c.ends[:0]
}

// Size returns the estimated size of the row at index.
func (c *Calculator) Size(index int) int {
	if c.fixed > 0 {
		return c.fixed
	}
	if size := c.size(index); size > 0 {
		return size
	}
	return 0
}

// Start returns the offset of the row at index relative to the top of the list.
func (c *Calculator) Start(index int) int {
	if index <= 0 {
		return 0
	}
	if c.fixed > 0 {
		return index * c.fixed
	}
	c.extend(index)
	return c.ends[index-1]
}

// TotalSize returns the combined size of count rows.
func (c *Calculator) TotalSize(count int) int {
	return c.Start(count)
}

func (c *Calculator) extend(n int) {
	for i := len(c.ends); i < n; i++ {
		prev := 0
		if i > 0 {
			prev = c.ends[i-1]
		}
		c.ends = append(c.ends, prev+c.Size(i))
	}
}

// firstEndingAfter returns the first index whose end lies past offset.
func (c *Calculator) firstEndingAfter(offset, count int) int {
	if offset < 0 {
		return 0
	}
	if c.fixed > 0 {
		return offset / c.fixed
	}
	c.extend(count)
	return sort.Search(count, func(i int) bool { return c.ends[i] > offset })
}

// lastStartingBefore returns the last index whose start lies before limit, or -1.
func (c *Calculator) lastStartingBefore(limit, count int) int {
	if limit <= 0 {
		return -1
	}
	if c.fixed > 0 {
		return (limit - 1) / c.fixed
	}
	c.extend(count)
	return sort.Search(count, func(i int) bool { return c.Start(i) >= limit }) - 1
}

// Compute returns the window for vp. Offsets past the end of the content are clamped.
func (c *Calculator) Compute(vp Viewport) Window {
	if vp.Count <= 0 {
		vp.Count = 0
		vp.ScrollOffset = clamp(vp.ScrollOffset, 0, max(0, vp.ScrollMargin-vp.ContainerSize))
		return Window{Viewport: vp, Visible: emptyRange, Overscan: emptyRange}
	}
	if vp.Overscan < 0 {
		vp.Overscan = 0
	}
	total := c.TotalSize(vp.Count)
	vp.ScrollOffset = clamp(vp.ScrollOffset, 0, max(0, vp.ScrollMargin+total-vp.ContainerSize))

	rel := vp.ScrollOffset - vp.ScrollMargin
	first := min(c.firstEndingAfter(rel, vp.Count), vp.Count-1)
	last := first
	if vp.ContainerSize > 0 {
		last = clamp(c.lastStartingBefore(rel+vp.ContainerSize, vp.Count), first, vp.Count-1)
	}

	visible := Range{Start: first, End: last}
	overscan := Range{
		Start: max(0, first-vp.Overscan),
		End:   min(vp.Count-1, last+vp.Overscan),
	}
	items := make([]VirtualItem, 0, overscan.Len())
	for i := overscan.Start; i <= overscan.End; i++ {
		items = append(items, VirtualItem{
			Index: i,
			Start: vp.ScrollMargin + c.Start(i),
			Size:  c.Size(i),
		})
	}
	return Window{
		Viewport:  vp,
		Visible:   visible,
		Overscan:  overscan,
		Items:     items,
		TotalSize: total,
	}
}

// OffsetFor returns the smallest scroll change from vp.ScrollOffset that brings the row at
// index fully into view.
func (c *Calculator) OffsetFor(index int, vp Viewport) int {
	start := vp.ScrollMargin + c.Start(index)
	end := start + c.Size(index)
	offset := vp.ScrollOffset
	if end > offset+vp.ContainerSize {
		offset = end - vp.ContainerSize
	}
	if start < offset {
		offset = start
	}
	return offset
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
