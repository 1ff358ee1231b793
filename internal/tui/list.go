package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/feedscout/internal/infinite"
	"github.com/csheth/feedscout/internal/invalidate"
)

// feedList is a mounted list session with its item type erased, so the screen can hold
// either source.
type feedList interface {
	ID() string
	Source() string
	Key() invalidate.Key
	RowHeight() int
	Mount() tea.Cmd
	ScrollTo(offset int) tea.Cmd
	ScrollBy(delta int) tea.Cmd
	ScrollToIndex(index int) tea.Cmd
	Resize(containerSize int) tea.Cmd
	Retry() tea.Cmd
	LoadMore() tea.Cmd
	Toggle(index int) tea.Cmd
	Settle(result any) (tea.Cmd, error)
	Close()
	Window() infinite.Window
	Rows(width, selected int) []renderedRow
	Count() int
	Loaded() int
	Total() int
	Err() error
	InFlight() bool
	Position() infinite.Position
}

// renderedRow is one window row drawn into exactly RowHeight lines.
type renderedRow struct {
	Index int
	Start int
	Lines []string
}

type pageMsg struct {
	listID string
	result any
}

type mutationMsg struct {
	procedure string
	err       error
}

type rowRenderer[T any] func(item T, width int, selected bool) []string

type listSpec[T any] struct {
	Source    string
	Key       invalidate.Key
	RowHeight int
	Fetch     infinite.Fetcher[T]
	Render    rowRenderer[T]
	// Toggle runs the row's mutation and returns the procedure it called.
	Toggle     func(ctx context.Context, item T) (string, error)
	ToggleKind jobKind
}

type listView[T any] struct {
	spec    listSpec[T]
	parent  context.Context
	session *infinite.Session[T]
	jobs    *jobBus

	// rendered caches Rows between windows; the session marks it stale on every new
	// window, including when placeholders turn into loaded rows.
	rendered      []renderedRow
	renderedFor   [2]int
	renderedStale bool
}

func newListView[T any](ctx context.Context, jobs *jobBus, spec listSpec[T], opts infinite.Options[T]) *listView[T] {
	opts.Fetch = spec.Fetch
	opts.ItemSize = spec.RowHeight
	l := &listView[T]{
		spec:          spec,
		parent:        ctx,
		session:       infinite.NewSession(ctx, opts),
		jobs:          jobs,
		renderedStale: true,
	}
	l.session.Subscribe(func(infinite.Window) { l.renderedStale = true })
	return l
}

func (l *listView[T]) fetch(req *infinite.Request[T]) tea.Cmd {
	if req == nil {
		return nil
	}
	id := l.session.ID()
	return l.jobs.Start(l.session.Context(), jobKindFetch, func(ctx context.Context) (tea.Msg, error) {
		res := req.Do(ctx)
		return pageMsg{listID: id, result: res}, res.Err
	})
}

func (l *listView[T]) ID() string          { return l.session.ID() }
func (l *listView[T]) Source() string      { return l.spec.Source }
func (l *listView[T]) Key() invalidate.Key { return l.spec.Key }
func (l *listView[T]) RowHeight() int      { return l.spec.RowHeight }

func (l *listView[T]) Mount() tea.Cmd {
	return l.fetch(l.session.Mount())
}

func (l *listView[T]) ScrollTo(offset int) tea.Cmd {
	return l.fetch(l.session.ScrollTo(offset))
}

func (l *listView[T]) ScrollBy(delta int) tea.Cmd {
	return l.fetch(l.session.ScrollBy(delta))
}

func (l *listView[T]) ScrollToIndex(index int) tea.Cmd {
	return l.fetch(l.session.ScrollToIndex(index))
}

func (l *listView[T]) Resize(containerSize int) tea.Cmd {
	return l.fetch(l.session.Resize(containerSize))
}

func (l *listView[T]) Retry() tea.Cmd {
	return l.fetch(l.session.Retry())
}

func (l *listView[T]) LoadMore() tea.Cmd {
	return l.fetch(l.session.LoadMore())
}

func (l *listView[T]) Toggle(index int) tea.Cmd {
	if l.spec.Toggle == nil {
		return nil
	}
	item, ok := l.session.Item(index)
	if !ok {
		return nil
	}
	toggle := l.spec.Toggle
	return l.jobs.Start(l.parent, l.spec.ToggleKind, func(ctx context.Context) (tea.Msg, error) {
		proc, err := toggle(ctx, item)
		return mutationMsg{procedure: proc, err: err}, err
	})
}

// Settle applies a page result. Results of another item type are ignored.
func (l *listView[T]) Settle(result any) (tea.Cmd, error) {
	res, ok := result.(infinite.Result[T])
	if !ok {
		return nil, nil
	}
	next, err := l.session.Settle(res)
	return l.fetch(next), err
}

func (l *listView[T]) Close() {
	l.session.Close()
}

func (l *listView[T]) Window() infinite.Window {
	return l.session.Window()
}

// Rows renders the window's rows, reusing the previous rendering while the window, width
// and selection are unchanged.
func (l *listView[T]) Rows(width, selected int) []renderedRow {
	key := [2]int{width, selected}
	if !l.renderedStale && l.renderedFor == key {
		return l.rendered
	}
	rows := l.session.Rows()
	out := make([]renderedRow, 0, len(rows))
	for _, row := range rows {
		var lines []string
		if row.Loaded {
			lines = l.spec.Render(row.Item, width, row.Index == selected)
		} else {
			lines = placeholderRow(row.Index == selected)
		}
		out = append(out, renderedRow{Index: row.Index, Start: row.Start, Lines: fitLines(lines, row.Size)})
	}
	l.rendered, l.renderedFor, l.renderedStale = out, key, false
	return out
}

func (l *listView[T]) Count() int                  { return l.session.Count() }
func (l *listView[T]) Loaded() int                 { return l.session.Loaded() }
func (l *listView[T]) Total() int                  { return l.session.Total() }
func (l *listView[T]) Err() error                  { return l.session.Err() }
func (l *listView[T]) InFlight() bool              { return l.session.InFlight() }
func (l *listView[T]) Position() infinite.Position { return l.session.Position() }

// fitLines pads or cuts lines to exactly height entries.
func fitLines(lines []string, height int) []string {
	if len(lines) > height {
		return lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}

func placeholderRow(selected bool) []string {
	marker := "  "
	if selected {
		marker = selectedMarker
	}
	return []string{marker + helperStyle.Render("Loading…")}
}
