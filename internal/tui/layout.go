package tui

import "fmt"

type pageLayout struct {
	windowWidth  int
	windowHeight int
	contentWidth int
	listHeight   int
	footerHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		contentWidth: 80,
		listHeight:   20,
		footerHeight: statusLines + 1,
	}
}

// Update recomputes the regions for a window. helpHeight is the height of the help block
// under the status lines.
func (l *pageLayout) Update(width, height, helpHeight int) {
	l.windowWidth = width
	l.windowHeight = height
	l.contentWidth = max(width-contentHorizontalPadding, minContentWidth)
	l.footerHeight = statusLines + max(helpHeight, 1)
	l.listHeight = max(height-l.footerHeight, minListHeight)
}

// documentLines renders the visible slice of the document: the header block followed by
// the list rows, from the current scroll offset for listHeight lines. Only rows in the
// list's window are drawn.
func (m *model) documentLines() []string {
	height := m.layout.listHeight
	lines := make([]string, height)
	w := m.list.Window()
	offset := w.Viewport.ScrollOffset

	header := m.headerLines()
	for i := range lines {
		if d := offset + i; d < len(header) {
			lines[i] = header[d]
		}
	}
	for _, row := range m.list.Rows(m.layout.contentWidth, m.selected) {
		for j, line := range row.Lines {
			if d := row.Start + j - offset; d >= 0 && d < height {
				lines[d] = line
			}
		}
	}
	return lines
}

func (m *model) headerLines() []string {
	lines := make([]string, headerHeight)
	lines[0] = titleStyle.Render(m.listTitle())
	lines[1] = m.listSummary()
	return lines
}

func (m *model) listTitle() string {
	switch {
	case m.source == sourceThreads:
		return "Thread feed"
	case m.keyword == "":
		return "All users"
	default:
		return fmt.Sprintf("Users matching %q", m.keyword)
	}
}

func (m *model) listSummary() string {
	loaded := m.list.Loaded()
	switch {
	case loaded == 0 && m.list.Err() != nil:
		return errorStyle.Render("Could not load this list.")
	case loaded == 0 && m.list.InFlight():
		return helperStyle.Render(m.spinner.View() + " Loading…")
	case m.list.Count() == 0:
		return helperStyle.Render("No results.")
	}
	if total := m.list.Total(); total >= 0 {
		return helperStyle.Render(fmt.Sprintf("%d results · %d loaded", total, loaded))
	}
	return helperStyle.Render(fmt.Sprintf("%d loaded", loaded))
}
