package tui

import (
	"strings"
	"testing"
)

func TestPageLayoutUpdate(t *testing.T) {
	cases := []struct {
		name         string
		width        int
		height       int
		helpHeight   int
		contentWidth int
		listHeight   int
	}{
		{name: "narrow", width: 80, height: 24, helpHeight: 1, contentWidth: 78, listHeight: 21},
		{name: "full help", width: 80, height: 24, helpHeight: 6, contentWidth: 78, listHeight: 16},
		{name: "tiny", width: 20, height: 6, helpHeight: 0, contentWidth: minContentWidth, listHeight: minListHeight},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout := newPageLayout()
			layout.Update(tc.width, tc.height, tc.helpHeight)
			if layout.contentWidth != tc.contentWidth {
				t.Fatalf("content width mismatch: got %d want %d", layout.contentWidth, tc.contentWidth)
			}
			if layout.listHeight != tc.listHeight {
				t.Fatalf("list height mismatch: got %d want %d", layout.listHeight, tc.listHeight)
			}
		})
	}
}

func TestDocumentLinesPlaceRowsAfterHeader(t *testing.T) {
	t.Parallel()

	m := mountedModel(t, Config{Backend: newFakeBackend(95, 0), PageSize: 30})
	lines := m.documentLines()
	if len(lines) != m.layout.listHeight {
		t.Fatalf("got %d lines, want %d", len(lines), m.layout.listHeight)
	}
	if lines[0] != titleStyle.Render("All users") {
		t.Fatalf("first line = %q", lines[0])
	}
	for i, want := range map[int]string{headerHeight: "@user-0", headerHeight + userRowHeight: "@user-1"} {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want)
		}
	}

	press(t, m, "G")
	lines = m.documentLines()
	if !strings.Contains(lines[len(lines)-userRowHeight], "@user-94") {
		t.Fatalf("last row should sit at the bottom of the viewport: %q", lines[len(lines)-userRowHeight])
	}
}
