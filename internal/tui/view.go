package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/feedscout/internal/feed"
)

func (m *model) View() string {
	parts := []string{strings.Join(m.documentLines(), "\n")}
	if m.searching {
		parts = append(parts, m.search.View())
	} else {
		parts = append(parts, m.statusBarView())
	}
	parts = append(parts, m.messageView(), m.help.View(m.keys))
	return strings.Join(parts, "\n")
}

func (m *model) statusBarView() string {
	stats := []string{sourceLabel(m.source)}
	if w := m.list.Window(); !w.Visible.Empty() {
		stats = append(stats, fmt.Sprintf("rows %d-%d of %d", w.Visible.Start+1, w.Visible.End+1, m.list.Count()))
	}
	if m.config.ManualOnly {
		stats = append(stats, "manual paging")
	}
	stats = append(stats, m.jobStatusBadges()...)
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) jobStatusBadges() []string {
	running := m.jobs.Running()
	if len(running) == 0 {
		return nil
	}
	badges := make([]string, 0, len(running))
	for _, job := range running {
		badges = append(badges, fmt.Sprintf("%s %s", m.spinner.View(), job.Kind))
	}
	return badges
}

func (m *model) messageView() string {
	if m.errorMessage != "" {
		msg := errorStyle.Render(m.errorMessage)
		if m.list.Err() != nil {
			msg += helperStyle.Render("  press r to retry")
		}
		return truncate.StringWithTail(msg, uint(m.layout.contentWidth), "…")
	}
	return helperStyle.Render(truncate.StringWithTail(m.infoMessage, uint(m.layout.contentWidth), "…"))
}

func sourceLabel(source string) string {
	if source == sourceThreads {
		return "Threads"
	}
	return "Users"
}

func rowMarker(selected bool) string {
	if selected {
		return selectedMarker
	}
	return "  "
}

func renderUserRow(u feed.User, width int, selected bool) []string {
	name := u.Name
	if strings.TrimSpace(name) == "" {
		name = u.Username
	}
	label := nameStyle.Render(name)
	if selected {
		label = currentLineStyle.Render(name)
	}
	head := label + " " + helperStyle.Render("@"+u.Username)
	if u.IsFollowing {
		head += " " + activeStyle.Render("✓ following")
	}
	bio := strings.Join(strings.Fields(u.Bio), " ")
	if bio == "" {
		bio = "No bio yet."
	}
	inner := uint(max(width-2, 1))
	return []string{
		rowMarker(selected) + truncate.StringWithTail(head, inner, "…"),
		"  " + helperStyle.Render(truncate.StringWithTail(bio, inner, "…")),
		"",
	}
}

func renderThreadRow(t feed.Thread, width int, selected bool) []string {
	inner := max(width-2, 1)
	author := "@" + t.User.Username
	if selected {
		author = currentLineStyle.Render(author)
	} else {
		author = nameStyle.Render(author)
	}
	likes := fmt.Sprintf("♡ %d", t.LikeCount)
	if t.IsLiked {
		likes = activeStyle.Render(fmt.Sprintf("♥ %d", t.LikeCount))
	}
	meta := []string{author}
	if !t.CreatedAt.IsZero() {
		meta = append(meta, helperStyle.Render(t.CreatedAt.Local().Format("2006-01-02 15:04")))
	}
	meta = append(meta, likes)

	text := strings.TrimSpace(t.Text)
	if text == "" {
		text = "(no text)"
	}
	body := strings.Split(wordwrap.String(text, inner), "\n")
	if len(body) > 2 {
		body = []string{body[0], body[1] + " …"}
	}
	for len(body) < 2 {
		body = append(body, "")
	}
	for i, line := range body {
		body[i] = "  " + truncate.StringWithTail(line, uint(inner), "…")
	}

	tags := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, "#"+tag)
	}
	return []string{
		rowMarker(selected) + truncate.StringWithTail(strings.Join(meta, " · "), uint(inner), "…"),
		body[0],
		body[1],
		"  " + helperStyle.Render(truncate.StringWithTail(strings.Join(tags, " "), uint(inner), "…")),
		"",
	}
}

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	nameStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c")).Bold(true)
	statusBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	currentLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
)
