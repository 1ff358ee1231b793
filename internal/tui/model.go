package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/glog"

	"github.com/csheth/feedscout/internal/feed"
	"github.com/csheth/feedscout/internal/infinite"
	"github.com/csheth/feedscout/internal/invalidate"
	"github.com/csheth/feedscout/internal/position"
)

// Backend is the remote side of the screen. *feed.Client implements it.
type Backend interface {
	UserSearch(keyword string, limit int) infinite.Fetcher[feed.User]
	ThreadFeed(limit int) infinite.Fetcher[feed.Thread]
	Follow(ctx context.Context, targetID string, follow bool) (string, error)
	Like(ctx context.Context, threadID string, like bool) (string, error)
}

// Config wires runtime options into the TUI program.
type Config struct {
	Backend Backend
	// Bus receives mutation invalidations. A private bus is used when nil.
	Bus *invalidate.Bus
	// Store persists the list position on quit and on source switches. Optional.
	Store *position.Store

	Source     string
	Keyword    string
	PageSize   int
	Overscan   int
	ManualOnly bool

	// Position and the initial pages apply to the first list only.
	Position       *infinite.Position
	InitialUsers   *infinite.Page[feed.User]
	InitialThreads *infinite.Page[feed.Thread]
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.PageSize <= 0 {
		config.PageSize = 30
	}
	if config.Source != sourceThreads {
		config.Source = sourceUsers
	}
	bus := config.Bus
	if bus == nil {
		bus = invalidate.New()
	}

	searchInput := textinput.New()
	searchInput.Prompt = "/ "
	searchInput.Placeholder = "Search users by name or username…"
	searchInput.CharLimit = 120
	searchInput.Width = 60

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &model{
		config:  config,
		ctx:     context.Background(),
		jobs:    newJobBus(),
		bus:     bus,
		layout:  newPageLayout(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		search:  searchInput,
		spinner: spin,
	}
	m.mountList(config.Source, strings.TrimSpace(config.Keyword), config.Position, true)
	m.infoMessage = "j/k to move, tab to switch lists, ? for help."
	return m
}

type model struct {
	config Config
	ctx    context.Context
	jobs   *jobBus
	bus    *invalidate.Bus
	layout pageLayout
	keys   keyMap
	help   help.Model

	list        feedList
	unsubscribe func()
	source      string
	keyword     string
	selected    int
	stale       bool

	search    textinput.Model
	searching bool
	spinner   spinner.Model
	ticking   bool

	infoMessage  string
	errorMessage string
	quitting     bool
}

func (m *model) Init() tea.Cmd {
	return m.list.Mount()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.search.Width = max(msg.Width-10, 20)
		m.relayout(msg.Width, msg.Height)
		return m, m.list.Resize(m.layout.listHeight)
	case spinner.TickMsg:
		if len(m.jobs.Running()) == 0 {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case jobSignalMsg:
		m.jobs.Track(msg.Snapshot)
		if !m.ticking {
			m.ticking = true
			return m, m.spinner.Tick
		}
		return m, nil
	case jobResultEnvelope:
		m.jobs.Track(msg.Snapshot)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case pageMsg:
		return m, m.settlePage(msg)
	case mutationMsg:
		return m, m.applyMutation(msg)
	case positionSavedMsg:
		if msg.err != nil {
			glog.Warningf("[position] save %s: %v", msg.key, msg.err)
			m.errorMessage = fmt.Sprintf("could not save position: %v", msg.err)
		}
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil
	case tea.MouseMsg:
		switch msg.Type {
		case tea.MouseWheelUp:
			return m, m.scrollBy(-wheelStep)
		case tea.MouseWheelDown:
			return m, m.scrollBy(wheelStep)
		}
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m, m.handleSearchKey(msg)
		}
		return m, m.handleKey(msg)
	}
	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) relayout(width, height int) {
	helpHeight := 1
	if m.help.ShowAll {
		helpHeight = lipgloss.Height(m.help.View(m.keys))
	}
	m.layout.Update(width, height, helpHeight)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		if m.layout.windowHeight > 0 {
			m.relayout(m.layout.windowWidth, m.layout.windowHeight)
			return m.list.Resize(m.layout.listHeight)
		}
		return nil
	case key.Matches(msg, m.keys.Down):
		return m.moveSelection(1)
	case key.Matches(msg, m.keys.Up):
		return m.moveSelection(-1)
	case key.Matches(msg, m.keys.PageDown):
		return m.moveSelection(m.pageRows())
	case key.Matches(msg, m.keys.PageUp):
		return m.moveSelection(-m.pageRows())
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
		return m.list.ScrollTo(0)
	case key.Matches(msg, m.keys.Bottom):
		return m.moveSelection(m.list.Count())
	case key.Matches(msg, m.keys.Retry):
		if m.list.Err() == nil {
			m.infoMessage = "Nothing to retry."
			return nil
		}
		m.errorMessage = ""
		m.infoMessage = "Retrying…"
		return m.list.Retry()
	case key.Matches(msg, m.keys.LoadMore):
		cmd := m.list.LoadMore()
		if cmd == nil {
			m.infoMessage = "No more pages to load."
		}
		return cmd
	case key.Matches(msg, m.keys.Search):
		if m.source != sourceUsers {
			m.infoMessage = "Search works on the users list. Press tab to switch."
			return nil
		}
		m.searching = true
		m.search.SetValue(m.keyword)
		m.search.CursorEnd()
		return m.search.Focus()
	case key.Matches(msg, m.keys.Switch):
		next := sourceThreads
		if m.source == sourceThreads {
			next = sourceUsers
		}
		return m.switchList(next, m.keyword)
	case key.Matches(msg, m.keys.Follow):
		if m.source != sourceUsers {
			m.infoMessage = "f follows users; use l to like threads."
			return nil
		}
		return m.toggleSelected()
	case key.Matches(msg, m.keys.Like):
		if m.source != sourceThreads {
			m.infoMessage = "l likes threads; use f to follow users."
			return nil
		}
		return m.toggleSelected()
	}
	return nil
}

func (m *model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		keyword := strings.TrimSpace(m.search.Value())
		if keyword == m.keyword {
			return nil
		}
		return m.switchList(sourceUsers, keyword)
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return cmd
}

// mountList replaces the current list with a fresh session. The old session is closed, so
// its outstanding pages are discarded when they arrive.
func (m *model) mountList(source, keyword string, pos *infinite.Position, initial bool) {
	if m.list != nil {
		m.list.Close()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.source = source
	m.keyword = keyword
	m.selected = 0
	if pos != nil {
		m.selected = pos.Start
	}

	switch source {
	case sourceThreads:
		opts := infinite.Options[feed.Thread]{
			PageSize:      m.config.PageSize,
			Overscan:      m.config.Overscan,
			ScrollMargin:  headerHeight,
			ContainerSize: m.layout.listHeight,
			Position:      pos,
			ManualOnly:    m.config.ManualOnly,
		}
		if initial {
			opts.InitialPage = m.config.InitialThreads
		}
		m.list = newListView(m.ctx, m.jobs, listSpec[feed.Thread]{
			Source:     sourceThreads,
			Key:        feed.ProcThreads,
			RowHeight:  threadRowHeight,
			Fetch:      m.config.Backend.ThreadFeed(m.config.PageSize),
			Render:     renderThreadRow,
			Toggle:     likeToggle(m.config.Backend),
			ToggleKind: jobKindLike,
		}, opts)
	default:
		opts := infinite.Options[feed.User]{
			PageSize:      m.config.PageSize,
			Overscan:      m.config.Overscan,
			ScrollMargin:  headerHeight,
			ContainerSize: m.layout.listHeight,
			Position:      pos,
			ManualOnly:    m.config.ManualOnly,
		}
		if initial {
			opts.InitialPage = m.config.InitialUsers
		}
		m.list = newListView(m.ctx, m.jobs, listSpec[feed.User]{
			Source:     sourceUsers,
			Key:        feed.ProcSearchUsers,
			RowHeight:  userRowHeight,
			Fetch:      m.config.Backend.UserSearch(keyword, m.config.PageSize),
			Render:     renderUserRow,
			Toggle:     followToggle(m.config.Backend),
			ToggleKind: jobKindFollow,
		}, opts)
	}
	m.unsubscribe = m.bus.Subscribe(m.list.Key(), func(invalidate.Key) { m.stale = true })
	glog.Infof("[tui] mounted %s list %s (keyword=%q)", source, m.list.ID(), keyword)
}

// switchList saves the position of the current list and mounts another one at its saved
// position.
func (m *model) switchList(source, keyword string) tea.Cmd {
	cmds := []tea.Cmd{m.savePosition(false)}
	var pos *infinite.Position
	if m.config.Store != nil {
		saved, err := m.config.Store.Load(position.Key(source, keyword))
		switch {
		case err == nil:
			pos = &saved
		case !errors.Is(err, position.ErrNoPosition):
			glog.Warningf("[position] load: %v", err)
		}
	}
	m.mountList(source, keyword, pos, false)
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("Showing %s.", strings.ToLower(m.listTitle()))
	cmds = append(cmds, m.list.Mount())
	return tea.Batch(cmds...)
}

// rebuild remounts the current list after its query was invalidated, keeping the scroll
// position.
func (m *model) rebuild() tea.Cmd {
	m.stale = false
	pos := m.list.Position()
	selected := m.selected
	m.mountList(m.source, m.keyword, &pos, false)
	m.selected = selected
	return m.list.Mount()
}

func (m *model) settlePage(msg pageMsg) tea.Cmd {
	if m.list == nil || msg.listID != m.list.ID() {
		glog.V(1).Infof("[tui] dropped page for replaced list %s", msg.listID)
		return nil
	}
	cmd, err := m.list.Settle(msg.result)
	if err != nil {
		m.errorMessage = err.Error()
	} else if m.list.Err() == nil {
		m.errorMessage = ""
	}
	m.clampSelection()
	return cmd
}

func (m *model) applyMutation(msg mutationMsg) tea.Cmd {
	if msg.err != nil {
		m.errorMessage = fmt.Sprintf("%s failed: %v", msg.procedure, msg.err)
		return nil
	}
	m.errorMessage = ""
	m.infoMessage = fmt.Sprintf("%s done.", msg.procedure)
	m.bus.Publish(feed.InvalidationKeys(msg.procedure)...)
	if m.stale {
		return m.rebuild()
	}
	return nil
}

func (m *model) toggleSelected() tea.Cmd {
	cmd := m.list.Toggle(m.selected)
	if cmd == nil {
		m.infoMessage = "Select a loaded row first."
	}
	return cmd
}

func (m *model) moveSelection(delta int) tea.Cmd {
	count := m.list.Count()
	if count == 0 {
		return nil
	}
	m.selected = min(max(m.selected+delta, 0), count-1)
	return m.list.ScrollToIndex(m.selected)
}

func (m *model) scrollBy(delta int) tea.Cmd {
	cmd := m.list.ScrollBy(delta)
	w := m.list.Window()
	if !w.Visible.Empty() {
		m.selected = min(max(m.selected, w.Visible.Start), w.Visible.End)
	}
	return cmd
}

func (m *model) clampSelection() {
	if count := m.list.Count(); count > 0 && m.selected >= count {
		m.selected = count - 1
	}
}

func (m *model) pageRows() int {
	return max(m.layout.listHeight/m.list.RowHeight(), 1)
}

func (m *model) savePosition(quit bool) tea.Cmd {
	if m.config.Store == nil {
		if quit {
			return tea.Quit
		}
		return nil
	}
	key := position.Key(m.source, m.keyword)
	return m.jobs.Start(m.ctx, jobKindPosition, savePositionJob(m.config.Store, key, m.list.Position(), quit))
}

func (m *model) quit() tea.Cmd {
	if m.quitting {
		return tea.Quit
	}
	m.quitting = true
	m.infoMessage = "Saving position…"
	cmd := m.savePosition(true)
	m.list.Close()
	return cmd
}
