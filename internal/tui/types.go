package tui

import "github.com/charmbracelet/bubbles/key"

const (
	sourceUsers   = "users"
	sourceThreads = "threads"
)

const (
	// headerHeight is the block above the list; it is the list's scroll margin.
	headerHeight    = 3
	userRowHeight   = 3
	threadRowHeight = 5
	wheelStep       = 3
)

const (
	minContentWidth          = 40
	contentHorizontalPadding = 2
	minListHeight            = 5
	statusLines              = 2
)

const selectedMarker = "▸ "

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Search   key.Binding
	Switch   key.Binding
	Retry    key.Binding
	LoadMore key.Binding
	Follow   key.Binding
	Like     key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "b"), key.WithHelp("pgup", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", " "), key.WithHelp("pgdn", "page down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search users")),
		Switch:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "users/threads")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		LoadMore: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "load more")),
		Follow:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow")),
		Like:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Search, k.Switch, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Search, k.Switch, k.Retry, k.LoadMore},
		{k.Follow, k.Like, k.Help, k.Quit},
	}
}
