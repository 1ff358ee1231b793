package tui

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/feedscout/internal/feed"
	"github.com/csheth/feedscout/internal/infinite"
)

// fakeBackend serves users "user-<i>" and threads "thread-<i>" in pages with cursors
// "c<offset>".
type fakeBackend struct {
	mu        sync.Mutex
	users     int
	threads   int
	fail      map[string]error
	calls     []string
	following map[string]bool
	mutations []string
}

func newFakeBackend(users, threads int) *fakeBackend {
	return &fakeBackend{users: users, threads: threads, fail: map[string]error{}, following: map[string]bool{}}
}

func (b *fakeBackend) page(kind string, rows, limit int, cursor string) (int, int, bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, kind+":"+cursor)
	if err := b.fail[kind+":"+cursor]; err != nil {
		return 0, 0, false, "", err
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor[1:])
		if err != nil {
			return 0, 0, false, "", fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	end := min(start+limit, rows)
	next := ""
	if end < rows {
		next = fmt.Sprintf("c%d", end)
	}
	return start, end, end < rows, next, nil
}

func (b *fakeBackend) UserSearch(keyword string, limit int) infinite.Fetcher[feed.User] {
	return func(ctx context.Context, cursor string) (infinite.Page[feed.User], error) {
		start, end, more, next, err := b.page("users", b.users, limit, cursor)
		if err != nil {
			return infinite.Page[feed.User]{}, err
		}
		items := make([]feed.User, 0, end-start)
		for i := start; i < end; i++ {
			id := fmt.Sprintf("u%d", i)
			b.mu.Lock()
			following := b.following[id]
			b.mu.Unlock()
			items = append(items, feed.User{ID: id, Username: fmt.Sprintf("user-%d", i), Name: keyword + fmt.Sprintf("Name %d", i), IsFollowing: following})
		}
		return infinite.Page[feed.User]{Items: items, Total: b.users, HasNext: more, EndCursor: next}, nil
	}
}

func (b *fakeBackend) ThreadFeed(limit int) infinite.Fetcher[feed.Thread] {
	return func(ctx context.Context, cursor string) (infinite.Page[feed.Thread], error) {
		start, end, more, next, err := b.page("threads", b.threads, limit, cursor)
		if err != nil {
			return infinite.Page[feed.Thread]{}, err
		}
		items := make([]feed.Thread, 0, end-start)
		for i := start; i < end; i++ {
			items = append(items, feed.Thread{ID: fmt.Sprintf("t%d", i), Text: fmt.Sprintf("thread-%d body", i), User: feed.User{Username: "ada"}})
		}
		return infinite.Page[feed.Thread]{Items: items, Total: infinite.UnknownTotal, HasNext: more, EndCursor: next}, nil
	}
}

func (b *fakeBackend) Follow(ctx context.Context, targetID string, follow bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	proc := feed.ProcFollow
	if !follow {
		proc = feed.ProcUnfollow
	}
	b.mutations = append(b.mutations, proc+":"+targetID)
	b.following[targetID] = follow
	return proc, nil
}

func (b *fakeBackend) Like(ctx context.Context, threadID string, like bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mutations = append(b.mutations, feed.ProcLike+":"+threadID)
	return feed.ProcLike, nil
}

func (b *fakeBackend) callCount(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func newTestModel(t *testing.T, cfg Config) *model {
	t.Helper()
	teaModel, ok := New(cfg).(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	return teaModel
}

var cmdType = reflect.TypeOf(tea.Cmd(nil))

// drive runs cmd and every command it leads to, feeding messages back into m. It reports
// whether the program asked to quit.
func drive(t *testing.T, m *model, cmd tea.Cmd) bool {
	t.Helper()
	quit := false
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 10000 {
			t.Fatal("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		switch msg := msg.(type) {
		case nil, spinner.TickMsg:
			continue
		case tea.QuitMsg:
			quit = true
			continue
		case tea.BatchMsg:
			queue = append(queue, msg...)
			continue
		}
		// tea.Sequence wraps its commands in an unexported slice type.
		if v := reflect.ValueOf(msg); v.Kind() == reflect.Slice && v.Type().Elem() == cmdType {
			for i := 0; i < v.Len(); i++ {
				queue = append(queue, v.Index(i).Interface().(tea.Cmd))
			}
			continue
		}
		_, follow := m.Update(msg)
		queue = append(queue, follow)
	}
	return quit
}

// collect runs cmd without feeding results back and returns the messages it produced.
func collect(cmd tea.Cmd) []tea.Msg {
	var out []tea.Msg
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if v := reflect.ValueOf(msg); v.IsValid() && v.Kind() == reflect.Slice && v.Type().Elem() == cmdType {
			for i := 0; i < v.Len(); i++ {
				queue = append(queue, v.Index(i).Interface().(tea.Cmd))
			}
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func TestJobBusTracksRunningJobs(t *testing.T) {
	t.Parallel()

	bus := newJobBus()
	boom := errors.New("boom")
	msgs := collect(bus.Start(context.Background(), jobKindFetch, func(context.Context) (tea.Msg, error) {
		return "payload", boom
	}))
	if len(msgs) != 2 {
		t.Fatalf("expected start and result messages, got %d", len(msgs))
	}
	signal, ok := msgs[0].(jobSignalMsg)
	if !ok || signal.Snapshot.Status != jobStatusRunning {
		t.Fatalf("first message = %#v, want running signal", msgs[0])
	}
	bus.Track(signal.Snapshot)
	if len(bus.Running()) != 1 {
		t.Fatal("job should be running")
	}

	env, ok := msgs[1].(jobResultEnvelope)
	if !ok {
		t.Fatalf("second message = %#v, want envelope", msgs[1])
	}
	if env.Snapshot.Status != jobStatusFailed || env.Snapshot.Err != "boom" || env.Payload != "payload" {
		t.Fatalf("unexpected envelope %#v", env)
	}
	bus.Track(env.Snapshot)
	if len(bus.Running()) != 0 {
		t.Fatal("job should have finished")
	}
	if last, ok := bus.Last(); !ok || last.ID != signal.Snapshot.ID {
		t.Fatalf("last job = %#v", last)
	}
}

func TestToggleFlipsCurrentState(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(1, 1)
	proc, err := followToggle(backend)(context.Background(), feed.User{ID: "u1", IsFollowing: true})
	if err != nil || proc != feed.ProcUnfollow {
		t.Fatalf("followToggle() = %q, %v", proc, err)
	}
	proc, err = likeToggle(backend)(context.Background(), feed.Thread{ID: "t1"})
	if err != nil || proc != feed.ProcLike {
		t.Fatalf("likeToggle() = %q, %v", proc, err)
	}
}

func TestListViewRerendersWhenRowsArrive(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend(95, 0)
	first, err := backend.UserSearch("", 30)(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	l := newListView(context.Background(), newJobBus(), listSpec[feed.User]{
		Source:    sourceUsers,
		Key:       feed.ProcSearchUsers,
		RowHeight: userRowHeight,
		Fetch:     backend.UserSearch("", 30),
		Render:    renderUserRow,
	}, infinite.Options[feed.User]{PageSize: 30, ContainerSize: 12, ManualOnly: true, InitialPage: &first})

	if cmd := l.ScrollToIndex(40); cmd != nil {
		t.Fatal("manual lists do not prefetch")
	}
	before := l.Rows(60, 40)
	if len(before) == 0 || !strings.Contains(before[len(before)-1].Lines[0], "Loading…") {
		t.Fatalf("rows past the first page should be placeholders: %+v", before)
	}
	if again := l.Rows(60, 40); &again[0] != &before[0] {
		t.Fatal("rows should be reused while nothing changed")
	}

	for _, msg := range collect(l.LoadMore()) {
		if env, ok := msg.(jobResultEnvelope); ok {
			if _, err := l.Settle(env.Payload.(pageMsg).result); err != nil {
				t.Fatalf("Settle() error = %v", err)
			}
		}
	}
	after := l.Rows(60, 40)
	if last := after[len(after)-1]; last.Index != 40 || !strings.Contains(last.Lines[0], "@user-40") {
		t.Fatalf("rows should re-render once their page arrives: %d %q", last.Index, last.Lines[0])
	}
}
