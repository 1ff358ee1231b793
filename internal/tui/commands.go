package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/feedscout/internal/feed"
	"github.com/csheth/feedscout/internal/infinite"
	"github.com/csheth/feedscout/internal/position"
)

type positionSavedMsg struct {
	key  string
	quit bool
	err  error
}

func followToggle(backend Backend) func(context.Context, feed.User) (string, error) {
	return func(parent context.Context, u feed.User) (string, error) {
		ctx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()
		return backend.Follow(ctx, u.ID, !u.IsFollowing)
	}
}

func likeToggle(backend Backend) func(context.Context, feed.Thread) (string, error) {
	return func(parent context.Context, t feed.Thread) (string, error) {
		ctx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()
		return backend.Like(ctx, t.ID, !t.IsLiked)
	}
}

func savePositionJob(store *position.Store, key string, pos infinite.Position, quit bool) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		err := store.Save(key, pos)
		return positionSavedMsg{key: key, quit: quit, err: err}, err
	}
}
