// Package feed talks to the social feed's tRPC endpoint: user search, the thread feed, and
// the follow and like mutations.
package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/csheth/feedscout/internal/invalidate"
)

// Procedure names.
const (
	ProcSearchUsers = "users.getSearchUsers"
	ProcFollowers   = "users.getFollowers"
	ProcFollow      = "users.follow"
	ProcUnfollow    = "users.unfollow"
	ProcThreads     = "threads.getThreads"
	ProcLikes       = "threads.getLikes"
	ProcLike        = "threads.like"
)

// User is one row of a user search.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Image       string `json:"image"`
	IsFollowing bool   `json:"isFollowing"`
}

// Thread is one post of the thread feed. Text is plain text.
type Thread struct {
	ID        string
	Text      string
	User      User
	CreatedAt time.Time
	LikeCount int
	IsLiked   bool
	Tags      []string
}

var (
	// ErrUnauthorized is returned when the endpoint rejects the credentials.
	ErrUnauthorized = errors.New("feed: unauthorized")
	// ErrNotFound is returned for unknown procedures or targets.
	ErrNotFound = errors.New("feed: not found")
)

// RPCError is an error envelope returned by the endpoint.
type RPCError struct {
	Procedure  string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *RPCError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("feed %s: %s (http %d)", e.Procedure, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("feed %s: %s: %s", e.Procedure, e.Code, e.Message)
}

// Is maps well-known codes onto the package sentinels.
func (e *RPCError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == "UNAUTHORIZED" || e.HTTPStatus == 401
	case ErrNotFound:
		return e.Code == "NOT_FOUND" || e.HTTPStatus == 404
	}
	return false
}

// InvalidationKeys lists the queries whose cached pages are stale after mutation succeeds.
func InvalidationKeys(mutation string) []invalidate.Key {
	switch mutation {
	case ProcFollow, ProcUnfollow:
		return []invalidate.Key{ProcSearchUsers, ProcFollowers, ProcThreads}
	case ProcLike:
		return []invalidate.Key{ProcThreads, ProcLikes}
	}
	return nil
}
