package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/require"

	"github.com/csheth/feedscout/internal/infinite"
	"github.com/csheth/feedscout/internal/invalidate"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{Endpoint: srv.URL, Token: "secret"})
	require.NoError(t, err)
	return c
}

func decodeInput(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var wrapped struct {
		JSON map[string]any `json:"json"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("input")), &wrapped))
	return wrapped.JSON
}

func TestSearchUsersDecodesPage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/trpc/users.getSearchUsers", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		input := decodeInput(t, r)
		require.Equal(t, "ada", input["keyword"])
		require.Equal(t, "u30", input["cursor"])
		require.EqualValues(t, 30, input["limit"])
		io.WriteString(w, `{"result":{"data":{"json":{
			"list":[{"id":"u31","username":"ada","name":"Ada","isFollowing":true}],
			"totalCount":95,"hasNextPage":true,"endCursor":"u60"}}}}`)
	})

	page, err := c.SearchUsers(context.Background(), " ada ", "u30", 30)
	require.NoError(t, err)
	require.Equal(t, infinite.Page[User]{
		Items:     []User{{ID: "u31", Username: "ada", Name: "Ada", IsFollowing: true}},
		Total:     95,
		HasNext:   true,
		EndCursor: "u60",
	}, page)
}

func TestThreadsWithoutTotalOrCursor(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		input := decodeInput(t, r)
		require.NotContains(t, input, "cursor")
		io.WriteString(w, `{"result":{"data":{
			"list":[{"id":"t1","text":"<p>Hello <b>world</b></p><p>tea &amp; toast</p><script>x()</script>",
				"createdAt":"2024-05-01T10:00:00Z","likeCount":3,"isLiked":true,
				"user":{"id":"u1","username":"ada"},
				"tags":[{"tag":{"name":"go"}},{"tag":{"name":" "}}]}],
			"hasNextPage":false,"endCursor":null}}}`)
	})

	page, err := c.Threads(context.Background(), "", 10)
	require.NoError(t, err)
	require.Equal(t, infinite.UnknownTotal, page.Total)
	require.False(t, page.HasNext)
	require.Empty(t, page.EndCursor)
	require.Len(t, page.Items, 1)
	th := page.Items[0]
	require.Equal(t, "Hello world\ntea & toast", th.Text)
	require.Equal(t, []string{"go"}, th.Tags)
	require.Equal(t, "ada", th.User.Username)
	require.Equal(t, 3, th.LikeCount)
}

func TestRPCErrorMapsToSentinels(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"json":{"message":"sign in first","code":-32001,
			"data":{"code":"UNAUTHORIZED","httpStatus":401}}}}`)
	})

	_, err := c.Threads(context.Background(), "", 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnauthorized))
	require.False(t, errors.Is(err, ErrNotFound))
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, ProcThreads, rpcErr.Procedure)
	require.Equal(t, "sign in first", rpcErr.Message)
}

func TestNonRPCErrorKeepsBodySnippet(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.SearchUsers(context.Background(), "", "", 30)
	require.ErrorContains(t, err, "502")
	require.ErrorContains(t, err, "upstream exploded")
}

func TestMutationsPostWrappedInput(t *testing.T) {
	t.Parallel()

	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = append(got, r.URL.Path+" "+string(body))
		io.WriteString(w, `{"result":{"data":{"json":null}}}`)
	})

	proc, err := c.Follow(context.Background(), "u7", false)
	require.NoError(t, err)
	require.Equal(t, ProcUnfollow, proc)
	_, err = c.Like(context.Background(), "t9", true)
	require.NoError(t, err)

	require.Equal(t, []string{
		`/api/trpc/users.unfollow {"json":{"targetId":"u7"}}`,
		`/api/trpc/threads.like {"json":{"threadId":"t9","isLike":true}}`,
	}, got)
}

func TestFetcherAdaptersPassCursor(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		input := decodeInput(t, r)
		require.Equal(t, "t30", input["cursor"])
		io.WriteString(w, `{"result":{"data":{"json":{"list":[],"hasNextPage":false}}}}`)
	})

	page, err := c.ThreadFeed(30)(context.Background(), "t30")
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestNewRejectsBadEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "ftp://feed.example.com", "://nope"} {
		_, err := New(Config{Endpoint: endpoint})
		require.Error(t, err, endpoint)
	}
}

func TestInvalidationKeys(t *testing.T) {
	t.Parallel()

	require.Contains(t, InvalidationKeys(ProcFollow), invalidate.Key(ProcSearchUsers))
	require.Contains(t, InvalidationKeys(ProcUnfollow), invalidate.Key(ProcSearchUsers))
	require.Contains(t, InvalidationKeys(ProcLike), invalidate.Key(ProcThreads))
	require.Empty(t, InvalidationKeys(ProcThreads))
}

func TestPlainTextCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	got := plainText(bluemonday.StrictPolicy(), "  one\t two <br/>\n\n three  ")
	require.Equal(t, "one two\nthree", got)
}
