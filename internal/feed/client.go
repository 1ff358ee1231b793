package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/microcosm-cc/bluemonday"

	"github.com/csheth/feedscout/internal/infinite"
)

const (
	defaultTimeout = 10 * time.Second
	rpcPrefix      = "/api/trpc/"
	errorBodyLimit = 64 << 10
)

var (
	blockBreaks          = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</h[1-6]>`)
	extraneousWhitespace = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// Config configures a Client.
type Config struct {
	// Endpoint is the base URL of the feed, e.g. https://feed.example.com.
	Endpoint string
	// Token is sent as a bearer token when set.
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client issues tRPC queries and mutations over HTTP.
type Client struct {
	base     *url.URL
	token    string
	http     *http.Client
	sanitize *bluemonday.Policy
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("feed endpoint is required")
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid feed endpoint %q: %w", endpoint, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid feed endpoint %q: scheme must be http or https", endpoint)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		base:     base,
		token:    cfg.Token,
		http:     httpClient,
		sanitize: bluemonday.StrictPolicy(),
	}, nil
}

type searchUsersInput struct {
	Keyword string `json:"keyword,omitempty"`
	Cursor  string `json:"cursor,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type threadsInput struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type followInput struct {
	TargetID string `json:"targetId"`
}

type likeInput struct {
	ThreadID string `json:"threadId"`
	IsLike   bool   `json:"isLike"`
}

type pagePayload[T any] struct {
	List        []T     `json:"list"`
	TotalCount  *int    `json:"totalCount"`
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type wireThread struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	User      User      `json:"user"`
	LikeCount int       `json:"likeCount"`
	IsLiked   bool      `json:"isLiked"`
	Tags      []struct {
		Tag struct {
			Name string `json:"name"`
		} `json:"tag"`
	} `json:"tags"`
}

// SearchUsers fetches one page of users matching keyword.
func (c *Client) SearchUsers(ctx context.Context, keyword, cursor string, limit int) (infinite.Page[User], error) {
	var payload pagePayload[User]
	input := searchUsersInput{Keyword: strings.TrimSpace(keyword), Cursor: cursor, Limit: limit}
	if err := c.query(ctx, ProcSearchUsers, input, &payload); err != nil {
		return infinite.Page[User]{}, err
	}
	return toPage(payload, func(u User) User { return u }), nil
}

// Threads fetches one page of the thread feed.
func (c *Client) Threads(ctx context.Context, cursor string, limit int) (infinite.Page[Thread], error) {
	var payload pagePayload[wireThread]
	if err := c.query(ctx, ProcThreads, threadsInput{Cursor: cursor, Limit: limit}, &payload); err != nil {
		return infinite.Page[Thread]{}, err
	}
	return toPage(payload, c.thread), nil
}

// UserSearch adapts SearchUsers to a list fetcher.
func (c *Client) UserSearch(keyword string, limit int) infinite.Fetcher[User] {
	return func(ctx context.Context, cursor string) (infinite.Page[User], error) {
		return c.SearchUsers(ctx, keyword, cursor, limit)
	}
}

// ThreadFeed adapts Threads to a list fetcher.
func (c *Client) ThreadFeed(limit int) infinite.Fetcher[Thread] {
	return func(ctx context.Context, cursor string) (infinite.Page[Thread], error) {
		return c.Threads(ctx, cursor, limit)
	}
}

// Follow follows or unfollows the user with targetID and returns the procedure it called.
func (c *Client) Follow(ctx context.Context, targetID string, follow bool) (string, error) {
	proc := ProcFollow
	if !follow {
		proc = ProcUnfollow
	}
	return proc, c.mutate(ctx, proc, followInput{TargetID: targetID})
}

// Like likes or unlikes a thread.
func (c *Client) Like(ctx context.Context, threadID string, like bool) (string, error) {
	return ProcLike, c.mutate(ctx, ProcLike, likeInput{ThreadID: threadID, IsLike: like})
}

func (c *Client) query(ctx context.Context, proc string, input, out any) error {
	raw, err := json.Marshal(map[string]any{"json": input})
	if err != nil {
		return err
	}
	u := c.procURL(proc)
	u.RawQuery = url.Values{"input": {string(raw)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return c.do(req, proc, out)
}

func (c *Client) mutate(ctx context.Context, proc string, input any) error {
	raw, err := json.Marshal(map[string]any{"json": input})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.procURL(proc).String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, proc, nil)
}

func (c *Client) procURL(proc string) *url.URL {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + rpcPrefix + proc
	u.RawQuery = ""
	return &u
}

func (c *Client) do(req *http.Request, proc string, out any) (err error) {
	start := time.Now()
	defer func() {
		glog.V(1).Infof("[feed] %s %s (duration=%s, err=%v)", req.Method, proc, time.Since(start), err)
	}()

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		if rpcErr := decodeError(proc, resp.StatusCode, body); rpcErr != nil {
			return rpcErr
		}
		if len(body) > 512 {
			body = body[:512]
		}
		return fmt.Errorf("feed API error: %s (%s)", resp.Status, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", proc, err)
	}
	if len(env.Error) > 0 {
		if rpcErr := decodeError(proc, resp.StatusCode, env.Error); rpcErr != nil {
			return rpcErr
		}
	}
	if out == nil {
		return nil
	}
	if env.Result == nil {
		return fmt.Errorf("%s response has no result", proc)
	}
	if err := json.Unmarshal(unwrapJSON(env.Result.Data), out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", proc, err)
	}
	return nil
}

type envelope struct {
	Result *struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

type wireError struct {
	Message string `json:"message"`
	Data    struct {
		Code       string `json:"code"`
		HTTPStatus int    `json:"httpStatus"`
	} `json:"data"`
}

// unwrapJSON strips the serializer wrapper {"json": ...} when present.
func unwrapJSON(raw json.RawMessage) json.RawMessage {
	var wrapped struct {
		JSON json.RawMessage `json:"json"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.JSON) > 0 {
		return wrapped.JSON
	}
	return raw
}

// decodeError accepts either a full envelope or the bare error object.
func decodeError(proc string, status int, raw []byte) *RPCError {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Error) > 0 {
		raw = env.Error
	}
	var we wireError
	if err := json.Unmarshal(unwrapJSON(raw), &we); err != nil || (we.Message == "" && we.Data.Code == "") {
		return nil
	}
	if we.Data.HTTPStatus != 0 {
		status = we.Data.HTTPStatus
	}
	return &RPCError{Procedure: proc, Code: we.Data.Code, Message: we.Message, HTTPStatus: status}
}

func toPage[W, T any](payload pagePayload[W], convert func(W) T) infinite.Page[T] {
	items := make([]T, 0, len(payload.List))
	for _, w := range payload.List {
		items = append(items, convert(w))
	}
	page := infinite.Page[T]{Items: items, Total: infinite.UnknownTotal, HasNext: payload.HasNextPage}
	if payload.TotalCount != nil {
		page.Total = *payload.TotalCount
	}
	if payload.EndCursor != nil {
		page.EndCursor = *payload.EndCursor
	}
	return page
}

func (c *Client) thread(w wireThread) Thread {
	tags := make([]string, 0, len(w.Tags))
	for _, t := range w.Tags {
		if name := strings.TrimSpace(t.Tag.Name); name != "" {
			tags = append(tags, name)
		}
	}
	return Thread{
		ID:        w.ID,
		Text:      plainText(c.sanitize, w.Text),
		User:      w.User,
		CreatedAt: w.CreatedAt,
		LikeCount: w.LikeCount,
		IsLiked:   w.IsLiked,
		Tags:      tags,
	}
}

// plainText reduces an HTML body to text, one line per block.
func plainText(policy *bluemonday.Policy, s string) string {
	s = blockBreaks.ReplaceAllString(s, "\n")
	s = html.UnescapeString(policy.Sanitize(s))
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = extraneousWhitespace.ReplaceAllString(strings.TrimSpace(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
