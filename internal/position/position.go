// Package position persists list scroll positions as deep-link parameters.
package position

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/csheth/feedscout/internal/infinite"
)

var (
	// ErrInvalid is returned for malformed deep-link parameters.
	ErrInvalid = errors.New("invalid position")
	// ErrNoPosition is returned when nothing was saved for a list.
	ErrNoPosition = errors.New("no saved position")
)

// Parse reads start, cursor and limit from a query string such as
// "?start=50&cursor=c50&limit=30". Missing start means 0 and missing limit means
// defaultLimit.
func Parse(query string, defaultLimit int) (infinite.Position, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(strings.TrimSpace(query), "?"))
	if err != nil {
		return infinite.Position{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	pos := infinite.Position{Cursor: values.Get("cursor"), Limit: defaultLimit}
	if pos.Start, err = parseInt(values, "start", 0); err != nil {
		return infinite.Position{}, err
	}
	if pos.Limit, err = parseInt(values, "limit", defaultLimit); err != nil {
		return infinite.Position{}, err
	}
	if pos.Limit == 0 {
		return infinite.Position{}, fmt.Errorf("%w: limit must be positive", ErrInvalid)
	}
	return pos, nil
}

func parseInt(values url.Values, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalid, key, raw)
	}
	return n, nil
}

// Encode renders pos as a deep-link query, without the leading "?".
func Encode(pos infinite.Position) string {
	values := url.Values{}
	values.Set("start", strconv.Itoa(pos.Start))
	if pos.Cursor != "" {
		values.Set("cursor", pos.Cursor)
	}
	if pos.Limit > 0 {
		values.Set("limit", strconv.Itoa(pos.Limit))
	}
	return values.Encode()
}

// Key names the saved position of a list.
func Key(source, keyword string) string {
	if source == "users" {
		return "users:" + strings.TrimSpace(keyword)
	}
	return source
}
