package infinite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// pagedSource serves integer rows in pages addressed by "c<offset>" cursors.
type pagedSource struct {
	rows        int
	pageSize    int
	reportTotal int
	calls       []string
	fail        map[string]error
}

func newPagedSource(rows, pageSize int) *pagedSource {
	return &pagedSource{rows: rows, pageSize: pageSize, reportTotal: rows, fail: map[string]error{}}
}

func (p *pagedSource) fetch(ctx context.Context, cursor string) (Page[int], error) {
	p.calls = append(p.calls, cursor)
	if err := p.fail[cursor]; err != nil {
		return Page[int]{}, err
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "c"))
		if err != nil {
			return Page[int]{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	end := min(start+p.pageSize, p.rows)
	items := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, i)
	}
	page := Page[int]{Items: items, Total: p.reportTotal, HasNext: end < p.rows}
	if page.HasNext {
		page.EndCursor = fmt.Sprintf("c%d", end)
	}
	return page, nil
}

func intPage(from, to, total int, next string) Page[int] {
	items := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		items = append(items, i)
	}
	return Page[int]{Items: items, Total: total, HasNext: next != "", EndCursor: next}
}

// drain settles req and every follow-up fetch the session asks for.
func drain[T any](t *testing.T, s *Session[T], req *Request[T]) {
	t.Helper()
	for req != nil {
		var err error
		req, err = s.Settle(req.Do(context.Background()))
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
	}
}
