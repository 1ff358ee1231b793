package infinite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCacheFlattenFollowsAppendOrder(t *testing.T) {
	t.Parallel()

	sizes := []int{3, 0, 5, 2, 7}
	cache := NewCache[int]()
	var want []int
	next := 0
	for _, size := range sizes {
		page := intPage(next, next+size, UnknownTotal, "c")
		cache.Append(page)
		want = append(want, page.Items...)
		next += size

		if diff := cmp.Diff(want, cache.Flatten()); diff != "" {
			t.Fatalf("flatten after %d pages (-want +got):\n%s", cache.PageCount(), diff)
		}
	}
	if cache.Len() != 17 {
		t.Fatalf("len = %d, want 17", cache.Len())
	}
	if cache.PageCount() != len(sizes) {
		t.Fatalf("page count = %d, want %d", cache.PageCount(), len(sizes))
	}
}

func TestCacheFlattenIsNotAliasedByCallers(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]()
	cache.Append(intPage(0, 2, 4, "c2"))
	flat := cache.Flatten()
	_ = append(flat, 99)
	cache.Append(intPage(2, 4, 4, ""))

	if diff := cmp.Diff([]int{0, 1, 2, 3}, cache.Flatten()); diff != "" {
		t.Fatalf("flatten (-want +got):\n%s", diff)
	}
}

func TestCacheKeepsFirstTotal(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]()
	cache.Append(intPage(0, 30, 95, "c30"))
	cache.Append(intPage(30, 60, 90, "c60"))
	cache.Append(intPage(60, 90, 120, "c90"))

	if got := cache.Total(); got != 95 {
		t.Fatalf("total = %d, want 95", got)
	}
}

func TestCacheTotalFallsBackToLength(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]()
	if got := cache.Total(); got != 0 {
		t.Fatalf("empty total = %d", got)
	}
	cache.Append(intPage(0, 4, UnknownTotal, "c4"))
	cache.Append(intPage(4, 6, 50, ""))
	if cache.HasTotal() {
		t.Fatal("first page carried no total")
	}
	if got := cache.Total(); got != 6 {
		t.Fatalf("total = %d, want loaded length 6", got)
	}
}

func TestCacheLastPageAndAt(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]()
	if _, ok := cache.LastPage(); ok {
		t.Fatal("empty cache has no last page")
	}
	cache.Append(intPage(0, 2, 3, "c2"))
	cache.Append(intPage(2, 3, 3, ""))

	last, ok := cache.LastPage()
	if !ok || last.EndCursor != "" || len(last.Items) != 1 {
		t.Fatalf("unexpected last page %+v", last)
	}
	if v, ok := cache.At(2); !ok || v != 2 {
		t.Fatalf("At(2) = %d, %t", v, ok)
	}
	if _, ok := cache.At(3); ok {
		t.Fatal("At past the loaded prefix should miss")
	}
	if _, ok := cache.At(-1); ok {
		t.Fatal("negative index should miss")
	}
}

func TestCacheCursorBefore(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]()
	cache.Append(intPage(0, 30, 95, "c30"))
	cache.Append(intPage(30, 60, 95, "c60"))

	tests := []struct {
		index int
		want  string
	}{
		{0, ""},
		{29, ""},
		{30, "c30"},
		{59, "c30"},
		{75, "c60"},
	}
	for _, tt := range tests {
		if got := cache.CursorBefore(tt.index); got != tt.want {
			t.Errorf("CursorBefore(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}
