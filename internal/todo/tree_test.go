package todo

import (
	"fmt"
	"reflect"
	"testing"

	"todo-backend/internal/model"
)

func ids(items []model.Item) []uint64 {
	out := make([]uint64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func texts(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fmt.Sprintf("todo %d", i))
	}
	return out
}

func TestItemTree_AddAllocatesMonotonicIDs(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	if got := tr.Add([]string{"a", "b", "c"}); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
	tr.Remove([]uint64{1, 2})
	if got := tr.Add([]string{"d", "e"}); got != 3 {
		t.Fatalf("expected count 3 after re-add, got %d", got)
	}

	got := ids(tr.List(0, 10))
	want := []uint64{0, 3, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: got %v want %v", got, want)
	}
	if tr.NextID() != 5 {
		t.Fatalf("expected nextID 5, got %d", tr.NextID())
	}

	it, ok := tr.Get(3)
	if !ok || it.Text != "d" || it.Completed {
		t.Fatalf("unexpected item 3: %+v ok=%v", it, ok)
	}
}

func TestItemTree_AddEmptyIsNoop(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add([]string{"a"})
	if got := tr.Add(nil); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if tr.NextID() != 1 {
		t.Fatalf("expected nextID unchanged, got %d", tr.NextID())
	}
}

func TestItemTree_RemoveCountsOnlyConfirmedDeletions(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(5))

	// 9 and 42 never existed; 2 is listed twice.
	if got := tr.Remove([]uint64{2, 9, 2, 42}); got != 4 {
		t.Fatalf("expected count 4, got %d", got)
	}
	if _, ok := tr.Get(2); ok {
		t.Fatalf("expected id 2 to be gone")
	}

	// Second call with the same set is a no-op.
	if got := tr.Remove([]uint64{2, 9, 2, 42}); got != 4 {
		t.Fatalf("expected idempotent count 4, got %d", got)
	}

	if got := tr.Remove([]uint64{0, 1, 3, 4, 0}); got != 0 {
		t.Fatalf("expected count 0, got %d", got)
	}
	if got := tr.Remove([]uint64{0}); got != 0 {
		t.Fatalf("count must not drop below zero, got %d", got)
	}
	if tr.order.Len() != 0 || len(tr.items) != 0 {
		t.Fatalf("index out of sync: order=%d items=%d", tr.order.Len(), len(tr.items))
	}
}

func TestItemTree_ToggleAndUpdate(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add([]string{"a", "b"})

	completed, err := tr.Toggle(1)
	if err != nil || !completed {
		t.Fatalf("toggle: completed=%v err=%v", completed, err)
	}
	completed, err = tr.Toggle(1)
	if err != nil || completed {
		t.Fatalf("second toggle: completed=%v err=%v", completed, err)
	}

	it, err := tr.UpdateText(0, "renamed")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if it.ID != 0 || it.Text != "renamed" {
		t.Fatalf("unexpected updated item: %+v", it)
	}

	// Position is by id, not by mutation recency.
	if got := ids(tr.List(0, 10)); !reflect.DeepEqual(got, []uint64{0, 1}) {
		t.Fatalf("order changed after mutations: %v", got)
	}
}

func TestItemTree_ToggleMissingLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add([]string{"a"})
	before := tr.List(0, 10)

	if _, err := tr.Toggle(7); err == nil {
		t.Fatalf("expected error toggling missing id")
	}
	if _, err := tr.UpdateText(7, "x"); err == nil {
		t.Fatalf("expected error updating missing id")
	}
	if after := tr.List(0, 10); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed: before=%v after=%v", before, after)
	}
	if tr.Count() != 1 {
		t.Fatalf("expected count 1, got %d", tr.Count())
	}
}

func TestItemTree_ListOffsetCountsLiveItems(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(10))
	tr.Remove([]uint64{1, 2, 3})

	tests := []struct {
		name          string
		offset, limit uint64
		want          []uint64
	}{
		{name: "first page", offset: 0, limit: 3, want: []uint64{0, 4, 5}},
		{name: "skips live items not ids", offset: 1, limit: 2, want: []uint64{4, 5}},
		{name: "tail", offset: 5, limit: 10, want: []uint64{8, 9}},
		{name: "past end", offset: 7, limit: 10, want: []uint64{}},
		{name: "zero limit", offset: 0, limit: 0, want: []uint64{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ids(tr.List(tt.offset, tt.limit))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("List(%d,%d): got %v want %v", tt.offset, tt.limit, got, tt.want)
			}
		})
	}
}

func TestItemTree_ListAfterSkipsGaps(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(12))
	tr.Remove([]uint64{5, 7, 8, 9})

	got, probes := tr.listAfter(5, 3)
	if want := []uint64{6, 10, 11}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("listAfter(5,3): got %v want %v", ids(got), want)
	}
	if probes < 2 {
		t.Fatalf("expected the window to expand past the gap, probes=%d", probes)
	}
}

func TestItemTree_ListAfterCursorWalk(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(100))
	var drop []uint64
	for id := uint64(10); id < 90; id++ {
		drop = append(drop, id)
	}
	tr.Remove(drop)

	var seen []uint64
	var last uint64
	first := true
	for page := 0; page < 50; page++ {
		var items []model.Item
		if first {
			items = tr.ListAfter(0, 4)
			first = false
		} else {
			items = tr.ListAfter(last, 4)
		}
		if len(items) == 0 {
			break
		}
		seen = append(seen, ids(items)...)
		last = items[len(items)-1].ID
	}

	want := ids(tr.List(0, 1000))
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("cursor walk mismatch:\n got %v\nwant %v", seen, want)
	}
}

func TestItemTree_ListAfterMatchesListWithoutGaps(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(20))

	for _, n := range []uint64{1, 5, 20, 25} {
		a := ids(tr.List(0, n))
		b := ids(tr.ListAfter(0, n))
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("n=%d: List=%v ListAfter=%v", n, a, b)
		}
	}
}

func TestItemTree_ListAfterTerminatesOnSparseTail(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(1000))
	var drop []uint64
	for id := uint64(1); id < 999; id++ {
		drop = append(drop, id)
	}
	tr.Remove(drop)

	got, probes := tr.listAfter(0, 5)
	if want := []uint64{0, 999}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
	// Doubling from a window of 5 reaches id 999 in well under 20 probes.
	if probes > 20 {
		t.Fatalf("too many probes: %d", probes)
	}

	if got := tr.ListAfter(999, 5); len(got) != 0 {
		t.Fatalf("expected empty page after last id, got %v", ids(got))
	}
	if got := tr.ListAfter(^uint64(0), 5); len(got) != 0 {
		t.Fatalf("expected empty page for max cursor, got %v", ids(got))
	}
}

func TestItemTree_ListAfterEmptyTree(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	got, probes := tr.listAfter(0, 10)
	if len(got) != 0 || probes != 0 {
		t.Fatalf("expected no work on empty tree, got %v probes=%d", ids(got), probes)
	}
}

func TestItemTree_ListFromIncludesStart(t *testing.T) {
	t.Parallel()

	tr := newItemTree()
	tr.Add(texts(6))
	tr.Remove([]uint64{2, 3})

	tests := []struct {
		start, limit uint64
		want         []uint64
	}{
		{0, 2, []uint64{0, 1}},
		{1, 2, []uint64{1, 4}},
		{2, 10, []uint64{4, 5}},
		{6, 10, []uint64{}},
	}
	for _, tt := range tests {
		got := ids(tr.ListFrom(tt.start, tt.limit))
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ListFrom(%d,%d): got %v want %v", tt.start, tt.limit, got, tt.want)
		}
	}
}
