package todo

import (
	"math"
	"sync"

	"todo-backend/internal/model"

	"github.com/google/btree"
)

const orderDegree = 32

// ItemTree is one caller's items plus the ordered index of live ids and the id allocator.
//
// Invariants (held under mu):
//   - items and order have identical key sets
//   - nextID is greater than every id ever allocated
//   - count == len(items) == order.Len()
type ItemTree struct {
	mu sync.RWMutex
	// pub is held by Service across a mutation and its event publish, so a
	// caller's events reach observers in the order the mutations applied.
	pub sync.Mutex

	items  map[uint64]*model.Item
	order  *btree.BTreeG[uint64]
	nextID uint64
	count  uint64
}

func newItemTree() *ItemTree {
	return &ItemTree{
		items: map[uint64]*model.Item{},
		order: btree.NewOrderedG[uint64](orderDegree),
	}
}

// Add appends one item per text (in input order) and returns the live count.
func (t *ItemTree) Add(texts []string) uint64 {
	_, n := t.add(texts)
	return n
}

// add returns the first id it allocated alongside the live count.
func (t *ItemTree) add(texts []string) (uint64, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	first := t.nextID
	for _, text := range texts {
		id := t.nextID
		t.nextID++
		t.items[id] = &model.Item{ID: id, Text: text}
		t.order.ReplaceOrInsert(id)
		t.count++
	}
	return first, t.count
}

// Remove deletes the given ids and returns the live count.
// Unknown (or repeated) ids are skipped; count only drops for confirmed removals.
func (t *ItemTree) Remove(ids []uint64) uint64 {
	_, n := t.remove(ids)
	return n
}

func (t *ItemTree) remove(ids []uint64) ([]uint64, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []uint64
	for _, id := range ids {
		if _, ok := t.items[id]; !ok {
			continue
		}
		delete(t.items, id)
		t.order.Delete(id)
		t.count--
		removed = append(removed, id)
	}
	return removed, t.count
}

func (t *ItemTree) Toggle(id uint64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return false, NotFoundError{ID: id}
	}
	it.Completed = !it.Completed
	return it.Completed, nil
}

func (t *ItemTree) UpdateText(id uint64, text string) (model.Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	it, ok := t.items[id]
	if !ok {
		return model.Item{}, NotFoundError{ID: id}
	}
	it.Text = text
	return *it, nil
}

func (t *ItemTree) Get(id uint64) (model.Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	it, ok := t.items[id]
	if !ok {
		return model.Item{}, false
	}
	return *it, true
}

func (t *ItemTree) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// NextID is the id the next Add will allocate.
func (t *ItemTree) NextID() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextID
}

// List skips the first offset live items (ascending id) and returns up to limit items.
// Cost is O(offset+limit); ListAfter is the path for deep pages.
func (t *ItemTree) List(offset, limit uint64) []model.Item {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit == 0 || offset >= t.count {
		return []model.Item{}
	}
	out := make([]model.Item, 0, min(limit, t.count-offset))
	var skipped uint64
	t.order.Ascend(func(id uint64) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, *t.items[id])
		return uint64(len(out)) < limit
	})
	return out
}

// ListAfter returns up to limit items with ids strictly greater than lastID, in
// ascending order. lastID == 0 starts at id 0 inclusive.
func (t *ItemTree) ListAfter(lastID, limit uint64) []model.Item {
	out, _ := t.listAfter(lastID, limit)
	return out
}

// ListFrom returns up to limit items with ids >= start, in ascending order.
func (t *ItemTree) ListFrom(start, limit uint64) []model.Item {
	out, _ := t.listFrom(start, limit)
	return out
}

func (t *ItemTree) listAfter(lastID, limit uint64) ([]model.Item, int) {
	if lastID == 0 {
		return t.listFrom(0, limit)
	}
	if lastID == math.MaxUint64 {
		return []model.Item{}, 0
	}
	return t.listFrom(lastID+1, limit)
}

// listFrom also reports how many range probes it issued.
//
// The order index is sparse once items are removed, so a single [lo, lo+limit)
// probe can come back short even though live ids exist further out. Each short
// probe moves lo past the window and doubles the window. The loop ends once
// limit items are collected or the window has moved past the largest live id.
func (t *ItemTree) listFrom(start, limit uint64) ([]model.Item, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := []model.Item{}
	if limit == 0 || t.count == 0 {
		return out, 0
	}
	maxID, ok := t.order.Max()
	if !ok {
		return out, 0
	}

	lo := start
	collect := func(id uint64) bool {
		out = append(out, *t.items[id])
		return uint64(len(out)) < limit
	}

	window := limit
	probes := 0
	for uint64(len(out)) < limit && lo <= maxID {
		probes++
		if window > math.MaxUint64-lo {
			t.order.AscendGreaterOrEqual(lo, collect)
			break
		}
		hi := lo + window
		t.order.AscendRange(lo, hi, collect)
		if hi > maxID {
			break
		}
		lo = hi
		if window > math.MaxUint64/2 {
			window = math.MaxUint64
		} else {
			window *= 2
		}
	}
	return out, probes
}
