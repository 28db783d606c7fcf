package todo

import (
	"sync"

	"todo-backend/internal/model"
)

// Store maps caller identity to that caller's ItemTree.
//
// A tree is created on the caller's first add and lives for the lifetime of the
// Store. Reads for callers without a tree return empty results.
type Store struct {
	mu    sync.RWMutex
	trees map[string]*ItemTree
}

func NewStore() *Store {
	return &Store{trees: map[string]*ItemTree{}}
}

func (s *Store) get(caller string) (*ItemTree, bool) {
	s.mu.RLock()
	t, ok := s.trees[caller]
	s.mu.RUnlock()
	return t, ok
}

func (s *Store) getOrCreate(caller string) *ItemTree {
	if t, ok := s.get(caller); ok {
		return t
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another writer may have created it between the locks.
	if t, ok := s.trees[caller]; ok {
		return t
	}
	t := newItemTree()
	s.trees[caller] = t
	return t
}

// Callers reports how many callers own a tree.
func (s *Store) Callers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trees)
}

func (s *Store) Add(caller string, texts []string) uint64 {
	return s.getOrCreate(caller).Add(texts)
}

// Remove does not create a tree for an unknown caller; there is nothing to remove.
func (s *Store) Remove(caller string, ids []uint64) uint64 {
	t, ok := s.get(caller)
	if !ok {
		return 0
	}
	return t.Remove(ids)
}

func (s *Store) Toggle(caller string, id uint64) (bool, error) {
	t, ok := s.get(caller)
	if !ok {
		return false, NoSuchUserError{Caller: caller}
	}
	completed, err := t.Toggle(id)
	if err != nil {
		return false, NotFoundError{Caller: caller, ID: id}
	}
	return completed, nil
}

func (s *Store) UpdateText(caller string, id uint64, text string) (model.Item, error) {
	t, ok := s.get(caller)
	if !ok {
		return model.Item{}, NoSuchUserError{Caller: caller}
	}
	it, err := t.UpdateText(id, text)
	if err != nil {
		return model.Item{}, NotFoundError{Caller: caller, ID: id}
	}
	return it, nil
}

func (s *Store) Get(caller string, id uint64) (model.Item, bool) {
	t, ok := s.get(caller)
	if !ok {
		return model.Item{}, false
	}
	return t.Get(id)
}

func (s *Store) Count(caller string) uint64 {
	t, ok := s.get(caller)
	if !ok {
		return 0
	}
	return t.Count()
}

func (s *Store) List(caller string, offset, limit uint64) []model.Item {
	t, ok := s.get(caller)
	if !ok {
		return []model.Item{}
	}
	return t.List(offset, limit)
}

func (s *Store) ListAfter(caller string, lastID, limit uint64) []model.Item {
	t, ok := s.get(caller)
	if !ok {
		return []model.Item{}
	}
	return t.ListAfter(lastID, limit)
}

func (s *Store) ListFrom(caller string, start, limit uint64) []model.Item {
	t, ok := s.get(caller)
	if !ok {
		return []model.Item{}
	}
	return t.ListFrom(start, limit)
}
