package todo

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"todo-backend/internal/model"

	"github.com/google/uuid"
)

// Observer receives an Event after every successful mutation. Events for one
// caller arrive in mutation order; Observe must not mutate that caller's todos.
type Observer interface {
	Observe(ctx context.Context, ev model.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev model.Event)

func (f ObserverFunc) Observe(ctx context.Context, ev model.Event) { f(ctx, ev) }

// Service is the caller-scoped surface the transports bind to.
type Service struct {
	store *Store
	log   *slog.Logger
	now   func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

func NewService(store *Store, log *slog.Logger) *Service {
	if store == nil {
		store = NewStore()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) Store() *Store { return s.store }

func (s *Service) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Service) publish(ctx context.Context, caller string, typ model.EventType, payload any) {
	ev := model.Event{
		ID:      uuid.NewString(),
		TS:      s.now().UTC(),
		Caller:  caller,
		Type:    typ,
		Payload: payload,
	}
	s.mu.RLock()
	obs := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range obs {
		o.Observe(ctx, ev)
	}
}

// GetPaginatedTodos skips offset live items.
func (s *Service) GetPaginatedTodos(ctx context.Context, caller string, offset, limit uint64) []model.Item {
	return s.store.List(caller, offset, limit)
}

// GetEffPaginatedTodos pages by the last id seen on the previous page.
func (s *Service) GetEffPaginatedTodos(ctx context.Context, caller string, lastID, limit uint64) []model.Item {
	return s.store.ListAfter(caller, lastID, limit)
}

// GetTodosAfter pages strictly after lastID, including lastID == 0.
// A nil lastID starts at the first live item.
func (s *Service) GetTodosAfter(ctx context.Context, caller string, lastID *uint64, limit uint64) []model.Item {
	if lastID == nil {
		return s.store.ListFrom(caller, 0, limit)
	}
	if *lastID == math.MaxUint64 {
		return []model.Item{}
	}
	return s.store.ListFrom(caller, *lastID+1, limit)
}

func (s *Service) GetTodo(ctx context.Context, caller string, id uint64) (model.Item, bool) {
	return s.store.Get(caller, id)
}

func (s *Service) Count(ctx context.Context, caller string) uint64 {
	return s.store.Count(caller)
}

func (s *Service) AddTodos(ctx context.Context, caller string, texts []string) uint64 {
	t := s.store.getOrCreate(caller)
	t.pub.Lock()
	defer t.pub.Unlock()

	first, n := t.add(texts)
	if len(texts) == 0 {
		return n
	}
	s.log.DebugContext(ctx, "todos added", "caller", caller, "added", len(texts), "count", n)
	s.publish(ctx, caller, model.EventTodosAdded, map[string]any{
		"firstId": first,
		"texts":   texts,
		"count":   n,
	})
	return n
}

func (s *Service) RemoveTodos(ctx context.Context, caller string, ids []uint64) uint64 {
	t, ok := s.store.get(caller)
	if !ok {
		return 0
	}
	t.pub.Lock()
	defer t.pub.Unlock()

	removed, n := t.remove(ids)
	if len(removed) == 0 {
		return n
	}
	s.log.DebugContext(ctx, "todos removed", "caller", caller, "removed", len(removed), "count", n)
	s.publish(ctx, caller, model.EventTodosRemoved, map[string]any{
		"ids":   removed,
		"count": n,
	})
	return n
}

func (s *Service) ToggleTodo(ctx context.Context, caller string, id uint64) (bool, error) {
	t, ok := s.store.get(caller)
	if !ok {
		return false, NoSuchUserError{Caller: caller}
	}
	t.pub.Lock()
	defer t.pub.Unlock()

	completed, err := t.Toggle(id)
	if err != nil {
		err = NotFoundError{Caller: caller, ID: id}
		s.log.DebugContext(ctx, "toggle rejected", "caller", caller, "id", id, "err", err)
		return false, err
	}
	s.publish(ctx, caller, model.EventTodoToggled, map[string]any{
		"id":        id,
		"completed": completed,
	})
	return completed, nil
}

func (s *Service) UpdateTodoText(ctx context.Context, caller string, id uint64, text string) (model.Item, error) {
	t, ok := s.store.get(caller)
	if !ok {
		return model.Item{}, NoSuchUserError{Caller: caller}
	}
	t.pub.Lock()
	defer t.pub.Unlock()

	it, err := t.UpdateText(id, text)
	if err != nil {
		err = NotFoundError{Caller: caller, ID: id}
		s.log.DebugContext(ctx, "update rejected", "caller", caller, "id", id, "err", err)
		return model.Item{}, err
	}
	s.publish(ctx, caller, model.EventTodoTextUpdated, map[string]any{
		"id":   id,
		"text": text,
	})
	return it, nil
}
