package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"todo-backend/internal/model"

	"github.com/starfederation/datastar-go/datastar"
)

// callerHubs fans mutation notifications out to the open streams of one
// caller. A caller's hub exists only while it has subscribers.
type callerHubs struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func newCallerHubs() *callerHubs {
	return &callerHubs{subs: map[string]map[chan struct{}]struct{}{}}
}

func (h *callerHubs) subscribe(caller string) (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 8)
	h.mu.Lock()
	set := h.subs[caller]
	if set == nil {
		set = map[chan struct{}]struct{}{}
		h.subs[caller] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if set := h.subs[caller]; set != nil {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, caller)
				}
			}
			h.mu.Unlock()
		})
	}
}

func (h *callerHubs) broadcast(caller string) {
	h.mu.Lock()
	for ch := range h.subs[caller] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *callerHubs) subscribers(caller string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[caller])
}

// Observe makes callerHubs a todo.Observer.
func (h *callerHubs) Observe(_ context.Context, ev model.Event) {
	h.broadcast(ev.Caller)
}

// handleStream serves the caller's first page plus count as Datastar signals,
// re-sent after every mutation by that caller.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	limit, err := s.pageLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	caller := callerFrom(r.Context())

	ch, cancel := s.hubs.subscribe(caller)
	defer cancel()

	sse := datastar.NewSSE(w, r)
	snapshot := func() map[string]any {
		ctx := sse.Context()
		return map[string]any{
			"todos": s.svc.GetEffPaginatedTodos(ctx, caller, 0, limit),
			"count": s.svc.Count(ctx, caller),
		}
	}
	_ = sse.MarshalAndPatchSignals(snapshot())

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-s.closeCh:
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			_ = sse.MarshalAndPatchSignals(snapshot())
		}
	}
}
