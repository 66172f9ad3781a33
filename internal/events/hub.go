// Package events fans status snapshots out to live subscribers.
package events

import (
	"context"
	"sync"

	"minshare/internal/core"
)

// Listener receives every published snapshot. Listeners run synchronously on
// the publishing goroutine and must not block.
type Listener func(ctx context.Context, c Change)

// Change is one successful write.
type Change struct {
	Operation core.Operation
	Status    core.PeriodStatus
}

type subscriber struct {
	ch        chan core.PeriodStatus
	delivered bool
}

// Hub keeps per-document subscriber sets. Each subscriber has a one-slot
// buffer holding the newest snapshot, so slow readers skip stale states and
// never block writers.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]map[*subscriber]struct{}
	listeners []Listener
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[*subscriber]struct{}{}}
}

// OnChange registers a listener for every change on every key.
func (h *Hub) OnChange(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// Loader reads the current snapshot for a subscription.
type Loader func(ctx context.Context) (core.PeriodStatus, error)

// Subscribe returns a channel of snapshots for key. The subscriber is
// registered before load runs, so no write is missed between the initial
// read and the first update. The channel is closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, key core.StatusKey, load Loader) (<-chan core.PeriodStatus, error) {
	sub := &subscriber{ch: make(chan core.PeriodStatus, 1)}
	id := key.DocID()

	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = map[*subscriber]struct{}{}
		h.subs[id] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	initial, err := load(ctx)
	if err != nil {
		h.remove(id, sub)
		return nil, err
	}
	h.mu.Lock()
	// A snapshot delivered since registration is at least as new as initial.
	if !sub.delivered {
		offer(sub.ch, initial.Clone())
		sub.delivered = true
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(id, sub)
	}()
	return sub.ch, nil
}

func (h *Hub) remove(id string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[id]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, id)
	}
	close(sub.ch)
}

// Publish delivers status to the key's subscribers, then to listeners.
func (h *Hub) Publish(ctx context.Context, op core.Operation, status core.PeriodStatus) {
	h.mu.Lock()
	for sub := range h.subs[status.Key().DocID()] {
		offer(sub.ch, status.Clone())
		sub.delivered = true
	}
	listeners := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()

	for _, l := range listeners {
		l(ctx, Change{Operation: op, Status: status.Clone()})
	}
}

// offer replaces any pending snapshot with s. Callers hold h.mu, which is
// the only place sends happen, so the drain-then-send cannot block.
func offer(ch chan core.PeriodStatus, s core.PeriodStatus) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- s
}

// Subscribers returns the number of live subscriptions for key.
func (h *Hub) Subscribers(key core.StatusKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key.DocID()])
}
