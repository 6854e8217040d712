package broadcast

import (
	"context"
	"sync"
)

// Hub routes messages between endpoints opened in the same process. Delivery
// is synchronous: Post returns after every receiving handler has run.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]map[*hubEndpoint]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]map[*hubEndpoint]struct{})}
}

// Open returns a new endpoint on the channel called name.
func (h *Hub) Open(name string) Channel {
	ep := &hubEndpoint{hub: h, name: name}

	h.mu.Lock()
	set, ok := h.endpoints[name]
	if !ok {
		set = make(map[*hubEndpoint]struct{})
		h.endpoints[name] = set
	}
	set[ep] = struct{}{}
	h.mu.Unlock()

	return ep
}

// Endpoints reports how many endpoints are open on name.
func (h *Hub) Endpoints(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints[name])
}

func (h *Hub) peers(from *hubEndpoint) []*hubEndpoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*hubEndpoint, 0, len(h.endpoints[from.name]))
	for ep := range h.endpoints[from.name] {
		if ep != from {
			out = append(out, ep)
		}
	}
	return out
}

func (h *Hub) remove(ep *hubEndpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.endpoints[ep.name]
	delete(set, ep)
	if len(set) == 0 {
		delete(h.endpoints, ep.name)
	}
}

type hubEndpoint struct {
	hub      *Hub
	name     string
	handlers handlerSet
}

func (e *hubEndpoint) Name() string { return e.name }

func (e *hubEndpoint) Post(ctx context.Context, msg string) error {
	if e.handlers.isClosed() {
		return ErrClosed
	}
	for _, peer := range e.hub.peers(e) {
		if err := ctx.Err(); err != nil {
			return err
		}
		peer.handlers.dispatch(msg)
	}
	return nil
}

func (e *hubEndpoint) Subscribe(h Handler) func() {
	return e.handlers.add(h)
}

func (e *hubEndpoint) Close() error {
	if e.handlers.close() {
		e.hub.remove(e)
	}
	return nil
}
