package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

const (
	// DefaultName is the channel every session store opens.
	DefaultName = "auth"

	// MessageSignOut asks every other tab to drop its session.
	MessageSignOut = "signOut"
	// MessageSignIn is reserved and currently ignored by receivers.
	MessageSignIn = "signIn"
)

// ErrClosed is returned when posting on a closed channel.
var ErrClosed = errors.New("broadcast channel closed")

// Handler receives message payloads.
type Handler func(msg string)

// Channel is one endpoint of a named broadcast channel.
type Channel interface {
	Name() string
	Post(ctx context.Context, msg string) error
	// Subscribe registers h and returns a function that removes it.
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// handlerSet is the subscriber bookkeeping shared by every transport.
type handlerSet struct {
	mu       sync.Mutex
	next     uint64
	handlers map[uint64]Handler
	closed   bool
}

func (s *handlerSet) add(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || h == nil {
		return func() {}
	}
	if s.handlers == nil {
		s.handlers = make(map[uint64]Handler)
	}
	id := s.next
	s.next++
	s.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.handlers, id)
			s.mu.Unlock()
		})
	}
}

// dispatch calls handlers in subscription order without holding the lock, so
// a handler may post or unsubscribe.
func (s *handlerSet) dispatch(msg string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, s.handlers[id])
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(msg)
	}
}

// close marks the set closed and reports whether this call closed it.
func (s *handlerSet) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.handlers = nil
	return true
}

func (s *handlerSet) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// envelope is the wire form used by the networked transports. Sender lets an
// endpoint drop its own echo.
type envelope struct {
	Sender string `json:"sender"`
	Data   string `json:"data"`
}

func encodeEnvelope(sender, msg string) ([]byte, error) {
	return json.Marshal(envelope{Sender: sender, Data: msg})
}

// decodeEnvelope accepts both enveloped payloads and bare strings published by
// other tooling.
func decodeEnvelope(payload []byte) envelope {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Data == "" {
		return envelope{Data: string(payload)}
	}
	return env
}
