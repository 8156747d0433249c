package power

import (
	"maps"
	"sync"

	"github.com/actbridge/actbridge/internal/errors"
)

// Source produces battery broadcasts.
//
// Subscribe registers fn for every later broadcast and returns the current
// sticky broadcast so the caller can report the state immediately. Close
// stops delivery; subscribing to a closed source fails with
// errors.ErrSourceClosed.
type Source interface {
	Subscribe(fn func(Broadcast)) (Broadcast, error)
	Close() error
}

// ManualSource is a Source fed by the host through Publish.
type ManualSource struct {
	mu          sync.Mutex
	sticky      Broadcast
	subscribers []func(Broadcast)
	closed      bool
}

// NewManualSource creates a ManualSource whose sticky broadcast is initial.
// A nil initial means no broadcast has happened yet.
func NewManualSource(initial Broadcast) *ManualSource {
	return &ManualSource{sticky: maps.Clone(initial)}
}

// Subscribe implements Source.
func (s *ManualSource) Subscribe(fn func(Broadcast)) (Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.NewPowerError("subscribe", errors.ErrSourceClosed).
			WithSource("manual").
			WithRetryable(false)
	}
	if fn != nil {
		s.subscribers = append(s.subscribers, fn)
	}
	return maps.Clone(s.sticky), nil
}

// Publish makes b the sticky broadcast and delivers it to every subscriber
// on the calling goroutine. Publishing on a closed source is a no-op.
func (s *ManualSource) Publish(b Broadcast) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.sticky = maps.Clone(b)
	subs := make([]func(Broadcast), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(maps.Clone(b))
	}
}

// Sticky returns the last published broadcast.
func (s *ManualSource) Sticky() Broadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.sticky)
}

// Close implements Source.
func (s *ManualSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subscribers = nil
	return nil
}
