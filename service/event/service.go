package event

import (
	"sync"
)

// Handler receives transition events.
type Handler func(*Event)

// Service fans job transition notifications out to registered handlers.
// Delivery is synchronous and best-effort: handlers observe the workflow,
// they never participate in its correctness.
type Service struct {
	mu       sync.RWMutex
	handlers []Handler
}

// New creates an event service.
func New() *Service {
	return &Service{}
}

// Subscribe registers a handler for all future transitions.
func (s *Service) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Publish notifies all handlers of a transition.
func (s *Service) Publish(transition Transition) {
	s.mu.RLock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	evt := NewEvent(transition)
	for _, handler := range handlers {
		handler(evt)
	}
}
