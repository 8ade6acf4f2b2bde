package event

import "sync"

// Key identifies a handler registered on a Signal.
type Key uint64

type registration[T any] struct {
	key     Key
	handler func(T)
}

// Signal is a synchronous registration table. Handlers run in registration
// order on the emitting goroutine. A handler disconnected while an emission is
// in progress is not invoked afterwards, which makes teardown from inside a
// handler safe. The zero value is ready to use.
type Signal[T any] struct {
	mux      sync.Mutex
	next     Key
	handlers []registration[T]
}

// Connect registers handler and returns its key.
func (s *Signal[T]) Connect(handler func(T)) Key {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.next++
	s.handlers = append(s.handlers, registration[T]{key: s.next, handler: handler})
	return s.next
}

// Disconnect removes the handler registered under key. It reports whether the
// key was connected.
func (s *Signal[T]) Disconnect(key Key) bool {
	if key == 0 {
		return false
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	for i, candidate := range s.handlers {
		if candidate.key == key {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Connected reports whether key is still registered.
func (s *Signal[T]) Connected(key Key) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.indexOf(key) != -1
}

// Len returns the number of registered handlers.
func (s *Signal[T]) Len() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.handlers)
}

// Emit calls every registered handler with value.
func (s *Signal[T]) Emit(value T) {
	s.mux.Lock()
	snapshot := make([]registration[T], len(s.handlers))
	copy(snapshot, s.handlers)
	s.mux.Unlock()
	for _, candidate := range snapshot {
		if !s.Connected(candidate.key) {
			continue
		}
		candidate.handler(value)
	}
}

// Clear disconnects every handler.
func (s *Signal[T]) Clear() {
	s.mux.Lock()
	s.handlers = nil
	s.mux.Unlock()
}

func (s *Signal[T]) indexOf(key Key) int {
	for i, candidate := range s.handlers {
		if candidate.key == key {
			return i
		}
	}
	return -1
}
