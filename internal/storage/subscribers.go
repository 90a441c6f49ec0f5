package storage

import (
	"sync"
)

// Subscribers is a topic-keyed callback registry used by drivers to fan
// out snapshot updates. Callbacks run with the registry lock held, so an
// Unsubscribe that has returned guarantees no further delivery.
type Subscribers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[string]map[int]func(T)
}

// Add registers fn under topic and returns its disposer. The disposer is
// idempotent.
func (s *Subscribers[T]) Add(topic string, fn func(T)) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(topic, fn)
}

// AddWith registers fn under topic and delivers it an initial snapshot
// obtained from fetch. Fetch, registration and delivery all run under the
// registry lock, so no concurrent Publish can interleave and leave the
// subscriber on a stale snapshot.
func (s *Subscribers[T]) AddWith(topic string, fn func(T), fetch func() (T, error)) (Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := fetch()
	if err != nil {
		return nil, err
	}

	unsub := s.add(topic, fn)
	fn(snapshot)
	return unsub, nil
}

// add registers fn under topic. The caller holds s.mu.
func (s *Subscribers[T]) add(topic string, fn func(T)) Unsubscribe {
	if s.fns == nil {
		s.fns = make(map[string]map[int]func(T))
	}
	if s.fns[topic] == nil {
		s.fns[topic] = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.fns[topic][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns[topic], id)
	}
}

// Publish delivers snapshot to every callback registered under topic.
func (s *Subscribers[T]) Publish(topic string, snapshot T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fn := range s.fns[topic] {
		fn(snapshot)
	}
}
