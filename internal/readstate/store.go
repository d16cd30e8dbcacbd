package readstate

import "sync"

// store is a RWMutex-guarded map shared by the refresh loop and flows. Every
// delete bumps the key's generation so a read that started before it cannot
// write its result back.
type store[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
	gens map[K]uint64
}

func newStore[K comparable, V any]() *store[K, V] {
	return &store[K, V]{data: make(map[K]V), gens: make(map[K]uint64)}
}

func (s *store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *store[K, V]) Set(key K, v V) {
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
}

// Gen is the key's current generation. Pass it to SetIfGen after the read.
func (s *store[K, V]) Gen(key K) uint64 {
	s.mu.RLock()
	g := s.gens[key]
	s.mu.RUnlock()
	return g
}

// SetIfGen stores v only if key was not deleted since gen was taken.
func (s *store[K, V]) SetIfGen(key K, v V, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != gen {
		return false
	}
	s.data[key] = v
	return true
}

func (s *store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	_, ok := s.data[key]
	delete(s.data, key)
	s.gens[key]++
	s.mu.Unlock()
	return ok
}

// DeleteFunc removes every key match accepts and reports how many went.
func (s *store[K, V]) DeleteFunc(match func(K, V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.data {
		if match(k, v) {
			delete(s.data, k)
			s.gens[k]++
			n++
		}
	}
	return n
}

func (s *store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]K, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
