package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"swapdesk/internal/model"
)

// Slots allows at most one live lifecycle per logical action slot.
type Slots struct {
	mu        sync.Mutex
	live      map[string]*Lifecycle
	nextID    uint64
	listeners []Listener
	observers []Observer
	clock     func() time.Time
}

func NewSlots() *Slots {
	return &Slots{
		live:  make(map[string]*Lifecycle),
		clock: time.Now,
	}
}

// WithClock overrides the time source for started/finished stamps.
func (s *Slots) WithClock(clock func() time.Time) *Slots {
	s.clock = clock
	return s
}

// Subscribe registers a terminal-event listener for lifecycles started later.
func (s *Slots) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Observe registers a transition observer for lifecycles started later.
func (s *Slots) Observe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Start creates a fresh Idle lifecycle in slot. It refuses with
// model.ErrSlotBusy while the slot holds a non-terminal lifecycle.
func (s *Slots) Start(slot string, intent model.Intent) (*Lifecycle, error) {
	if intent == nil {
		return nil, fmt.Errorf("slot %s: intent is nil", slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.live[slot]; ok && !current.State().Terminal() {
		return nil, fmt.Errorf("slot %s: %w", slot, model.ErrSlotBusy)
	}

	s.nextID++
	lc := &Lifecycle{
		id:         s.nextID,
		slot:       slot,
		intent:     intent,
		clock:      s.clock,
		listeners:  append([]Listener(nil), s.listeners...),
		observers:  append([]Observer(nil), s.observers...),
		onTerminal: s.release,
		state:      Idle,
		started:    s.clock(),
	}
	s.live[slot] = lc
	return lc, nil
}

// Live returns the non-terminal lifecycle occupying slot, if any.
func (s *Slots) Live(slot string) (*Lifecycle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lc, ok := s.live[slot]
	if !ok || lc.State().Terminal() {
		return nil, false
	}
	return lc, true
}

func (s *Slots) release(lc *Lifecycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live[lc.slot] == lc {
		delete(s.live, lc.slot)
	}
}
