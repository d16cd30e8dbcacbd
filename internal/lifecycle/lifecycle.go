package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swapdesk/internal/model"
)

// ErrIllegalTransition is returned for a transition the state machine forbids.
var ErrIllegalTransition = errors.New("illegal lifecycle transition")

// Event is emitted exactly once when a lifecycle reaches a terminal state.
type Event struct {
	ID       uint64
	Slot     string
	Intent   model.Intent
	State    State
	Hash     common.Hash
	Err      error
	Receipt  *model.ReceiptSummary
	Started  time.Time
	Finished time.Time
}

// Listener consumes terminal lifecycle events.
type Listener interface {
	OnConfirmed(Event)
	OnFailed(Event)
}

// Observer sees every transition, terminal or not.
type Observer interface {
	OnTransition(slot string, kind model.IntentKind, from, to State)
}

// Lifecycle is the single-use state of one submitted intent. Once terminal it
// never changes; a new intent always gets a new Lifecycle.
type Lifecycle struct {
	id     uint64
	slot   string
	intent model.Intent
	clock  func() time.Time

	listeners  []Listener
	observers  []Observer
	onTerminal func(*Lifecycle)

	mu       sync.Mutex
	state    State
	hash     common.Hash
	err      error
	receipt  *model.ReceiptSummary
	started  time.Time
	finished time.Time
}

func (l *Lifecycle) ID() uint64 { return l.id }
func (l *Lifecycle) Slot() string { return l.slot }
func (l *Lifecycle) Intent() model.Intent { return l.intent }

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Hash is the transaction identifier, zero before Submitted.
func (l *Lifecycle) Hash() common.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hash
}

// Err is the failure cause of a Failed lifecycle.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Receipt is the decoded receipt of a Confirmed lifecycle.
func (l *Lifecycle) Receipt() *model.ReceiptSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.receipt
}

// RequestSignature moves Idle to AwaitingSignature.
func (l *Lifecycle) RequestSignature() error {
	return l.transition(AwaitingSignature, func() {})
}

// MarkSubmitted records the transaction identifier returned by the wallet.
func (l *Lifecycle) MarkSubmitted(hash common.Hash) error {
	return l.transition(Submitted, func() { l.hash = hash })
}

// Confirm records an included and successful transaction.
func (l *Lifecycle) Confirm(receipt model.ReceiptSummary) error {
	return l.transition(Confirmed, func() { l.receipt = &receipt })
}

// Fail records the failure cause. It is legal from any non-terminal state.
func (l *Lifecycle) Fail(cause error) error {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	return l.transition(Failed, func() { l.err = cause })
}

func (l *Lifecycle) transition(to State, apply func()) error {
	l.mu.Lock()
	from := l.state
	if !canTransition(from, to) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	apply()
	l.state = to
	if to.Terminal() {
		l.finished = l.clock()
	}
	event := l.eventLocked()
	l.mu.Unlock()

	for _, o := range l.observers {
		o.OnTransition(l.slot, l.intent.Kind(), from, to)
	}
	if !to.Terminal() {
		return nil
	}
	if l.onTerminal != nil {
		l.onTerminal(l)
	}
	for _, listener := range l.listeners {
		if to == Confirmed {
			listener.OnConfirmed(event)
		} else {
			listener.OnFailed(event)
		}
	}
	return nil
}

func (l *Lifecycle) eventLocked() Event {
	return Event{
		ID:       l.id,
		Slot:     l.slot,
		Intent:   l.intent,
		State:    l.state,
		Hash:     l.hash,
		Err:      l.err,
		Receipt:  l.receipt,
		Started:  l.started,
		Finished: l.finished,
	}
}
