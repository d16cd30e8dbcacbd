package quote

import "sync"

// Ticket tags an in-flight quote with the inputs generation it was issued for.
type Ticket struct {
	gen         uint64
	fingerprint string
}

// Tracker applies last-input-wins to asynchronous quotes: a result whose
// originating inputs are no longer current is dropped on arrival.
type Tracker struct {
	mu      sync.Mutex
	gen     uint64
	current string
	latest  *Quote
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin records req as the current input and returns its ticket.
func (t *Tracker) Begin(req Request) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.current = req.Fingerprint()
	return Ticket{gen: t.gen, fingerprint: t.current}
}

// Apply stores q if ticket still matches the current input.
func (t *Tracker) Apply(ticket Ticket, q Quote) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.gen != t.gen || ticket.fingerprint != t.current {
		return false
	}
	t.latest = &q
	return true
}

// Latest returns the last applied quote, if any.
func (t *Tracker) Latest() (Quote, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Quote{}, false
	}
	return *t.latest, true
}
