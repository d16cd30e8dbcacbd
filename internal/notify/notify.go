// Package notify collapses repeated user notifications inside a short window.
package notify

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultWindow suppresses identical notifications pushed within it.
	DefaultWindow = 1500 * time.Millisecond
	// DefaultTTL is how long a notification stays in the active list.
	DefaultTTL = 5 * time.Second
)

// Kind is the severity of a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one user-visible message.
type Notification struct {
	ID   uint64
	Kind Kind
	Text string
	At   time.Time
}

// Sink displays notifications that survived deduplication.
type Sink interface {
	Show(Notification)
}

// LogSink writes notifications through zap.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Show(n Notification) {
	fields := []zap.Field{zap.Uint64("id", n.ID), zap.String("kind", string(n.Kind))}
	if n.Kind == KindError {
		s.logger.Warn(n.Text, fields...)
		return
	}
	s.logger.Info(n.Text, fields...)
}

// Deduplicator forwards a notification to its sink unless an identical one was
// forwarded within the window.
type Deduplicator struct {
	sink  Sink
	clock func() time.Time
	ttl   time.Duration

	mu     sync.Mutex
	nextID uint64
	seen   map[string]mark
	active []Notification
}

// mark is when a key was last shown and the window it suppresses for.
type mark struct {
	at     time.Time
	window time.Duration
}

// Option configures a Deduplicator.
type Option func(*Deduplicator)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(d *Deduplicator) { d.clock = clock }
}

// WithTTL overrides how long notifications remain active.
func WithTTL(ttl time.Duration) Option {
	return func(d *Deduplicator) { d.ttl = ttl }
}

func NewDeduplicator(sink Sink, opts ...Option) *Deduplicator {
	d := &Deduplicator{
		sink:  sink,
		clock: time.Now,
		ttl:   DefaultTTL,
		seen:  make(map[string]mark),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Push shows n unless a notification with the same key is still inside the
// window it was shown with. A shown n suppresses its key for window. An empty
// key falls back to the lower-cased kind and text; a non-positive window uses
// DefaultWindow. It reports whether n was shown.
func (d *Deduplicator) Push(n Notification, key string, window time.Duration) bool {
	if window <= 0 {
		window = DefaultWindow
	}
	if key == "" {
		key = Signature(n.Kind, n.Text)
	}

	d.mu.Lock()
	now := d.clock()
	if last, ok := d.seen[key]; ok && now.Sub(last.at) < last.window {
		d.mu.Unlock()
		return false
	}
	d.prune(now)
	d.seen[key] = mark{at: now, window: window}

	d.nextID++
	n.ID = d.nextID
	n.At = now
	d.active = append(d.active, n)
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.Show(n)
	}
	return true
}

// Active lists notifications younger than the TTL, oldest first.
func (d *Deduplicator) Active() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	kept := d.active[:0]
	for _, n := range d.active {
		if now.Sub(n.At) < d.ttl {
			kept = append(kept, n)
		}
	}
	d.active = kept
	return append([]Notification(nil), kept...)
}

// Dismiss removes a notification from the active list.
func (d *Deduplicator) Dismiss(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, n := range d.active {
		if n.ID == id {
			d.active = append(d.active[:i], d.active[i+1:]...)
			return
		}
	}
}

// prune drops keys whose own window has passed. Callers hold mu.
func (d *Deduplicator) prune(now time.Time) {
	for key, m := range d.seen {
		if now.Sub(m.at) >= m.window {
			delete(d.seen, key)
		}
	}
}

// Signature is the fallback dedupe key.
func Signature(kind Kind, text string) string {
	return strings.ToLower(string(kind) + "|" + text)
}
