// Package event hands pipeline results to observers.
//
// The producer never waits on a consumer: every subscription is a bounded
// buffer and Publish drops (and counts) events for subscribers whose buffer
// is full.
package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stewartcelani/screen2scp/internal/history"
)

// DefaultBuffer is the subscription buffer size used when none is given.
const DefaultBuffer = 64

// Kind identifies the kind of event.
type Kind string

const (
	KindUploaded Kind = "uploaded"
	KindDeleted  Kind = "deleted"
	KindError    Kind = "error"
)

// Event is a single pipeline outcome.
type Event struct {
	Kind    Kind
	At      time.Time
	Record  *history.Record // uploaded, deleted
	Message string          // human-readable summary
	Err     error           // error
}

// Uploaded returns an uploaded event for r.
func Uploaded(r *history.Record) Event {
	return Event{Kind: KindUploaded, At: time.Now(), Record: r, Message: r.Filename}
}

// Deleted returns a deleted event for r.
func Deleted(r *history.Record) Event {
	return Event{Kind: KindDeleted, At: time.Now(), Record: r, Message: r.Filename}
}

// Failed returns an error event.
func Failed(msg string, err error) Event {
	return Event{Kind: KindError, At: time.Now(), Message: msg, Err: err}
}

// Bus fans events out to any number of subscriptions.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBus returns a Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscription is one observer's bounded queue.
type Subscription struct {
	name    string
	ch      chan Event
	bus     *Bus
	dropped atomic.Uint64
	once    sync.Once
}

// Subscribe registers a new observer with a buffer of size events.
func (b *Bus) Subscribe(name string, size int) *Subscription {
	if size <= 0 {
		size = DefaultBuffer
	}
	s := &Subscription{name: name, ch: make(chan Event, size), bus: b}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	total := len(b.subs)
	b.mu.Unlock()

	slog.Debug("event subscriber added", "name", name, "buffer", size, "total", total)
	return s
}

// Publish delivers e to every subscription without blocking.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			n := s.dropped.Add(1)
			slog.Warn("event subscriber full, dropping", "name", s.name, "kind", e.Kind, "dropped", n)
		}
	}
}

// Dropped returns the number of events dropped across all live subscriptions.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n uint64
	for s := range b.subs {
		n += s.dropped.Load()
	}
	return n
}

// Events returns the receive side of the subscription. It is closed by Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events this subscription missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes and closes the event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Log writes e to the default logger at INFO, or WARN for errors, and the
// record detail (ID, fingerprint, capture time) at DEBUG.
func Log(e Event) {
	if e.Kind == KindError {
		slog.Warn("pipeline error", "message", e.Message, "err", e.Err)
		return
	}

	r := e.Record
	if r == nil {
		slog.Info("pipeline event", "kind", e.Kind, "message", e.Message)
		return
	}
	slog.Info("pipeline event", "kind", e.Kind, "file", r.Filename, "path", r.RemotePath, "size_bytes", r.ByteSize)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	slog.Debug("record", "id", r.ID, "fingerprint", r.Fingerprint, "captured", r.CaptureTime, "at", e.At)
}
