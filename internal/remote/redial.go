package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	minRedialDelay = time.Second
	maxRedialDelay = 30 * time.Second
)

// Redialer is a Transport that replaces its connection after an error
// wrapping ErrConnectionLost. Reconnects happen on the next call, never in
// the background, and back off exponentially between failed attempts so a
// dead server is not hammered every poll.
type Redialer struct {
	dial func() (Transport, error)
	now  func() time.Time

	mu    sync.Mutex
	cur   Transport
	delay time.Duration
	next  time.Time
}

// NewRedialer returns a Redialer starting on initial, which may be nil to
// dial on first use.
func NewRedialer(initial Transport, dial func() (Transport, error)) *Redialer {
	return &Redialer{dial: dial, cur: initial, now: time.Now}
}

func (r *Redialer) Put(p string, data []byte) error {
	return r.do(func(t Transport) error { return t.Put(p, data) })
}

func (r *Redialer) Rename(oldPath, newPath string) error {
	return r.do(func(t Transport) error { return t.Rename(oldPath, newPath) })
}

func (r *Redialer) Remove(p string) error {
	return r.do(func(t Transport) error { return t.Remove(p) })
}

func (r *Redialer) MkdirAll(p string) error {
	return r.do(func(t Transport) error { return t.MkdirAll(p) })
}

func (r *Redialer) Get(p string) ([]byte, error) {
	var data []byte
	err := r.do(func(t Transport) error {
		var err error
		data, err = t.Get(p)
		return err
	})
	return data, err
}

// Close closes the current connection, if any.
func (r *Redialer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}

func (r *Redialer) do(fn func(Transport) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.connLocked()
	if err != nil {
		return err
	}
	err = fn(t)
	if errors.Is(err, ErrConnectionLost) {
		slog.Warn("remote connection lost", "err", err)
		_ = t.Close()
		r.cur = nil
	}
	return err
}

func (r *Redialer) connLocked() (Transport, error) {
	if r.cur != nil {
		return r.cur, nil
	}
	now := r.now()
	if now.Before(r.next) {
		return nil, fmt.Errorf("%w: next reconnect in %s", ErrConnectionLost, r.next.Sub(now).Round(time.Second))
	}

	t, err := r.dial()
	if err != nil {
		if r.delay == 0 {
			r.delay = minRedialDelay
		} else if r.delay < maxRedialDelay {
			r.delay = min(r.delay*2, maxRedialDelay)
		}
		r.next = now.Add(r.delay)
		slog.Warn("reconnect failed", "err", err, "retry_in", r.delay)
		return nil, fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}

	slog.Info("reconnected to remote")
	r.cur, r.delay, r.next = t, 0, time.Time{}
	return t, nil
}
