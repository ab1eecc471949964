// Package notify shows desktop notifications for upload outcomes.
package notify

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// Desktop sends notifications through the platform notification service.
// It gives up after the first failure so a headless host logs one warning
// rather than one per upload.
type Desktop struct {
	send func(title, message string) error

	mu       sync.Mutex
	disabled bool
}

// NewDesktop returns a Desktop notifier.
func NewDesktop() *Desktop {
	return &Desktop{send: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}}
}

// Notify shows title and message. Errors are logged, never returned.
func (d *Desktop) Notify(title, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disabled {
		slog.Debug("notification suppressed", "title", title, "message", message)
		return
	}
	if err := d.send(title, message); err != nil {
		slog.Warn("desktop notifications unavailable, disabling", "err", err)
		d.disabled = true
	}
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) {}
