//go:build linux || darwin || windows

package clip

import (
	"image"
	"log/slog"
	"runtime"
	"sync"

	"golang.design/x/clipboard"
)

type desktopBackend struct {
	mu sync.Mutex
	// changed reports whether the clipboard may have changed since the last
	// call. Nil means always read.
	changed func() bool
	cache   cache
}

// New returns the system clipboard backend, or a headless backend if the
// display environment is unavailable. clipboard.Init is called here rather
// than in init() so that CLI sub-commands that only talk to the daemon don't
// trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return Headless()
	}
	return &desktopBackend{changed: changeDetector()}
}

func (b *desktopBackend) Name() string { return runtime.GOOS + " clipboard" }

func (b *desktopBackend) Candidate() (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.changed != nil && !b.changed() {
		return b.cache.img, nil
	}
	return b.cache.decode(clipboard.Read(clipboard.FmtImage))
}

func (b *desktopBackend) SetText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *desktopBackend) SetImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (b *desktopBackend) Close() {}
