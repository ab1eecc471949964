// Package clip provides the screenshot sources and the clipboard writer.
// Build constraints select the system clipboard implementation:
//
//	clip_desktop.go  Linux, macOS and Windows via golang.design/x/clipboard
//	clip_darwin.go   macOS NSPasteboard changeCount, skips reads when idle
//	clip_other.go    headless stub for every other platform
//
// DirSource watches a directory instead of the clipboard.
package clip

import (
	"errors"
	"image"

	"github.com/stewartcelani/screen2scp/internal/imaging"
)

// ErrUnavailable is returned when writing to a clipboard that could not be
// initialised.
var ErrUnavailable = errors.New("clip: clipboard unavailable")

// Backend is a screenshot source that can also write to the clipboard.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Candidate returns the image currently on the clipboard, or nil if
	// there is none. The same image value is returned until the clipboard
	// changes.
	Candidate() (image.Image, error)

	// SetText replaces the clipboard contents with text.
	SetText(text string) error

	// SetImage replaces the clipboard contents with a PNG image.
	SetImage(png []byte) error

	// Close releases any resources held by the backend.
	Close()
}

// headlessBackend is used where there is no display server (headless Linux
// servers, containers). It never offers an image and refuses writes.
type headlessBackend struct{}

// Headless returns a Backend with no clipboard behind it.
func Headless() Backend { return headlessBackend{} }

func (headlessBackend) Name() string                    { return "headless (no-op)" }
func (headlessBackend) Candidate() (image.Image, error) { return nil, nil }
func (headlessBackend) SetText(string) error            { return ErrUnavailable }
func (headlessBackend) SetImage([]byte) error           { return ErrUnavailable }
func (headlessBackend) Close()                          {}

// cache remembers the last raw clipboard bytes and their decoded image so an
// unchanged clipboard is not decoded again.
type cache struct {
	raw []byte
	img image.Image
}

func (c *cache) decode(raw []byte) (image.Image, error) {
	if raw == nil {
		c.raw, c.img = nil, nil
		return nil, nil
	}
	if c.img != nil && string(raw) == string(c.raw) {
		return c.img, nil
	}
	img, err := imaging.Decode(raw)
	if err != nil {
		return nil, err
	}
	c.raw, c.img = raw, img
	return img, nil
}
