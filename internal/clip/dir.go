package clip

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/stewartcelani/screen2scp/internal/imaging"
)

// maxDecodeAttempts bounds how many polls a new file gets to become a
// decodable image. Screenshot tools often create the file before the data is
// fully written.
const maxDecodeAttempts = 10

// DirSource offers the newest image file written to a directory. Files that
// exist when the source starts are ignored.
type DirSource struct {
	dir     string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu       sync.Mutex
	pending  string
	attempts int
	current  image.Image
}

// NewDirSource starts watching dir.
func NewDirSource(dir string) (*DirSource, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("watch %s: not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &DirSource{dir: dir, watcher: w, done: make(chan struct{})}
	go s.loop()
	slog.Debug("watching directory for screenshots", "dir", dir)
	return s, nil
}

func (s *DirSource) Name() string { return "directory " + s.dir }

func (s *DirSource) loop() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isImageFile(ev.Name) {
				continue
			}
			slog.Debug("screenshot file event", "op", ev.Op, "name", ev.Name)
			s.mu.Lock()
			s.pending, s.attempts = ev.Name, 0
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("directory watch error", "dir", s.dir, "err", err)
		}
	}
}

// Candidate returns the most recent image file that decoded successfully.
func (s *DirSource) Candidate() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return s.current, nil
	}

	name := s.pending
	data, err := os.ReadFile(name)
	if err == nil {
		var img image.Image
		if img, err = imaging.Decode(data); err == nil {
			s.current, s.pending = img, ""
			return img, nil
		}
	}
	s.attempts++
	if s.attempts >= maxDecodeAttempts {
		slog.Warn("giving up on screenshot file", "name", name, "err", err)
		s.pending = ""
	}
	return nil, fmt.Errorf("read %s: %w", name, err)
}

// SetText and SetImage make DirSource usable where a clipboard is expected;
// there is nothing to write to.
func (s *DirSource) SetText(string) error  { return ErrUnavailable }
func (s *DirSource) SetImage([]byte) error { return ErrUnavailable }

// Close stops the watcher.
func (s *DirSource) Close() {
	_ = s.watcher.Close()
	<-s.done
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}
