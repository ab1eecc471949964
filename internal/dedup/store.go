// Package dedup persists the set of fingerprints that have already been
// uploaded.
//
// The log is plain text, one hex fingerprint per line. Additions are appended;
// a removal rewrites the whole file from the in-memory set because a log
// cannot delete in place. Blank lines and lines starting with '#' are ignored
// on load, so a version marker may be added without breaking older files.
package dedup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/stewartcelani/screen2scp/internal/fingerprint"
)

// ErrStorage wraps every I/O failure on the fingerprint log.
var ErrStorage = errors.New("dedup: storage error")

// Store is a persisted fingerprint set. It is safe for concurrent use.
type Store struct {
	fs   afero.Fs
	path string

	mu  sync.RWMutex
	set map[fingerprint.Fingerprint]struct{}
}

// Open returns a Store backed by path on fsys and loads its contents.
func Open(fsys afero.Fs, path string) (*Store, error) {
	s := &Store{
		fs:   fsys,
		path: path,
		set:  make(map[fingerprint.Fingerprint]struct{}),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the fingerprint log.
func (s *Store) Path() string { return s.path }

// Load replaces the in-memory set with the contents of the log. A missing
// file yields an empty set.
func (s *Store) Load() error {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.set = make(map[fingerprint.Fingerprint]struct{})
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrStorage, s.path, err)
	}

	set := make(map[fingerprint.Fingerprint]struct{})
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fp, err := fingerprint.Parse(strings.ToLower(line))
		if err != nil {
			slog.Warn("skipping malformed fingerprint", "path", s.path, "line", lineNo, "err", err)
			continue
		}
		set[fp] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: scan %s: %w", ErrStorage, s.path, err)
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()

	slog.Debug("fingerprint log loaded", "path", s.path, "entries", len(set))
	return nil
}

// Contains reports whether fp has been recorded.
func (s *Store) Contains(fp fingerprint.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[fp]
	return ok
}

// Len returns the number of recorded fingerprints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// Add records fp and appends it to the log. Call only once the matching
// upload is durable. The in-memory set is updated even if the append fails.
func (s *Store) Add(fp fingerprint.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[fp]; ok {
		return nil
	}
	s.set[fp] = struct{}{}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStorage, s.path, err)
	}
	_, werr := f.WriteString(fp.String() + "\n")
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("%w: append %s: %w", ErrStorage, s.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorage, s.path, cerr)
	}
	return nil
}

// Remove forgets fp and rewrites the log from the remaining set. The
// in-memory set is updated even if the rewrite fails.
func (s *Store) Remove(fp fingerprint.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[fp]; !ok {
		return nil
	}
	delete(s.set, fp)
	return s.rewriteLocked()
}

// rewriteLocked writes the set to a sibling temp file and renames it over
// the log. Must be called with s.mu held.
func (s *Store) rewriteLocked() error {
	lines := make([]string, 0, len(s.set))
	for fp := range s.set {
		lines = append(lines, fp.String())
	}
	sort.Strings(lines)

	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStorage, tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %w", ErrStorage, tmp, err)
	}
	return nil
}
