// Package history keeps the uploads made during this process lifetime,
// newest first.
package history

import (
	"image"
	"sync"
	"time"

	"github.com/stewartcelani/screen2scp/internal/fingerprint"
)

// Record is one committed upload. Records are never modified after they are
// created; a record leaves the Store only after its remote file is deleted.
type Record struct {
	ID          string
	Filename    string
	CaptureTime time.Time
	ByteSize    int64
	RemotePath  string
	Fingerprint fingerprint.Fingerprint

	// Thumbnail is an optional preview owned by the record.
	Thumbnail image.Image
}

// Store is the ordered upload history. It is safe for concurrent use; the
// lock is held only for the slice operation itself.
type Store struct {
	mu      sync.RWMutex
	records []*Record
}

// New returns an empty Store.
func New() *Store { return &Store{} }

// Prepend inserts r as the newest record.
func (s *Store) Prepend(r *Record) {
	s.mu.Lock()
	s.records = append([]*Record{r}, s.records...)
	s.mu.Unlock()
}

// Remove deletes the record with the given ID and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Latest returns the newest record.
func (s *Store) Latest() (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, false
	}
	return s.records[0], true
}

// Snapshot returns a copy of the records, newest first.
func (s *Store) Snapshot() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
