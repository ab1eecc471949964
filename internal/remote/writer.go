// Package remote writes screenshots to the remote store.
//
// Uploads follow a two-step protocol: the bytes are written to
// "<final>.tmp" and then renamed to "<final>". The rename is the commit
// point, so a crash mid-write can leave an orphaned .tmp file but never a
// partial file at the final path. Orphaned temp files are not cleaned up.
//
// Every transport call goes through a single Writer mutex; the underlying
// connection handles one request at a time.
package remote

import (
	"fmt"
	"log/slog"
	"path"
	"sync"
)

// TempSuffix is appended to the final path while bytes are in flight.
const TempSuffix = ".tmp"

// Transport is the file-level surface of the remote store. Implementations
// need not be safe for concurrent use.
type Transport interface {
	// Put writes data to p, replacing any existing file.
	Put(p string, data []byte) error
	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error
	// Remove deletes the file at p.
	Remove(p string) error
	// MkdirAll creates p and any missing parents.
	MkdirAll(p string) error
	// Get reads the whole file at p.
	Get(p string) ([]byte, error)
	// Close releases the connection.
	Close() error
}

// Writer applies the upload protocol on top of a Transport rooted at BaseDir.
type Writer struct {
	mu      sync.Mutex
	t       Transport
	baseDir string
}

// NewWriter returns a Writer that places files under baseDir.
func NewWriter(t Transport, baseDir string) *Writer {
	return &Writer{t: t, baseDir: baseDir}
}

// BaseDir returns the remote directory uploads are written to.
func (w *Writer) BaseDir() string { return w.baseDir }

// FinalPath returns the committed remote path for filename.
func (w *Writer) FinalPath(filename string) string {
	return path.Join(w.baseDir, filename)
}

// EnsureDir creates the base directory if it does not already exist.
func (w *Writer) EnsureDir() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.t.MkdirAll(w.baseDir); err != nil {
		return fmt.Errorf("remote: ensure %s: %w", w.baseDir, err)
	}
	return nil
}

// Upload durably writes data as filename and returns the committed path.
// A nil error means the file is visible at its final path.
func (w *Writer) Upload(filename string, data []byte) (string, error) {
	if filename == "" {
		return "", ErrEmptyName
	}
	final := w.FinalPath(filename)
	tmp := final + TempSuffix

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.t.Put(tmp, data); err != nil {
		return "", fmt.Errorf("%w: put %s: %w", ErrUploadFailed, tmp, err)
	}
	if err := w.t.Rename(tmp, final); err != nil {
		slog.Warn("commit rename failed, temp file left behind", "tmp", tmp, "err", err)
		return "", fmt.Errorf("%w: rename %s: %w", ErrUploadFailed, tmp, err)
	}

	slog.Debug("upload committed", "path", final, "bytes", len(data))
	return final, nil
}

// Delete removes the file at remotePath.
func (w *Writer) Delete(remotePath string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.t.Remove(remotePath); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeleteFailed, remotePath, err)
	}
	return nil
}

// Download reads back the file at remotePath.
func (w *Writer) Download(remotePath string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := w.t.Get(remotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, remotePath, err)
	}
	return data, nil
}

// Close closes the transport.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t.Close()
}
