package remote

import "github.com/spf13/afero"

// FSTransport is a Transport over an afero filesystem. It backs the
// --dry-run mode (a local directory standing in for the server) and tests.
type FSTransport struct {
	fs afero.Fs
}

// NewFSTransport returns a Transport writing to fsys.
func NewFSTransport(fsys afero.Fs) *FSTransport {
	return &FSTransport{fs: fsys}
}

func (t *FSTransport) Put(p string, data []byte) error {
	return afero.WriteFile(t.fs, p, data, 0o644)
}

func (t *FSTransport) Rename(oldPath, newPath string) error {
	return t.fs.Rename(oldPath, newPath)
}

func (t *FSTransport) Remove(p string) error { return t.fs.Remove(p) }

func (t *FSTransport) MkdirAll(p string) error {
	return t.fs.MkdirAll(p, 0o755)
}

func (t *FSTransport) Get(p string) ([]byte, error) { return afero.ReadFile(t.fs, p) }

func (t *FSTransport) Close() error { return nil }
