package dedup

import (
	"crypto/md5"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewartcelani/screen2scp/internal/fingerprint"
)

const logPath = "/state/uploaded_hashes.txt"

func fp(seed string) fingerprint.Fingerprint {
	return md5.Sum([]byte(seed))
}

func newMemStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	s, err := Open(fsys, logPath)
	require.NoError(t, err)
	return s, fsys
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, _ := newMemStore(t)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(fp("a")))
}

func TestAdd_SurvivesReload(t *testing.T) {
	s, fsys := newMemStore(t)
	require.NoError(t, s.Add(fp("a")))
	assert.True(t, s.Contains(fp("a")))

	reopened, err := Open(fsys, logPath)
	require.NoError(t, err)
	assert.True(t, reopened.Contains(fp("a")))
	assert.Equal(t, 1, reopened.Len())
}

func TestAdd_Twice_NoDuplicateLine(t *testing.T) {
	s, fsys := newMemStore(t)
	require.NoError(t, s.Add(fp("a")))
	require.NoError(t, s.Add(fp("a")))

	data, err := afero.ReadFile(fsys, logPath)
	require.NoError(t, err)
	assert.Equal(t, fp("a").String()+"\n", string(data))
	assert.Equal(t, 1, s.Len())
}

func TestRemove_RewritesLog(t *testing.T) {
	s, fsys := newMemStore(t)
	require.NoError(t, s.Add(fp("a")))
	require.NoError(t, s.Add(fp("b")))

	require.NoError(t, s.Remove(fp("a")))
	assert.False(t, s.Contains(fp("a")))
	assert.True(t, s.Contains(fp("b")))

	data, err := afero.ReadFile(fsys, logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), fp("a").String())
	assert.Contains(t, string(data), fp("b").String())

	exists, err := afero.Exists(fsys, logPath+".tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	reopened, err := Open(fsys, logPath)
	require.NoError(t, err)
	assert.False(t, reopened.Contains(fp("a")))
}

func TestRemove_Absent(t *testing.T) {
	s, fsys := newMemStore(t)
	require.NoError(t, s.Remove(fp("nope")))

	exists, err := afero.Exists(fsys, logPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoad_UnversionedAndCommented(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := strings.Join([]string{
		"# screen2scp fingerprints v1",
		fp("a").String(),
		"",
		strings.ToUpper(fp("b").String()),
		"not-a-fingerprint",
		"  " + fp("c").String() + "  ",
	}, "\n") + "\n"
	require.NoError(t, afero.WriteFile(fsys, logPath, []byte(content), 0o600))

	s, err := Open(fsys, logPath)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	for _, seed := range []string{"a", "b", "c"} {
		assert.True(t, s.Contains(fp(seed)), seed)
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashes")
	require.NoError(t, os.Mkdir(path, 0o700))

	_, err := Open(afero.NewOsFs(), path)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestAdd_WriteFailureStillUpdatesMemory(t *testing.T) {
	s, err := Open(afero.NewReadOnlyFs(afero.NewMemMapFs()), logPath)
	require.NoError(t, err)

	err = s.Add(fp("a"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.True(t, s.Contains(fp("a")))

	err = s.Remove(fp("a"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, s.Contains(fp("a")))
}

func TestOsFs_AddRemoveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hashes.txt")
	s, err := Open(afero.NewOsFs(), path)
	require.NoError(t, err)

	require.NoError(t, s.Add(fp("x")))
	require.NoError(t, s.Add(fp("y")))
	require.NoError(t, s.Remove(fp("x")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fp("y").String()+"\n", string(data))
}

func TestConcurrentAddRemove(t *testing.T) {
	s, fsys := newMemStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := fp(string(rune('a' + i)))
			assert.NoError(t, s.Add(f))
			if i%2 == 0 {
				assert.NoError(t, s.Remove(f))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
	reopened, err := Open(fsys, logPath)
	require.NoError(t, err)
	assert.Equal(t, 10, reopened.Len())
}
