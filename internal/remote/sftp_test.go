package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func TestHostKeyCallback_TrustOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssh", "known_hosts")
	addr := &net.TCPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 22}
	key := newHostKey(t)

	cb, err := HostKeyCallback(path)
	require.NoError(t, err)
	require.NoError(t, cb("files.example.com:22", addr, key))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "files.example.com")

	reloaded, err := HostKeyCallback(path)
	require.NoError(t, err)
	assert.NoError(t, reloaded("files.example.com:22", addr, key))
	assert.Error(t, reloaded("files.example.com:22", addr, newHostKey(t)))
}

func TestIsConnectionLost(t *testing.T) {
	assert.True(t, isConnectionLost(io.EOF))
	assert.True(t, isConnectionLost(net.ErrClosed))
	assert.False(t, isConnectionLost(os.ErrNotExist))
}

func TestLoadSigner_Unencrypted(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	signer, err := loadSigner(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ssh.KeyAlgoED25519, signer.PublicKey().Type())
}

func TestLoadSigner_Encrypted(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("hunter2"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	_, err = loadSigner(path, nil)
	assert.Error(t, err)

	asked := 0
	signer, err := loadSigner(path, func() ([]byte, error) {
		asked++
		return []byte("hunter2"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, asked)
	assert.NotNil(t, signer)
}
