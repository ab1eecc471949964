package remote

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultDialTimeout = 15 * time.Second

// SFTPConfig describes how to reach the remote store.
type SFTPConfig struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
	Timeout        time.Duration

	// Passphrase is called only when the private key is encrypted.
	Passphrase func() ([]byte, error)
}

// SFTP is a Transport over an SSH connection.
type SFTP struct {
	conn   *ssh.Client
	client *sftp.Client
	addr   string
}

// DialSFTP opens the SSH connection and an SFTP session on top of it.
func DialSFTP(cfg SFTPConfig) (*SFTP, error) {
	signer, err := loadSigner(cfg.KeyPath, cfg.Passphrase)
	if err != nil {
		return nil, err
	}
	hostKeys, err := HostKeyCallback(cfg.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sftp session %s: %w", addr, err)
	}

	slog.Info("sftp connected", "addr", addr, "user", cfg.User)
	return &SFTP{conn: conn, client: client, addr: addr}, nil
}

func (s *SFTP) Put(p string, data []byte) error {
	f, err := s.client.Create(p)
	if err != nil {
		return s.wrap(err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return s.wrap(err)
	}
	return s.wrap(f.Close())
}

func (s *SFTP) Rename(oldPath, newPath string) error {
	return s.wrap(s.client.Rename(oldPath, newPath))
}

func (s *SFTP) Remove(p string) error { return s.wrap(s.client.Remove(p)) }

func (s *SFTP) MkdirAll(p string) error { return s.wrap(s.client.MkdirAll(p)) }

func (s *SFTP) Get(p string) ([]byte, error) {
	f, err := s.client.Open(p)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, s.wrap(err)
	}
	return data, nil
}

func (s *SFTP) Close() error {
	cerr := s.client.Close()
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	if cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		return cerr
	}
	return nil
}

// wrap tags errors that mean the session is gone.
func (s *SFTP) wrap(err error) error {
	if err == nil {
		return nil
	}
	if isConnectionLost(err) {
		return fmt.Errorf("%w: %s: %w", ErrConnectionLost, s.addr, err)
	}
	return err
}

func isConnectionLost(err error) bool {
	return errors.Is(err, sftp.ErrSSHFxConnectionLost) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

func loadSigner(keyPath string, passphrase func() ([]byte, error)) (ssh.Signer, error) {
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key %s: %w", keyPath, err)
	}

	signer, err := ssh.ParsePrivateKey(raw)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", keyPath, err)
		}
		return signer, nil
	}

	if passphrase == nil {
		return nil, fmt.Errorf("key %s is encrypted and no passphrase source is configured", keyPath)
	}
	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("passphrase: %w", err)
	}
	defer clear(pass)

	signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypt key %s: %w", keyPath, err)
	}
	return signer, nil
}

// HostKeyCallback verifies hosts against a known_hosts file. Hosts missing
// from the file are trusted on first use and appended; a changed key for a
// known host is rejected.
func HostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("known_hosts dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	_ = f.Close()

	known, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", path, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := known(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		af, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("known_hosts append: %w", err)
		}
		defer af.Close()
		if _, err := af.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("known_hosts append: %w", err)
		}
		slog.Warn("trusting new host key",
			"host", hostname,
			"type", key.Type(),
			"fingerprint", ssh.FingerprintSHA256(key),
		)
		return nil
	}, nil
}
