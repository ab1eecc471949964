// Package ipc provides the local Unix-socket control channel used by CLI
// tools (list/delete/copy/toggle/status) to talk to a running screen2scp
// daemon.
//
// The protocol is one newline-delimited JSON request and one response per
// connection (see package message). Only the daemon's owner can reach the
// socket.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stewartcelani/screen2scp/internal/message"
	"github.com/stewartcelani/screen2scp/internal/wire"
)

const (
	socketName  = "screen2scp.sock"
	readTimeout = 5 * time.Second

	// CallTimeout bounds a whole client round trip. Deletes run against the
	// remote server, so it is generous.
	CallTimeout = 2 * time.Minute
)

// ErrNotRunning is returned by Call when no daemon is listening.
var ErrNotRunning = errors.New("ipc: screen2scp daemon is not running")

// SocketPath returns the path of the control socket.
//
//   - $SCREEN2SCP_SOCKET if set
//   - $XDG_RUNTIME_DIR/screen2scp.sock on Linux
//   - $TMPDIR/screen2scp.sock otherwise
func SocketPath() string {
	if s := os.Getenv("SCREEN2SCP_SOCKET"); s != "" {
		return s
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, socketName)
	}
	return filepath.Join(os.TempDir(), socketName)
}

// IsRunning reports whether a daemon appears to be listening on the control
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := net.DialTimeout("unix", SocketPath(), time.Second)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the control socket, removing any stale socket
// file first. It fails if another daemon is already listening.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("ipc: daemon already listening on %s", path)
	}
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		slog.Warn("could not restrict socket permissions", "path", path, "err", err)
	}
	return ln, nil
}

// Handler answers a single control request.
type Handler interface {
	Handle(req *message.Message) *message.Message
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *message.Message) *message.Message

func (f HandlerFunc) Handle(req *message.Message) *message.Message { return f(req) }

// Serve accepts connections on ln until ctx is cancelled, answering each
// with h. In-flight requests are allowed to finish before Serve returns.
func Serve(ctx context.Context, ln net.Listener, h Handler) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.Info("control socket listening", "addr", ln.Addr())
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ipc: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveConn(wire.New(c), h)
		}()
	}
}

func serveConn(c *wire.Conn, h Handler) {
	defer c.Close()

	c.SetReadDeadline(readTimeout)
	req, err := c.ReadMsg()
	if err != nil {
		slog.Debug("ipc read failed", "err", err)
		return
	}
	c.SetReadDeadline(0)

	slog.Debug("ipc request", "type", req.Type, "id", req.ID)
	resp := h.Handle(req)
	if resp == nil {
		resp = message.Errorf("no response for %s", req.Type)
	}
	if err := c.WriteMsg(resp); err != nil {
		slog.Debug("ipc write failed", "err", err)
	}
}

// Call sends req to the daemon and returns its response. An ERROR response
// is returned as an error.
func Call(ctx context.Context, req *message.Message) (*message.Message, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", SocketPath())
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", ErrNotRunning, SocketPath())
	}
	return roundTrip(ctx, wire.New(nc), req)
}

func roundTrip(ctx context.Context, c *wire.Conn, req *message.Message) (*message.Message, error) {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	if err := c.WriteMsg(req); err != nil {
		return nil, fmt.Errorf("ipc: send: %w", err)
	}
	resp, err := c.ReadMsg()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ipc: receive: %w", err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}
