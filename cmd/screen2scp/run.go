package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/stewartcelani/screen2scp/internal/clip"
	"github.com/stewartcelani/screen2scp/internal/dedup"
	"github.com/stewartcelani/screen2scp/internal/event"
	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/imaging"
	"github.com/stewartcelani/screen2scp/internal/ipc"
	"github.com/stewartcelani/screen2scp/internal/notify"
	"github.com/stewartcelani/screen2scp/internal/pipeline"
	"github.com/stewartcelani/screen2scp/internal/remote"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the upload daemon",
		Long: `Starts the screen2scp daemon. Every interval the clipboard (or the
directory given by --source dir:<path>) is checked for a new image; new images
are encoded as JPEG and uploaded to --remote-path on --host over SFTP.

The upload is written to a temporary name and renamed into place, so a
partially written file is never visible under its final name.

Config file search order:
  /etc/screen2scp/screen2scp.toml
  $HOME/.config/screen2scp/screen2scp.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → SCREEN2SCP_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runDaemon(cmd.Context(), v) },
	}

	f := cmd.Flags()
	f.String("host", "", "SFTP server host")
	f.Int("port", 22, "SFTP server port")
	f.String("user", defaultUser(), "SSH user")
	f.String("remote-path", "", "remote directory screenshots are uploaded to")
	f.String("key", "~/.ssh/id_rsa", "SSH private key")
	f.String("known-hosts", "~/.ssh/known_hosts", "known_hosts file (unknown hosts are trusted on first use)")
	f.Duration("timeout", 15*time.Second, "SSH connect timeout")
	f.String("hash-file", "~/.config/screen2scp/uploaded_hashes.txt", "log of uploaded image fingerprints")
	f.String("source", "clipboard", "image source: clipboard | dir:<path>")
	f.Duration("interval", pipeline.DefaultInterval, "poll interval")
	f.Int("jpeg-quality", imaging.DefaultQuality, "JPEG quality (1-100)")
	f.Int("thumbnail-size", imaging.DefaultThumbnailSize, "thumbnail bounding box in pixels")
	f.Bool("auto-copy", true, "copy the remote path to the clipboard after upload")
	f.Bool("monitor", true, "start with monitoring enabled")
	f.Bool("notify", true, "show desktop notifications")
	f.Int("event-buffer", event.DefaultBuffer, "event queue size per observer")
	f.String("dry-run", "", "write to this local directory instead of the server")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(ctx context.Context, v *viper.Viper) error {
	setupLogging(v)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	remoteDir := v.GetString("remote-path")
	if remoteDir == "" {
		return errors.New("--remote-path is required")
	}
	quality := v.GetInt("jpeg-quality")
	if quality < 1 || quality > 100 {
		return fmt.Errorf("--jpeg-quality must be between 1 and 100, got %d", quality)
	}

	store, err := dedup.Open(afero.NewOsFs(), expandHome(v.GetString("hash-file")))
	if err != nil {
		return err
	}

	transport, target, err := openTransport(v)
	if err != nil {
		return err
	}
	writer := remote.NewWriter(transport, remoteDir)
	defer writer.Close()
	if err := writer.EnsureDir(); err != nil {
		return err
	}

	src, cb, closeSource, err := openSource(v.GetString("source"))
	if err != nil {
		return err
	}
	defer closeSource()

	var notifier pipeline.Notifier = notify.Nop{}
	if v.GetBool("notify") {
		notifier = notify.NewDesktop()
	}

	bus := event.NewBus()
	p, err := pipeline.New(pipeline.Config{
		Source:        src,
		Writer:        writer,
		Dedup:         store,
		History:       history.New(),
		Events:        bus,
		Notifier:      notifier,
		Clipboard:     cb,
		Interval:      v.GetDuration("interval"),
		Quality:       quality,
		ThumbnailSize: v.GetInt("thumbnail-size"),
		Monitoring:    v.GetBool("monitor"),
		AutoCopy:      v.GetBool("auto-copy"),
	})
	if err != nil {
		return err
	}

	slog.Info("screen2scp starting",
		"version", Version,
		"remote", target,
		"remote_path", remoteDir,
		"source", v.GetString("source"),
		"logged_fingerprints", store.Len(),
	)

	ctl := &controller{
		p:     p,
		bus:   bus,
		dedup: store,
		info: daemonInfo{
			version: Version,
			source:  v.GetString("source"),
			remote:  target + ":" + remoteDir,
			started: time.Now(),
		},
	}

	sub := bus.Subscribe("log", v.GetInt("event-buffer"))
	defer sub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error {
		logEvents(gctx, sub)
		return nil
	})

	// Control socket for list/delete/copy/toggle/status
	ln, err := ipc.Listen()
	if err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		g.Go(func() error { return ipc.Serve(gctx, ln, ctl) })
	}

	err = g.Wait()
	slog.Info("screen2scp stopped")
	return err
}

// logEvents is the default observer: it writes every pipeline event to the
// log until ctx is cancelled.
func logEvents(ctx context.Context, sub *event.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			event.Log(e)
		}
	}
}

// openTransport returns the remote transport and a description of where it
// points.
func openTransport(v *viper.Viper) (remote.Transport, string, error) {
	if dir := v.GetString("dry-run"); dir != "" {
		dir = expandHome(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("dry-run dir: %w", err)
		}
		slog.Warn("dry run: uploads go to a local directory", "dir", dir)
		return remote.NewFSTransport(afero.NewBasePathFs(afero.NewOsFs(), dir)), "local:" + dir, nil
	}

	host := v.GetString("host")
	if host == "" {
		return nil, "", errors.New("--host is required (or use --dry-run)")
	}
	cfg := remote.SFTPConfig{
		Host:           host,
		Port:           v.GetInt("port"),
		User:           v.GetString("user"),
		KeyPath:        expandHome(v.GetString("key")),
		KnownHostsPath: expandHome(v.GetString("known-hosts")),
		Timeout:        v.GetDuration("timeout"),
		Passphrase:     promptPassphrase(v.GetString("key")),
	}

	first, err := remote.DialSFTP(cfg)
	if err != nil {
		return nil, "", err
	}
	dial := func() (remote.Transport, error) {
		t, err := remote.DialSFTP(cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return remote.NewRedialer(first, dial), cfg.User + "@" + host, nil
}

// promptPassphrase asks for the key passphrase on the terminal once and
// remembers it for reconnects. Each call returns a fresh copy because the
// caller wipes it after use.
func promptPassphrase(key string) func() ([]byte, error) {
	var (
		mu     sync.Mutex
		cached []byte
	)
	return func() ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached == nil {
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				return nil, fmt.Errorf("key %s is encrypted and stdin is not a terminal", key)
			}
			fmt.Fprintf(os.Stderr, "Passphrase for %s: ", key)
			pw, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return nil, fmt.Errorf("read passphrase: %w", err)
			}
			cached = pw
		}
		return append([]byte(nil), cached...), nil
	}
}

// openSource parses --source. Clipboard writes always go to the system
// clipboard, even when images come from a directory.
func openSource(src string) (pipeline.Source, pipeline.Clipboard, func(), error) {
	switch {
	case src == "" || src == "clipboard":
		b := clip.New()
		slog.Info("image source", "name", b.Name())
		return b, b, b.Close, nil
	case strings.HasPrefix(src, "dir:"):
		d, err := clip.NewDirSource(expandHome(strings.TrimPrefix(src, "dir:")))
		if err != nil {
			return nil, nil, nil, err
		}
		b := clip.New()
		slog.Info("image source", "name", d.Name(), "clipboard", b.Name())
		return d, b, func() {
			d.Close()
			b.Close()
		}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown --source %q (want clipboard or dir:<path>)", src)
	}
}

func defaultUser() string {
	for _, env := range []string{"SCREEN2SCP_USER", "USER", "USERNAME"} {
		if u := os.Getenv(env); u != "" {
			return u
		}
	}
	return "root"
}
