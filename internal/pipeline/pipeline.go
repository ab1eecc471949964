// Package pipeline runs the capture → dedup → upload loop.
//
// A single goroutine calls Cycle at a fixed interval. Each cycle takes the
// current candidate image, skips it if it matches the last image seen or a
// fingerprint already in the dedup log, and otherwise encodes it and writes it
// to the remote store. Only a committed upload is recorded in the dedup log
// and history; every outcome is published on the event bus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stewartcelani/screen2scp/internal/dedup"
	"github.com/stewartcelani/screen2scp/internal/event"
	"github.com/stewartcelani/screen2scp/internal/fingerprint"
	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/imaging"
	"github.com/stewartcelani/screen2scp/internal/remote"
)

// DefaultInterval is the time between poll cycles.
const DefaultInterval = 500 * time.Millisecond

var (
	// ErrNoHistory is returned by operations on the latest upload when
	// nothing has been uploaded.
	ErrNoHistory = errors.New("pipeline: no uploads yet")

	// ErrNotFound is returned for an unknown record ID.
	ErrNotFound = errors.New("pipeline: no such upload")

	// ErrAmbiguous is returned when an ID prefix matches several records.
	ErrAmbiguous = errors.New("pipeline: ambiguous upload id")

	// ErrNoClipboard is returned by copy operations without a clipboard.
	ErrNoClipboard = errors.New("pipeline: clipboard unavailable")
)

// Source yields the image currently offered for upload. A nil image with a
// nil error means there is nothing to upload.
type Source interface {
	Candidate() (image.Image, error)
}

// Notifier shows a message to the user. Failures are the notifier's problem.
type Notifier interface {
	Notify(title, message string)
}

// Clipboard writes to the system clipboard.
type Clipboard interface {
	SetText(text string) error
	SetImage(png []byte) error
}

// Stage is the step a cycle is currently executing.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePolling    Stage = "polling"
	StageSkip       Stage = "skip"
	StageEncoding   Stage = "encoding"
	StageWriting    Stage = "writing"
	StageCommitting Stage = "committing"
	StagePublishing Stage = "publishing"
	StageStopped    Stage = "stopped"
)

// State is a snapshot of the pipeline's mutable state.
type State struct {
	Monitoring bool
	AutoCopy   bool
	LastSeen   *fingerprint.Fingerprint
	Stage      Stage
}

// Config wires a Pipeline. Source, Writer, Dedup, History and Events are
// required.
type Config struct {
	Source    Source
	Writer    *remote.Writer
	Dedup     *dedup.Store
	History   *history.Store
	Events    *event.Bus
	Notifier  Notifier
	Clipboard Clipboard

	Interval      time.Duration
	Quality       int
	ThumbnailSize int
	Monitoring    bool
	AutoCopy      bool

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Pipeline owns the upload loop and its state.
type Pipeline struct {
	source    Source
	writer    *remote.Writer
	dedup     *dedup.Store
	history   *history.Store
	events    *event.Bus
	notifier  Notifier
	clipboard Clipboard

	interval  time.Duration
	quality   int
	thumbSize int
	now       func() time.Time
	newID     func() string

	// Fingerprint of the last candidate, reused while the source keeps
	// returning the same image value. Only touched by Cycle.
	memoImg image.Image
	memoFP  fingerprint.Fingerprint

	mu         sync.Mutex
	monitoring bool
	autoCopy   bool
	lastSeen   *fingerprint.Fingerprint
	stage      Stage
}

// New validates cfg and returns an idle Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("pipeline: source is required")
	case cfg.Writer == nil:
		return nil, fmt.Errorf("pipeline: writer is required")
	case cfg.Dedup == nil:
		return nil, fmt.Errorf("pipeline: dedup store is required")
	case cfg.History == nil:
		return nil, fmt.Errorf("pipeline: history is required")
	case cfg.Events == nil:
		return nil, fmt.Errorf("pipeline: event bus is required")
	}

	p := &Pipeline{
		source:     cfg.Source,
		writer:     cfg.Writer,
		dedup:      cfg.Dedup,
		history:    cfg.History,
		events:     cfg.Events,
		notifier:   cfg.Notifier,
		clipboard:  cfg.Clipboard,
		interval:   cfg.Interval,
		quality:    cfg.Quality,
		thumbSize:  cfg.ThumbnailSize,
		now:        cfg.Now,
		newID:      cfg.NewID,
		monitoring: cfg.Monitoring,
		autoCopy:   cfg.AutoCopy,
		stage:      StageIdle,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.quality <= 0 {
		p.quality = imaging.DefaultQuality
	}
	if p.thumbSize <= 0 {
		p.thumbSize = imaging.DefaultThumbnailSize
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p, nil
}

// History returns the upload history.
func (p *Pipeline) History() *history.Store { return p.history }

// Filename returns the remote file name for a capture taken at t.
func Filename(t time.Time) string {
	return "screenshot_" + t.Format("20060102_150405") + "." + imaging.Ext
}

// Run polls until ctx is cancelled. A cycle in progress is allowed to finish;
// cycle errors are published as events and never stop the loop.
func (p *Pipeline) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	defer p.setStage(StageStopped)

	slog.Info("pipeline started", "interval", p.interval, "monitoring", p.State().Monitoring)
	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline stopped")
			return nil
		case <-t.C:
			if _, err := p.Cycle(); err != nil {
				slog.Debug("cycle failed", "err", err)
			}
		}
	}
}

// Cycle runs one poll. It returns the new record when an upload committed,
// or nil when the cycle had nothing to do. A non-nil error has already been
// published as an error event.
func (p *Pipeline) Cycle() (*history.Record, error) {
	if !p.State().Monitoring {
		return nil, nil
	}
	p.setStage(StagePolling)
	defer p.setStage(StageIdle)

	img, err := p.source.Candidate()
	if err != nil {
		slog.Debug("no candidate image", "err", err)
		return nil, nil
	}
	if img == nil {
		return nil, nil
	}

	fp, err := p.fingerprint(img)
	if err != nil {
		return nil, p.fail("Could not read screenshot", err)
	}
	if !p.claim(fp) {
		p.setStage(StageSkip)
		return nil, nil
	}
	return p.upload(img, fp)
}

func (p *Pipeline) fingerprint(img image.Image) (fingerprint.Fingerprint, error) {
	if p.memoImg != nil && sameImage(p.memoImg, img) {
		return p.memoFP, nil
	}
	fp, err := fingerprint.Of(img)
	if err != nil {
		return fp, err
	}
	p.memoImg, p.memoFP = img, fp
	return fp, nil
}

// sameImage reports whether a and b are the same pointer. Sources hand back
// their cached image while the underlying data is unchanged.
func sameImage(a, b image.Image) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Pointer || vb.Kind() != reflect.Pointer {
		return false
	}
	return va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}

// claim marks fp as the last image seen unless it was already seen or
// uploaded. LastSeen is set before the upload starts so that later ticks do
// not queue the same image while it is in flight.
func (p *Pipeline) claim(fp fingerprint.Fingerprint) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSeen != nil && *p.lastSeen == fp {
		return false
	}
	if p.dedup.Contains(fp) {
		return false
	}
	p.lastSeen = &fp
	return true
}

func (p *Pipeline) upload(img image.Image, fp fingerprint.Fingerprint) (*history.Record, error) {
	captured := p.now()
	filename := Filename(captured)

	p.setStage(StageEncoding)
	thumb := imaging.Thumbnail(img, p.thumbSize)
	data, err := imaging.EncodeJPEG(img, p.quality)
	if err != nil {
		return nil, p.fail("Could not encode screenshot", err)
	}

	p.setStage(StageWriting)
	remotePath, err := p.writer.Upload(filename, data)
	if err != nil {
		return nil, p.fail("Could not upload screenshot", err)
	}

	p.setStage(StageCommitting)
	if err := p.dedup.Add(fp); err != nil {
		slog.Warn("fingerprint not persisted", "fingerprint", fp, "err", err)
		p.events.Publish(event.Failed("Fingerprint log not saved", err))
	}
	rec := &history.Record{
		ID:          p.newID(),
		Filename:    filename,
		CaptureTime: captured,
		ByteSize:    int64(len(data)),
		RemotePath:  remotePath,
		Fingerprint: fp,
		Thumbnail:   thumb,
	}
	p.history.Prepend(rec)

	p.setStage(StagePublishing)
	p.events.Publish(event.Uploaded(rec))

	msg := rec.Filename
	if p.State().AutoCopy && p.clipboard != nil {
		if err := p.clipboard.SetText(remotePath); err != nil {
			slog.Warn("copy path to clipboard failed", "err", err)
		} else {
			msg += " - Path copied!"
		}
	}
	p.notify("Screenshot Uploaded", msg)

	slog.Info("screenshot uploaded", "file", rec.Filename, "path", remotePath, "size_bytes", rec.ByteSize)
	return rec, nil
}

// fail publishes an error event and a failure notification for err.
func (p *Pipeline) fail(msg string, err error) error {
	slog.Warn(msg, "err", err)
	p.events.Publish(event.Failed(msg, err))
	p.notify("Upload Failed", msg)
	return err
}

func (p *Pipeline) notify(title, msg string) {
	if p.notifier != nil {
		p.notifier.Notify(title, msg)
	}
}

// State returns a snapshot of the pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := State{
		Monitoring: p.monitoring,
		AutoCopy:   p.autoCopy,
		Stage:      p.stage,
	}
	if p.lastSeen != nil {
		fp := *p.lastSeen
		st.LastSeen = &fp
	}
	return st
}

func (p *Pipeline) setStage(s Stage) {
	p.mu.Lock()
	p.stage = s
	p.mu.Unlock()
}

// SetMonitoring turns polling on or off.
func (p *Pipeline) SetMonitoring(on bool) {
	p.mu.Lock()
	p.monitoring = on
	p.mu.Unlock()
	slog.Info("monitoring toggled", "enabled", on)
}

// ToggleMonitoring flips monitoring and returns the new value.
func (p *Pipeline) ToggleMonitoring() bool {
	p.mu.Lock()
	p.monitoring = !p.monitoring
	on := p.monitoring
	p.mu.Unlock()
	slog.Info("monitoring toggled", "enabled", on)
	return on
}

// ToggleAutoCopy flips copying the remote path after upload and returns the
// new value.
func (p *Pipeline) ToggleAutoCopy() bool {
	p.mu.Lock()
	p.autoCopy = !p.autoCopy
	on := p.autoCopy
	p.mu.Unlock()
	slog.Info("auto-copy toggled", "enabled", on)
	return on
}

// markSeen records fp as the last image seen without uploading it.
func (p *Pipeline) markSeen(fp fingerprint.Fingerprint) {
	p.mu.Lock()
	p.lastSeen = &fp
	p.mu.Unlock()
}
