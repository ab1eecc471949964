package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewartcelani/screen2scp/internal/dedup"
	"github.com/stewartcelani/screen2scp/internal/event"
	"github.com/stewartcelani/screen2scp/internal/fingerprint"
	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/remote"
)

const baseDir = "/srv/screenshots"

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestCycle_UploadsNewScreenshot(t *testing.T) {
	h := newHarness(t)
	h.src.set(solid(100, 100, color.RGBA{R: 200, A: 255}))

	rec, err := h.p.Cycle()
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "screenshot_20240101_120000.jpg", rec.Filename)
	assert.Equal(t, "/srv/screenshots/screenshot_20240101_120000.jpg", rec.RemotePath)
	assert.True(t, rec.CaptureTime.Equal(fixedNow))
	assert.Positive(t, rec.ByteSize)
	require.NotNil(t, rec.Thumbnail)
	assert.Equal(t, 100, rec.Thumbnail.Bounds().Dx())

	ok, err := afero.Exists(h.fs, rec.RemotePath)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = afero.Exists(h.fs, rec.RemotePath+remote.TempSuffix)
	assert.False(t, ok, "temporary file left behind")

	assert.True(t, h.dedup.Contains(rec.Fingerprint))
	assert.Equal(t, 1, h.hist.Len())

	events := drain(h.sub)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindUploaded, events[0].Kind)
	assert.Same(t, rec, events[0].Record)

	assert.Equal(t, []string{"Screenshot Uploaded"}, h.notes.titles())
}

func TestCycle_SameImageTwiceUploadsOnce(t *testing.T) {
	h := newHarness(t)
	h.src.set(solid(64, 64, color.RGBA{G: 255, A: 255}))

	first, err := h.p.Cycle()
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Equal(t, 1, h.hist.Len())
	assert.Equal(t, 1, h.puts())
}

func TestCycle_SkipsFingerprintAlreadyLogged(t *testing.T) {
	h := newHarness(t)
	img := solid(32, 32, color.RGBA{B: 255, A: 255})
	fp, err := fingerprint.Of(img)
	require.NoError(t, err)
	require.NoError(t, h.dedup.Add(fp))

	h.src.set(img)
	rec, err := h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, h.puts())
	assert.Empty(t, drain(h.sub))
}

func TestCycle_NoCandidate(t *testing.T) {
	h := newHarness(t)

	rec, err := h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, rec)

	h.src.fail(errors.New("clipboard busy"))
	rec, err = h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, drain(h.sub))
}

func TestCycle_PutFailureCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.mock.PutFn = func(string, []byte) error { return errors.New("disk full") }
	img := solid(40, 40, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	h.src.set(img)

	rec, err := h.p.Cycle()
	require.ErrorIs(t, err, remote.ErrUploadFailed)
	assert.Nil(t, rec)

	fp, _ := fingerprint.Of(img)
	assert.False(t, h.dedup.Contains(fp))
	assert.Zero(t, h.hist.Len())

	events := drain(h.sub)
	require.Len(t, events, 1)
	assert.Equal(t, event.KindError, events[0].Kind)
	assert.ErrorIs(t, events[0].Err, remote.ErrUploadFailed)
	assert.Equal(t, []string{"Upload Failed"}, h.notes.titles())
}

func TestCycle_RenameFailureLeavesNoFinalFile(t *testing.T) {
	h := newHarness(t)
	h.mock.RenameFn = func(string, string) error { return errors.New("permission denied") }
	img := solid(40, 40, color.RGBA{R: 9, A: 255})
	h.src.set(img)

	_, err := h.p.Cycle()
	require.ErrorIs(t, err, remote.ErrUploadFailed)

	final := baseDir + "/" + Filename(fixedNow)
	ok, _ := afero.Exists(h.fs, final)
	assert.False(t, ok)

	fp, _ := fingerprint.Of(img)
	assert.False(t, h.dedup.Contains(fp))
	assert.Zero(t, h.hist.Len())
}

func TestCycle_FailedImageIsNotRetriedUntilItChanges(t *testing.T) {
	h := newHarness(t)
	fail := true
	h.mock.PutFn = func(p string, data []byte) error {
		if fail {
			return errors.New("offline")
		}
		return h.mock.Base.Put(p, data)
	}
	a := solid(20, 20, color.RGBA{R: 50, A: 255})
	h.src.set(a)
	_, err := h.p.Cycle()
	require.Error(t, err)

	fail = false
	rec, err := h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, rec, "last seen image should not be retried")

	h.src.set(solid(20, 20, color.RGBA{G: 50, A: 255}))
	rec, err = h.p.Cycle()
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestCycle_MonitoringOff(t *testing.T) {
	h := newHarness(t)
	h.src.set(solid(10, 10, color.RGBA{A: 255}))

	assert.False(t, h.p.ToggleMonitoring())
	rec, err := h.p.Cycle()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Zero(t, h.src.reads())

	assert.True(t, h.p.ToggleMonitoring())
	rec, err = h.p.Cycle()
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestCycle_AutoCopy(t *testing.T) {
	h := newHarness(t)
	h.src.set(solid(10, 10, color.RGBA{R: 77, A: 255}))

	require.True(t, h.p.ToggleAutoCopy())
	rec, err := h.p.Cycle()
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, rec.RemotePath, h.clip.lastText())
	require.Len(t, h.notes.all(), 1)
	assert.Contains(t, h.notes.all()[0], "Path copied!")
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Interval = 5 * time.Millisecond })
	h.src.set(solid(10, 10, color.RGBA{B: 10, A: 255}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.p.Run(ctx) }()

	require.Eventually(t, func() bool { return h.hist.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StageStopped, h.p.State().Stage)
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Interval = 2 * time.Millisecond })
	var mu sync.Mutex
	failures := 0
	h.mock.PutFn = func(p string, data []byte) error {
		mu.Lock()
		defer mu.Unlock()
		if failures < 1 {
			failures++
			return errors.New("transient")
		}
		return h.mock.Base.Put(p, data)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.p.Run(ctx) }()

	h.src.set(solid(8, 8, color.RGBA{R: 1, A: 255}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failures == 1
	}, 2*time.Second, 2*time.Millisecond)

	h.src.set(solid(8, 8, color.RGBA{R: 2, A: 255}))
	require.Eventually(t, func() bool { return h.hist.Len() == 1 }, 2*time.Second, 2*time.Millisecond)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	got := Filename(time.Date(2023, 12, 31, 23, 59, 7, 0, time.Local))
	assert.Equal(t, "screenshot_20231231_235907.jpg", got)
}

// --- Helper functions ---

type harness struct {
	p     *Pipeline
	fs    afero.Fs
	mock  *remote.MockTransport
	dedup *dedup.Store
	hist  *history.Store
	bus   *event.Bus
	sub   *event.Subscription
	src   *fakeSource
	notes *fakeNotifier
	clip  *fakeClipboard

	mu     sync.Mutex
	putLog []string
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		fs:    afero.NewMemMapFs(),
		hist:  history.New(),
		bus:   event.NewBus(),
		src:   &fakeSource{},
		notes: &fakeNotifier{},
		clip:  &fakeClipboard{},
	}
	h.mock = &remote.MockTransport{Base: remote.NewFSTransport(h.fs)}

	// Count puts without disturbing PutFn overrides set by the test.
	counting := &countingTransport{MockTransport: h.mock, onPut: func(p string) {
		h.mu.Lock()
		h.putLog = append(h.putLog, p)
		h.mu.Unlock()
	}}

	w := remote.NewWriter(counting, baseDir)
	require.NoError(t, w.EnsureDir())

	var err error
	h.dedup, err = dedup.Open(h.fs, "/home/u/.config/screen2scp/uploaded_hashes.txt")
	require.NoError(t, err)

	h.sub = h.bus.Subscribe("test", 64)
	t.Cleanup(h.sub.Close)

	n := 0
	cfg := Config{
		Source:     h.src,
		Writer:     w,
		Dedup:      h.dedup,
		History:    h.hist,
		Events:     h.bus,
		Notifier:   h.notes,
		Clipboard:  h.clip,
		Monitoring: true,
		Now:        func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("rec-%d", n)
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	h.p, err = New(cfg)
	require.NoError(t, err)
	return h
}

func (h *harness) puts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.putLog)
}

type countingTransport struct {
	*remote.MockTransport
	onPut func(p string)
}

func (c *countingTransport) Put(p string, data []byte) error {
	c.onPut(p)
	return c.MockTransport.Put(p, data)
}

type fakeSource struct {
	mu  sync.Mutex
	img image.Image
	err error
	n   int
}

func (s *fakeSource) Candidate() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.img, s.err
}

func (s *fakeSource) set(img image.Image) {
	s.mu.Lock()
	s.img, s.err = img, nil
	s.mu.Unlock()
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.img, s.err = nil, err
	s.mu.Unlock()
}

func (s *fakeSource) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes [][2]string
}

func (n *fakeNotifier) Notify(title, message string) {
	n.mu.Lock()
	n.notes = append(n.notes, [2]string{title, message})
	n.mu.Unlock()
}

func (n *fakeNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notes))
	for i, v := range n.notes {
		out[i] = v[0]
	}
	return out
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notes))
	for i, v := range n.notes {
		out[i] = v[0] + ": " + v[1]
	}
	return out
}

type fakeClipboard struct {
	mu    sync.Mutex
	text  string
	image []byte
	err   error
}

func (c *fakeClipboard) SetText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = s
	return nil
}

func (c *fakeClipboard) SetImage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.image = b
	return nil
}

func (c *fakeClipboard) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func drain(s *event.Subscription) []event.Event {
	var out []event.Event
	for {
		select {
		case e := <-s.Events():
			out = append(out, e)
		default:
			return out
		}
	}
}
