package message

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewartcelani/screen2scp/internal/history"
	"github.com/stewartcelani/screen2scp/internal/imaging"
)

func TestFromRecord(t *testing.T) {
	r := &history.Record{
		ID:          "abc",
		Filename:    "screenshot_20240101_120000.jpg",
		CaptureTime: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		ByteSize:    2048,
		RemotePath:  "/srv/screenshots/screenshot_20240101_120000.jpg",
		Thumbnail:   image.NewRGBA(image.Rect(0, 0, 8, 4)),
	}

	plain := FromRecord(r, false)
	assert.Equal(t, "abc", plain.ID)
	assert.Equal(t, r.RemotePath, plain.RemotePath)
	assert.Equal(t, r.Fingerprint.String(), plain.Fingerprint)
	assert.Empty(t, plain.Thumbnail)

	withThumb := FromRecord(r, true)
	require.NotEmpty(t, withThumb.Thumbnail)
	png, err := withThumb.ThumbnailPNG()
	require.NoError(t, err)
	img, err := imaging.Decode(png)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestEncodeDecode(t *testing.T) {
	on := true
	m := &Message{Type: TypeResult, Enabled: &on, Deleted: 3, Failed: 2}
	raw, err := m.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "\n")

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = Decode([]byte("{"))
	require.Error(t, err)
}

func TestErr(t *testing.T) {
	assert.NoError(t, Result().Err())
	err := Errorf("no such upload: %s", "x").Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such upload: x")
}
