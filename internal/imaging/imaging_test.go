package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFlatten_TransparentBecomesWhite(t *testing.T) {
	img := solid(4, 4, color.NRGBA{})
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})

	out := Flatten(img)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(1, 1))
}

func TestFlatten_HalfAlphaBlends(t *testing.T) {
	out := Flatten(solid(1, 1, color.NRGBA{A: 128}))
	px := out.RGBAAt(0, 0)
	assert.Equal(t, uint8(255), px.A)
	assert.InDelta(t, 127, int(px.R), 2)
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solid(100, 100, color.NRGBA{R: 10, G: 200, B: 30, A: 255}), DefaultQuality)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestEncodeJPEG_Invalid(t *testing.T) {
	_, err := EncodeJPEG(nil, DefaultQuality)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = EncodeJPEG(image.NewNRGBA(image.Rect(0, 0, 0, 0)), DefaultQuality)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecode_RoundTrip(t *testing.T) {
	data, err := EncodePNG(solid(3, 2, color.NRGBA{B: 255, A: 255}))
	require.NoError(t, err)

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = Decode([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 400, 200, 128, 128, 64},
		{"portrait", 100, 1000, 128, 12, 128},
		{"small", 50, 40, 128, 50, 40},
		{"square", 256, 256, 128, 128, 128},
		{"default max", 512, 256, 0, 128, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := Thumbnail(solid(tt.w, tt.h, color.NRGBA{G: 255, A: 255}), tt.max)
			assert.Equal(t, tt.wantW, th.Bounds().Dx())
			assert.Equal(t, tt.wantH, th.Bounds().Dy())
		})
	}
}
