// Package imaging converts captured images into the upload format and builds
// preview thumbnails.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/stewartcelani/screen2scp/internal/fingerprint"
)

const (
	// DefaultQuality is the JPEG quality used for uploads.
	DefaultQuality = 85

	// DefaultThumbnailSize bounds both thumbnail dimensions.
	DefaultThumbnailSize = 128

	// Ext is the file extension of encoded uploads.
	Ext = "jpg"
)

// ErrInvalidImage aliases the fingerprint sentinel so callers can test for a
// single invalid-image condition.
var ErrInvalidImage = fingerprint.ErrInvalidImage

// Flatten composites img over an opaque white canvas. Transparency is not
// preserved.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Over)
	return dst
}

// EncodeJPEG flattens img and encodes it as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: nothing to encode", ErrInvalidImage)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: jpeg: %w", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img losslessly, for putting images back on the clipboard.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %w", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}

// Decode decodes PNG, JPEG, GIF, BMP or WebP data.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return img, nil
}

// Thumbnail scales img to fit within bound×bound, preserving aspect ratio.
// Images already within bounds are copied unscaled.
func Thumbnail(img image.Image, bound int) image.Image {
	if bound <= 0 {
		bound = DefaultThumbnailSize
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= bound && h <= bound {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
		return dst
	}

	tw, th := bound, bound
	if w >= h {
		th = h * bound / w
	} else {
		tw = w * bound / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Rect, img, b, draw.Src, nil)
	return dst
}
