// Package fingerprint computes content hashes of decoded images.
//
// The hash is taken over a canonical PNG encoding of the pixels after they
// have been normalised to 8-bit non-premultiplied RGBA anchored at (0,0), so
// the same picture yields the same fingerprint no matter which pixel format
// or encoder produced it. It is an equality key for deduplication only.
package fingerprint

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
)

// Size is the length of a fingerprint in bytes.
const Size = md5.Size

// ErrInvalidImage is returned for nil, zero-area, or unencodable images.
var ErrInvalidImage = errors.New("fingerprint: invalid image")

// Fingerprint is the MD5 digest of an image's canonical encoding.
type Fingerprint [Size]byte

var encoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Of returns the fingerprint of img.
func Of(img image.Image) (Fingerprint, error) {
	data, err := Canonical(img)
	if err != nil {
		return Fingerprint{}, err
	}
	return md5.Sum(data), nil
}

// Canonical returns the lossless encoding that fingerprints are computed over.
func Canonical(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidImage, b)
	}

	norm := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(norm, norm.Rect, img, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, norm); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return buf.Bytes(), nil
}

// Parse decodes the hex form produced by String.
func Parse(s string) (Fingerprint, error) {
	var fp Fingerprint
	if len(s) != hex.EncodedLen(Size) {
		return fp, fmt.Errorf("fingerprint: want %d hex chars, got %d", hex.EncodedLen(Size), len(s))
	}
	if _, err := hex.Decode(fp[:], []byte(s)); err != nil {
		return fp, fmt.Errorf("fingerprint: %w", err)
	}
	return fp, nil
}

func (fp Fingerprint) String() string { return hex.EncodeToString(fp[:]) }

// LogValue logs fp in its hex form.
func (fp Fingerprint) LogValue() slog.Value { return slog.StringValue(fp.String()) }

// IsZero reports whether fp is the zero value.
func (fp Fingerprint) IsZero() bool { return fp == Fingerprint{} }
