// Package imaging holds the raster decode/encode/resample helpers shared by
// the editor core and the generation providers.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"eikona/internal/domain"
)

// Decode parses image bytes. Supports PNG, JPEG, and WEBP; the format is
// sniffed from the payload, not a filename.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrDecodeFailed)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	return img, nil
}

// EncodePNG serializes an image as PNG. PNG is lossless, which the mask
// contract requires.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG serializes an image as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// ToRGBA returns img as *image.RGBA, copying only when the underlying type
// differs.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// ScaleTo resamples img to w x h. CatmullRom is used for quality; this runs
// off the interactive path.
func ScaleTo(img image.Image, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return ToRGBA(img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// UpscaleToLongEdge grows img so its long edge reaches longEdge, keeping the
// aspect ratio. Images already at or above the target are returned unchanged.
func UpscaleToLongEdge(img image.Image, longEdge int) *image.RGBA {
	b := img.Bounds()
	current := b.Dx()
	if b.Dy() > current {
		current = b.Dy()
	}
	if current >= longEdge || current == 0 {
		return ToRGBA(img)
	}
	scale := float64(longEdge) / float64(current)
	return ScaleTo(img, roundPositive(float64(b.Dx())*scale), roundPositive(float64(b.Dy())*scale))
}

// DownscaleToLongEdge shrinks img so its long edge fits within longEdge.
// Smaller images are returned unchanged.
func DownscaleToLongEdge(img image.Image, longEdge int) *image.RGBA {
	b := img.Bounds()
	current := b.Dx()
	if b.Dy() > current {
		current = b.Dy()
	}
	if current <= longEdge || current == 0 {
		return ToRGBA(img)
	}
	scale := float64(longEdge) / float64(current)
	return ScaleTo(img, roundPositive(float64(b.Dx())*scale), roundPositive(float64(b.Dy())*scale))
}

func roundPositive(v float64) int {
	n := int(v + 0.5)
	if n < 1 {
		return 1
	}
	return n
}
