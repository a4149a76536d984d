// Package merge folds a generated result back into the session's base image.
//
// The merge never mutates the existing base: it builds a new canonical frame
// and hands it back, so a failure at any step (most commonly an undecodable
// provider payload) leaves the session exactly as it was.
package merge

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"eikona/internal/domain"
	"eikona/internal/imaging"
)

// Apply decodes a provider result, resamples it to the base's canonical
// resolution, and composites it over a copy of base.
//
// rects is the region snapshot captured when the generation was started,
// in canonical space. With rects present, only pixels inside them are taken
// from the result; the rest of the frame keeps the base pixel untouched.
// With no rects the result replaces the whole frame (a free repaint).
func Apply(base *image.RGBA, result []byte, rects []image.Rectangle) (*image.RGBA, error) {
	if base == nil {
		return nil, domain.ErrNoImage
	}

	img, err := imaging.Decode(result)
	if err != nil {
		return nil, fmt.Errorf("merging result: %w", err)
	}

	b := base.Bounds()
	scaled := imaging.ScaleTo(img, b.Dx(), b.Dy())

	if len(rects) == 0 {
		return scaled, nil
	}

	out := image.NewRGBA(b)
	copy(out.Pix, base.Pix)

	// A single alpha mask keeps overlapping regions from compositing the
	// result twice.
	mask := image.NewAlpha(b)
	on := image.NewUniform(color.Alpha{A: 0xff})
	for _, r := range rects {
		r = r.Intersect(b)
		if !r.Empty() {
			draw.Draw(mask, r, on, image.Point{}, draw.Src)
		}
	}
	draw.DrawMask(out, b, scaled, image.Point{}, mask, image.Point{}, draw.Over)
	return out, nil
}
