// Package geom maps between display space (on-screen, zoomed CSS pixels) and
// canonical space (the full-resolution pixel grid of the image being edited).
//
// Conversions stay in float64 until a terminal consumer rounds for drawing or
// export, so repeated round trips do not accumulate drift.
package geom

import (
	"image"
	"math"
)

// Scale bounds. Zoom outside this range is clamped rather than rejected.
const (
	MinScale = 0.1
	MaxScale = 4.0
)

// Point is a coordinate in either space, kept fractional until terminal use.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned box, kept fractional until terminal use.
type Rect struct {
	X, Y, W, H float64
}

// Transform relates display space to canonical space for one session.
// Scale is displayed_px / canonical_px.
type Transform struct {
	Scale      float64
	CanonicalW int
	CanonicalH int
}

// ClampScale forces s into [MinScale, MaxScale]. Zero and negative values
// clamp to MinScale.
func ClampScale(s float64) float64 {
	if s < MinScale || math.IsNaN(s) {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// NewTransform builds a Transform for a canonical image of w x h at scale s.
func NewTransform(w, h int, s float64) Transform {
	return Transform{Scale: ClampScale(s), CanonicalW: w, CanonicalH: h}
}

// FitTransform computes the largest scale (capped at 1) that fits the
// canonical image into availW x availH.
func FitTransform(w, h, availW, availH int) Transform {
	if w < 1 || h < 1 {
		return Transform{Scale: 1, CanonicalW: w, CanonicalH: h}
	}
	s := math.Min(float64(availW)/float64(w), float64(availH)/float64(h))
	if s > 1 {
		s = 1
	}
	return NewTransform(w, h, s)
}

// DisplaySize returns the rounded on-screen dimensions.
func (t Transform) DisplaySize() (int, int) {
	return int(math.Round(float64(t.CanonicalW) * t.Scale)),
		int(math.Round(float64(t.CanonicalH) * t.Scale))
}

// ToCanonical converts a display-space point to canonical space.
func (t Transform) ToCanonical(p Point) Point {
	s := ClampScale(t.Scale)
	return Point{X: p.X / s, Y: p.Y / s}
}

// ToDisplay converts a canonical-space point to display space.
func (t Transform) ToDisplay(p Point) Point {
	s := ClampScale(t.Scale)
	return Point{X: p.X * s, Y: p.Y * s}
}

// RectToCanonical converts a display-space rect to canonical space.
func (t Transform) RectToCanonical(r Rect) Rect {
	s := ClampScale(t.Scale)
	return Rect{X: r.X / s, Y: r.Y / s, W: r.W / s, H: r.H / s}
}

// RectToDisplay converts a canonical-space rect to display space.
func (t Transform) RectToDisplay(r Rect) Rect {
	s := ClampScale(t.Scale)
	return Rect{X: r.X * s, Y: r.Y * s, W: r.W * s, H: r.H * s}
}

// Round converts a fractional rect to an image.Rectangle, rounding position
// and size independently and guaranteeing at least 1x1. This is the single
// terminal rounding step for rects.
func (r Rect) Round() image.Rectangle {
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))
	w := int(math.Round(r.W))
	h := int(math.Round(r.H))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Rect(x, y, x+w, y+h)
}

// ClipTo intersects a rounded rect with the canonical bounds.
func (t Transform) ClipTo(r image.Rectangle) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, t.CanonicalW, t.CanonicalH))
}
