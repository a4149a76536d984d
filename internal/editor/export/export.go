// Package export produces the two images handed to the generation provider:
// a guide (the flattened session, exactly what the user sees) and a binary
// mask marking which pixels the model may repaint.
package export

import (
	"image"
	"image/color"
	"image/draw"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/compose"
	"eikona/internal/editor/geom"
	"eikona/internal/editor/region"
)

// Default long-edge bounds for exported images.
const (
	DefaultTargetLong = 1920
	DefaultMaxLong    = 2048
)

// Exporter renders guides and masks at the policy's output resolution.
type Exporter struct {
	TargetLong int
	MaxLong    int

	Renderer *compose.Renderer
	Res      *region.Resolver
}

// NewExporter wires an exporter with the given long-edge policy. Zero values
// take the defaults; a max below the target is raised to it.
func NewExporter(targetLong, maxLong int, renderer *compose.Renderer, res *region.Resolver) *Exporter {
	if targetLong < 1 {
		targetLong = DefaultTargetLong
	}
	if maxLong < targetLong {
		maxLong = DefaultMaxLong
		if maxLong < targetLong {
			maxLong = targetLong
		}
	}
	return &Exporter{TargetLong: targetLong, MaxLong: maxLong, Renderer: renderer, Res: res}
}

// Dims computes the export resolution for a canonical image of w x h.
// Images with a long edge under TargetLong are upscaled to it, images over
// MaxLong are downscaled to MaxLong, and anything in between exports 1:1.
// The short edge follows the aspect ratio.
func (e *Exporter) Dims(w, h int) (outW, outH int, scale float64) {
	long := w
	if h > long {
		long = h
	}
	if long < 1 {
		return 1, 1, 1
	}
	switch {
	case long < e.TargetLong:
		scale = float64(e.TargetLong) / float64(long)
	case long > e.MaxLong:
		scale = float64(e.MaxLong) / float64(long)
	default:
		scale = 1
	}
	outW = roundDim(float64(w) * scale)
	outH = roundDim(float64(h) * scale)
	return outW, outH, scale
}

// Guide flattens the session at export resolution: base image, visible
// layers, and text regions, with no overlays.
func (e *Exporter) Guide(base *image.RGBA, store *annot.Store, tr geom.Transform) *image.RGBA {
	cw, ch := store.CanonicalSize()
	_, _, scale := e.Dims(cw, ch)
	return e.Renderer.RenderScaled(base, store, tr, scale, compose.Options{})
}

// Mask renders the binary edit mask at export resolution: pure black, with
// a pure white axis-aligned rectangle per text region box and per selection.
// Rectangle fills go through draw.Draw with a uniform source, so no pixel is
// ever a blend of black and white.
func (e *Exporter) Mask(store *annot.Store, tr geom.Transform) *image.RGBA {
	cw, ch := store.CanonicalSize()
	outW, outH, _ := e.Dims(cw, ch)

	mask := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.Draw(mask, mask.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	white := image.NewUniform(color.White)
	for _, r := range e.Regions(store, tr) {
		draw.Draw(mask, r.Rect, white, image.Point{}, draw.Src)
	}
	return mask
}

// Region is one maskable area resolved to export pixel space. The mask paints
// exactly these rectangles, and the generation instruction describes exactly
// these rectangles; there is no second resolution path.
type Region struct {
	Kind    string // "text" or "selection"
	Rect    image.Rectangle
	Content string
}

// Regions resolves every text region and selection to an export-space
// rectangle, clipped to the export bounds. Rounding happens here and nowhere
// earlier.
func (e *Exporter) Regions(store *annot.Store, tr geom.Transform) []Region {
	cw, ch := store.CanonicalSize()
	outW, outH, scale := e.Dims(cw, ch)
	bounds := image.Rect(0, 0, outW, outH)

	var out []Region
	for _, t := range store.Texts() {
		box := e.Res.ResolveText(t, tr)
		r := scaleRect(box, scale).Intersect(bounds)
		if !r.Empty() {
			out = append(out, Region{Kind: "text", Rect: r, Content: t.Content})
		}
	}
	for _, sel := range store.Selections() {
		sr := region.ResolveSelection(sel)
		box := geom.Rect{
			X: float64(sr.Min.X), Y: float64(sr.Min.Y),
			W: float64(sr.Dx()), H: float64(sr.Dy()),
		}
		r := scaleRect(box, scale).Intersect(bounds)
		if !r.Empty() {
			out = append(out, Region{Kind: "selection", Rect: r})
		}
	}
	return out
}

// HasRegions reports whether the session has anything to mask. Generation
// without regions sends no mask and lets the model repaint freely.
func (e *Exporter) HasRegions(store *annot.Store) bool {
	return len(store.Texts()) > 0 || len(store.Selections()) > 0
}

func scaleRect(r geom.Rect, s float64) image.Rectangle {
	return geom.Rect{X: r.X * s, Y: r.Y * s, W: r.W * s, H: r.H * s}.Round()
}

func roundDim(v float64) int {
	n := int(v + 0.5)
	if n < 1 {
		return 1
	}
	return n
}
