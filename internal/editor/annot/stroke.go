package annot

import (
	"image"

	"github.com/fogleman/gg"

	"eikona/internal/editor/geom"
)

// Stroke is one freehand gesture in canonical coordinates.
type Stroke struct {
	Points []geom.Point
	Size   float64 // brush diameter in canonical pixels
	Color  string  // hex, e.g. "#ffffff"
	Eraser bool
}

// ApplyStroke rasterizes the stroke onto the active layer. Brush strokes
// paint round-capped polylines; eraser strokes knock alpha out of the layer
// (destination-out), never touching other layers or the base image.
func (s *Store) ApplyStroke(st Stroke) {
	if len(st.Points) == 0 {
		return
	}
	layer := s.ActiveLayer()
	if st.Eraser {
		eraseStroke(layer.Buffer, st)
		return
	}
	dc := gg.NewContextForRGBA(layer.Buffer)
	dc.SetHexColor(st.Color)
	if len(st.Points) == 1 {
		tapDot(dc, st)
		return
	}
	drawStrokePath(dc, st)
	dc.Stroke()
}

// eraseStroke rasterizes the stroke into a scratch buffer, then uses its
// alpha to clear the layer underneath. gg has no destination-out blend, so
// the knockout is applied per pixel over the stroke's bounding box.
func eraseStroke(dst *image.RGBA, st Stroke) {
	b := dst.Bounds()
	scratch := image.NewRGBA(b)
	dc := gg.NewContextForRGBA(scratch)
	dc.SetRGB(1, 1, 1)
	if len(st.Points) == 1 {
		tapDot(dc, st)
	} else {
		drawStrokePath(dc, st)
		dc.Stroke()
	}

	box := strokeBounds(st).Intersect(b)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			a := scratch.Pix[scratch.PixOffset(x, y)+3]
			if a == 0 {
				continue
			}
			o := dst.PixOffset(x, y)
			keep := uint32(255 - a)
			dst.Pix[o+0] = uint8(uint32(dst.Pix[o+0]) * keep / 255)
			dst.Pix[o+1] = uint8(uint32(dst.Pix[o+1]) * keep / 255)
			dst.Pix[o+2] = uint8(uint32(dst.Pix[o+2]) * keep / 255)
			dst.Pix[o+3] = uint8(uint32(dst.Pix[o+3]) * keep / 255)
		}
	}
}

func drawStrokePath(dc *gg.Context, st Stroke) {
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.SetLineWidth(brushWidth(st))
	first := st.Points[0]
	dc.MoveTo(first.X, first.Y)
	for _, p := range st.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
}

// tapDot renders a single-point stroke as a filled circle. A zero-length
// segment rasterizes to nothing even with round caps, so taps get their own
// path.
func tapDot(dc *gg.Context, st Stroke) {
	p := st.Points[0]
	dc.DrawCircle(p.X, p.Y, brushWidth(st)/2)
	dc.Fill()
}

func brushWidth(st Stroke) float64 {
	if st.Size < 1 {
		return 1
	}
	return st.Size
}

func strokeBounds(st Stroke) image.Rectangle {
	minX, minY := st.Points[0].X, st.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range st.Points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	pad := int(st.Size) + 2
	return image.Rect(int(minX)-pad, int(minY)-pad, int(maxX)+pad+1, int(maxY)+pad+1)
}

// CloneFill copies pixels from a slightly offset source rect of the base
// image over each selection, on the active layer. Used by the delete-key
// flow to cover raster text when no text region intersects the selection.
func (s *Store) CloneFill(base *image.RGBA, sels []Selection) {
	if base == nil {
		return
	}
	layer := s.ActiveLayer()
	bb := base.Bounds()
	for _, sel := range sels {
		r := sel.Rect
		w, h := r.Dx(), r.Dy()
		srcX := clampInt(r.Min.X-8, 0, bb.Dx()-w)
		srcY := clampInt(r.Min.Y-8, 0, bb.Dy()-h)
		if srcX < 0 || srcY < 0 {
			continue
		}
		for y := 0; y < h; y++ {
			srcOff := base.PixOffset(srcX, srcY+y)
			dstOff := layer.Buffer.PixOffset(r.Min.X, r.Min.Y+y)
			copy(layer.Buffer.Pix[dstOff:dstOff+w*4], base.Pix[srcOff:srcOff+w*4])
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
