// Package compose flattens a session into a single RGBA frame: base image,
// visible stroke layers, then text regions. The same renderer serves the
// interactive preview and the guide export, differing only in output scale,
// so the text the model sees is the text the user saw.
package compose

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/geom"
	"eikona/internal/editor/region"
)

// Options toggles debug overlays on a render.
type Options struct {
	// ShowBoxes strokes the resolved region boxes and selections, for
	// inspecting what an export would mask.
	ShowBoxes bool
}

// Text is a text region lowered to canonical space with its line breaks
// already fixed. Lines are wrapped once, at the size the user authored at,
// and only scaled afterwards; re-wrapping at render size could disagree with
// the box the resolver promised.
type Text struct {
	Box           geom.Rect // canonical
	FontSize      float64   // canonical px
	LineH         float64   // canonical px
	Lines         []string
	Align         annot.Align
	HasBackground bool
}

// Renderer owns a reusable output buffer. Not safe for concurrent use; each
// session holds its own.
type Renderer struct {
	Res *region.Resolver

	buf *image.RGBA
}

// NewRenderer builds a renderer around the shared region resolver.
func NewRenderer(res *region.Resolver) *Renderer {
	return &Renderer{Res: res}
}

// CanonicalTexts lowers the store's text regions into canonical space using
// the session transform, wrapping each one exactly as the resolver's height
// estimate did.
func (r *Renderer) CanonicalTexts(store *annot.Store, tr geom.Transform) []Text {
	texts := store.Texts()
	out := make([]Text, 0, len(texts))
	s := geom.ClampScale(tr.Scale)
	for _, t := range texts {
		fs := math.Max(10, t.FontSize)
		box := r.Res.ResolveTextDisplay(t)
		out = append(out, Text{
			Box:           tr.RectToCanonical(box),
			FontSize:      fs / s,
			LineH:         region.LineHeight(fs) / s,
			Lines:         r.Res.WrapLines(t.Content, fs, box.W),
			Align:         t.Align,
			HasBackground: t.HasBackground,
		})
	}
	return out
}

// Render flattens the session at its current display scale, reusing the
// renderer's buffer. The returned image is owned by the renderer and valid
// until the next Render call.
func (r *Renderer) Render(base *image.RGBA, store *annot.Store, tr geom.Transform, opts Options) *image.RGBA {
	w, h := tr.DisplaySize()
	dst := r.reuse(w, h)
	r.renderInto(dst, base, store, tr, geom.ClampScale(tr.Scale), opts)
	return dst
}

// RenderScaled flattens the session into a fresh buffer at an arbitrary
// output scale relative to canonical space. Export uses this; the scale is
// deliberately not clamped to the interactive zoom range.
func (r *Renderer) RenderScaled(base *image.RGBA, store *annot.Store, tr geom.Transform, outScale float64, opts Options) *image.RGBA {
	cw, ch := store.CanonicalSize()
	w := roundDim(float64(cw) * outScale)
	h := roundDim(float64(ch) * outScale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	r.renderInto(dst, base, store, tr, outScale, opts)
	return dst
}

func (r *Renderer) renderInto(dst *image.RGBA, base *image.RGBA, store *annot.Store, tr geom.Transform, outScale float64, opts Options) {
	b := dst.Bounds()
	if base != nil {
		xdraw.ApproxBiLinear.Scale(dst, b, base, base.Bounds(), xdraw.Src, nil)
	} else {
		for i := range dst.Pix {
			dst.Pix[i] = 0xff
		}
	}

	for _, l := range store.Layers() {
		if !l.Visible {
			continue
		}
		xdraw.ApproxBiLinear.Scale(dst, b, l.Buffer, l.Buffer.Bounds(), xdraw.Over, nil)
	}

	texts := r.CanonicalTexts(store, tr)
	if len(texts) > 0 || opts.ShowBoxes {
		dc := gg.NewContextForRGBA(dst)
		for _, t := range texts {
			r.drawText(dc, t, outScale)
		}
		if opts.ShowBoxes {
			drawBoxes(dc, texts, store.Selections(), outScale)
		}
	}
}

func (r *Renderer) drawText(dc *gg.Context, t Text, s float64) {
	x := t.Box.X * s
	y := t.Box.Y * s
	w := t.Box.W * s
	h := t.Box.H * s

	if t.HasBackground {
		dc.SetRGBA(1, 1, 1, 0.85)
		dc.DrawRoundedRectangle(x, y, w, h, 4)
		dc.Fill()
	}

	fs := t.FontSize * s
	face := r.Res.Face(fs)
	if face == nil {
		face = basicfont.Face7x13
	}
	dc.SetFontFace(face)
	if t.HasBackground {
		dc.SetRGB(0.07, 0.07, 0.07)
	} else {
		dc.SetRGB(1, 1, 1)
	}

	ascent := float64(face.Metrics().Ascent) / 64
	lh := t.LineH * s
	for i, line := range t.Lines {
		lx := x
		switch t.Align {
		case annot.AlignCenter:
			lx = x + (w-r.Res.MeasureWidth(line, fs))/2
		case annot.AlignRight:
			lx = x + w - r.Res.MeasureWidth(line, fs)
		}
		dc.DrawString(line, lx, y+float64(i)*lh+ascent)
	}
}

func drawBoxes(dc *gg.Context, texts []Text, sels []annot.Selection, s float64) {
	dc.SetLineWidth(2)
	dc.SetRGBA(0.2, 0.6, 1, 0.9)
	for _, t := range texts {
		dc.DrawRectangle(t.Box.X*s, t.Box.Y*s, t.Box.W*s, t.Box.H*s)
		dc.Stroke()
	}
	dc.SetRGBA(1, 0.45, 0.1, 0.9)
	for _, sel := range sels {
		r := sel.Rect
		dc.DrawRectangle(float64(r.Min.X)*s, float64(r.Min.Y)*s, float64(r.Dx())*s, float64(r.Dy())*s)
		dc.Stroke()
	}
}

func (r *Renderer) reuse(w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if r.buf == nil || r.buf.Bounds().Dx() != w || r.buf.Bounds().Dy() != h {
		r.buf = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return r.buf
}

func roundDim(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
