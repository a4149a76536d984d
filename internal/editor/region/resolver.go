// Package region computes the editable bounding box of an annotation in
// canonical pixel space.
//
// There is exactly one height estimator, shared by the live preview and the
// mask export. Two estimators would let what the user sees drift from what
// gets masked, which is the main correctness hazard in this subsystem.
package region

import (
	"image"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/geom"
)

const (
	// LineHeightFactor matches the 1.3 line-height used when drawing text.
	LineHeightFactor = 1.3
	// BoxPadding is the fixed padding added under wrapped text, in display px.
	BoxPadding = 8

	minBoxWidth  = 40
	minFontSize  = 10
	minCapturedH = 24
)

// Resolver measures text with a TTF font when one is available. With no font
// (headless deployments, missing FONT_PATH) it degrades to deterministic
// approximations rather than failing exports.
type Resolver struct {
	fnt *truetype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewResolver parses TTF bytes. Pass nil to build a metrics-free resolver
// that always uses the fallback heuristics.
func NewResolver(ttf []byte) (*Resolver, error) {
	r := &Resolver{faces: make(map[int]font.Face)}
	if len(ttf) == 0 {
		return r, nil
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	r.fnt = f
	return r, nil
}

// LoadResolver reads a TTF from disk. A missing or unreadable file yields a
// metrics-free resolver, not an error: font metrics must never block export.
func LoadResolver(path string) *Resolver {
	if path == "" {
		r, _ := NewResolver(nil)
		return r
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r, _ := NewResolver(nil)
		return r
	}
	r, err := NewResolver(data)
	if err != nil {
		r, _ = NewResolver(nil)
		return r
	}
	return r
}

// HasMetrics reports whether real font measurement is available.
func (r *Resolver) HasMetrics() bool { return r.fnt != nil }

// Face returns a cached font.Face for the given pixel size, or nil when no
// font was loaded.
func (r *Resolver) Face(size float64) font.Face {
	if r.fnt == nil {
		return nil
	}
	key := int(math.Round(size))
	if key < 1 {
		key = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f
	}
	f := truetype.NewFace(r.fnt, &truetype.Options{Size: float64(key), DPI: 72})
	r.faces[key] = f
	return f
}

// MeasureWidth returns the advance width of s at the given size, in pixels.
// Without a font it uses a fixed per-rune approximation, which is what keeps
// wrapping deterministic in headless contexts.
func (r *Resolver) MeasureWidth(s string, size float64) float64 {
	if f := r.Face(size); f != nil {
		return float64(font.MeasureString(f, s)) / 64
	}
	return 0.6 * size * float64(len([]rune(s)))
}

// WrapLines packs words greedily into lines no wider than maxW. Words wider
// than the box occupy a line alone rather than being split.
func (r *Resolver) WrapLines(content string, size, maxW float64) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := ""
	for _, w := range words {
		test := w
		if line != "" {
			test = line + " " + w
		}
		if r.MeasureWidth(test, size) > maxW && line != "" {
			lines = append(lines, line)
			line = w
		} else {
			line = test
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// LineHeight returns the display-pixel line height for a font size.
func LineHeight(size float64) float64 {
	return math.Round(size * LineHeightFactor)
}

// ResolveTextDisplay computes a text region's box in display space.
//
// A captured height (H > 0, recorded when the box was confirmed) passes
// through. Otherwise the height comes from the shared word-wrap estimation,
// or from the fixed heuristic when metrics are unavailable.
func (r *Resolver) ResolveTextDisplay(t annot.TextRegion) geom.Rect {
	w := math.Max(minBoxWidth, t.W)
	fs := math.Max(minFontSize, t.FontSize)

	var h float64
	switch {
	case t.H > 0 && !math.IsInf(t.H, 0):
		h = math.Max(minCapturedH, t.H)
	case !r.HasMetrics():
		h = math.Max(24, fs*1.5)
	default:
		lh := LineHeight(fs)
		n := len(r.WrapLines(t.Content, fs, w))
		h = math.Max(lh, float64(n)*lh) + BoxPadding
	}

	return geom.Rect{X: t.X, Y: t.Y, W: w, H: h}
}

// ResolveText computes a text region's box in canonical space.
func (r *Resolver) ResolveText(t annot.TextRegion, tr geom.Transform) geom.Rect {
	return tr.RectToCanonical(r.ResolveTextDisplay(t))
}

// ResolveSelection passes a selection through: selections are authored in
// canonical space and are already authoritative.
func ResolveSelection(sel annot.Selection) image.Rectangle {
	return sel.Rect
}
