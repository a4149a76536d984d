// Package imagegen translates an edit round into the instruction text sent to
// the image model. The model only sees the guide and mask images plus this
// text, so the text carries everything the pixels cannot: exact region
// coordinates, what belongs in each region, and the constraints on the rest
// of the frame.
package imagegen

import (
	"fmt"
	"image"
	"strings"
	"unicode"
)

// Region describes one maskable area of the guide, in guide pixel space.
type Region struct {
	Kind    string // "text" or "selection"
	Rect    image.Rectangle
	Content string // rendered text, empty for plain selections
}

// Request is everything the instruction builder needs for one round.
type Request struct {
	Prompt  string
	Regions []Region
	Width   int // guide width in px
	Height  int // guide height in px
	HasMask bool
	Locale  string
	// BlankSeed marks a guide synthesized from a blank canvas rather than a
	// user photo; the model should treat the whole frame as a draft.
	BlankSeed bool
}

// BuildInstruction assembles the model instruction. Region coordinates are
// given both in pixels and normalized to [0,1] with a coarse anchor word;
// models follow normalized coordinates more reliably, but the pixel values
// disambiguate at non-square aspect ratios.
func BuildInstruction(req Request) string {
	var b strings.Builder

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = "Refine this image while keeping its content recognizable."
	}
	b.WriteString(prompt)
	b.WriteString("\n")

	if len(req.Regions) > 0 {
		fmt.Fprintf(&b, "\nThe image is %d x %d pixels. Edit regions:\n", req.Width, req.Height)
		for i, r := range req.Regions {
			writeRegion(&b, i+1, r, req.Width, req.Height)
		}
	}

	b.WriteString("\nHARD CONSTRAINTS:\n")
	if req.HasMask {
		b.WriteString("- The second image is a binary mask. White areas are editable; black areas must remain pixel-identical to the first image.\n")
		b.WriteString("- Do not move, resize, or add edit areas beyond the white mask regions.\n")
	}
	b.WriteString("- Match the lighting, grain, and perspective of the surrounding image inside every edited region.\n")
	b.WriteString("- Render all quoted text exactly as written, fully legible, with no spelling changes.\n")
	if hasDevanagari(req.Regions) {
		b.WriteString("- Quoted text includes Devanagari script. Render it in Devanagari exactly as given; do not transliterate to Latin.\n")
	} else if req.Locale == "ne" {
		b.WriteString("- Any incidental signage or labels should use Devanagari typesetting.\n")
	}
	if req.BlankSeed {
		b.WriteString("- The first image is a rough draft on a blank canvas, not a photo. Recreate its layout with production quality.\n")
	}
	b.WriteString("- Output a single photorealistic, high-detail image at the input resolution.\n")

	return b.String()
}

func writeRegion(b *strings.Builder, n int, r Region, w, h int) {
	rect := r.Rect
	nx0, ny0 := normalize(rect.Min.X, w), normalize(rect.Min.Y, h)
	nx1, ny1 := normalize(rect.Max.X, w), normalize(rect.Max.Y, h)

	fmt.Fprintf(b, "%d. %s region at pixels (%d,%d)-(%d,%d), normalized (%.3f,%.3f)-(%.3f,%.3f), anchored %s.",
		n, r.Kind, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, nx0, ny0, nx1, ny1, anchor(rect, w, h))
	if r.Content != "" {
		fmt.Fprintf(b, " It must contain the text %q.", r.Content)
	}
	b.WriteString("\n")
}

func normalize(v, max int) float64 {
	if max < 1 {
		return 0
	}
	n := float64(v) / float64(max)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// anchor names the third of the frame the region's center falls in.
func anchor(r image.Rectangle, w, h int) string {
	cx := normalize((r.Min.X+r.Max.X)/2, w)
	cy := normalize((r.Min.Y+r.Max.Y)/2, h)

	var v, hz string
	switch {
	case cy < 1.0/3:
		v = "top"
	case cy < 2.0/3:
		v = "middle"
	default:
		v = "bottom"
	}
	switch {
	case cx < 1.0/3:
		hz = "left"
	case cx < 2.0/3:
		hz = "center"
	default:
		hz = "right"
	}
	if v == "middle" && hz == "center" {
		return "center"
	}
	return v + " " + hz
}

func hasDevanagari(regions []Region) bool {
	for _, r := range regions {
		for _, c := range r.Content {
			if unicode.Is(unicode.Devanagari, c) {
				return true
			}
		}
	}
	return false
}
