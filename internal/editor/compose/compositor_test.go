package compose

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/geom"
	"eikona/internal/editor/region"
)

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	res, err := region.NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return NewRenderer(res)
}

func solidBase(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestRenderSizeFollowsTransform(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(200, 100)
	base := solidBase(200, 100, color.RGBA{R: 90, G: 90, B: 90, A: 255})

	out := r.Render(base, store, geom.NewTransform(200, 100, 0.5), Options{})
	if b := out.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("render size = %v, want 100x50", b)
	}
	if o := out.PixOffset(50, 25); out.Pix[o] != 90 {
		t.Fatalf("base not drawn: %d", out.Pix[o])
	}
}

func TestRenderReusesBuffer(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(100, 100)
	base := solidBase(100, 100, color.RGBA{A: 255})
	tr := geom.NewTransform(100, 100, 1)

	a := r.Render(base, store, tr, Options{})
	b := r.Render(base, store, tr, Options{})
	if &a.Pix[0] != &b.Pix[0] {
		t.Fatal("same-size renders should reuse the buffer")
	}

	c := r.Render(base, store, geom.NewTransform(100, 100, 0.5), Options{})
	if c.Bounds().Dx() != 50 {
		t.Fatal("buffer not resized for new scale")
	}
}

func TestVisibleLayersComposite(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(100, 100)
	base := solidBase(100, 100, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	tr := geom.NewTransform(100, 100, 1)

	store.ApplyStroke(annot.Stroke{
		Points: []geom.Point{{X: 20, Y: 50}, {X: 80, Y: 50}},
		Size:   10,
		Color:  "#ff0000",
	})

	out := r.Render(base, store, tr, Options{})
	if o := out.PixOffset(50, 50); out.Pix[o] <= 10 {
		t.Fatal("layer stroke not composited")
	}

	store.ToggleLayerVisibility(0)
	out = r.Render(base, store, tr, Options{})
	if o := out.PixOffset(50, 50); out.Pix[o] != 10 {
		t.Fatal("hidden layer still composited")
	}
}

func TestTextDrawnIntoFrame(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(200, 100)
	base := solidBase(200, 100, color.RGBA{A: 255}) // black
	tr := geom.NewTransform(200, 100, 1)

	store.AddText(annot.TextRegion{X: 20, Y: 20, W: 150, H: 40, FontSize: 14, Content: "HELLO WORLD"})

	out := r.Render(base, store, tr, Options{})
	found := false
	for y := 20; y < 60 && !found; y++ {
		for x := 20; x < 170; x++ {
			if out.Pix[out.PixOffset(x, y)] > 128 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatal("no bright text pixels rendered")
	}
}

func TestCanonicalTextsWrapOnce(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(400, 300)
	tr := geom.NewTransform(400, 300, 0.5)
	store.AddText(annot.TextRegion{X: 10, Y: 10, W: 60, FontSize: 10, Content: "aaaa bbbb cccc"})

	texts := r.CanonicalTexts(store, tr)
	if len(texts) != 1 {
		t.Fatalf("texts = %d", len(texts))
	}
	// Wrapped at authored size against the authored width, then lowered to
	// canonical space.
	if len(texts[0].Lines) != 2 {
		t.Fatalf("lines = %v", texts[0].Lines)
	}
	if texts[0].Box.X != 20 || texts[0].FontSize != 20 {
		t.Fatalf("canonical lowering wrong: %+v", texts[0])
	}
}

func TestRenderScaledIgnoresZoomClamp(t *testing.T) {
	r := testRenderer(t)
	store := annot.NewStore(100, 100)
	base := solidBase(100, 100, color.RGBA{A: 255})
	tr := geom.NewTransform(100, 100, 1)

	// 6x exceeds the interactive zoom cap but export must allow it.
	out := r.RenderScaled(base, store, tr, 6, Options{})
	if b := out.Bounds(); b.Dx() != 600 || b.Dy() != 600 {
		t.Fatalf("scaled render = %v, want 600x600", b)
	}
}
