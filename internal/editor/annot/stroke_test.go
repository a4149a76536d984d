package annot

import (
	"image"
	"testing"

	"eikona/internal/editor/geom"
)

func TestBrushStrokePaintsActiveLayer(t *testing.T) {
	s := NewStore(100, 100)
	s.ApplyStroke(Stroke{
		Points: []geom.Point{{X: 20, Y: 50}, {X: 80, Y: 50}},
		Size:   10,
		Color:  "#ff0000",
	})

	buf := s.ActiveLayer().Buffer
	o := buf.PixOffset(50, 50)
	if buf.Pix[o+3] == 0 {
		t.Fatal("stroke center not painted")
	}
	if buf.Pix[o] == 0 {
		t.Fatal("stroke color not applied")
	}
	// Far corner stays clean.
	o = buf.PixOffset(5, 5)
	if buf.Pix[o+3] != 0 {
		t.Fatal("paint leaked outside the stroke")
	}
}

func TestSinglePointTapPaintsDot(t *testing.T) {
	s := NewStore(60, 60)
	s.ApplyStroke(Stroke{Points: []geom.Point{{X: 30, Y: 30}}, Size: 8, Color: "#00ff00"})
	buf := s.ActiveLayer().Buffer
	if buf.Pix[buf.PixOffset(30, 30)+3] == 0 {
		t.Fatal("tap left no dot")
	}
	// The dot stays local to the tap.
	if buf.Pix[buf.PixOffset(30, 40)+3] != 0 {
		t.Fatal("tap painted beyond its radius")
	}
}

func TestSinglePointEraserTap(t *testing.T) {
	s := NewStore(60, 60)
	s.ApplyStroke(Stroke{
		Points: []geom.Point{{X: 20, Y: 30}, {X: 40, Y: 30}},
		Size:   10,
		Color:  "#00ff00",
	})
	buf := s.ActiveLayer().Buffer
	if buf.Pix[buf.PixOffset(30, 30)+3] == 0 {
		t.Fatal("setup: paint missing")
	}

	s.ApplyStroke(Stroke{Points: []geom.Point{{X: 30, Y: 30}}, Size: 10, Eraser: true})
	if buf.Pix[buf.PixOffset(30, 30)+3] != 0 {
		t.Fatal("eraser tap did not clear the dot")
	}
	if buf.Pix[buf.PixOffset(22, 30)+3] == 0 {
		t.Fatal("eraser tap cleared beyond its radius")
	}
}

func TestEraserClearsOnlyStrokePath(t *testing.T) {
	s := NewStore(100, 100)
	s.ApplyStroke(Stroke{
		Points: []geom.Point{{X: 10, Y: 50}, {X: 90, Y: 50}},
		Size:   12,
		Color:  "#0000ff",
	})
	buf := s.ActiveLayer().Buffer
	if buf.Pix[buf.PixOffset(50, 50)+3] == 0 {
		t.Fatal("setup: paint missing")
	}

	s.ApplyStroke(Stroke{
		Points: []geom.Point{{X: 40, Y: 50}, {X: 60, Y: 50}},
		Size:   12,
		Eraser: true,
	})
	if buf.Pix[buf.PixOffset(50, 50)+3] != 0 {
		t.Fatal("eraser did not clear the path")
	}
	if buf.Pix[buf.PixOffset(12, 50)+3] == 0 {
		t.Fatal("eraser cleared pixels outside its path")
	}
}

func TestEmptyStrokeIsNoop(t *testing.T) {
	s := NewStore(10, 10)
	s.ApplyStroke(Stroke{})
}

func TestCloneFillCoversSelection(t *testing.T) {
	s := NewStore(100, 100)
	base := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := 0; i < len(base.Pix); i += 4 {
		base.Pix[i] = 200
		base.Pix[i+3] = 255
	}

	s.AddSelection(image.Rect(40, 40, 60, 60))
	s.CloneFill(base, s.Selections())

	buf := s.ActiveLayer().Buffer
	o := buf.PixOffset(50, 50)
	if buf.Pix[o] != 200 || buf.Pix[o+3] != 255 {
		t.Fatal("clone fill did not copy base pixels into the selection")
	}
	o = buf.PixOffset(70, 70)
	if buf.Pix[o+3] != 0 {
		t.Fatal("clone fill painted outside the selection")
	}
}
