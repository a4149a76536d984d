package geom

import (
	"math"
	"testing"
)

func TestClampScale(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{1, 1},
		{4.0, 4.0},
		{4.5, 4.0},
		{0.1, 0.1},
		{0.01, 0.1},
		{0, 0.1},
		{-2, 0.1},
		{math.NaN(), 0.1},
	}
	for _, c := range cases {
		if got := ClampScale(c.in); got != c.want {
			t.Errorf("ClampScale(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRoundTripStaysFractional(t *testing.T) {
	tr := NewTransform(3000, 2000, 0.37)
	p := Point{X: 123.4, Y: 567.8}

	back := tr.ToDisplay(tr.ToCanonical(p))
	if math.Abs(back.X-p.X) > 1e-9 || math.Abs(back.Y-p.Y) > 1e-9 {
		t.Fatalf("round trip drifted: got %+v, want %+v", back, p)
	}

	// Many round trips must not accumulate drift either.
	q := p
	for i := 0; i < 1000; i++ {
		q = tr.ToDisplay(tr.ToCanonical(q))
	}
	if math.Abs(q.X-p.X) > 1e-6 || math.Abs(q.Y-p.Y) > 1e-6 {
		t.Fatalf("repeated round trips drifted: got %+v, want %+v", q, p)
	}
}

func TestRectConversion(t *testing.T) {
	tr := NewTransform(400, 300, 0.5)
	display := Rect{X: 100, Y: 50, W: 150, H: 40}

	canonical := tr.RectToCanonical(display)
	if canonical.X != 200 || canonical.Y != 100 || canonical.W != 300 || canonical.H != 80 {
		t.Fatalf("unexpected canonical rect: %+v", canonical)
	}

	back := tr.RectToDisplay(canonical)
	if back != display {
		t.Fatalf("rect round trip: got %+v, want %+v", back, display)
	}
}

func TestDisplaySize(t *testing.T) {
	tr := NewTransform(3000, 2000, 0.5)
	w, h := tr.DisplaySize()
	if w != 1500 || h != 1000 {
		t.Fatalf("DisplaySize = %dx%d, want 1500x1000", w, h)
	}
}

func TestFitTransform(t *testing.T) {
	tr := FitTransform(4000, 2000, 1000, 1000)
	if tr.Scale != 0.25 {
		t.Fatalf("fit scale = %v, want 0.25", tr.Scale)
	}

	// Small images are never scaled up to fit.
	tr = FitTransform(200, 100, 1000, 1000)
	if tr.Scale != 1 {
		t.Fatalf("fit scale for small image = %v, want 1", tr.Scale)
	}
}

func TestRectRoundMinimumSize(t *testing.T) {
	r := Rect{X: 10.6, Y: 20.4, W: 0.2, H: 0.1}.Round()
	if r.Min.X != 11 || r.Min.Y != 20 {
		t.Fatalf("unexpected rounded origin: %v", r)
	}
	if r.Dx() != 1 || r.Dy() != 1 {
		t.Fatalf("degenerate rect not clamped to 1x1: %v", r)
	}
}

func TestClipTo(t *testing.T) {
	tr := NewTransform(100, 80, 1)
	r := tr.ClipTo(Rect{X: -10, Y: 50, W: 200, H: 100}.Round())
	if r.Min.X != 0 || r.Min.Y != 50 || r.Max.X != 100 || r.Max.Y != 80 {
		t.Fatalf("unexpected clipped rect: %v", r)
	}
}
