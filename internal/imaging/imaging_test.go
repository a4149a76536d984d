package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"eikona/internal/domain"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	src := solid(30, 20, color.RGBA{R: 11, G: 22, B: 33, A: 255})

	data, err := EncodePNG(src)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rgba := ToRGBA(img)
	if b := rgba.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Fatalf("bounds = %v", b)
	}
	if o := rgba.PixOffset(15, 10); rgba.Pix[o] != 11 || rgba.Pix[o+2] != 33 {
		t.Fatal("pixels corrupted in round trip")
	}
}

func TestDecodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solid(16, 16, color.RGBA{R: 100, G: 100, B: 100, A: 255}), 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("Decode(jpeg): %v", err)
	}
}

func TestDecodeFailures(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, domain.ErrDecodeFailed) {
		t.Fatalf("empty payload: %v", err)
	}
	if _, err := Decode([]byte("garbage")); !errors.Is(err, domain.ErrDecodeFailed) {
		t.Fatalf("garbage payload: %v", err)
	}
}

func TestScaleTo(t *testing.T) {
	src := solid(100, 50, color.RGBA{R: 77, G: 77, B: 77, A: 255})
	dst := ScaleTo(src, 50, 25)
	if b := dst.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Fatalf("bounds = %v", b)
	}
	// Same-size scaling is a pass-through, not a copy.
	if same := ScaleTo(src, 100, 50); &same.Pix[0] != &src.Pix[0] {
		t.Fatal("no-op scale should not copy")
	}
}

func TestLongEdgeScaling(t *testing.T) {
	src := solid(100, 50, color.RGBA{A: 255})

	up := UpscaleToLongEdge(src, 200)
	if b := up.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("upscaled = %v", b)
	}
	// Already large enough: unchanged.
	if same := UpscaleToLongEdge(src, 80); same.Bounds().Dx() != 100 {
		t.Fatal("upscale should not shrink")
	}

	down := DownscaleToLongEdge(src, 50)
	if b := down.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Fatalf("downscaled = %v", b)
	}
	if same := DownscaleToLongEdge(src, 150); same.Bounds().Dx() != 100 {
		t.Fatal("downscale should not grow")
	}
}
