package annot

import (
	"image"
	"testing"
)

func TestTextLifecycle(t *testing.T) {
	s := NewStore(800, 600)

	id := s.AddText(TextRegion{X: 10, Y: 20, W: 100, Content: "hello", FontSize: 16})
	if id == "" {
		t.Fatal("expected an assigned id")
	}
	if got, ok := s.TextByID(id); !ok || got.Content != "hello" || got.Align != AlignLeft {
		t.Fatalf("unexpected stored region: %+v ok=%v", got, ok)
	}

	content := "updated"
	fs := 24.0
	if !s.UpdateText(id, TextPatch{Content: &content, FontSize: &fs}) {
		t.Fatal("update failed")
	}
	got, _ := s.TextByID(id)
	if got.Content != "updated" || got.FontSize != 24 || got.X != 10 {
		t.Fatalf("patch applied wrong: %+v", got)
	}

	if s.UpdateText("missing", TextPatch{Content: &content}) {
		t.Fatal("update of unknown id should fail")
	}

	if !s.RemoveText(id) {
		t.Fatal("remove failed")
	}
	if len(s.Texts()) != 0 {
		t.Fatalf("expected no texts, got %d", len(s.Texts()))
	}
}

func TestRemoveTextAbortsGesture(t *testing.T) {
	s := NewStore(800, 600)
	id := s.AddText(TextRegion{Content: "x", FontSize: 12})
	s.BeginTextGesture(id)
	s.RemoveText(id)
	if s.EditingText() != "" {
		t.Fatal("gesture not aborted by removal")
	}
}

func TestNormalizeAlign(t *testing.T) {
	if NormalizeAlign(" Center ") != AlignCenter {
		t.Fatal("center not normalized")
	}
	if NormalizeAlign("RIGHT") != AlignRight {
		t.Fatal("right not normalized")
	}
	if NormalizeAlign("diagonal") != AlignLeft {
		t.Fatal("unknown align should fall back to left")
	}
}

func TestLayerManagement(t *testing.T) {
	s := NewStore(100, 80)
	if len(s.Layers()) != 1 {
		t.Fatalf("expected one initial layer, got %d", len(s.Layers()))
	}

	l2 := s.AddLayer()
	if s.ActiveLayer().ID != l2.ID {
		t.Fatal("new layer should become active")
	}
	if b := l2.Buffer.Bounds(); b.Dx() != 100 || b.Dy() != 80 {
		t.Fatalf("layer buffer not canonical-sized: %v", b)
	}

	s.RemoveLayer(1)
	if len(s.Layers()) != 1 {
		t.Fatalf("expected one layer after removal, got %d", len(s.Layers()))
	}
	if s.ActiveLayer() == nil {
		t.Fatal("active layer dangling after removal")
	}

	// Last layer is cleared, never removed.
	s.ActiveLayer().Buffer.Pix[0] = 255
	s.RemoveLayer(0)
	if len(s.Layers()) != 1 {
		t.Fatal("last layer must survive removal")
	}
	if s.ActiveLayer().Buffer.Pix[0] != 0 {
		t.Fatal("last layer should have been cleared")
	}
}

func TestToggleLayerVisibility(t *testing.T) {
	s := NewStore(10, 10)
	s.ToggleLayerVisibility(0)
	if s.Layers()[0].Visible {
		t.Fatal("layer should be hidden")
	}
	s.ToggleLayerVisibility(5) // out of range, no panic
}

func TestSelections(t *testing.T) {
	s := NewStore(200, 100)

	if id := s.AddSelection(image.Rect(10, 10, 12, 40)); id != "" {
		t.Fatal("degenerate selection should be discarded")
	}

	id := s.AddSelection(image.Rect(150, 50, 400, 300))
	if id == "" {
		t.Fatal("selection discarded unexpectedly")
	}
	sel := s.Selections()[0]
	if sel.Rect.Max.X != 200 || sel.Rect.Max.Y != 100 {
		t.Fatalf("selection not clamped to canonical bounds: %v", sel.Rect)
	}

	// Inverted drags are canonicalized.
	if id := s.AddSelection(image.Rect(80, 60, 20, 10)); id == "" {
		t.Fatal("inverted selection should be accepted")
	}

	snap := s.SnapshotSelections()
	s.ClearSelections()
	if len(s.Selections()) != 0 {
		t.Fatal("selections not cleared")
	}
	if len(snap) != 2 {
		t.Fatalf("snapshot should be independent of clear, got %d", len(snap))
	}
}

func TestResetDropsEverything(t *testing.T) {
	s := NewStore(100, 100)
	s.AddText(TextRegion{Content: "x", FontSize: 12})
	s.AddLayer()
	s.AddSelection(image.Rect(0, 0, 50, 50))

	s.Reset(300, 200)
	if len(s.Texts()) != 0 || len(s.Selections()) != 0 || len(s.Layers()) != 1 {
		t.Fatal("reset left state behind")
	}
	w, h := s.CanonicalSize()
	if w != 300 || h != 200 {
		t.Fatalf("reset size = %dx%d", w, h)
	}
	if b := s.ActiveLayer().Buffer.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
		t.Fatalf("fresh layer not resized: %v", b)
	}
}
