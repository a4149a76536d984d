package session

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eikona/internal/domain"
	"eikona/internal/editor/annot"
	"eikona/internal/editor/region"
	"eikona/internal/imaging"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	res, err := region.NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	// Small export bounds keep round snapshots fast.
	return NewManager(res, 64, 128, time.Hour, zerolog.New(io.Discard))
}

func testImage(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	data, err := imaging.EncodePNG(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func testSession(t *testing.T, w, h int) (*Manager, *Session) {
	t.Helper()
	m := testManager(t)
	sess, err := m.Create(testImage(t, w, h, color.RGBA{R: 120, G: 120, B: 120, A: 255}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return m, sess
}

func TestManagerLifecycle(t *testing.T) {
	m, sess := testSession(t, 100, 80)
	if got, err := m.Get(sess.ID); err != nil || got != sess {
		t.Fatalf("Get: %v %v", got, err)
	}
	if m.Count() != 1 {
		t.Fatalf("Count = %d", m.Count())
	}
	m.Delete(sess.ID)
	if _, err := m.Get(sess.ID); err == nil {
		t.Fatal("deleted session still resolvable")
	}
}

func TestCreateRejectsBadImage(t *testing.T) {
	m := testManager(t)
	if _, err := m.Create([]byte("junk")); err == nil {
		t.Fatal("expected decode error")
	}
	if m.Count() != 0 {
		t.Fatal("failed create left a session behind")
	}
}

func TestDeleteKeyPriorities(t *testing.T) {
	_, sess := testSession(t, 100, 80)

	// Nothing selected, nothing editing: strict no-op.
	sess.DeleteKey()

	// An active gesture wins over everything.
	gestureID, _ := sess.AddText(annot.TextRegion{X: 5, Y: 5, W: 50, H: 20, FontSize: 12, Content: "a"})
	otherID, _ := sess.AddText(annot.TextRegion{X: 5, Y: 40, W: 50, H: 20, FontSize: 12, Content: "b"})
	sess.AddSelection(image.Rect(0, 35, 100, 70)) // intersects "b", not "a"
	sess.BeginTextGesture(gestureID)
	sess.DeleteKey()
	if hasText(sess, gestureID) {
		t.Fatal("gesture text should be removed first")
	}
	if !hasText(sess, otherID) {
		t.Fatal("non-gesture text should survive while a gesture is active")
	}

	// With no gesture, intersecting texts go next.
	sess.DeleteKey()
	if hasText(sess, otherID) {
		t.Fatal("selected text should be removed")
	}

	// With no intersecting texts left, selections are clone-filled.
	layerBefore := layerAlphaAt(sess, 50, 50)
	sess.DeleteKey()
	if layerBefore != 0 {
		t.Fatal("setup: layer should start empty")
	}
	if layerAlphaAt(sess, 50, 50) == 0 {
		t.Fatal("clone fill did not paint the selection")
	}
}

func hasText(sess *Session, id string) bool {
	for _, t := range sess.Texts() {
		if t.ID == id {
			return true
		}
	}
	return false
}

func layerAlphaAt(sess *Session, x, y int) uint8 {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	buf := sess.store.ActiveLayer().Buffer
	return buf.Pix[buf.PixOffset(x, y)+3]
}

func TestRoundSnapshotAndStaleToken(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	sess.AddSelection(image.Rect(10, 10, 60, 60))

	round, err := sess.BeginRound(2)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	if len(round.Guide) == 0 || !round.HasMask || len(round.Mask) == 0 {
		t.Fatal("round missing guide or mask")
	}
	if len(round.Regions) != 1 {
		t.Fatalf("round regions = %d", len(round.Regions))
	}

	// Editing after the snapshot must not affect the round.
	sess.ClearSelections()

	result := testImage(t, round.Width, round.Height, color.RGBA{R: 250, A: 255})
	sess.SetCandidate(round.Token, 0, result, "image/png", nil)
	cands := sess.Candidates()
	if !cands[0].Done || len(cands[0].Data) == 0 {
		t.Fatal("candidate not recorded")
	}

	// A new round invalidates outstanding workers.
	round2, err := sess.BeginRound(2)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	sess.SetCandidate(round.Token, 1, result, "image/png", nil)
	cands = sess.Candidates()
	if cands[1].Done {
		t.Fatal("stale token result accepted")
	}
	_ = round2
}

func TestApplyCandidateMergesThroughSnapshot(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	sess.AddSelection(image.Rect(20, 20, 70, 60))

	round, err := sess.BeginRound(1)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	sess.SetCandidate(round.Token, 0, testImage(t, round.Width, round.Height, color.RGBA{R: 240, A: 255}), "image/png", nil)

	if err := sess.ApplyCandidate(0); err != nil {
		t.Fatalf("ApplyCandidate: %v", err)
	}

	sess.mu.Lock()
	base := sess.base
	sess.mu.Unlock()
	if o := base.PixOffset(40, 40); base.Pix[o] != 240 {
		t.Fatal("merge missing inside snapshot rect")
	}
	if o := base.PixOffset(5, 5); base.Pix[o] != 120 {
		t.Fatal("merge leaked outside snapshot rect")
	}
	if len(sess.Selections()) != 0 || len(sess.Texts()) != 0 {
		t.Fatal("annotations should reset after a successful apply")
	}
}

func TestApplyCandidateFailureLeavesSessionUntouched(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	sess.AddSelection(image.Rect(10, 10, 50, 50))
	round, _ := sess.BeginRound(1)
	sess.SetCandidate(round.Token, 0, []byte("corrupt"), "image/png", nil)

	if err := sess.ApplyCandidate(0); err == nil {
		t.Fatal("expected merge failure")
	}
	if len(sess.Selections()) != 1 {
		t.Fatal("failed apply must not reset annotations")
	}
}

func TestApplyCandidateMissingSlot(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	if err := sess.ApplyCandidate(0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found for empty slot, got %v", err)
	}
}

func TestApplyAfterBaseSwapIsStale(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	round, err := sess.BeginRound(2)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	result := testImage(t, round.Width, round.Height, color.RGBA{R: 240, A: 255})
	sess.SetCandidate(round.Token, 0, result, "image/png", nil)
	sess.SetCandidate(round.Token, 1, result, "image/png", nil)

	// Replacing the base supersedes the round.
	if err := sess.LoadBase(testImage(t, 60, 60, color.RGBA{B: 255, A: 255})); err != nil {
		t.Fatalf("LoadBase: %v", err)
	}
	if err := sess.ApplyCandidate(0); !errors.Is(err, domain.ErrSessionStale) {
		t.Fatalf("apply after base swap = %v, want ErrSessionStale", err)
	}

	// Applying one candidate supersedes the round's remaining slots too.
	round, _ = sess.BeginRound(2)
	result = testImage(t, round.Width, round.Height, color.RGBA{G: 240, A: 255})
	sess.SetCandidate(round.Token, 0, result, "image/png", nil)
	sess.SetCandidate(round.Token, 1, result, "image/png", nil)
	if err := sess.ApplyCandidate(0); err != nil {
		t.Fatalf("ApplyCandidate: %v", err)
	}
	if err := sess.ApplyCandidate(1); !errors.Is(err, domain.ErrSessionStale) {
		t.Fatalf("second apply = %v, want ErrSessionStale", err)
	}

	// A fresh round clears the stale state.
	if _, err := sess.BeginRound(1); err != nil {
		t.Fatalf("BeginRound after stale: %v", err)
	}
	if err := sess.ApplyCandidate(0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty fresh slot = %v, want ErrNotFound", err)
	}
}

func TestEditFromResultUpscales(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	round, err := sess.BeginRound(1)
	if err != nil {
		t.Fatalf("BeginRound: %v", err)
	}
	sess.SetCandidate(round.Token, 0, testImage(t, 32, 24, color.RGBA{G: 200, A: 255}), "image/png", nil)

	if err := sess.EditFromResult(0); err != nil {
		t.Fatalf("EditFromResult: %v", err)
	}
	// Promoted base grows to the export target long edge (64 here).
	w, h := sess.CanonicalSize()
	if w != 64 || h != 48 {
		t.Fatalf("promoted base = %dx%d, want 64x48", w, h)
	}
}

func TestRefLimits(t *testing.T) {
	_, sess := testSession(t, 50, 50)
	ref := testImage(t, 10, 10, color.RGBA{A: 255})
	for i := 0; i < MaxRefs; i++ {
		if err := sess.AddRef(ref); err != nil {
			t.Fatalf("AddRef %d: %v", i, err)
		}
	}
	if err := sess.AddRef(ref); err == nil {
		t.Fatal("ref over the cap should be rejected")
	}
	if err := sess.AddRef([]byte("garbage")); err == nil {
		t.Fatal("undecodable ref should be rejected")
	}
	sess.ClearRefs()
	if len(sess.Refs()) != 0 {
		t.Fatal("refs not cleared")
	}
}

func TestZoomClamped(t *testing.T) {
	_, sess := testSession(t, 100, 80)
	if tr := sess.SetScale(9); tr.Scale != 4 {
		t.Fatalf("scale = %v, want 4", tr.Scale)
	}
	if tr := sess.SetScale(0); tr.Scale != 0.1 {
		t.Fatalf("scale = %v, want 0.1", tr.Scale)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	res, _ := region.NewResolver(nil)
	m := NewManager(res, 64, 128, time.Millisecond, zerolog.New(io.Discard))
	sess, err := m.Create(testImage(t, 20, 20, color.RGBA{A: 255}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	m.evictExpired()
	if _, err := m.Get(sess.ID); err == nil {
		t.Fatal("idle session not evicted")
	}
}
