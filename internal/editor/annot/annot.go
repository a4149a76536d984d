// Package annot owns every annotation in an editing session: placed text
// regions, freehand raster layers, and rectangular selections.
//
// Text regions live in display space (where the user placed them) and are
// converted to canonical space at export time. Layer buffers and selections
// are always canonical-resolution, which is what makes brush strokes and
// masked edits independent of the current zoom.
package annot

import (
	"fmt"
	"image"
	"strings"

	"github.com/google/uuid"
)

// Align is the horizontal alignment of a text region.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// NormalizeAlign sanitizes free-form input into a supported alignment.
func NormalizeAlign(s string) Align {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(AlignCenter):
		return AlignCenter
	case string(AlignRight):
		return AlignRight
	default:
		return AlignLeft
	}
}

// TextRegion is a block of user text anchored in display space.
// H is optional: zero means the box height was never captured and must be
// estimated from font metrics when a region box is needed.
type TextRegion struct {
	ID            string
	X, Y          float64
	W             float64
	H             float64
	Content       string
	FontSize      float64
	Align         Align
	HasBackground bool
}

// TextPatch carries partial updates for a text region. Nil fields are left
// untouched.
type TextPatch struct {
	X, Y, W, H *float64
	Content    *string
	FontSize   *float64
	Align      *Align
	Background *bool
}

// Layer is an independent full-resolution alpha buffer receiving brush and
// eraser strokes. Buffer dimensions always match the canonical image.
type Layer struct {
	ID      string
	Name    string
	Buffer  *image.RGBA
	Visible bool
}

// Selection is an editable rectangle in canonical pixel space, set directly
// from a drag gesture.
type Selection struct {
	ID   string
	Rect image.Rectangle
}

// Store holds all annotations for one session. It is not safe for concurrent
// use; the session serializes access.
type Store struct {
	canonicalW int
	canonicalH int

	texts      []TextRegion
	editingID  string // text region currently in a drag/resize gesture
	layers     []*Layer
	active     int
	selections []Selection
}

// NewStore creates a store sized to the canonical image, with the single
// initial layer every session starts with.
func NewStore(w, h int) *Store {
	s := &Store{canonicalW: w, canonicalH: h}
	s.layers = []*Layer{s.newLayer("Layer 1")}
	return s
}

// Reset re-sizes the store for a new canonical image and drops every
// annotation, leaving one fresh layer.
func (s *Store) Reset(w, h int) {
	s.canonicalW, s.canonicalH = w, h
	s.texts = nil
	s.editingID = ""
	s.selections = nil
	s.layers = []*Layer{s.newLayer("Layer 1")}
	s.active = 0
}

func (s *Store) newLayer(name string) *Layer {
	w, h := s.canonicalW, s.canonicalH
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Layer{
		ID:      uuid.NewString(),
		Name:    name,
		Buffer:  image.NewRGBA(image.Rect(0, 0, w, h)),
		Visible: true,
	}
}

// CanonicalSize returns the resolution the store's layers are sized to.
func (s *Store) CanonicalSize() (int, int) { return s.canonicalW, s.canonicalH }

// AddText places a text region and returns its assigned ID. Empty content is
// rejected by the caller (input validation), not here.
func (s *Store) AddText(t TextRegion) string {
	t.ID = uuid.NewString()
	if t.Align == "" {
		t.Align = AlignLeft
	}
	s.texts = append(s.texts, t)
	return t.ID
}

// UpdateText applies a partial update to the identified region. Returns false
// when the ID is unknown.
func (s *Store) UpdateText(id string, p TextPatch) bool {
	for i := range s.texts {
		if s.texts[i].ID != id {
			continue
		}
		t := &s.texts[i]
		if p.X != nil {
			t.X = *p.X
		}
		if p.Y != nil {
			t.Y = *p.Y
		}
		if p.W != nil {
			t.W = *p.W
		}
		if p.H != nil {
			t.H = *p.H
		}
		if p.Content != nil {
			t.Content = *p.Content
		}
		if p.FontSize != nil {
			t.FontSize = *p.FontSize
		}
		if p.Align != nil {
			t.Align = *p.Align
		}
		if p.Background != nil {
			t.HasBackground = *p.Background
		}
		return true
	}
	return false
}

// RemoveText deletes the identified region. If a drag or resize gesture is in
// progress on it, the gesture is aborted rather than left dangling.
func (s *Store) RemoveText(id string) bool {
	for i := range s.texts {
		if s.texts[i].ID == id {
			if s.editingID == id {
				s.editingID = ""
			}
			s.texts = append(s.texts[:i], s.texts[i+1:]...)
			return true
		}
	}
	return false
}

// BeginTextGesture marks a region as being dragged or resized.
func (s *Store) BeginTextGesture(id string) { s.editingID = id }

// EndTextGesture clears the in-progress gesture marker.
func (s *Store) EndTextGesture() { s.editingID = "" }

// EditingText returns the ID of the region under an active gesture, if any.
func (s *Store) EditingText() string { return s.editingID }

// Texts returns the placed text regions in placement order.
func (s *Store) Texts() []TextRegion { return s.texts }

// TextByID looks up a placed region.
func (s *Store) TextByID(id string) (TextRegion, bool) {
	for _, t := range s.texts {
		if t.ID == id {
			return t, true
		}
	}
	return TextRegion{}, false
}

// AddLayer appends a new empty layer and makes it active.
func (s *Store) AddLayer() *Layer {
	l := s.newLayer(layerName(len(s.layers) + 1))
	s.layers = append(s.layers, l)
	s.active = len(s.layers) - 1
	return l
}

// SetActiveLayer selects which layer receives strokes. Out-of-range indexes
// are ignored.
func (s *Store) SetActiveLayer(i int) {
	if i >= 0 && i < len(s.layers) {
		s.active = i
	}
}

// ActiveLayer returns the layer currently receiving strokes.
func (s *Store) ActiveLayer() *Layer {
	return s.layers[s.active]
}

// Layers returns all layers in compositing order (later layers on top).
func (s *Store) Layers() []*Layer { return s.layers }

// ClearLayer wipes the buffer of the indexed layer.
func (s *Store) ClearLayer(i int) {
	if i < 0 || i >= len(s.layers) {
		return
	}
	buf := s.layers[i].Buffer
	for p := range buf.Pix {
		buf.Pix[p] = 0
	}
}

// RemoveLayer deletes the indexed layer. The last remaining layer is cleared
// instead of removed: a session always has at least one layer.
func (s *Store) RemoveLayer(i int) {
	if i < 0 || i >= len(s.layers) {
		return
	}
	if len(s.layers) == 1 {
		s.ClearLayer(i)
		return
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	if s.active >= len(s.layers) {
		s.active = len(s.layers) - 1
	} else if s.active > i {
		s.active--
	}
}

// ToggleLayerVisibility flips whether the indexed layer is composited.
func (s *Store) ToggleLayerVisibility(i int) {
	if i >= 0 && i < len(s.layers) {
		s.layers[i].Visible = !s.layers[i].Visible
	}
}

// AddSelection records an editable rectangle in canonical space. Degenerate
// drags (under 4px either way) are discarded, matching the drag gesture's
// minimum. Returns the assigned ID, or "" when discarded.
func (s *Store) AddSelection(r image.Rectangle) string {
	r = r.Canon().Intersect(image.Rect(0, 0, s.canonicalW, s.canonicalH))
	if r.Dx() < 4 || r.Dy() < 4 {
		return ""
	}
	sel := Selection{ID: uuid.NewString(), Rect: r}
	s.selections = append(s.selections, sel)
	return sel.ID
}

// Selections returns the current selection rectangles.
func (s *Store) Selections() []Selection { return s.selections }

// SnapshotSelections copies the current selection set. Generation flows
// snapshot before the network call so a merge never reads live state.
func (s *Store) SnapshotSelections() []Selection {
	out := make([]Selection, len(s.selections))
	copy(out, s.selections)
	return out
}

// ClearSelections drops all selection rectangles.
func (s *Store) ClearSelections() { s.selections = nil }

func layerName(n int) string {
	return fmt.Sprintf("Layer %d", n)
}
