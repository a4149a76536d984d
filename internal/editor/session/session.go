// Package session holds the server-side editing state for one uploaded image:
// the canonical base frame, its annotations, the zoom transform, and the
// in-flight generation slots. A session serializes every operation behind one
// mutex; the packages underneath it are free of locking.
package session

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"eikona/internal/domain"
	"eikona/internal/editor/annot"
	"eikona/internal/editor/compose"
	"eikona/internal/editor/export"
	"eikona/internal/editor/geom"
	"eikona/internal/editor/merge"
	"eikona/internal/editor/region"
	"eikona/internal/imaging"
)

// Reference image limits, matching the generation provider's input budget.
const (
	MaxRefs     = 4
	MaxRefBytes = 15 << 20
)

// Candidate is one slot of a generation round. Index is fixed when the round
// starts; results land in their slot regardless of completion order.
type Candidate struct {
	Data []byte
	MIME string
	Err  string
	Done bool
}

// Session is the editing state for one image.
type Session struct {
	ID string

	mu        sync.Mutex
	base      *image.RGBA
	store     *annot.Store
	transform geom.Transform

	renderer *compose.Renderer
	exporter *export.Exporter
	res      *region.Resolver

	// generation round state
	token      uint64
	candidates []Candidate
	snapshot   []image.Rectangle
	roundStale bool

	refs [][]byte

	createdAt  time.Time
	lastAccess time.Time
}

func newSession(res *region.Resolver, targetLong, maxLong int) *Session {
	renderer := compose.NewRenderer(res)
	return &Session{
		ID:         uuid.NewString(),
		store:      annot.NewStore(1, 1),
		transform:  geom.NewTransform(1, 1, 1),
		renderer:   renderer,
		exporter:   export.NewExporter(targetLong, maxLong, renderer, res),
		res:        res,
		createdAt:  time.Now(),
		lastAccess: time.Now(),
	}
}

func (s *Session) touch() { s.lastAccess = time.Now() }

// LoadBase decodes image bytes and makes them the session's canonical frame.
// All annotations are dropped and any in-flight generation round is
// invalidated. A decode failure leaves the session untouched.
func (s *Session) LoadBase(data []byte) error {
	img, err := imaging.Decode(data)
	if err != nil {
		return err
	}
	rgba := imaging.ToRGBA(img)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptBase(rgba)
	s.touch()
	return nil
}

// adoptBase swaps in a new canonical frame. Callers hold s.mu. Any round in
// flight is superseded: its remaining candidates were produced against the
// old base and can no longer be applied.
func (s *Session) adoptBase(rgba *image.RGBA) {
	b := rgba.Bounds()
	s.base = rgba
	s.store.Reset(b.Dx(), b.Dy())
	s.transform = geom.NewTransform(b.Dx(), b.Dy(), 1)
	s.token++
	s.roundStale = len(s.candidates) > 0
	s.candidates = nil
	s.snapshot = nil
}

// HasBase reports whether an image has been loaded.
func (s *Session) HasBase() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base != nil
}

// CanonicalSize returns the loaded image's resolution.
func (s *Session) CanonicalSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CanonicalSize()
}

// SetScale updates the zoom, clamped to the interactive range.
func (s *Session) SetScale(scale float64) geom.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = geom.NewTransform(s.transform.CanonicalW, s.transform.CanonicalH, scale)
	s.touch()
	return s.transform
}

// Transform returns the current display transform.
func (s *Session) Transform() geom.Transform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transform
}

// AddText places a text region (display space) and returns its ID.
func (s *Session) AddText(t annot.TextRegion) (string, error) {
	if t.Content == "" {
		return "", domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.store.AddText(t), nil
}

// UpdateText patches a text region.
func (s *Session) UpdateText(id string, p annot.TextPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if !s.store.UpdateText(id, p) {
		return domain.ErrNotFound
	}
	return nil
}

// RemoveText deletes a text region.
func (s *Session) RemoveText(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if !s.store.RemoveText(id) {
		return domain.ErrNotFound
	}
	return nil
}

// Texts lists the placed text regions.
func (s *Session) Texts() []annot.TextRegion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]annot.TextRegion(nil), s.store.Texts()...)
}

// BeginTextGesture and EndTextGesture track the region under a drag or
// resize, which the delete key targets first.
func (s *Session) BeginTextGesture(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.BeginTextGesture(id)
}

func (s *Session) EndTextGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.EndTextGesture()
}

// ApplyStroke paints or erases on the active layer, in canonical coordinates.
func (s *Session) ApplyStroke(st annot.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ApplyStroke(st)
	s.touch()
}

// Layer operations delegate to the store under the session lock.

func (s *Session) AddLayer() *annot.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.store.AddLayer()
}

func (s *Session) SetActiveLayer(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetActiveLayer(i)
}

func (s *Session) RemoveLayer(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.RemoveLayer(i)
	s.touch()
}

func (s *Session) ClearLayer(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ClearLayer(i)
	s.touch()
}

func (s *Session) ToggleLayerVisibility(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ToggleLayerVisibility(i)
}

// Layers returns layer metadata without buffers.
func (s *Session) Layers() []annot.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]annot.Layer, 0, len(s.store.Layers()))
	for _, l := range s.store.Layers() {
		out = append(out, annot.Layer{ID: l.ID, Name: l.Name, Visible: l.Visible})
	}
	return out
}

// AddSelection records an editable rectangle in canonical space.
func (s *Session) AddSelection(r image.Rectangle) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.store.AddSelection(r)
}

// Selections returns the current selection set.
func (s *Session) Selections() []annot.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SnapshotSelections()
}

// ClearSelections drops every selection.
func (s *Session) ClearSelections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.ClearSelections()
	s.touch()
}

// DeleteKey applies the delete gesture, in priority order: a text region
// under an active gesture is removed; failing that, every text region whose
// resolved box intersects a selection is removed; failing that, selections
// are clone-filled from the base to cover raster text. With nothing
// applicable it is a no-op.
func (s *Session) DeleteKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if id := s.store.EditingText(); id != "" {
		s.store.RemoveText(id)
		return
	}

	sels := s.store.Selections()
	if len(sels) == 0 {
		return
	}

	var hit []string
	for _, t := range s.store.Texts() {
		box := s.res.ResolveText(t, s.transform).Round()
		for _, sel := range sels {
			if box.Overlaps(sel.Rect) {
				hit = append(hit, t.ID)
				break
			}
		}
	}
	if len(hit) > 0 {
		for _, id := range hit {
			s.store.RemoveText(id)
		}
		return
	}

	if s.base != nil {
		s.store.CloneFill(s.base, sels)
	}
}

// AddRef attaches a reference image for the next generation round.
func (s *Session) AddRef(data []byte) error {
	if len(data) == 0 || len(data) > MaxRefBytes {
		return domain.ErrInvalidInput
	}
	if _, err := imaging.Decode(data); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.refs) >= MaxRefs {
		return domain.ErrInvalidInput
	}
	s.refs = append(s.refs, data)
	s.touch()
	return nil
}

// ClearRefs drops attached reference images.
func (s *Session) ClearRefs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = nil
}

// Refs returns copies of the attached reference images.
func (s *Session) Refs() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.refs))
	for i, r := range s.refs {
		out[i] = append([]byte(nil), r...)
	}
	return out
}

// Preview renders the session at its display scale as PNG.
func (s *Session) Preview(showBoxes bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, domain.ErrNoImage
	}
	img := s.renderer.Render(s.base, s.store, s.transform, compose.Options{ShowBoxes: showBoxes})
	return imaging.EncodePNG(img)
}

// Guide renders the export guide as PNG.
func (s *Session) Guide() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, domain.ErrNoImage
	}
	return imaging.EncodePNG(s.exporter.Guide(s.base, s.store, s.transform))
}

// Mask renders the binary edit mask as PNG.
func (s *Session) Mask() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, domain.ErrNoImage
	}
	return imaging.EncodePNG(s.exporter.Mask(s.store, s.transform))
}

// Round is everything a generation round needs, captured atomically at start:
// guide and mask bytes, the region snapshot the eventual merge will use, and
// the token that detects staleness.
type Round struct {
	Token   uint64
	Guide   []byte
	Mask    []byte
	HasMask bool
	Refs    [][]byte
	Width   int
	Height  int
	Regions []export.Region // export pixel space, matching the mask
}

// BeginRound snapshots the session for generation and resets the candidate
// slots. Everything the async workers and the later merge need is captured
// here; the user is free to keep editing while the round runs.
func (s *Session) BeginRound(slots int) (Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return Round{}, domain.ErrNoImage
	}
	if slots < 1 {
		slots = 1
	}

	guideImg := s.exporter.Guide(s.base, s.store, s.transform)
	guide, err := imaging.EncodePNG(guideImg)
	if err != nil {
		return Round{}, err
	}

	hasMask := s.exporter.HasRegions(s.store)
	var mask []byte
	if hasMask {
		mask, err = imaging.EncodePNG(s.exporter.Mask(s.store, s.transform))
		if err != nil {
			return Round{}, err
		}
	}

	s.snapshot = s.snapshotRects()
	s.token++
	s.candidates = make([]Candidate, slots)
	s.roundStale = false
	s.touch()

	gb := guideImg.Bounds()
	return Round{
		Token:   s.token,
		Guide:   guide,
		Mask:    mask,
		HasMask: hasMask,
		Refs:    append([][]byte(nil), s.refs...),
		Width:   gb.Dx(),
		Height:  gb.Dy(),
		Regions: s.exporter.Regions(s.store, s.transform),
	}, nil
}

// snapshotRects resolves every current region to canonical space. Callers
// hold s.mu.
func (s *Session) snapshotRects() []image.Rectangle {
	var rects []image.Rectangle
	bounds := image.Rect(0, 0, s.transform.CanonicalW, s.transform.CanonicalH)
	for _, t := range s.store.Texts() {
		r := s.res.ResolveText(t, s.transform).Round().Intersect(bounds)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	for _, sel := range s.store.Selections() {
		if !sel.Rect.Empty() {
			rects = append(rects, sel.Rect)
		}
	}
	return rects
}

// SetCandidate stores a worker's result in its slot. Results from a previous
// round (stale token) are dropped.
func (s *Session) SetCandidate(token uint64, index int, data []byte, mime string, workerErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token || index < 0 || index >= len(s.candidates) {
		return
	}
	c := Candidate{Data: data, MIME: mime, Done: true}
	if workerErr != nil {
		c.Err = workerErr.Error()
		c.Data = nil
	}
	s.candidates[index] = c
}

// Candidates returns the current round's slots.
func (s *Session) Candidates() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Candidate(nil), s.candidates...)
}

func (s *Session) candidateData(index int) ([]byte, error) {
	if len(s.candidates) == 0 && s.roundStale {
		return nil, domain.ErrSessionStale
	}
	if index < 0 || index >= len(s.candidates) {
		return nil, domain.ErrNotFound
	}
	c := s.candidates[index]
	if !c.Done || len(c.Data) == 0 {
		return nil, domain.ErrNotFound
	}
	return c.Data, nil
}

// ApplyCandidate merges the indexed result into the base through the round's
// region snapshot. On success the merged frame becomes the new base and the
// session resets its annotations; on failure nothing changes.
func (s *Session) ApplyCandidate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.candidateData(index)
	if err != nil {
		return err
	}
	merged, err := merge.Apply(s.base, data, s.snapshot)
	if err != nil {
		return err
	}
	s.adoptBase(merged)
	s.touch()
	return nil
}

// EditFromResult promotes the indexed result to a fresh base, upscaling it to
// the export target long edge so follow-up rounds keep working resolution.
func (s *Session) EditFromResult(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.candidateData(index)
	if err != nil {
		return err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return err
	}
	s.adoptBase(imaging.UpscaleToLongEdge(img, s.exporter.TargetLong))
	s.touch()
	return nil
}

// LastAccess reports when the session was last used, for TTL sweeping.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}
