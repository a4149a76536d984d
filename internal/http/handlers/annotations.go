package handlers

import (
	"encoding/json"
	"image"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/geom"
)

type textRequest struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	W             float64 `json:"w"`
	H             float64 `json:"h"`
	Content       string  `json:"content"`
	FontSize      float64 `json:"font_size"`
	Align         string  `json:"align"`
	HasBackground bool    `json:"has_background"`
}

// TextAdd places a text region at display coordinates.
// POST /v1/sessions/{id}/texts.
func (a *App) TextAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id, err := sess.AddText(annot.TextRegion{
		X: req.X, Y: req.Y, W: req.W, H: req.H,
		Content:       req.Content,
		FontSize:      req.FontSize,
		Align:         annot.NormalizeAlign(req.Align),
		HasBackground: req.HasBackground,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"id": id})
}

type textPatchRequest struct {
	X             *float64 `json:"x"`
	Y             *float64 `json:"y"`
	W             *float64 `json:"w"`
	H             *float64 `json:"h"`
	Content       *string  `json:"content"`
	FontSize      *float64 `json:"font_size"`
	Align         *string  `json:"align"`
	HasBackground *bool    `json:"has_background"`
}

// TextUpdate patches a text region; absent fields are untouched.
// PATCH /v1/sessions/{id}/texts/{textID}.
func (a *App) TextUpdate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req textPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	patch := annot.TextPatch{
		X: req.X, Y: req.Y, W: req.W, H: req.H,
		Content:    req.Content,
		FontSize:   req.FontSize,
		Background: req.HasBackground,
	}
	if req.Align != nil {
		al := annot.NormalizeAlign(*req.Align)
		patch.Align = &al
	}
	if err := sess.UpdateText(chi.URLParam(r, "textID"), patch); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TextDelete removes a text region.
// DELETE /v1/sessions/{id}/texts/{textID}.
func (a *App) TextDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if err := sess.RemoveText(chi.URLParam(r, "textID")); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TextGesture marks or clears the region under a drag/resize gesture, which
// the delete key targets first.
// POST /v1/sessions/{id}/texts/{textID}/gesture with {"active": true}.
func (a *App) TextGesture(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Active {
		sess.BeginTextGesture(chi.URLParam(r, "textID"))
	} else {
		sess.EndTextGesture()
	}
	w.WriteHeader(http.StatusNoContent)
}

type strokeRequest struct {
	Points []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"points"`
	Size   float64 `json:"size"`
	Color  string  `json:"color"`
	Eraser bool    `json:"eraser"`
}

// StrokeAdd paints one freehand stroke on the active layer, in canonical
// coordinates.
// POST /v1/sessions/{id}/strokes.
func (a *App) StrokeAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req strokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Points) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "stroke needs at least one point")
		return
	}
	st := annot.Stroke{Size: req.Size, Color: req.Color, Eraser: req.Eraser}
	if st.Color == "" {
		st.Color = "#ffffff"
	}
	for _, p := range req.Points {
		st.Points = append(st.Points, geom.Point{X: p.X, Y: p.Y})
	}
	sess.ApplyStroke(st)
	w.WriteHeader(http.StatusNoContent)
}

// LayerAdd appends a fresh layer and makes it active.
// POST /v1/sessions/{id}/layers.
func (a *App) LayerAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	l := sess.AddLayer()
	a.json(w, http.StatusCreated, map[string]any{"id": l.ID, "name": l.Name})
}

// LayerActivate selects which layer receives strokes.
// POST /v1/sessions/{id}/layers/{index}/activate.
func (a *App) LayerActivate(w http.ResponseWriter, r *http.Request) {
	a.layerOp(w, r, func(sess sessionOps, i int) { sess.SetActiveLayer(i) })
}

// LayerClear wipes a layer's pixels.
// POST /v1/sessions/{id}/layers/{index}/clear.
func (a *App) LayerClear(w http.ResponseWriter, r *http.Request) {
	a.layerOp(w, r, func(sess sessionOps, i int) { sess.ClearLayer(i) })
}

// LayerToggle flips a layer's visibility.
// POST /v1/sessions/{id}/layers/{index}/visibility.
func (a *App) LayerToggle(w http.ResponseWriter, r *http.Request) {
	a.layerOp(w, r, func(sess sessionOps, i int) { sess.ToggleLayerVisibility(i) })
}

// LayerDelete removes a layer; the last one is cleared instead.
// DELETE /v1/sessions/{id}/layers/{index}.
func (a *App) LayerDelete(w http.ResponseWriter, r *http.Request) {
	a.layerOp(w, r, func(sess sessionOps, i int) { sess.RemoveLayer(i) })
}

type sessionOps interface {
	SetActiveLayer(int)
	ClearLayer(int)
	ToggleLayerVisibility(int)
	RemoveLayer(int)
}

func (a *App) layerOp(w http.ResponseWriter, r *http.Request, op func(sessionOps, int)) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid layer index")
		return
	}
	op(sess, index)
	w.WriteHeader(http.StatusNoContent)
}

type selectionRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// SelectionAdd records an editable rectangle in canonical space. Degenerate
// drags return 200 with no id rather than an error.
// POST /v1/sessions/{id}/selections.
func (a *App) SelectionAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	id := sess.AddSelection(image.Rect(req.X, req.Y, req.X+req.W, req.Y+req.H))
	if id == "" {
		a.json(w, http.StatusOK, map[string]any{"id": nil, "discarded": true})
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"id": id})
}

// SelectionsClear drops every selection.
// DELETE /v1/sessions/{id}/selections.
func (a *App) SelectionsClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	sess.ClearSelections()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteKey applies the delete gesture: active-gesture text first, then texts
// intersecting selections, then clone-filling selections. Always succeeds.
// POST /v1/sessions/{id}/delete-key.
func (a *App) DeleteKey(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	sess.DeleteKey()
	w.WriteHeader(http.StatusNoContent)
}
