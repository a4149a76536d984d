package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eikona/internal/editor/annot"
	"eikona/internal/editor/session"
)

// maxUploadBytes bounds multipart uploads (base image and references).
const maxUploadBytes = 32 << 20

// SessionCreate opens an editing session from an uploaded image.
// POST /v1/sessions, multipart field "image".
func (a *App) SessionCreate(w http.ResponseWriter, r *http.Request) {
	data, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	sess, err := a.Sessions.Create(data)
	if err != nil {
		a.domainError(w, err)
		return
	}
	cw, ch := sess.CanonicalSize()
	a.Log.Info().Str("session_id", sess.ID).Int("width", cw).Int("height", ch).Msg("session created")
	a.json(w, http.StatusCreated, map[string]any{"id": sess.ID, "width": cw, "height": ch})
}

// SessionState returns the full editable state of a session.
// GET /v1/sessions/{id}.
func (a *App) SessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, a.stateResponse(sess))
}

// SessionDelete closes a session.
// DELETE /v1/sessions/{id}.
func (a *App) SessionDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.sessionFromRequest(w, r); !ok {
		return
	}
	a.Sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// SessionReplaceImage swaps the session's base image, dropping annotations.
// POST /v1/sessions/{id}/image, multipart field "image".
func (a *App) SessionReplaceImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	data, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	if err := sess.LoadBase(data); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.stateResponse(sess))
}

// SessionZoom sets the display scale.
// POST /v1/sessions/{id}/zoom with {"scale": 1.5}.
func (a *App) SessionZoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req struct {
		Scale float64 `json:"scale"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	tr := sess.SetScale(req.Scale)
	dw, dh := tr.DisplaySize()
	a.json(w, http.StatusOK, map[string]any{"scale": tr.Scale, "display_width": dw, "display_height": dh})
}

// Preview streams the composited frame at display scale.
// GET /v1/sessions/{id}/preview.png?boxes=1.
func (a *App) Preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	data, err := sess.Preview(r.URL.Query().Get("boxes") == "1")
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.png(w, data)
}

// Guide streams the export guide image.
// GET /v1/sessions/{id}/guide.png.
func (a *App) Guide(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	data, err := sess.Guide()
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.png(w, data)
}

// Mask streams the binary edit mask.
// GET /v1/sessions/{id}/mask.png.
func (a *App) Mask(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	data, err := sess.Mask()
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.png(w, data)
}

// RefAdd attaches a reference image for the next generation round.
// POST /v1/sessions/{id}/refs, multipart field "image".
func (a *App) RefAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	data, ok := a.readUpload(w, r, "image")
	if !ok {
		return
	}
	if err := sess.AddRef(data); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"refs": len(sess.Refs())})
}

// RefsClear drops all reference images.
// DELETE /v1/sessions/{id}/refs.
func (a *App) RefsClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	sess.ClearRefs()
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return nil, false
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", field+" file required")
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read upload")
		return nil, false
	}
	return data, true
}

func (a *App) stateResponse(sess *session.Session) map[string]any {
	cw, ch := sess.CanonicalSize()
	tr := sess.Transform()
	dw, dh := tr.DisplaySize()

	texts := sess.Texts()
	textItems := make([]map[string]any, 0, len(texts))
	for _, t := range texts {
		textItems = append(textItems, textResponse(t))
	}

	layers := sess.Layers()
	layerItems := make([]map[string]any, 0, len(layers))
	for _, l := range layers {
		layerItems = append(layerItems, map[string]any{"id": l.ID, "name": l.Name, "visible": l.Visible})
	}

	sels := sess.Selections()
	selItems := make([]map[string]any, 0, len(sels))
	for _, s := range sels {
		selItems = append(selItems, map[string]any{
			"id": s.ID,
			"x":  s.Rect.Min.X, "y": s.Rect.Min.Y,
			"w": s.Rect.Dx(), "h": s.Rect.Dy(),
		})
	}

	return map[string]any{
		"id":             sess.ID,
		"width":          cw,
		"height":         ch,
		"scale":          tr.Scale,
		"display_width":  dw,
		"display_height": dh,
		"texts":          textItems,
		"layers":         layerItems,
		"selections":     selItems,
		"refs":           len(sess.Refs()),
		"candidates":     candidateItems(sess.Candidates()),
	}
}

func textResponse(t annot.TextRegion) map[string]any {
	return map[string]any{
		"id":             t.ID,
		"x":              t.X,
		"y":              t.Y,
		"w":              t.W,
		"h":              t.H,
		"content":        t.Content,
		"font_size":      t.FontSize,
		"align":          string(t.Align),
		"has_background": t.HasBackground,
	}
}

func candidateItems(cands []session.Candidate) []map[string]any {
	items := make([]map[string]any, 0, len(cands))
	for i, c := range cands {
		item := map[string]any{"index": i, "done": c.Done, "ok": c.Done && c.Err == "" && len(c.Data) > 0}
		if c.Err != "" {
			item["error"] = c.Err
		}
		items = append(items, item)
	}
	return items
}
