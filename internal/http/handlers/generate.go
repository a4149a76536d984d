package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eikona/internal/imagegen"
	"eikona/internal/middleware"
	"eikona/internal/providers/genai"
	"eikona/internal/providers/video"
	"eikona/internal/storage"
	"eikona/pkg/zip"
)

// roundTimeout bounds one whole generation round, all slots included.
const roundTimeout = 5 * time.Minute

type generateRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

// Generate snapshots the session and starts an async candidate round. The
// response returns immediately; candidates land in their slots as workers
// finish and are observed via SessionState or CandidateImage.
// POST /v1/sessions/{id}/generate.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	count := req.Count
	if count < 1 || count > a.Cfg.CandidateCount {
		count = a.Cfg.CandidateCount
	}

	round, err := sess.BeginRound(count)
	if err != nil {
		a.domainError(w, err)
		return
	}

	regions := make([]imagegen.Region, 0, len(round.Regions))
	for _, reg := range round.Regions {
		regions = append(regions, imagegen.Region{Kind: reg.Kind, Rect: reg.Rect, Content: reg.Content})
	}
	instruction := imagegen.BuildInstruction(imagegen.Request{
		Prompt:  req.Prompt,
		Regions: regions,
		Width:   round.Width,
		Height:  round.Height,
		HasMask: round.HasMask,
		Locale:  middleware.LocaleFromContext(r.Context()),
	})

	editReq := genai.EditRequest{
		Instruction: instruction,
		Guide:       round.Guide,
		Mask:        round.Mask,
		Refs:        round.Refs,
		Width:       round.Width,
		Height:      round.Height,
		RequestID:   middleware.RequestIDFromContext(r.Context()),
	}

	sessionID := sess.ID
	token := round.Token
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), roundTimeout)
		defer cancel()
		a.Pool.Run(ctx, editReq, count, func(index int, res *genai.EditResult, err error) {
			if err != nil {
				sess.SetCandidate(token, index, nil, "", err)
				return
			}
			sess.SetCandidate(token, index, res.Data, res.MIME, nil)
			a.persistCandidate(ctx, sessionID, token, index, res)
		})
	}()

	a.json(w, http.StatusAccepted, map[string]any{"token": token, "slots": count})
}

// persistCandidate writes a finished candidate through the file store when
// one is configured. Failures are logged, never surfaced: storage is a
// convenience copy, the session slot is authoritative.
func (a *App) persistCandidate(ctx context.Context, sessionID string, token uint64, index int, res *genai.EditResult) {
	if a.Files == nil {
		return
	}
	key := storage.CandidateKey(sessionID, token, index, ".png")
	if _, err := a.Files.Write(ctx, key, res.Data); err != nil {
		a.Log.Warn().Err(err).Str("key", key).Msg("failed to persist candidate")
	}
}

// CandidateImage streams one finished candidate.
// GET /v1/sessions/{id}/candidates/{index}.
func (a *App) CandidateImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid candidate index")
		return
	}
	cands := sess.Candidates()
	if index < 0 || index >= len(cands) || !cands[index].Done || len(cands[index].Data) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "candidate not available")
		return
	}
	mime := cands[index].MIME
	if mime == "" {
		mime = "image/png"
	}
	w.Header().Set("Content-Type", mime)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cands[index].Data)
}

// Apply merges a candidate into the base image through the round's region
// snapshot.
// POST /v1/sessions/{id}/apply/{index}.
func (a *App) Apply(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid candidate index")
		return
	}
	if err := sess.ApplyCandidate(index); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.stateResponse(sess))
}

// EditFromResult promotes a candidate to a fresh base image.
// POST /v1/sessions/{id}/edit-from-result/{index}.
func (a *App) EditFromResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid candidate index")
		return
	}
	if err := sess.EditFromResult(index); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, a.stateResponse(sess))
}

// ResultsZip bundles every finished candidate of the current round.
// GET /v1/sessions/{id}/results.zip.
func (a *App) ResultsZip(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var assets []zip.Asset
	for i, c := range sess.Candidates() {
		if !c.Done || len(c.Data) == 0 {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: zip.CandidateFilename(i, c.MIME),
			MIME:     c.MIME,
			Data:     c.Data,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no finished candidates")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="results.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(zip.ArchiveAssets(assets))
}

// VideoGenerate animates the session's current frame with a motion prompt.
// POST /v1/sessions/{id}/video with {"prompt": "..."}.
func (a *App) VideoGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if a.Video == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "video generation is not configured")
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	guide, err := sess.Guide()
	if err != nil {
		a.domainError(w, err)
		return
	}
	asset, err := a.Video.Generate(r.Context(), video.GenerateRequest{
		Prompt:    req.Prompt,
		Image:     guide,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		a.Log.Error().Err(err).Str("session_id", sess.ID).Msg("video generation failed")
		a.error(w, http.StatusBadGateway, "provider", "video generation failed")
		return
	}
	if len(asset.Data) > 0 {
		w.Header().Set("Content-Type", asset.Format)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(asset.Data)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"url": asset.URL, "format": asset.Format})
}
