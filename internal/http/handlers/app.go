package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eikona/internal/domain"
	"eikona/internal/editor/session"
	"eikona/internal/infra"
	imgprov "eikona/internal/providers/image"
	"eikona/internal/providers/video"
	"eikona/internal/storage"
)

// App is the handler container: every route is a method on it.
type App struct {
	Cfg      *infra.Config
	Log      infra.Logger
	Sessions *session.Manager
	Pool     *imgprov.Pool
	Video    video.Generator
	Files    *storage.FileStore // nil when STORAGE_PATH is unset
}

func NewApp(cfg *infra.Config, log infra.Logger, sessions *session.Manager, pool *imgprov.Pool, vid video.Generator, files *storage.FileStore) *App {
	return &App{Cfg: cfg, Log: log, Sessions: sessions, Pool: pool, Video: vid, Files: files}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

// domainError maps sentinel errors onto the HTTP surface.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNoImage):
		a.error(w, http.StatusConflict, "no_image", "session has no image loaded")
	case errors.Is(err, domain.ErrDecodeFailed):
		a.error(w, http.StatusUnprocessableEntity, "decode_failed", "image payload could not be decoded")
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "30")
		a.error(w, http.StatusTooManyRequests, "rate_limited", "provider rate limit hit, cool down before retrying")
	case errors.Is(err, domain.ErrSessionStale):
		a.error(w, http.StatusConflict, "stale", "session changed since this result was produced")
	default:
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// sessionFromRequest resolves the {id} route param, writing the 404 itself.
func (a *App) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return nil, false
	}
	sess, err := a.Sessions.Get(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return sess, true
}

func (a *App) png(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
