// Package httpapi wires the route tree and middleware chain.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"eikona/internal/http/handlers"
	"eikona/internal/infra"
	"eikona/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, log infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Locale("en"),
	)

	// Generation endpoints get their own per-IP budget; everything else is
	// cheap local raster work.
	generateLimit := middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.SessionCreate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.SessionState)
			r.Delete("/", app.SessionDelete)
			r.Post("/image", app.SessionReplaceImage)
			r.Post("/zoom", app.SessionZoom)

			r.Get("/preview.png", app.Preview)
			r.Get("/guide.png", app.Guide)
			r.Get("/mask.png", app.Mask)

			r.Route("/texts", func(r chi.Router) {
				r.Post("/", app.TextAdd)
				r.Patch("/{textID}", app.TextUpdate)
				r.Delete("/{textID}", app.TextDelete)
				r.Post("/{textID}/gesture", app.TextGesture)
			})

			r.Post("/strokes", app.StrokeAdd)

			r.Route("/layers", func(r chi.Router) {
				r.Post("/", app.LayerAdd)
				r.Delete("/{index}", app.LayerDelete)
				r.Post("/{index}/activate", app.LayerActivate)
				r.Post("/{index}/clear", app.LayerClear)
				r.Post("/{index}/visibility", app.LayerToggle)
			})

			r.Route("/selections", func(r chi.Router) {
				r.Post("/", app.SelectionAdd)
				r.Delete("/", app.SelectionsClear)
			})

			r.Post("/delete-key", app.DeleteKey)

			r.Route("/refs", func(r chi.Router) {
				r.Post("/", app.RefAdd)
				r.Delete("/", app.RefsClear)
			})

			r.Group(func(r chi.Router) {
				r.Use(generateLimit)
				r.Post("/generate", app.Generate)
				r.Post("/video", app.VideoGenerate)
			})

			r.Get("/candidates/{index}", app.CandidateImage)
			r.Post("/apply/{index}", app.Apply)
			r.Post("/edit-from-result/{index}", app.EditFromResult)
			r.Get("/results.zip", app.ResultsZip)
		})
	})

	return r
}
