package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"eikona/internal/editor/region"
	"eikona/internal/editor/session"
	"eikona/internal/http/handlers"
	httpapi "eikona/internal/http/httpapi"
	"eikona/internal/infra"
	"eikona/internal/providers/genai"
	imgprov "eikona/internal/providers/image"
	"eikona/internal/providers/video"
	"eikona/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	res := region.LoadResolver(cfg.FontPath)
	if !res.HasMetrics() {
		logger.Warn().Str("font_path", cfg.FontPath).Msg("no usable font, text boxes use fixed-height estimates")
	}

	sessions := session.NewManager(res, cfg.ExportTargetLong, cfg.ExportMaxLong, cfg.SessionTTL, logger)

	client, err := genai.NewClient(genai.Options{
		APIKey:        cfg.GeminiAPIKey,
		BaseURL:       cfg.GeminiBaseURL,
		Model:         cfg.GeminiModel,
		FallbackModel: cfg.GeminiFallbackModel,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY not set, generation runs in synthetic mode")
	}
	pool := imgprov.NewPool(client, imgprov.DefaultConcurrency, &logger)

	var vid video.Generator
	if cfg.GeminiAPIKey != "" {
		vid = video.NewVeo(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.VeoModel)
	}

	var files *storage.FileStore
	if cfg.StoragePath != "" {
		files, err = storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open storage path")
		}
	}

	app := handlers.NewApp(cfg, logger, sessions, pool, vid, files)
	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sessions.Sweep(sweepCtx)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
