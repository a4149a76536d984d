package infra

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiFallbackModel string
	GeminiBaseURL       string
	VeoModel            string

	// FontPath points to a TTF used for text measurement and drawing
	// (typically Noto Sans Devanagari). When empty or unreadable the editor
	// falls back to a fixed-height estimate instead of failing exports.
	FontPath string

	ExportTargetLong int
	ExportMaxLong    int
	CandidateCount   int

	StoragePath    string
	AllowedOrigins []string
	SessionTTL     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Unlike most services there are no required keys: with
// an empty Gemini API key the generation provider runs in synthetic mode, so
// the editor remains fully usable offline.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiFallbackModel: getEnv("GEMINI_FALLBACK_MODEL", "gemini-2.0-flash-exp"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:            getEnv("VEO_MODEL", "veo-3.0-generate-preview"),
		FontPath:            os.Getenv("FONT_PATH"),
		ExportTargetLong:    getEnvInt("EXPORT_TARGET_LONG", 1920),
		ExportMaxLong:       getEnvInt("EXPORT_MAX_LONG", 2048),
		CandidateCount:      getEnvInt("CANDIDATE_COUNT", 4),
		StoragePath:         os.Getenv("STORAGE_PATH"),
		AllowedOrigins:      getEnvList("ALLOWED_ORIGINS"),
		SessionTTL:          time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.ExportMaxLong < cfg.ExportTargetLong {
		cfg.ExportMaxLong = cfg.ExportTargetLong
	}
	if cfg.CandidateCount < 1 {
		cfg.CandidateCount = 1
	}
	if cfg.CandidateCount > 4 {
		cfg.CandidateCount = 4
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
