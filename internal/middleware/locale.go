package middleware

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key under which the resolved locale is stored.
var LocaleKey = localeContextKey{}

// supported lists the locales prompts can be tuned for. Nepali first so a
// bare "ne" or any ne-* tag wins over the English fallback.
var supported = []language.Tag{
	language.Make("ne"),
	language.English,
}

var matcher = language.NewMatcher(supported)

// Locale resolves the request locale from X-Locale or Accept-Language and
// stores it in the request context. Defaults to defaultLocale when nothing
// usable is sent.
func Locale(defaultLocale string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return normalize(tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf > language.No {
				return normalize(supported[idx])
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "en"
}

func normalize(tag language.Tag) string {
	base, _ := tag.Base()
	if base.String() == "ne" {
		return "ne"
	}
	return "en"
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
