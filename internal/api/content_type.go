package api

import (
	"mime"
	"net/http"
	"slices"

	"github.com/ConfabulousDev/lovelog/internal/logger"
)

// requireContentType rejects POST/PUT/PATCH requests whose media type is not
// one of allowed. Parameters such as charset are ignored.
func requireContentType(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			log := logger.Ctx(r.Context())
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				log.Info("Request missing Content-Type header", "method", r.Method, "path", r.URL.Path)
				respondError(w, http.StatusUnsupportedMediaType, "Content-Type header required")
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || !slices.Contains(allowed, mediaType) {
				log.Info("Request with invalid Content-Type", "method", r.Method, "path", r.URL.Path, "content_type", contentType)
				respondError(w, http.StatusUnsupportedMediaType, "Unsupported Content-Type")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
