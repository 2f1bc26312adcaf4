package api

import (
	"net/http"
	"strconv"

	"github.com/ConfabulousDev/lovelog/internal/clientip"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanEnricher adds the request ID, the client IP and LINE retry count to
// the current span so traces line up with logs.
func SpanEnricher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		if span.IsRecording() {
			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				span.SetAttributes(attribute.String("request.id", reqID))
			}
			if ip := clientip.FromRequest(r).Primary; ip != "" {
				span.SetAttributes(attribute.String("client.address", ip))
			}
			if retry, err := strconv.Atoi(r.Header.Get("X-Line-Retry")); err == nil {
				span.SetAttributes(attribute.Int("line.retry", retry))
			}
		}

		next.ServeHTTP(w, r)
	})
}
