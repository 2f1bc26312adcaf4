package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/clientip"
	"github.com/ConfabulousDev/lovelog/internal/logger"
)

// Maximum length for error messages in logs
const maxErrorMessageLength = 200

// FlyLogger logs one structured line per request through the
// request-scoped logger. clientip.Middleware and logger.Middleware must run
// first.
//
// Request and response bodies are never logged, except the error message
// of 4xx responses, which the handlers write themselves.
func FlyLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default if WriteHeader is never called
		}

		next.ServeHTTP(lrw, r)

		clientIP := clientip.FromRequest(r).Primary
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", lrw.statusCode,
			"bytes", lrw.bytesWritten,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP,
		}
		if region := r.Header.Get("Fly-Region"); region != "" {
			attrs = append(attrs, "region", sanitizeLogValue(region))
		}
		if retry := r.Header.Get("X-Line-Retry"); retry != "" {
			attrs = append(attrs, "line_retry", sanitizeLogValue(retry))
		}
		if lrw.statusCode >= 400 && lrw.statusCode < 500 && len(lrw.body) > 0 {
			if errMsg := extractErrorMessage(lrw.body); errMsg != "" {
				attrs = append(attrs, "err", errMsg)
			}
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			ua = sanitizeLogValue(ua)
			if runes := []rune(ua); len(runes) > 100 {
				ua = string(runes[:100]) + "..."
			}
			attrs = append(attrs, "ua", ua)
		}

		log := logger.Ctx(r.Context())
		if lrw.statusCode >= 500 {
			log.Error("request", attrs...)
		} else {
			log.Info("request", attrs...)
		}
	})
}

// sanitizeLogValue replaces control characters with spaces.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 32 || r == 127 {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// extractErrorMessage pulls the message out of {"error": "..."} bodies, or
// uses the plain text body, truncated to maxErrorMessageLength runes.
func extractErrorMessage(body []byte) string {
	var msg string

	var jsonErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &jsonErr); err == nil && jsonErr.Error != "" {
		msg = jsonErr.Error
	} else {
		msg = strings.TrimSpace(string(body))
	}

	msg = sanitizeLogValue(msg)
	if runes := []rune(msg); len(runes) > maxErrorMessageLength {
		msg = string(runes[:maxErrorMessageLength]) + "..."
	}
	return msg
}

// loggingResponseWriter captures status code, bytes written and the start
// of 4xx bodies.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
	body         []byte
	wroteHeader  bool
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	if !lrw.wroteHeader {
		lrw.statusCode = code
		lrw.wroteHeader = true
	}
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.wroteHeader = true
	if lrw.statusCode >= 400 && lrw.statusCode < 500 {
		maxCapture := maxErrorMessageLength + 50
		if remaining := maxCapture - len(lrw.body); remaining > 0 {
			lrw.body = append(lrw.body, b[:min(len(b), remaining)]...)
		}
	}

	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}
