package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
	"github.com/ConfabulousDev/lovelog/internal/clientip"
	"github.com/ConfabulousDev/lovelog/internal/dedup"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/ConfabulousDev/lovelog/internal/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// Request body limits
const (
	MaxBodyM = 1 * 1024 * 1024  // 1 MB - LINE webhook callbacks
	MaxBodyL = 16 * 1024 * 1024 // 16 MB - compressed talk logs
)

// DefaultMaxLogBytes caps an uploaded talk log after decompression.
const DefaultMaxLogBytes = 5 << 20

// DiagnosisStore is the part of the database the handlers use.
type DiagnosisStore interface {
	Ping(ctx context.Context) error
	GetDiagnosis(ctx context.Context, id uuid.UUID) (*models.Diagnosis, error)
	ListDiagnosesByUser(ctx context.Context, lineUserID string, limit int) ([]models.DiagnosisSummary, error)
	CountDiagnosesByUser(ctx context.Context, lineUserID string) (int, error)
	DeleteDiagnosis(ctx context.Context, id uuid.UUID) (*string, error)
}

// ObjectStore removes archived logs.
type ObjectStore interface {
	Delete(ctx context.Context, key string) error
}

// Dispatcher hands a file job to whatever runs diagnoses, inline or queued.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.FileJob) error
}

// DispatchFunc adapts an ordinary function to Dispatcher.
type DispatchFunc func(ctx context.Context, job models.FileJob) error

// Dispatch calls f(ctx, job).
func (f DispatchFunc) Dispatch(ctx context.Context, job models.FileJob) error {
	return f(ctx, job)
}

// Replier answers webhook events through their reply token.
type Replier interface {
	ReplyText(ctx context.Context, replyToken string, texts ...string) error
}

// Config holds the server's dependencies. DB and Storage may be nil, in
// which case the diagnosis routes are not mounted.
type Config struct {
	DB         DiagnosisStore
	Storage    ObjectStore
	Dispatcher Dispatcher
	Deduper    dedup.Deduper
	Replier    Replier

	ChannelSecret  string
	APIKey         string
	AllowedOrigins []string

	// RateLimiter guards the public analyze endpoints. Nil disables it.
	RateLimiter ratelimit.RateLimiter

	MaxLogBytes int64
	Nouns       analytics.NounExtractor
	Version     string

	// Now anchors analyses; nil means time.Now.
	Now func() time.Time
}

// Server holds dependencies for API handlers
type Server struct {
	cfg Config
	wg  sync.WaitGroup // webhook events still being handled
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = DefaultMaxLogBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{cfg: cfg}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(clientip.Middleware)
	r.Use(logger.Middleware)
	r.Use(FlyLogger)
	r.Use(middleware.Recoverer)
	r.Use(SpanEnricher)

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleRoot)

	if s.cfg.ChannelSecret != "" && s.cfg.Dispatcher != nil {
		r.Post("/line/webhook", withMaxBody(MaxBodyM, s.handleWebhook))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.RateLimiter != nil {
				r.Use(ratelimit.Middleware(s.cfg.RateLimiter, nil))
			}
			r.Use(requireContentType("text/plain", "multipart/form-data", "application/octet-stream"))
			r.Use(maxBody(MaxBodyL))
			r.Use(decompressMiddleware(s.cfg.MaxLogBytes))
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/analyze/text", s.handleAnalyzeText)
		})

		if s.cfg.DB != nil && s.cfg.APIKey != "" {
			r.Group(func(r chi.Router) {
				r.Use(requireAPIKey(s.cfg.APIKey))
				r.Get("/diagnoses/{id}", s.handleGetDiagnosis)
				r.Delete("/diagnoses/{id}", s.handleDeleteDiagnosis)
				r.Get("/users/{lineUserID}/diagnoses", s.handleListDiagnoses)
			})
		}
	})

	return r
}

// Shutdown waits for webhook events accepted before the listener closed.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleHealth reports ok, or 503 when the database is unreachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.DB.Ping(ctx); err != nil {
			logger.Ctx(r.Context()).Error("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleRoot returns API info
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "lovelog",
		"version": s.cfg.Version,
	})
}

// withMaxBody caps the request body at limit bytes. Reads past the limit
// fail with *http.MaxBytesError.
func withMaxBody(limit int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next(w, r)
	}
}

// maxBody is withMaxBody as router middleware
func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return withMaxBody(limit, next.ServeHTTP)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
