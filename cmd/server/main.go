package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/api"
	"github.com/ConfabulousDev/lovelog/internal/dedup"
	"github.com/ConfabulousDev/lovelog/internal/diagnosis"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/queue"
	"github.com/ConfabulousDev/lovelog/internal/ratelimit"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version string

// Redelivered webhook events arrive within minutes
const (
	dedupTTL        = 30 * time.Minute
	dedupMaxEntries = 10000
)

func main() {
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env")
	}

	if len(os.Args) > 1 && os.Args[1] == "worker" {
		runWorker()
		return
	}

	// Access via: fly proxy 6060:6060
	if os.Getenv("ENABLE_PPROF") == "true" {
		go startPprofServer()
	}

	// Configured via OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_HEADERS
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry", "error", err)
	} else {
		defer otelShutdown()
	}

	config := loadConfig()

	d := connectDeps(config.ServiceConfig)
	defer d.Close()

	dispatcher, drain := newDispatcher(config.ServiceConfig, d)

	deduper := dedup.NewTTLCache(dedupTTL, dedupMaxEntries)
	defer deduper.Stop()

	var limiter ratelimit.RateLimiter
	if config.RateLimitRPS > 0 {
		inMemory := ratelimit.NewInMemoryRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		defer inMemory.Stop()
		limiter = inMemory
	}

	if config.APIKey == "" {
		logger.Info("API_KEY not set, diagnosis read API disabled")
	}

	server := api.NewServer(api.Config{
		DB:             d.db,
		Storage:        d.store,
		Dispatcher:     dispatcher,
		Deduper:        deduper,
		Replier:        d.line,
		ChannelSecret:  config.ChannelSecret,
		APIKey:         config.APIKey,
		AllowedOrigins: config.AllowedOrigins,
		RateLimiter:    limiter,
		MaxLogBytes:    config.MaxLogBytes,
		Nouns:          d.nouns,
		Version:        version,
	})

	handler := otelhttp.NewHandler(server.SetupRoutes(), "lovelog-server")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", config.Port, "version", version, "queue", config.NATSURL != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("webhook events still running at shutdown", "error", err)
	}
	if err := drain(ctx); err != nil {
		logger.Error("diagnosis jobs still running at shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// newDispatcher publishes jobs to NATS when NATS_URL is set and runs them
// in-process otherwise. drain waits for accepted jobs to leave the process.
func newDispatcher(cfg ServiceConfig, d *deps) (api.Dispatcher, func(context.Context) error) {
	if cfg.NATSURL == "" {
		inline := diagnosis.NewInlineDispatcher(d.newService(cfg), cfg.JobTimeout)
		return inline, inline.Shutdown
	}

	conn, err := queue.Connect(cfg.NATSURL)
	if err != nil {
		logger.Fatal("failed to connect to nats", "error", err)
	}
	publisher := queue.NewPublisher(conn, cfg.Subject)
	return api.DispatchFunc(publisher.Publish), func(ctx context.Context) error {
		if timeout, ok := ctx.Deadline(); ok {
			if err := conn.FlushTimeout(time.Until(timeout)); err != nil {
				conn.Close()
				return err
			}
		}
		conn.Close()
		return nil
	}
}

// startPprofServer starts a pprof debug server on localhost:6060.
// It is only reachable locally, e.g. through `fly proxy 6060:6060`.
func startPprofServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))

	addr := "127.0.0.1:6060"
	logger.Info("pprof debug server starting", "addr", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("pprof server failed", "error", err)
	}
}
