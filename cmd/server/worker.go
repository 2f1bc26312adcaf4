package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/ConfabulousDev/lovelog/internal/queue"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/nats-io/nats.go"
)

// drainTimeout bounds how long the worker waits for in-flight jobs on exit
const drainTimeout = 3 * time.Minute

// runWorker consumes file jobs published by servers running with NATS_URL.
func runWorker() {
	logger.Info("starting diagnosis worker")

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry for worker", "error", err)
	} else {
		defer otelShutdown()
	}

	cfg := loadWorkerConfig()
	logger.Info("worker configuration loaded",
		"subject", cfg.Subject,
		"job_timeout", cfg.JobTimeout,
		"max_log_bytes", cfg.MaxLogBytes,
		"vocab", cfg.VocabEnabled,
	)

	d := connectDeps(cfg)
	defer d.Close()
	svc := d.newService(cfg)

	conn, err := queue.Connect(cfg.NATSURL)
	if err != nil {
		logger.Fatal("failed to connect to nats", "error", err)
	}

	closed := make(chan struct{})
	conn.SetClosedHandler(func(*nats.Conn) { close(closed) })

	_, err = queue.Subscribe(conn, cfg.Subject, func(ctx context.Context, job models.FileJob) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
		return svc.Process(ctx, job)
	})
	if err != nil {
		logger.Fatal("failed to subscribe", "error", err)
	}
	logger.Info("worker subscribed", "subject", cfg.Subject, "group", queue.WorkerGroup)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received, draining worker")
	if err := conn.Drain(); err != nil {
		logger.Error("failed to drain nats connection", "error", err)
		conn.Close()
	}

	select {
	case <-closed:
	case <-time.After(drainTimeout):
		logger.Error("drain timed out, jobs may have been interrupted")
		conn.Close()
	}
	logger.Info("worker stopped")
}
