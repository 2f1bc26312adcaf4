package main

import (
	"context"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
	"github.com/ConfabulousDev/lovelog/internal/db"
	"github.com/ConfabulousDev/lovelog/internal/diagnosis"
	"github.com/ConfabulousDev/lovelog/internal/line"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/storage"
	"github.com/ConfabulousDev/lovelog/internal/vocab"
)

// deps are the long-lived clients shared by the server and the worker.
type deps struct {
	db    *db.DB
	store *storage.S3Storage
	line  *line.Client
	nouns analytics.NounExtractor
}

// connectDeps opens every backing service, or exits.
func connectDeps(cfg ServiceConfig) *deps {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database, err := db.ConnectWithRetry(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	if cfg.MigrateOnStart {
		if err := db.RunMigrations(database.Conn()); err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
		logger.Info("migrations applied")
	}

	store, err := storage.NewS3Storage(cfg.S3Config)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}

	lineClient, err := line.NewClient(cfg.ChannelToken)
	if err != nil {
		logger.Fatal("failed to initialize LINE client", "error", err)
	}

	d := &deps{db: database, store: store, line: lineClient}
	if cfg.VocabEnabled {
		start := time.Now()
		extractor, err := vocab.New()
		if err != nil {
			logger.Warn("noun extraction disabled", "error", err)
		} else {
			d.nouns = extractor
			logger.Info("noun extractor loaded", "took", time.Since(start))
		}
	}
	return d
}

func (d *deps) newService(cfg ServiceConfig) *diagnosis.Service {
	return diagnosis.NewService(d.line, d.store, d.db, diagnosis.Config{
		MaxLogBytes: cfg.MaxLogBytes,
		Nouns:       d.nouns,
	})
}

func (d *deps) Close() {
	if err := d.db.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}
