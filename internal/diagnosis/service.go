// Package diagnosis turns a talk log uploaded to the LINE bot into a
// compatibility diagnosis: download, archive, analyze, store, reply.
package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
	"github.com/ConfabulousDev/lovelog/internal/db"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
)

var tracer = otel.Tracer("lovelog/diagnosis")

// Texts pushed to the user when a job fails.
const (
	FallbackText    = "⚠️ 相性診断の処理中にエラーが発生しました。\n\n💕 お時間をおいて再度お試しください。"
	ReadFailedText  = "⚠️ ファイルの読み込み中にエラーが発生しました"
	TooLargeText    = "⚠️ ファイルが大きすぎます。期間を短くしたトーク履歴を送ってください。"
	ParseFailedText = "⚠️ トーク履歴の解析に失敗しました"
)

const (
	DefaultMaxLogBytes     = 5 << 20
	DefaultDownloadTimeout = 5 * time.Second
)

// ErrNoMessages means the uploaded file contained no recognisable talk lines
var ErrNoMessages = errors.New("no messages found in talk log")

// Messenger is the LINE side of a job.
type Messenger interface {
	DownloadContent(ctx context.Context, messageID string, limit int64) ([]byte, error)
	DisplayName(ctx context.Context, userID string) (string, error)
	PushText(ctx context.Context, to string, texts ...string) error
}

// LogArchive keeps the raw upload.
type LogArchive interface {
	ArchiveLog(ctx context.Context, lineUserID, messageID string, raw []byte) (string, error)
}

// Store persists finished diagnoses.
type Store interface {
	CreateDiagnosis(ctx context.Context, d *models.Diagnosis) error
}

// Config tunes the service. Zero values fall back to defaults.
type Config struct {
	MaxLogBytes     int64
	DownloadTimeout time.Duration
	Weights         *analytics.PersonalityWeights
	Nouns           analytics.NounExtractor
	Now             func() time.Time
}

// Service runs diagnosis jobs. Archive and Store may be nil, in which case
// those steps are skipped.
type Service struct {
	messenger Messenger
	archive   LogArchive
	store     Store
	cfg       Config
}

// NewService creates a diagnosis service.
func NewService(m Messenger, archive LogArchive, store Store, cfg Config) *Service {
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = DefaultMaxLogBytes
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{messenger: m, archive: archive, store: store, cfg: cfg}
}

// Process diagnoses one uploaded talk log and pushes the result to the
// uploader. On failure the user gets a short error text and the error is
// returned. Archiving and storing are best effort: their failures are
// logged and the report is still sent.
func (s *Service) Process(ctx context.Context, job models.FileJob) error {
	ctx, span := tracer.Start(ctx, "diagnosis.process",
		trace.WithAttributes(
			attribute.String("line.message_id", job.MessageID),
			attribute.Int64("file.size", job.FileSize),
		))
	defer span.End()

	log := logger.Ctx(ctx).With("message_id", job.MessageID, "user", logger.UserID(job.LineUserID))
	start := time.Now()

	report, err := s.run(ctx, job)
	if err != nil {
		if errors.Is(err, db.ErrDuplicateDiagnosis) {
			log.Info("talk log already diagnosed, skipping")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("diagnosis failed", "error", err, "duration_ms", time.Since(start).Milliseconds())

		if pushErr := s.messenger.PushText(ctx, job.LineUserID, FailureText(err)); pushErr != nil {
			log.Error("failed to push error notice", "error", pushErr)
		}
		return err
	}

	span.SetAttributes(
		attribute.Int("diagnosis.messages", report.MessageCount),
		attribute.Int("diagnosis.overall", report.Compatibility.Overall),
	)
	log.Info("diagnosis sent",
		"messages", report.MessageCount,
		"overall", report.Compatibility.Overall,
		"personality", report.Personality.Label,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *Service) run(ctx context.Context, job models.FileJob) (*analytics.Report, error) {
	log := logger.Ctx(ctx)

	dlCtx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	raw, err := s.messenger.DownloadContent(dlCtx, job.MessageID, s.cfg.MaxLogBytes)
	cancel()
	if err != nil {
		return nil, &stepError{step: stepDownload, err: err}
	}

	var logKey *string
	if s.archive != nil {
		key, err := s.archive.ArchiveLog(ctx, job.LineUserID, job.MessageID, raw)
		if err != nil {
			log.Warn("failed to archive talk log", "error", err)
		} else {
			logKey = &key
		}
	}

	messages, err := analytics.NewParser(nil).ParseReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &stepError{step: stepParse, err: err}
	}
	if len(messages) == 0 {
		return nil, &stepError{step: stepParse, err: ErrNoMessages}
	}

	name, err := s.messenger.DisplayName(ctx, job.LineUserID)
	if err != nil {
		log.Warn("profile lookup failed, using default name", "error", err)
	}

	report := analytics.Analyze(messages, name, analytics.Options{
		Now:     s.cfg.Now(),
		Weights: s.cfg.Weights,
		Nouns:   s.cfg.Nouns,
	})

	if s.store != nil {
		if err := s.save(ctx, job, report, logKey); err != nil {
			if errors.Is(err, db.ErrDuplicateDiagnosis) {
				return nil, err
			}
			log.Warn("failed to store diagnosis", "error", err)
		}
	}

	text := analytics.BuildTextReport(report)
	if err := s.messenger.PushText(ctx, job.LineUserID, text); err != nil {
		return nil, &stepError{step: stepPush, err: err}
	}
	return report, nil
}

func (s *Service) save(ctx context.Context, job models.FileJob, report *analytics.Report, logKey *string) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	words := make([]string, len(report.Records.CommonWords))
	for i, w := range report.Records.CommonWords {
		words[i] = w.Phrase
	}

	return s.store.CreateDiagnosis(ctx, &models.Diagnosis{
		LineUserID:      job.LineUserID,
		SourceMessageID: job.MessageID,
		SelfName:        report.Participants.Self,
		OtherName:       report.Participants.Other,
		MessageCount:    report.MessageCount,
		OverallScore:    report.Compatibility.Overall,
		Personality:     string(report.Personality.Label),
		CommonWords:     words,
		Report:          payload,
		LogObjectKey:    logKey,
	})
}
