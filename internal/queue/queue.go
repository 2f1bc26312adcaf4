// Package queue moves diagnosis jobs between the webhook and workers over
// NATS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
)

var tracer = otel.Tracer("lovelog/queue")

// DefaultSubject carries file jobs when LINE_EVENTS_SUBJECT is unset.
const DefaultSubject = "lovelog.line.files"

// WorkerGroup is the queue group workers join, so each job reaches one
// worker only.
const WorkerGroup = "lovelog-workers"

const (
	defaultPublishTimeout = 2 * time.Second
	maxConnectRetry       = 10
	connectRetryDelay     = 500 * time.Millisecond
)

// ErrInvalidJob indicates a queue payload that is not a usable FileJob
var ErrInvalidJob = errors.New("invalid file job")

// Connect dials NATS, retrying a bounded number of times while the server
// comes up.
func Connect(url string) (*nats.Conn, error) {
	var lastErr error
	for i := range maxConnectRetry {
		conn, err := nats.Connect(url,
			nats.Name("lovelog"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Info("nats reconnected", "url", c.ConnectedUrl())
			}),
		)
		if err == nil {
			logger.Info("connected to nats", "url", url)
			return conn, nil
		}

		lastErr = err
		logger.Warn("nats connect failed", "attempt", i+1, "max", maxConnectRetry, "error", err)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("connect to %s: %w", url, lastErr)
}

// Publisher sends file jobs to a subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher creates a publisher for subject.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Publish encodes job and waits until the server has it, bounded by ctx's
// deadline or a default timeout.
func (p *Publisher) Publish(ctx context.Context, job models.FileJob) error {
	_, span := tracer.Start(ctx, "queue.publish",
		trace.WithAttributes(
			attribute.String("messaging.destination", p.subject),
			attribute.String("line.message_id", job.MessageID),
		))
	defer span.End()

	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("nats publish failed: %w", err)
	}
	if err := p.conn.FlushTimeout(publishTimeout(ctx)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("nats flush failed: %w", err)
	}
	return nil
}

// Handler processes one job. Returned errors are logged; NATS core has no
// redelivery, so the handler owns user-facing failure reporting.
type Handler func(ctx context.Context, job models.FileJob) error

// Subscribe delivers jobs published on subject to handle, sharing them with
// the other members of WorkerGroup. Invalid payloads are logged and dropped.
func Subscribe(conn *nats.Conn, subject string, handle Handler) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	sub, err := conn.QueueSubscribe(subject, WorkerGroup, func(msg *nats.Msg) {
		Dispatch(context.Background(), msg.Data, handle)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	if err := conn.Flush(); err != nil {
		return nil, fmt.Errorf("flush subscription %s: %w", subject, err)
	}
	return sub, nil
}

// Dispatch decodes one payload and runs handle on it.
func Dispatch(ctx context.Context, data []byte, handle Handler) {
	job, err := DecodeJob(data)
	if err != nil {
		logger.Warn("dropping queue message", "error", err, "size", len(data))
		return
	}
	ctx = logger.With(ctx, "message_id", job.MessageID, "user", logger.UserID(job.LineUserID))
	if err := handle(ctx, job); err != nil {
		logger.Ctx(ctx).Error("file job failed", "error", err)
	}
}

// EncodeJob serializes a job for the wire.
func EncodeJob(job models.FileJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a wire payload. Jobs without a user or message ID are
// rejected with ErrInvalidJob.
func DecodeJob(data []byte) (models.FileJob, error) {
	var job models.FileJob
	if err := json.Unmarshal(data, &job); err != nil {
		return models.FileJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.LineUserID == "" || job.MessageID == "" {
		return models.FileJob{}, fmt.Errorf("%w: missing line_user_id or message_id", ErrInvalidJob)
	}
	return job, nil
}

func publishTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			return remaining
		}
	}
	return defaultPublishTimeout
}
