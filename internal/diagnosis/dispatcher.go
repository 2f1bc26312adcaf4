package diagnosis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
)

// DefaultJobTimeout bounds one inline job end to end.
const DefaultJobTimeout = 2 * time.Minute

// InlineDispatcher runs jobs in background goroutines of the current
// process. Used when no queue is configured.
type InlineDispatcher struct {
	svc     *Service
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewInlineDispatcher creates a dispatcher backed by svc.
func NewInlineDispatcher(svc *Service, timeout time.Duration) *InlineDispatcher {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	return &InlineDispatcher{svc: svc, timeout: timeout}
}

// Dispatch starts job and returns immediately. The job outlives the
// caller's context (the webhook request) but keeps its logger.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job models.FileJob) error {
	jobCtx := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Ctx(jobCtx).Error("panic in diagnosis job", "panic", r, "message_id", job.MessageID)
			}
		}()

		ctx, cancel := context.WithTimeout(jobCtx, d.timeout)
		defer cancel()
		_ = d.svc.Process(ctx, job)
	})
	return nil
}

// Shutdown waits for running jobs, or until ctx is done.
func (d *InlineDispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for diagnosis jobs: %w", ctx.Err())
	}
}
