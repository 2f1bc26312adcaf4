package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/line"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// Reply texts
const (
	WelcomeText = "友だち追加ありがとうございます！\n\n" +
		"LINEのトーク履歴を送ると、ふたりの相性を診断します。\n" +
		"トーク画面の設定 → トーク履歴を送信 → このアカウントを選んでください。"
	UsageText = "トーク履歴のファイル（.txt）を送ってください。\n" +
		"届いたら診断して結果をお送りします。"
	AcceptedText = "トーク履歴を受け取りました。診断中です…"
)

// maxEventsPerWebhook bounds the work one callback can trigger.
const maxEventsPerWebhook = 100

// replyTimeout bounds each reply sent after the webhook returned
const replyTimeout = 10 * time.Second

// handleWebhook verifies the LINE callback, answers 200 right away and
// handles the events in the background. File messages become FileJobs for the
// dispatcher; follow and text events get a short reply.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())

	cb, err := line.ParseRequest(s.cfg.ChannelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.Warn("invalid webhook signature")
			respondError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		log.Error("failed to parse webhook request", "error", err)
		respondError(w, http.StatusBadRequest, "Invalid webhook request")
		return
	}

	events := cb.Events
	if len(events) > maxEventsPerWebhook {
		log.Warn("too many events in webhook, truncating", "event_count", len(events))
		events = events[:maxEventsPerWebhook]
	}

	w.WriteHeader(http.StatusOK)

	ctx := context.WithoutCancel(r.Context())
	receivedAt := s.cfg.Now()
	s.wg.Go(func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Ctx(ctx).Error("panic while handling webhook events", "panic", p)
			}
		}()
		for _, event := range events {
			s.handleEvent(ctx, event, receivedAt)
		}
	})
}

func (s *Server) handleEvent(ctx context.Context, event webhook.EventInterface, receivedAt time.Time) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		userID := sourceUserID(e.Source)
		if userID == "" {
			return
		}
		switch msg := e.Message.(type) {
		case webhook.FileMessageContent:
			s.handleFile(ctx, e.ReplyToken, models.FileJob{
				LineUserID: userID,
				MessageID:  msg.Id,
				FileName:   msg.FileName,
				FileSize:   int64(msg.FileSize),
				ReceivedAt: receivedAt,
			})
		case webhook.TextMessageContent:
			s.reply(ctx, e.ReplyToken, UsageText)
		}
	case webhook.FollowEvent:
		s.reply(ctx, e.ReplyToken, WelcomeText)
	}
}

func (s *Server) handleFile(ctx context.Context, replyToken string, job models.FileJob) {
	ctx = logger.With(ctx,
		"line_user", logger.UserID(job.LineUserID),
		"message_id", job.MessageID)
	log := logger.Ctx(ctx)

	if s.cfg.Deduper != nil && s.cfg.Deduper.Seen(ctx, job.MessageID) {
		log.Info("skipping redelivered file event")
		return
	}

	if err := s.cfg.Dispatcher.Dispatch(ctx, job); err != nil {
		log.Error("failed to dispatch file job", "error", err)
		return
	}
	log.Info("file job dispatched", "file_size", job.FileSize)
	s.reply(ctx, replyToken, AcceptedText)
}

func (s *Server) reply(ctx context.Context, replyToken, text string) {
	if s.cfg.Replier == nil || replyToken == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := s.cfg.Replier.ReplyText(ctx, replyToken, text); err != nil {
		logger.Ctx(ctx).Warn("failed to reply", "error", err)
	}
}

// sourceUserID returns the sender of one-to-one chats. Group and room
// sources are ignored.
func sourceUserID(src webhook.SourceInterface) string {
	if u, ok := src.(webhook.UserSource); ok {
		return u.UserId
	}
	return ""
}
