// Package line wraps the LINE Messaging API for the bot: webhook parsing,
// downloading uploaded talk logs, profile lookup and text pushes.
package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
)

var tracer = otel.Tracer("lovelog/line")

// MaxMessagesPerRequest is the LINE limit on messages in one push or reply.
const MaxMessagesPerRequest = 5

// DefaultDisplayName is used when the sender's profile cannot be fetched.
const DefaultDisplayName = "ユーザー"

var (
	// ErrContentTooLarge indicates an uploaded file exceeded the download limit
	ErrContentTooLarge = errors.New("message content too large")

	// ErrEmptyContent indicates an uploaded file had no bytes
	ErrEmptyContent = errors.New("message content is empty")
)

// messagingAPI is the subset of *messaging_api.MessagingApiAPI the bot uses.
type messagingAPI interface {
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	GetProfile(userID string) (*messaging_api.UserProfileResponse, error)
}

// blobAPI is the subset of *messaging_api.MessagingApiBlobAPI the bot uses.
type blobAPI interface {
	GetMessageContent(ctx context.Context, messageID string) (*http.Response, error)
}

// sdkBlob binds each content request to its caller's context.
type sdkBlob struct {
	api *messaging_api.MessagingApiBlobAPI
}

func (b sdkBlob) GetMessageContent(ctx context.Context, messageID string) (*http.Response, error) {
	// WithContext sets the context on its receiver, so work on a copy.
	api := *b.api
	return api.WithContext(ctx).GetMessageContent(messageID)
}

// Client talks to the LINE Messaging API.
type Client struct {
	api  messagingAPI
	blob blobAPI
}

// NewClient creates a client authenticated with a channel access token.
func NewClient(channelToken string) (*Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	api, err := messaging_api.NewMessagingApiAPI(channelToken, messaging_api.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(channelToken, messaging_api.WithBlobHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create messaging blob API client: %w", err)
	}
	return &Client{api: api, blob: sdkBlob{api: blob}}, nil
}

// ParseRequest verifies the X-Line-Signature header and decodes the webhook
// body. A bad signature yields webhook.ErrInvalidSignature.
func ParseRequest(channelSecret string, r *http.Request) (*webhook.CallbackRequest, error) {
	return webhook.ParseRequest(channelSecret, r)
}

// DownloadContent fetches the bytes of an uploaded message. Content larger
// than limit bytes is rejected with ErrContentTooLarge.
func (c *Client) DownloadContent(ctx context.Context, messageID string, limit int64) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "line.download_content",
		trace.WithAttributes(
			attribute.String("line.message_id", messageID),
			attribute.Int64("download.limit", limit),
		))
	defer span.End()

	data, err := c.fetchContent(ctx, messageID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("file.size", len(data)))
	return data, nil
}

func (c *Client) fetchContent(ctx context.Context, messageID string, limit int64) ([]byte, error) {
	resp, err := c.blob.GetMessageContent(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message content %s: %w", messageID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get message content %s: unexpected status %d", messageID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read message content %s: %w", messageID, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("message %s: %w (limit: %d bytes)", messageID, ErrContentTooLarge, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrEmptyContent)
	}
	return data, nil
}

// DisplayName returns the user's LINE display name, or DefaultDisplayName
// when the profile is unavailable. The error is returned for logging only.
func (c *Client) DisplayName(ctx context.Context, userID string) (string, error) {
	_, span := tracer.Start(ctx, "line.get_profile")
	defer span.End()

	profile, err := c.api.GetProfile(userID)
	if err != nil {
		span.RecordError(err)
		return DefaultDisplayName, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil || profile.DisplayName == "" {
		return DefaultDisplayName, nil
	}
	return profile.DisplayName, nil
}

// PushText sends texts to a user. Long texts are split into chunks of
// analytics.MaxChunkRunes and sent in batches of MaxMessagesPerRequest.
func (c *Client) PushText(ctx context.Context, to string, texts ...string) error {
	_, span := tracer.Start(ctx, "line.push_text")
	defer span.End()

	batches := Batches(TextMessages(texts...), MaxMessagesPerRequest)
	span.SetAttributes(attribute.Int("push.batches", len(batches)))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("push batch %d: %w", i, err)
		}
		_, err := c.api.PushMessage(&messaging_api.PushMessageRequest{
			To:       to,
			Messages: batch,
		}, "")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("push batch %d of %d: %w", i+1, len(batches), err)
		}
	}
	return nil
}

// ReplyText answers a webhook event using its reply token. Only the first
// MaxMessagesPerRequest chunks are sent.
func (c *Client) ReplyText(ctx context.Context, replyToken string, texts ...string) error {
	_, span := tracer.Start(ctx, "line.reply_text")
	defer span.End()

	messages := TextMessages(texts...)
	if len(messages) > MaxMessagesPerRequest {
		messages = messages[:MaxMessagesPerRequest]
	}
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

// TextMessages converts texts into LINE text messages, splitting any text
// longer than analytics.MaxChunkRunes. Empty texts are dropped.
func TextMessages(texts ...string) []messaging_api.MessageInterface {
	var out []messaging_api.MessageInterface
	for _, text := range texts {
		for _, chunk := range analytics.SplitIntoChunks(text, analytics.MaxChunkRunes) {
			if chunk == "" {
				continue
			}
			out = append(out, messaging_api.TextMessage{Text: chunk})
		}
	}
	return out
}

// Batches splits messages into groups of at most size.
func Batches(messages []messaging_api.MessageInterface, size int) [][]messaging_api.MessageInterface {
	var out [][]messaging_api.MessageInterface
	for start := 0; start < len(messages); start += size {
		end := min(start+size, len(messages))
		out = append(out, messages[start:end])
	}
	return out
}
