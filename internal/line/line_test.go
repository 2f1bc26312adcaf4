package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

type fakeAPI struct {
	pushes  []*messaging_api.PushMessageRequest
	replies []*messaging_api.ReplyMessageRequest
	profile *messaging_api.UserProfileResponse
	err     error
}

func (f *fakeAPI) PushMessage(req *messaging_api.PushMessageRequest, _ string) (*messaging_api.PushMessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pushes = append(f.pushes, req)
	return &messaging_api.PushMessageResponse{}, nil
}

func (f *fakeAPI) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.replies = append(f.replies, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func (f *fakeAPI) GetProfile(string) (*messaging_api.UserProfileResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeBlob struct {
	status int
	body   []byte
	err    error
}

func (f *fakeBlob) GetMessageContent(context.Context, string) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader(f.body)),
	}, nil
}

func TestDownloadContent(t *testing.T) {
	ctx := context.Background()

	t.Run("returns body within limit", func(t *testing.T) {
		c := &Client{blob: &fakeBlob{status: http.StatusOK, body: []byte("hello")}}
		data, err := c.DownloadContent(ctx, "1", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "hello" {
			t.Errorf("data = %q, want hello", data)
		}
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		c := &Client{blob: &fakeBlob{status: http.StatusOK, body: []byte("hello!")}}
		_, err := c.DownloadContent(ctx, "1", 5)
		if !errors.Is(err, ErrContentTooLarge) {
			t.Errorf("err = %v, want ErrContentTooLarge", err)
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		c := &Client{blob: &fakeBlob{status: http.StatusOK}}
		_, err := c.DownloadContent(ctx, "1", 5)
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("err = %v, want ErrEmptyContent", err)
		}
	})

	t.Run("non-200 status fails", func(t *testing.T) {
		c := &Client{blob: &fakeBlob{status: http.StatusNotFound, body: []byte("x")}}
		if _, err := c.DownloadContent(ctx, "1", 5); err == nil {
			t.Error("expected error for 404")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c := &Client{blob: blockingBlob{}}
		_, err := c.DownloadContent(cctx, "1", 5)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

// blockingBlob waits for its context the way an in-flight HTTP request does.
type blockingBlob struct{}

func (blockingBlob) GetMessageContent(ctx context.Context, _ string) (*http.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDisplayName(t *testing.T) {
	ctx := context.Background()

	c := &Client{api: &fakeAPI{profile: &messaging_api.UserProfileResponse{DisplayName: "はなこ"}}}
	if name, err := c.DisplayName(ctx, "U1"); err != nil || name != "はなこ" {
		t.Errorf("DisplayName = %q, %v", name, err)
	}

	c = &Client{api: &fakeAPI{err: errors.New("boom")}}
	name, err := c.DisplayName(ctx, "U1")
	if err == nil {
		t.Error("expected profile error to be returned")
	}
	if name != DefaultDisplayName {
		t.Errorf("fallback name = %q, want %q", name, DefaultDisplayName)
	}

	c = &Client{api: &fakeAPI{profile: &messaging_api.UserProfileResponse{}}}
	if name, _ := c.DisplayName(ctx, "U1"); name != DefaultDisplayName {
		t.Errorf("empty profile name = %q, want %q", name, DefaultDisplayName)
	}
}

func TestPushTextBatches(t *testing.T) {
	api := &fakeAPI{}
	c := &Client{api: api}

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = "msg"
	}
	if err := c.PushText(context.Background(), "U1", texts...); err != nil {
		t.Fatalf("PushText: %v", err)
	}

	if len(api.pushes) != 2 {
		t.Fatalf("pushes = %d, want 2", len(api.pushes))
	}
	if len(api.pushes[0].Messages) != 5 || len(api.pushes[1].Messages) != 2 {
		t.Errorf("batch sizes = %d, %d, want 5, 2", len(api.pushes[0].Messages), len(api.pushes[1].Messages))
	}
	if api.pushes[0].To != "U1" {
		t.Errorf("To = %q, want U1", api.pushes[0].To)
	}
}

func TestPushTextError(t *testing.T) {
	c := &Client{api: &fakeAPI{err: errors.New("rate limited")}}
	if err := c.PushText(context.Background(), "U1", "hi"); err == nil {
		t.Error("expected push error")
	}
}

func TestReplyTextTruncates(t *testing.T) {
	api := &fakeAPI{}
	c := &Client{api: api}

	if err := c.ReplyText(context.Background(), "token", "a", "b", "c", "d", "e", "f"); err != nil {
		t.Fatalf("ReplyText: %v", err)
	}
	if got := len(api.replies[0].Messages); got != MaxMessagesPerRequest {
		t.Errorf("reply messages = %d, want %d", got, MaxMessagesPerRequest)
	}
	if api.replies[0].ReplyToken != "token" {
		t.Errorf("ReplyToken = %q", api.replies[0].ReplyToken)
	}
}

func TestTextMessagesSplitsLongText(t *testing.T) {
	long := strings.Repeat("あ", 3100)
	msgs := TextMessages(long, "")

	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	last, ok := msgs[2].(messaging_api.TextMessage)
	if !ok {
		t.Fatalf("message type = %T", msgs[2])
	}
	if got := len([]rune(last.Text)); got != 100 {
		t.Errorf("last chunk runes = %d, want 100", got)
	}
}

func TestBatches(t *testing.T) {
	if got := Batches(nil, 5); len(got) != 0 {
		t.Errorf("Batches(nil) = %d batches, want 0", len(got))
	}
	msgs := TextMessages("1", "2", "3", "4", "5")
	if got := Batches(msgs, 5); len(got) != 1 {
		t.Errorf("Batches(5 msgs) = %d batches, want 1", len(got))
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const fileEventBody = `{"destination":"Udest","events":[{"type":"message","mode":"active","timestamp":1718000000000,` +
	`"source":{"type":"user","userId":"U4af4980629"},"webhookEventId":"01HZ","deliveryContext":{"isRedelivery":false},` +
	`"replyToken":"rt","message":{"id":"468789577898","type":"file","fileName":"talk.txt","fileSize":2048}}]}`

func TestParseRequest(t *testing.T) {
	const secret = "channel-secret"
	body := []byte(fileEventBody)

	t.Run("valid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/line/webhook", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", sign(secret, body))

		cb, err := ParseRequest(secret, req)
		if err != nil {
			t.Fatalf("ParseRequest: %v", err)
		}
		if len(cb.Events) != 1 {
			t.Fatalf("events = %d, want 1", len(cb.Events))
		}
		ev, ok := cb.Events[0].(webhook.MessageEvent)
		if !ok {
			t.Fatalf("event type = %T", cb.Events[0])
		}
		file, ok := ev.Message.(webhook.FileMessageContent)
		if !ok {
			t.Fatalf("message type = %T", ev.Message)
		}
		if file.Id != "468789577898" || file.FileName != "talk.txt" {
			t.Errorf("file = %+v", file)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/line/webhook", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", sign("other-secret", body))

		_, err := ParseRequest(secret, req)
		if !errors.Is(err, webhook.ErrInvalidSignature) {
			t.Errorf("err = %v, want ErrInvalidSignature", err)
		}
	})
}
