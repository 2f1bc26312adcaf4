package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ConfabulousDev/lovelog/internal/db"
	"github.com/ConfabulousDev/lovelog/internal/line"
	"github.com/ConfabulousDev/lovelog/internal/models"
)

type fakeMessenger struct {
	mu         sync.Mutex
	content    []byte
	contentErr error
	name       string
	nameErr    error
	pushed     []string
	pushErr    error
}

func (f *fakeMessenger) DownloadContent(_ context.Context, _ string, limit int64) ([]byte, error) {
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	if int64(len(f.content)) > limit {
		return nil, line.ErrContentTooLarge
	}
	return f.content, nil
}

func (f *fakeMessenger) DisplayName(context.Context, string) (string, error) {
	if f.nameErr != nil {
		return line.DefaultDisplayName, f.nameErr
	}
	return f.name, nil
}

func (f *fakeMessenger) PushText(_ context.Context, _ string, texts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, texts...)
	return nil
}

func (f *fakeMessenger) pushes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushed...)
}

type fakeArchive struct {
	keys []string
	err  error
}

func (f *fakeArchive) ArchiveLog(_ context.Context, userID, messageID string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := "logs/" + userID + "/" + messageID + ".txt.zst"
	f.keys = append(f.keys, key)
	return key, nil
}

type fakeStore struct {
	saved []*models.Diagnosis
	err   error
}

func (f *fakeStore) CreateDiagnosis(_ context.Context, d *models.Diagnosis) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, d)
	return nil
}

func talkExport(n int) []byte {
	var b strings.Builder
	b.WriteString("2024/01/15(月)\n")
	for i := range n {
		sender := "たろう"
		if i%2 == 1 {
			sender = "はなこ"
		}
		minutes := 9*60 + i*10
		fmt.Fprintf(&b, "%d:%02d\t%s\tおはよう\n", minutes/60, minutes%60, sender)
	}
	return []byte(b.String())
}

var testJob = models.FileJob{LineUserID: "U1", MessageID: "100", FileName: "talk.txt"}

func newTestService(m Messenger, a LogArchive, s Store) *Service {
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	return NewService(m, a, s, Config{Now: func() time.Time { return now }})
}

func TestProcess_Success(t *testing.T) {
	m := &fakeMessenger{content: talkExport(20), name: "たろう"}
	a := &fakeArchive{}
	s := &fakeStore{}

	if err := newTestService(m, a, s).Process(context.Background(), testJob); err != nil {
		t.Fatalf("Process: %v", err)
	}

	pushed := m.pushes()
	if len(pushed) != 1 || !strings.Contains(pushed[0], "相性結果") {
		t.Fatalf("pushed = %q, want one text report", pushed)
	}

	if len(s.saved) != 1 {
		t.Fatalf("saved = %d diagnoses, want 1", len(s.saved))
	}
	d := s.saved[0]
	if d.SelfName != "たろう" || d.OtherName != "はなこ" {
		t.Errorf("names = %s/%s, want たろう/はなこ", d.SelfName, d.OtherName)
	}
	if d.MessageCount != 20 {
		t.Errorf("MessageCount = %d, want 20", d.MessageCount)
	}
	if d.LogObjectKey == nil || *d.LogObjectKey != "logs/U1/100.txt.zst" {
		t.Errorf("LogObjectKey = %v", d.LogObjectKey)
	}
	if d.SourceMessageID != "100" || d.LineUserID != "U1" {
		t.Errorf("job ids not stored: %+v", d)
	}

	var report map[string]any
	if err := json.Unmarshal(d.Report, &report); err != nil {
		t.Fatalf("stored report is not JSON: %v", err)
	}
	if report["messageCount"] != float64(20) {
		t.Errorf("report.messageCount = %v", report["messageCount"])
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name     string
		m        *fakeMessenger
		wantText string
	}{
		{
			name:     "download error",
			m:        &fakeMessenger{contentErr: errors.New("timeout")},
			wantText: ReadFailedText,
		},
		{
			name:     "too large",
			m:        &fakeMessenger{content: make([]byte, DefaultMaxLogBytes+1)},
			wantText: TooLargeText,
		},
		{
			name:     "no talk lines",
			m:        &fakeMessenger{content: []byte("hello\nworld\n")},
			wantText: ParseFailedText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeStore{}
			err := newTestService(tt.m, nil, s).Process(context.Background(), testJob)
			if err == nil {
				t.Fatal("expected error")
			}
			pushed := tt.m.pushes()
			if len(pushed) != 1 || pushed[0] != tt.wantText {
				t.Errorf("pushed = %q, want %q", pushed, tt.wantText)
			}
			if len(s.saved) != 0 {
				t.Error("nothing should be stored on failure")
			}
		})
	}
}

func TestProcess_NoMessagesError(t *testing.T) {
	m := &fakeMessenger{content: []byte("no talk here")}
	err := newTestService(m, nil, nil).Process(context.Background(), testJob)
	if !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestProcess_BestEffortSteps(t *testing.T) {
	m := &fakeMessenger{content: talkExport(10), nameErr: errors.New("profile unavailable")}
	a := &fakeArchive{err: errors.New("bucket gone")}
	s := &fakeStore{err: errors.New("db down")}

	if err := newTestService(m, a, s).Process(context.Background(), testJob); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pushed := m.pushes(); len(pushed) != 1 || !strings.Contains(pushed[0], "相性結果") {
		t.Errorf("report should still be pushed, got %q", pushed)
	}
}

func TestProcess_DuplicateIsSilent(t *testing.T) {
	m := &fakeMessenger{content: talkExport(10), name: "たろう"}
	s := &fakeStore{err: db.ErrDuplicateDiagnosis}

	if err := newTestService(m, nil, s).Process(context.Background(), testJob); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if pushed := m.pushes(); len(pushed) != 0 {
		t.Errorf("pushed = %q, want nothing for a redelivered log", pushed)
	}
}

func TestProcess_PushFailure(t *testing.T) {
	m := &fakeMessenger{content: talkExport(10), name: "たろう", pushErr: errors.New("quota")}
	err := newTestService(m, nil, nil).Process(context.Background(), testJob)
	if err == nil {
		t.Fatal("expected push failure to be returned")
	}
	if FailureText(err) != FallbackText {
		t.Errorf("FailureText = %q, want fallback", FailureText(err))
	}
}

func TestFailureText_UnknownError(t *testing.T) {
	if got := FailureText(errors.New("boom")); got != FallbackText {
		t.Errorf("FailureText = %q, want fallback", got)
	}
}

func TestInlineDispatcher(t *testing.T) {
	m := &fakeMessenger{content: talkExport(10), name: "たろう"}
	d := NewInlineDispatcher(newTestService(m, nil, nil), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	for i := range 3 {
		job := testJob
		job.MessageID = fmt.Sprint(i)
		if err := d.Dispatch(ctx, job); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	// Jobs must survive the request context going away.
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := d.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := len(m.pushes()); got != 3 {
		t.Errorf("pushes = %d, want 3", got)
	}
}
