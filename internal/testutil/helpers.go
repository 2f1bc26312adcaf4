package testutil

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ConfabulousDev/lovelog/internal/models"
)

// ParseJSONResponse decodes JSON response body into v
func ParseJSONResponse(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()

	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, w.Body.String())
	}
}

// AssertStatus checks HTTP status code matches expected
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if w.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertErrorResponse checks error response format and message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	t.Helper()

	AssertStatus(t, w, expectedStatus)

	var resp map[string]string
	ParseJSONResponse(t, w, &resp)

	if resp["error"] != expectedMessage {
		t.Errorf("expected error message %q, got %q", expectedMessage, resp["error"])
	}
}

// SampleExport builds a LINE talk export with n alternating messages, one
// every ten minutes starting 2024/01/15 09:00.
func SampleExport(self, other string, n int) string {
	var b strings.Builder
	b.WriteString("[LINE] " + other + "とのトーク履歴\n保存日時：2024/01/20 12:00\n\n")
	b.WriteString("2024/01/15(月)\n")
	for i := range n {
		sender := self
		if i%2 == 1 {
			sender = other
		}
		minutes := 9*60 + i*10
		fmt.Fprintf(&b, "%d:%02d\t%s\tおはよう%d\n", minutes/60%24, minutes%60, sender, i)
	}
	return b.String()
}

// CreateTestDiagnosis inserts a diagnosis row for lineUserID and returns it
func CreateTestDiagnosis(t *testing.T, env *TestEnvironment, lineUserID, messageID string, score int) *models.Diagnosis {
	t.Helper()

	d := &models.Diagnosis{
		LineUserID:      lineUserID,
		SourceMessageID: messageID,
		SelfName:        "たろう",
		OtherName:       "はなこ",
		MessageCount:    10,
		OverallScore:    score,
		Personality:     "ひつじ",
		CommonWords:     []string{"おはよう"},
		Report:          json.RawMessage(`{"messageCount":10}`),
	}
	if err := env.DB.CreateDiagnosis(env.Ctx, d); err != nil {
		t.Fatalf("failed to create test diagnosis: %v", err)
	}
	return d
}
