package analytics

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestBuildTextReport_Sections(t *testing.T) {
	msgs := alternatingLog(5, 10*time.Minute, "花子", "太郎", "ありがとう、またね")
	r := Analyze(msgs, "花子", Options{Now: testStart.Add(48 * time.Hour)})

	text := BuildTextReport(r)

	for _, want := range []string{
		"===== 相性結果 =====",
		"===== 習慣 =====",
		"===== 行動 =====",
		"===== 記録 =====",
		"・自分  : 花子",
		"・相手  : 太郎",
		"・経過日数: 2日",
		"・総トーク数: 10件",
		"・太郎のタイプ: ",
		"🟢 バランスは良好です。",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q\n%s", want, text)
		}
	}
}

func TestScoreComment(t *testing.T) {
	tests := []struct {
		score  int
		prefix string
	}{
		{100, "🟢"}, {80, "🟢"}, {79, "🟡"}, {50, "🟡"}, {49, "🔴"}, {0, "🔴"},
	}
	for _, tt := range tests {
		if got := ScoreComment(tt.score, "x"); !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("ScoreComment(%d) = %q, want prefix %s", tt.score, got, tt.prefix)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(3*3600 + 25*60 + 7); got != "3時間25分7秒" {
		t.Errorf("FormatDuration = %q", got)
	}
	if got := FormatDuration(0); got != "0時間0分0秒" {
		t.Errorf("FormatDuration(0) = %q", got)
	}
}

func TestSplitIntoChunks(t *testing.T) {
	text := strings.Repeat("あ", 3200)
	chunks := SplitIntoChunks(text, MaxChunkRunes)
	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 1500 {
		t.Errorf("chunk 0 has %d runes, want 1500", n)
	}
	if n := utf8.RuneCountInString(chunks[2]); n != 200 {
		t.Errorf("chunk 2 has %d runes, want 200", n)
	}
	if strings.Join(chunks, "") != text {
		t.Error("chunks do not reassemble the input")
	}
	if len(SplitIntoChunks("", 10)) != 0 {
		t.Error("empty text should yield no chunks")
	}
}
