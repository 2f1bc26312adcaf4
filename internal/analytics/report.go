package analytics

import (
	"fmt"
	"strings"
)

// MaxChunkRunes is the largest text message the report is split into.
const MaxChunkRunes = 1500

var axisNames = map[string]string{
	AxisTime:    "時間帯",
	AxisBalance: "バランス",
	AxisTempo:   "テンポ",
	AxisType:    "タイプ",
	AxisWords:   "ことば",
}

// AxisName returns the display name of a radar axis.
func AxisName(axis string) string {
	if n, ok := axisNames[axis]; ok {
		return n
	}
	return axis
}

// ScoreComment returns the one-line verdict for a sub-score.
func ScoreComment(score int, label string) string {
	switch {
	case score >= 80:
		return fmt.Sprintf("🟢 %sは良好です。快適なやりとりができています。", label)
	case score >= 50:
		return fmt.Sprintf("🟡 %sはやや不安定です。少し意識するともっと良くなります。", label)
	default:
		return fmt.Sprintf("🔴 %sはズレが大きめです。やりとりの仕方を見直してみましょう。", label)
	}
}

// FormatDuration renders seconds as "H時間M分S秒".
func FormatDuration(sec int) string {
	return fmt.Sprintf("%d時間%d分%d秒", sec/3600, (sec%3600)/60, sec%60)
}

// BuildTextReport renders a report as plain text.
func BuildTextReport(r *Report) string {
	var sb strings.Builder
	self, other := r.Participants.Self, r.Participants.Other
	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}
	pair := func(label string, p Pair[int], unit string) {
		line("・%s: %s %d%s | %s %d%s", label, self, p.Self, unit, other, p.Other, unit)
	}

	line("===== 相性結果 =====")
	line("・自分  : %s", self)
	line("・相手  : %s", other)
	line("・分析日: %s", r.Records.AnalyzedDate)
	line("・総合  : %d点", r.Compatibility.Overall)
	line("")
	line("--- スコア ---")
	for _, a := range RadarAxes {
		line("・%s: %d", AxisName(a), r.Compatibility.Axis(a))
	}
	line("")
	for _, a := range RadarAxes {
		line("%s", ScoreComment(r.Compatibility.Axis(a), AxisName(a)))
	}
	line("")
	if r.Personality.Label != "" {
		line("・%sのタイプ: %s", other, r.Personality.Label)
		line("")
	}

	line("===== 習慣 =====")
	line("・曜日別メッセージ数:")
	for _, d := range Weekdays {
		line("  %s → %s: %d件 | %s: %d件", d, self, r.Habits.DayOfWeek.Self[d], other, r.Habits.DayOfWeek.Other[d])
	}
	line("・最も活発な曜日: %s", r.Habits.MostActiveDay)
	line("")
	line("・時間帯別メッセージ数:")
	for _, b := range HourBins {
		line("  %s → %s: %d件 | %s: %d件", b.Label, self, r.Habits.TimeOfDay.Self[b.Label], other, r.Habits.TimeOfDay.Other[b.Label])
	}
	line("・最も活発な時間帯: %s", r.Habits.MostActiveSlot)
	line("")

	b := r.Behavior
	c := b.Counters
	line("===== 行動 =====")
	pair("トーク回数", r.Records.TalkCount, "回")
	pair("追いトーク回数", b.PursuitCounts, "回")
	pair("スタンプ", Pair[int]{c.Self.Sticker, c.Other.Sticker}, "回")
	pair("写真送付", Pair[int]{c.Self.Image, c.Other.Image}, "回")
	pair("動画送付", Pair[int]{c.Self.Video, c.Other.Video}, "回")
	pair("URL送付", Pair[int]{c.Self.URL, c.Other.URL}, "回")
	pair("ファイル送付", Pair[int]{c.Self.File, c.Other.File}, "回")
	line("・通話回数／時間: %s %d回／%s | %s %d回／%s",
		self, c.Self.Call, FormatDuration(c.Self.CallDurationSec),
		other, c.Other.Call, FormatDuration(c.Other.CallDurationSec))
	pair("不在着信", Pair[int]{c.Self.MissedCall, c.Other.MissedCall}, "回")
	pair("笑いワード(\"笑\")", Pair[int]{c.Self.Laugh, c.Other.Laugh}, "回")
	pair("「w」使用", Pair[int]{c.Self.W, c.Other.W}, "回")
	pair("感謝ワード", Pair[int]{c.Self.Thanks, c.Other.Thanks}, "回")
	pair("謝罪ワード", Pair[int]{c.Self.Apology, c.Other.Apology}, "回")
	line("・平均返信時間: %s %s | %s %s", self, formatMinutes(b.ReplyStats.Self.Avg), other, formatMinutes(b.ReplyStats.Other.Avg))
	line("")

	line("===== 記録 =====")
	line("・はじめてのトーク: %s", r.Records.FirstTalkDate)
	line("・さいごのトーク: %s", r.Records.LastTalkDate)
	line("・経過日数: %d日", r.Records.DaysSinceStart)
	line("・総トーク数: %d件", Sum(r.Records.TalkCount))
	line("・総追いトーク数: %d件", Sum(b.PursuitCounts))
	line("・総通話回数: %d回", c.Self.Call+c.Other.Call)
	line("・総通話時間: %s", FormatDuration(c.Self.CallDurationSec+c.Other.CallDurationSec))
	pair("愛情ワード", r.Records.LoveWordCount, "回")
	if len(r.Records.CommonWords) > 0 {
		words := make([]string, len(r.Records.CommonWords))
		for i, w := range r.Records.CommonWords {
			words[i] = w.Phrase
		}
		line("・ふたりの共通ワード: %s", strings.Join(words, "、"))
	}
	if r.Nouns != nil {
		line("・%sのよく使う言葉: %s", other, joinPhrases(r.Nouns.Other))
	}

	return strings.TrimRight(sb.String(), "\n")
}

func formatMinutes(m *int) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%d分", *m)
}

func joinPhrases(ps []PhraseCount) string {
	if len(ps) == 0 {
		return "-"
	}
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Phrase
	}
	return strings.Join(out, "、")
}

// SplitIntoChunks cuts text into pieces of at most size runes, never
// splitting a multi-byte character.
func SplitIntoChunks(text string, size int) []string {
	if size <= 0 {
		size = MaxChunkRunes
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
