package analytics

import (
	"testing"
	"time"
)

func TestBehaviorCollector_AlternatingReplies(t *testing.T) {
	p := Participants{Self: "A", Other: "B"}
	msgs := alternatingLog(50, 10*time.Minute, "A", "B", "あいうえおかきくけこさしすせそたちつてと")

	got := AggregateBehavior(msgs, p)

	if n := len(got.ReplyMinutes.Self); n != 49 {
		t.Errorf("len(ReplyMinutes.Self) = %d, want 49", n)
	}
	if n := len(got.ReplyMinutes.Other); n != 50 {
		t.Errorf("len(ReplyMinutes.Other) = %d, want 50", n)
	}
	for _, side := range []Side{SideSelf, SideOther} {
		s := got.ReplyStats.Get(side)
		if s.Avg == nil || *s.Avg != 10 || *s.Fastest != 10 || *s.Slowest != 10 {
			t.Errorf("ReplyStats[%d] = %+v, want all 10", side, s)
		}
		if s.StdSec == nil || *s.StdSec != 0 {
			t.Errorf("StdSec = %v, want 0", s.StdSec)
		}
	}
	if got.PursuitCounts.Self != 0 || got.PursuitCounts.Other != 0 {
		t.Errorf("PursuitCounts = %+v, want none", got.PursuitCounts)
	}
	if got.ShortCounts.Self != 0 || got.LongCounts.Self != 0 {
		t.Errorf("20-rune bodies are neither short nor long: %+v %+v", got.ShortCounts, got.LongCounts)
	}
}

func TestBehaviorCollector_Pursuit(t *testing.T) {
	p := Participants{Self: "A", Other: "B"}

	tests := []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"thirty minute gaps", 30 * time.Minute, 9},
		{"long gaps", 3 * time.Hour, 9},
		{"just under threshold", 29 * time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msgs []Message
			for i := 0; i < 10; i++ {
				msgs = append(msgs, textMsg(time.Duration(i)*tt.gap, "A", "ねえ"))
			}
			got := AggregateBehavior(msgs, p)
			if got.PursuitCounts.Self != tt.want {
				t.Errorf("PursuitCounts.Self = %d, want %d", got.PursuitCounts.Self, tt.want)
			}
			if len(got.ReplyMinutes.Self) != 0 {
				t.Errorf("same-sender messages must not record replies: %v", got.ReplyMinutes.Self)
			}
		})
	}
}

func TestBehaviorCollector_OutliersExcluded(t *testing.T) {
	p := Participants{Self: "A", Other: "B"}
	msgs := []Message{
		textMsg(0, "A", "元気?"),
		textMsg(8*24*time.Hour, "B", "ごめん遅くなった"),
		textMsg(8*24*time.Hour+5*time.Minute, "A", "ok"),
	}

	got := AggregateBehavior(msgs, p)

	if len(got.ReplyMinutes.Other) != 1 || got.ReplyMinutes.Other[0] != 8*24*60 {
		t.Errorf("raw ReplyMinutes.Other = %v", got.ReplyMinutes.Other)
	}
	if got.ReplyStats.Other.Avg != nil || got.ReplyStats.Other.Fastest != nil || got.ReplyStats.Other.Slowest != nil {
		t.Errorf("ReplyStats.Other = %+v, want all nil after filtering", got.ReplyStats.Other)
	}
	if got.ReplyStats.Self.Avg == nil || *got.ReplyStats.Self.Avg != 5 {
		t.Errorf("ReplyStats.Self.Avg = %v, want 5", got.ReplyStats.Self.Avg)
	}
}

func TestBehaviorCollector_UntimedAndOutOfOrder(t *testing.T) {
	p := Participants{Self: "A", Other: "B"}
	untimed := Message{Datetime: "2024/01/15 ??", Sender: "B", Type: TypeText, Body: "?"}
	msgs := []Message{
		textMsg(time.Hour, "A", "a"),
		untimed,
		textMsg(time.Hour+20*time.Minute, "B", "b"),
		textMsg(0, "A", "past"),
	}

	got := AggregateBehavior(msgs, p)

	if len(got.ReplyMinutes.Other) != 1 || got.ReplyMinutes.Other[0] != 20 {
		t.Errorf("ReplyMinutes.Other = %v, want [20]", got.ReplyMinutes.Other)
	}
	if len(got.ReplyMinutes.Self) != 0 {
		t.Errorf("negative interval recorded: %v", got.ReplyMinutes.Self)
	}
	if got.Counters.Other.Question != 1 {
		t.Error("untimed messages still count toward content counters")
	}
}

func TestBehaviorCollector_Counters(t *testing.T) {
	p := Participants{Self: "A", Other: "B"}
	dur := 90
	call := typedMsg(5*time.Minute, "B", TypeCall, "☎ 通話時間 1:30")
	call.DurationSec = &dur
	msgs := []Message{
		typedMsg(0, "B", TypeSticker, "[スタンプ]"),
		typedMsg(time.Minute, "B", TypeImage, "[写真]"),
		typedMsg(2*time.Minute, "B", TypeVideo, "[動画]"),
		typedMsg(3*time.Minute, "B", TypeVoice, "[ボイスメッセージ]"),
		typedMsg(4*time.Minute, "B", TypeFile, "[ファイル]"),
		call,
		typedMsg(6*time.Minute, "B", TypeMissedCall, "☎ 不在着信"),
		textMsg(7*time.Minute, "B", "[送信取消]"),
		textMsg(8*time.Minute, "B", "見て https://example.com 笑 wwww！？"),
		textMsg(9*time.Minute, "B", "おはよう、ありがとう、ごめんね"),
		textMsg(10*time.Minute, "B", "w"),
	}

	got := AggregateBehavior(msgs, p)
	c := got.Counters.Other

	want := Counters{
		Sticker: 1, Image: 1, Video: 1, Voice: 1, File: 1, MissedCall: 1, Call: 1, CallDurationSec: 90,
		Cancel: 1, URL: 1, Laugh: 1, W: 1, Exclaim: 1, Question: 1, Greeting: 1, Thanks: 1, Apology: 1,
	}
	if c != want {
		t.Errorf("Counters.Other = %+v\nwant %+v", c, want)
	}
	if got.Counters.Self != (Counters{}) {
		t.Errorf("Counters.Self = %+v, want zero", got.Counters.Self)
	}
	// "[送信取消]" (6 runes) and "w" are short.
	if got.ShortCounts.Other != 2 {
		t.Errorf("ShortCounts.Other = %d, want 2", got.ShortCounts.Other)
	}
}

func TestComputeReplyStats(t *testing.T) {
	s := computeReplyStats([]int{1, 2, 4, MaxReplyMinutes + 1})
	if *s.Avg != 2 || *s.Fastest != 1 || *s.Slowest != 4 {
		t.Errorf("stats = avg %d fastest %d slowest %d", *s.Avg, *s.Fastest, *s.Slowest)
	}
	// Population std of {1,2,4} is 1.2472 minutes, 74.8 seconds.
	if *s.StdSec != 75 {
		t.Errorf("StdSec = %d, want 75", *s.StdSec)
	}

	half := computeReplyStats([]int{1, 2})
	if *half.Avg != 2 {
		t.Errorf("avg of 1.5 = %d, want 2 (half rounds up)", *half.Avg)
	}
}
