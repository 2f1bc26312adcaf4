package vocab

import (
	"testing"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func contains(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func TestNouns(t *testing.T) {
	e := newTestExtractor(t)

	got := e.Nouns("明日は東京でラーメンを食べたい")

	for _, want := range []string{"東京", "ラーメン"} {
		if !contains(got, want) {
			t.Errorf("Nouns = %v, want it to contain %q", got, want)
		}
	}
	if contains(got, "食べ") {
		t.Errorf("Nouns = %v, verbs must be excluded", got)
	}
}

func TestTopNouns(t *testing.T) {
	e := newTestExtractor(t)
	p := analytics.Participants{Self: "A", Other: "B"}
	msgs := []analytics.Message{
		{Sender: "A", Type: analytics.TypeText, Body: "ラーメン食べに行こう"},
		{Sender: "B", Type: analytics.TypeText, Body: "ラーメンいいね、映画も見たい"},
		{Sender: "B", Type: analytics.TypeText, Body: "ラーメン屋の場所を送るね"},
		{Sender: "B", Type: analytics.TypeSticker, Body: "[スタンプ]"},
	}

	got := e.TopNouns(msgs, p, 2)

	if len(got.Other) == 0 || got.Other[0].Phrase != "ラーメン" || got.Other[0].Count != 2 {
		t.Errorf("TopNouns.Other = %+v, want ラーメン x2 first", got.Other)
	}
	if len(got.Other) > 2 {
		t.Errorf("TopNouns.Other has %d entries, want at most 2", len(got.Other))
	}
	if len(got.Self) == 0 || got.Self[0].Phrase != "ラーメン" {
		t.Errorf("TopNouns.Self = %+v", got.Self)
	}
}

func TestCounter_TopKeepsFirstSeenOnTies(t *testing.T) {
	c := newCounter()
	for _, w := range []string{"b", "a", "a", "b", "c"} {
		c.add(w)
	}
	got := c.top(3)
	if got[0].Phrase != "b" || got[1].Phrase != "a" || got[2].Phrase != "c" {
		t.Errorf("top = %+v, want b, a, c", got)
	}
}

var _ analytics.NounExtractor = (*Extractor)(nil)
