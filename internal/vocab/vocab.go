// Package vocab ranks the nouns each side of a conversation uses, using
// kagome's morphological analyzer with the IPA dictionary.
package vocab

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/ConfabulousDev/lovelog/internal/analytics"
)

const posNoun = "名詞"

// Noun subclasses that carry no topic on their own.
var skippedSubclasses = map[string]bool{
	"非自立":  true,
	"代名詞":  true,
	"数":    true,
	"接尾":   true,
	"副詞可能": true,
}

const minNounRunes = 2

// Extractor implements analytics.NounExtractor.
type Extractor struct {
	tok *tokenizer.Tokenizer
}

// New loads the IPA dictionary and builds a tokenizer. Loading takes a
// moment, so build one Extractor and share it.
func New() (*Extractor, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}
	return &Extractor{tok: t}, nil
}

// Nouns returns the topical nouns in text, in order of appearance.
func (e *Extractor) Nouns(text string) []string {
	var out []string
	for _, token := range e.tok.Tokenize(text) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		features := token.Features()
		if len(features) == 0 || features[0] != posNoun {
			continue
		}
		if len(features) > 1 && skippedSubclasses[features[1]] {
			continue
		}
		if utf8.RuneCountInString(token.Surface) < minNounRunes {
			continue
		}
		out = append(out, token.Surface)
	}
	return out
}

// TopNouns ranks each side's nouns across its text messages. Ties keep
// first-seen order.
func (e *Extractor) TopNouns(messages []analytics.Message, p analytics.Participants, n int) analytics.Pair[[]analytics.PhraseCount] {
	counts := analytics.Pair[*counter]{Self: newCounter(), Other: newCounter()}
	for i := range messages {
		m := &messages[i]
		if m.Type != analytics.TypeText {
			continue
		}
		c := counts.Get(p.SideOf(m))
		for _, noun := range e.Nouns(m.Body) {
			c.add(noun)
		}
	}
	return analytics.Pair[[]analytics.PhraseCount]{
		Self:  counts.Self.top(n),
		Other: counts.Other.top(n),
	}
}

type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(w string) {
	if _, ok := c.counts[w]; !ok {
		c.order = append(c.order, w)
	}
	c.counts[w]++
}

func (c *counter) top(n int) []analytics.PhraseCount {
	out := make([]analytics.PhraseCount, 0, len(c.order))
	for _, w := range c.order {
		out = append(out, analytics.PhraseCount{Phrase: w, Count: c.counts[w]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
