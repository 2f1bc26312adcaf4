package analytics

import (
	"sort"
	"strings"
	"unicode/utf8"
)

var phrasePunctuation = strings.NewReplacer(
	"。", " ", "、", " ", "！", " ", "？", " ",
	"「", " ", "」", " ", "『", " ", "』", " ",
)

const (
	tokenLeadTrim  = " \t\"'「『（【[]＜《"
	tokenTrailTrim = " \t\"'」』）】]＞》"
)

// splitPhrases breaks a text body into whitespace-separated phrases after
// turning Japanese punctuation into spaces.
func splitPhrases(body string) []string {
	return strings.Fields(phrasePunctuation.Replace(body))
}

// vocabularyTokens returns the phrases of body that are at least minRunes
// long once surrounding quotes and brackets are stripped.
func vocabularyTokens(body string, minRunes int) []string {
	var out []string
	for _, tok := range splitPhrases(body) {
		if utf8.RuneCountInString(tok) < minRunes {
			continue
		}
		tok = strings.TrimRight(strings.TrimLeft(tok, tokenLeadTrim), tokenTrailTrim)
		if utf8.RuneCountInString(tok) >= minRunes {
			out = append(out, tok)
		}
	}
	return out
}

// PhraseCount is a phrase with its number of uses.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// CommonPhrase is a phrase used by both participants.
type CommonPhrase struct {
	Phrase     string `json:"phrase"`
	CountSelf  int    `json:"countSelf"`
	CountOther int    `json:"countOther"`
}

// Total returns the combined use count.
func (c CommonPhrase) Total() int {
	return c.CountSelf + c.CountOther
}

// wordCounter counts tokens and remembers first-seen order, which is the
// tie-break for every ranking built from it.
type wordCounter struct {
	counts map[string]int
	order  []string
}

func newWordCounter() *wordCounter {
	return &wordCounter{counts: make(map[string]int)}
}

func (w *wordCounter) add(tok string) {
	if _, ok := w.counts[tok]; !ok {
		w.order = append(w.order, tok)
	}
	w.counts[tok]++
}

func (w *wordCounter) top(n int) []PhraseCount {
	out := make([]PhraseCount, 0, len(w.order))
	for _, p := range w.order {
		out = append(out, PhraseCount{Phrase: p, Count: w.counts[p]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// common returns every token both counters saw, in self's first-seen order,
// ranked by combined count.
func common(self, other *wordCounter) []CommonPhrase {
	var out []CommonPhrase
	for _, p := range self.order {
		if c, ok := other.counts[p]; ok {
			out = append(out, CommonPhrase{Phrase: p, CountSelf: self.counts[p], CountOther: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total() > out[j].Total() })
	return out
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
