package analytics

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Keyword lists counted by RecordsCollector. Every occurrence in a text body
// counts, not just presence.
var (
	AffectionWords = []string{"ありがとう", "好き", "愛してる", "ずっと一緒", "大好き"}
	NegativeWords  = []string{"ごめん", "別れよう", "嫌い", "寂しい", "辛い", "別れ"}
)

const (
	commonWordMinRunes = 3
	commonWordLimit    = 10
	// A common word is "heavily used" once either side has used it this often.
	heavyUseThreshold = 5
)

const recordDateLayout = "2006/01/02"

// KeywordCount is the per-side hit count for one keyword.
type KeywordCount struct {
	Word  string    `json:"word"`
	Count Pair[int] `json:"count"`
}

// RecordsData summarises the conversation as a whole.
type RecordsData struct {
	FirstTalkDate  string `json:"firstTalkDate"`
	LastTalkDate   string `json:"lastTalkDate"`
	AnalyzedDate   string `json:"analyzedDate"`
	DaysSinceStart int    `json:"daysSinceStart"`

	TalkCount  Pair[int] `json:"talkCount"`
	TotalChars Pair[int] `json:"totalChars"` // text messages only, in runes

	LoveWordCount     Pair[int]      `json:"loveWordCount"`
	NegativeWordCount Pair[int]      `json:"negativeWordCount"`
	LoveWords         []KeywordCount `json:"loveWords"`
	NegativeWords     []KeywordCount `json:"negativeWords"`

	// CommonWords is the top of the shared vocabulary (tokens of three or
	// more runes used by both sides), ranked by combined use.
	CommonWords []CommonPhrase `json:"commonWords"`
	// HeavyCommonWords counts shared words either side used at least five
	// times, across the whole shared vocabulary.
	HeavyCommonWords int `json:"heavyCommonWords"`
}

// RecordsCollector computes RecordsData.
type RecordsCollector struct {
	Data RecordsData

	first, last time.Time
	love, neg   []Pair[int]
	vocab       Pair[*wordCounter]
}

// NewRecordsCollector creates a new records collector.
func NewRecordsCollector() *RecordsCollector {
	return &RecordsCollector{
		love:  make([]Pair[int], len(AffectionWords)),
		neg:   make([]Pair[int], len(NegativeWords)),
		vocab: Pair[*wordCounter]{Self: newWordCounter(), Other: newWordCounter()},
	}
}

// Collect processes a single message.
func (c *RecordsCollector) Collect(msg *Message, ctx *CollectContext) {
	if !msg.Type.Valid() {
		return
	}
	side := ctx.Participants.SideOf(msg)

	if msg.HasTime() {
		if c.first.IsZero() {
			c.first = msg.At
		}
		c.last = msg.At
	}

	(*c.Data.TalkCount.Of(side))++

	switch msg.Type {
	case TypeText:
		*c.Data.TotalChars.Of(side) += utf8.RuneCountInString(msg.Body)
		for i, w := range AffectionWords {
			*c.love[i].Of(side) += strings.Count(msg.Body, w)
		}
		for i, w := range NegativeWords {
			*c.neg[i].Of(side) += strings.Count(msg.Body, w)
		}
		counter := c.vocab.Get(side)
		for _, tok := range vocabularyTokens(msg.Body, commonWordMinRunes) {
			counter.add(tok)
		}
	case TypeSticker, TypeImage, TypeVideo, TypeVoice, TypeFile, TypeCall, TypeMissedCall:
		// counted above
	}
}

// Finalize computes dates, keyword totals and the shared vocabulary.
func (c *RecordsCollector) Finalize(ctx *CollectContext) {
	loc := DefaultLocation
	if !c.first.IsZero() {
		loc = c.first.Location()
	}
	now := ctx.Now.In(loc)

	first, last := c.first, c.last
	if first.IsZero() {
		first, last = now, now
	}
	c.Data.FirstTalkDate = first.Format(recordDateLayout)
	c.Data.LastTalkDate = last.Format(recordDateLayout)
	c.Data.AnalyzedDate = now.Format(recordDateLayout)
	c.Data.DaysSinceStart = civilDaysBetween(first, now)

	c.Data.LoveWords, c.Data.LoveWordCount = keywordTable(AffectionWords, c.love)
	c.Data.NegativeWords, c.Data.NegativeWordCount = keywordTable(NegativeWords, c.neg)

	shared := common(c.vocab.Self, c.vocab.Other)
	c.Data.HeavyCommonWords = 0
	for _, w := range shared {
		if w.CountSelf >= heavyUseThreshold || w.CountOther >= heavyUseThreshold {
			c.Data.HeavyCommonWords++
		}
	}
	c.Data.CommonWords = truncate(shared, commonWordLimit)
}

func keywordTable(words []string, counts []Pair[int]) ([]KeywordCount, Pair[int]) {
	table := make([]KeywordCount, len(words))
	var total Pair[int]
	for i, w := range words {
		table[i] = KeywordCount{Word: w, Count: counts[i]}
		total.Self += counts[i].Self
		total.Other += counts[i].Other
	}
	return table, total
}

// AggregateRecords runs a RecordsCollector over messages.
func AggregateRecords(messages []Message, p Participants, now time.Time) RecordsData {
	c := NewRecordsCollector()
	RunCollectors(messages, p, now, c)
	return c.Data
}
