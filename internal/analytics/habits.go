package analytics

import "time"

const (
	topPhraseLimit    = 10
	commonPhraseLimit = 10
)

// HabitsData describes when and how each side talks.
type HabitsData struct {
	DayOfWeek     Pair[map[string]int] `json:"dayOfWeek"`
	MostActiveDay string               `json:"mostActiveDay"`

	TimeOfDay      Pair[map[string]int] `json:"timeOfDay"`
	MostActiveSlot string               `json:"mostActiveSlot"`

	TopPhrases    Pair[[]PhraseCount] `json:"topPhrases"`
	CommonPhrases []CommonPhrase      `json:"commonPhrases"`
}

// HabitsCollector computes HabitsData.
// Messages without a usable timestamp are skipped entirely.
type HabitsCollector struct {
	Data HabitsData

	days    Pair[[7]int]
	slots   Pair[[6]int]
	phrases Pair[*wordCounter]
}

// NewHabitsCollector creates a new habits collector.
func NewHabitsCollector() *HabitsCollector {
	return &HabitsCollector{
		phrases: Pair[*wordCounter]{Self: newWordCounter(), Other: newWordCounter()},
	}
}

// Collect processes a single message.
func (c *HabitsCollector) Collect(msg *Message, ctx *CollectContext) {
	if !msg.HasTime() {
		return
	}
	side := ctx.Participants.SideOf(msg)

	c.days.Of(side)[msg.At.Weekday()]++
	if i := HourBinIndex(msg.At.Hour()); i >= 0 {
		c.slots.Of(side)[i]++
	}

	if msg.Type == TypeText {
		counter := c.phrases.Get(side)
		for _, tok := range splitPhrases(msg.Body) {
			counter.add(tok)
		}
	}
}

// Finalize builds the histograms and phrase rankings.
func (c *HabitsCollector) Finalize(ctx *CollectContext) {
	dayLabels := Weekdays[:]
	slotLabels := make([]string, len(HourBins))
	for i, b := range HourBins {
		slotLabels[i] = b.Label
	}

	c.Data.DayOfWeek = Pair[map[string]int]{
		Self:  labelled(dayLabels, c.days.Self[:]),
		Other: labelled(dayLabels, c.days.Other[:]),
	}
	c.Data.MostActiveDay = mostFrequent(dayLabels, c.days.Self[:], c.days.Other[:])

	c.Data.TimeOfDay = Pair[map[string]int]{
		Self:  labelled(slotLabels, c.slots.Self[:]),
		Other: labelled(slotLabels, c.slots.Other[:]),
	}
	c.Data.MostActiveSlot = mostFrequent(slotLabels, c.slots.Self[:], c.slots.Other[:])

	c.Data.TopPhrases = Pair[[]PhraseCount]{
		Self:  c.phrases.Self.top(topPhraseLimit),
		Other: c.phrases.Other.top(topPhraseLimit),
	}
	c.Data.CommonPhrases = truncate(common(c.phrases.Self, c.phrases.Other), commonPhraseLimit)
}

func labelled(labels []string, counts []int) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = counts[i]
	}
	return m
}

// mostFrequent returns the label with the highest combined count. Ties go to
// the earliest label, so the result never depends on map order.
func mostFrequent(labels []string, a, b []int) string {
	best := 0
	for i := 1; i < len(labels); i++ {
		if a[i]+b[i] > a[best]+b[best] {
			best = i
		}
	}
	return labels[best]
}

// AggregateHabits runs a HabitsCollector over messages.
func AggregateHabits(messages []Message, p Participants) HabitsData {
	c := NewHabitsCollector()
	RunCollectors(messages, p, time.Time{}, c)
	return c.Data
}
