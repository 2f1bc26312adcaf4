package analytics

import (
	"math"
	"time"
	"unicode/utf8"
)

// Radar axes, in report order.
const (
	AxisTime    = "time"
	AxisBalance = "balance"
	AxisTempo   = "tempo"
	AxisType    = "type"
	AxisWords   = "words"
)

// RadarAxes lists the five compatibility axes in report order.
var RadarAxes = []string{AxisTime, AxisBalance, AxisTempo, AxisType, AxisWords}

const (
	perfectScore      = 100
	neutralWordsScore = 50
	commonWordBonus   = 20 // cap on the shared-vocabulary bonus
)

// typeCategories are the message kinds compared by the type axis. Calls and
// missed calls fold into text.
var typeCategories = []MessageType{TypeText, TypeSticker, TypeImage, TypeVideo, TypeVoice, TypeFile}

// CompatibilityResult holds the five 0-100 sub-scores and their mean.
type CompatibilityResult struct {
	Time    int `json:"time"`
	Balance int `json:"balance"`
	Tempo   int `json:"tempo"`
	Type    int `json:"type"`
	Words   int `json:"words"`
	Overall int `json:"overall"`
}

// Axis returns the score for a radar axis name.
func (r CompatibilityResult) Axis(name string) int {
	switch name {
	case AxisTime:
		return r.Time
	case AxisBalance:
		return r.Balance
	case AxisTempo:
		return r.Tempo
	case AxisType:
		return r.Type
	case AxisWords:
		return r.Words
	}
	return 0
}

// Weakest returns the lowest scoring axis, earliest axis on ties.
func (r CompatibilityResult) Weakest() string {
	weakest := RadarAxes[0]
	for _, a := range RadarAxes[1:] {
		if r.Axis(a) < r.Axis(weakest) {
			weakest = a
		}
	}
	return weakest
}

// CompatibilityCollector gathers the per-side histograms the scorer needs.
type CompatibilityCollector struct {
	bins   Pair[[6]int]
	totals Pair[int]
	chars  Pair[int]
	types  Pair[map[MessageType]int]

	days  []string // first-seen order
	daily map[string]*Pair[int]
}

// NewCompatibilityCollector creates a new compatibility collector.
func NewCompatibilityCollector() *CompatibilityCollector {
	return &CompatibilityCollector{
		types: Pair[map[MessageType]int]{Self: make(map[MessageType]int), Other: make(map[MessageType]int)},
		daily: make(map[string]*Pair[int]),
	}
}

// Collect processes a single message.
func (c *CompatibilityCollector) Collect(msg *Message, ctx *CollectContext) {
	side := ctx.Participants.SideOf(msg)

	(*c.totals.Of(side))++

	cat := msg.Type
	switch msg.Type {
	case TypeText:
		*c.chars.Of(side) += utf8.RuneCountInString(msg.Body)
	case TypeCall, TypeMissedCall:
		cat = TypeText
	case TypeSticker, TypeImage, TypeVideo, TypeVoice, TypeFile:
	}
	c.types.Get(side)[cat]++

	if !msg.HasTime() {
		return
	}
	if i := HourBinIndex(msg.At.Hour()); i >= 0 {
		c.bins.Of(side)[i]++
	}
	key := dayKey(msg.At)
	d, ok := c.daily[key]
	if !ok {
		d = &Pair[int]{}
		c.daily[key] = d
		c.days = append(c.days, key)
	}
	(*d.Of(side))++
}

// Finalize is a no-op; scoring needs records data and happens in Score.
func (c *CompatibilityCollector) Finalize(ctx *CollectContext) {}

// Score combines the collected histograms with records data.
func (c *CompatibilityCollector) Score(records RecordsData) CompatibilityResult {
	r := CompatibilityResult{
		Time:    timeScore(c.bins.Self[:], c.bins.Other[:]),
		Balance: balanceScore(c.totals, c.chars),
		Tempo:   c.tempoScore(),
		Type:    c.typeScore(),
		Words:   wordsScore(records),
	}
	r.Overall = roundHalfUp(float64(r.Time+r.Balance+r.Tempo+r.Type+r.Words) / 5)
	return r
}

// timeScore compares raw hour-bin counts. It normalises by the combined total,
// so two proportional histograms of different volume score below 100.
func timeScore(self, other []int) int {
	diff, total := 0, 0
	for i := range self {
		diff += absInt(self[i] - other[i])
		total += self[i] + other[i]
	}
	if total == 0 {
		return perfectScore
	}
	return max(0, roundHalfUp((1-float64(diff)/float64(total))*100))
}

func balanceScore(totals, chars Pair[int]) int {
	return roundHalfUp((minMaxRatio(totals.Self, totals.Other) + minMaxRatio(chars.Self, chars.Other)) / 2)
}

// minMaxRatio returns min/max*100, or 100 when both are zero.
func minMaxRatio(a, b int) float64 {
	hi := max(a, b)
	if hi == 0 {
		return perfectScore
	}
	return float64(min(a, b)) / float64(hi) * 100
}

// tempoScore correlates the daily message counts of both sides. The
// correlation is squared, so moving in opposite directions scores like moving
// together.
func (c *CompatibilityCollector) tempoScore() int {
	n := len(c.days)
	if n < 2 {
		return perfectScore
	}
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, d := range c.days {
		xs[i] = float64(c.daily[d].Self)
		ys[i] = float64(c.daily[d].Other)
	}
	r := pearson(xs, ys)
	return roundHalfUp((math.Pow(r*r, 0.75) + 1) / 2 * 100)
}

// pearson returns the correlation coefficient, or 0 when either series has
// no variance.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var num, denX, denY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		num += dx * dy
		denX += dx * dx
		denY += dy * dy
	}
	denom := math.Sqrt(denX * denY)
	if denom == 0 {
		return 0
	}
	return num / denom
}

func (c *CompatibilityCollector) typeScore() int {
	num, den := 0, 0
	for _, cat := range typeCategories {
		s, o := c.types.Self[cat], c.types.Other[cat]
		num += min(s, o)
		den += max(s, o)
	}
	if den == 0 {
		return perfectScore
	}
	return roundHalfUp(float64(num) / float64(den) * 100)
}

// wordsScore is the share of affection words among all sentiment words, plus
// one point per heavily shared word up to a cap. With no sentiment words at
// all it is neutral.
func wordsScore(records RecordsData) int {
	pos := Sum(records.LoveWordCount)
	neg := Sum(records.NegativeWordCount)
	if pos+neg == 0 {
		return neutralWordsScore
	}
	bonus := min(commonWordBonus, records.HeavyCommonWords)
	return min(perfectScore, roundHalfUp(float64(pos)/float64(pos+neg)*100+float64(bonus)))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ScoreCompatibility scores messages against previously aggregated records.
func ScoreCompatibility(messages []Message, p Participants, records RecordsData) CompatibilityResult {
	c := NewCompatibilityCollector()
	RunCollectors(messages, p, time.Time{}, c)
	return c.Score(records)
}
