package analytics

import (
	"math"
	"regexp"
	"time"
)

// ZodiacType is one of the twelve personality labels given to the other
// participant.
type ZodiacType string

const (
	ZodiacRat     ZodiacType = "ねずみ男子"
	ZodiacOx      ZodiacType = "うし男子"
	ZodiacTiger   ZodiacType = "とら男子"
	ZodiacRabbit  ZodiacType = "うさぎ男子"
	ZodiacDragon  ZodiacType = "りゅう男子"
	ZodiacSnake   ZodiacType = "へび男子"
	ZodiacHorse   ZodiacType = "うま男子"
	ZodiacSheep   ZodiacType = "ひつじ男子"
	ZodiacMonkey  ZodiacType = "さる男子"
	ZodiacRooster ZodiacType = "とり男子"
	ZodiacDog     ZodiacType = "いぬ男子"
	ZodiacBoar    ZodiacType = "いのしし男子"
)

// ZodiacOrder is the fixed label order. It is also the tie-break order.
var ZodiacOrder = []ZodiacType{
	ZodiacRat, ZodiacOx, ZodiacTiger, ZodiacRabbit, ZodiacDragon, ZodiacSnake,
	ZodiacHorse, ZodiacSheep, ZodiacMonkey, ZodiacRooster, ZodiacDog, ZodiacBoar,
}

// Metric is a ratio or count describing the other participant.
type Metric int

const (
	MetricPursuitRate     Metric = iota // pursuit messages per message
	MetricPhotoRate                     // images per message
	MetricCallRate                      // calls per message
	MetricMissedRate                    // missed calls per message
	MetricStickerRate                   // stickers per message
	MetricLoveWords                     // affection keyword hits
	MetricNegativeWords                 // negative keyword hits
	MetricURLs                          // messages containing a URL
	MetricShortRatio                    // short text messages per message
	MetricLongRatio                     // long text messages per message
	MetricCancelRatio                   // cancelled messages per message
	MetricFirstPerson                   // messages using 俺/僕/私, per message
	MetricExclaimQuestion               // ！ and ？ marks per message
	MetricLaughter                      // w and 笑 marks per message
	MetricHiragana                      // share of hiragana in all body characters
	MetricDeepHours                     // share of late night or early morning messages
	MetricPeakDay                       // busiest day volume relative to all messages
	MetricShare                         // other's share of all messages
)

// Term is a saturating contribution:
//
//	Weight * min(max(v-Offset, 0)/Saturation, 1)
//
// Mirror measures below Offset instead (Offset-v). Invert scores the
// complement, rewarding low values.
type Term struct {
	Metric     Metric
	Offset     float64
	Saturation float64
	Weight     float64
	Mirror     bool
	Invert     bool
}

// Tier awards Points when a value is at most Max. Tiers are checked in order.
type Tier struct {
	Max    float64
	Points float64
}

// Band awards Points when a value lies in [Lo, Hi]. Bands are checked in
// order, so narrower bands come first.
type Band struct {
	Lo, Hi float64
	Points float64
}

// Formula is the scoring recipe for one label.
type Formula struct {
	Label ZodiacType
	Terms []Term

	// ReplySpeed is applied to the average reply time in seconds.
	ReplySpeed []Tier
	// ReplySpread is applied to the reply time standard deviation in seconds.
	ReplySpread []Tier
	// ShareBands is applied to MetricShare.
	ShareBands []Band

	// Cap limits the raw score when positive.
	Cap float64

	// Logs where the other side sent at most QuietMaxMessages get QuietScore
	// outright, when QuietMaxMessages is positive.
	QuietMaxMessages int
	QuietScore       float64
}

// PersonalityWeights is the full tunable table for the classifier.
type PersonalityWeights struct {
	// Formulas are evaluated and reported in this order; ties go to the
	// earliest formula.
	Formulas []Formula

	// DefaultReplyMinutes stands in when the other side never replied.
	DefaultReplyMinutes float64
	// DefaultReplySpreadSec stands in when no reply spread is available.
	DefaultReplySpreadSec float64

	// A day with at least BusyDayMessages messages from the other side is
	// busy. BusyDays busy days saturate MetricPeakDay.
	BusyDayMessages int
	BusyDays        int
}

const secPerHour = 3600.0

var (
	fastReply = []Tier{
		{1 * secPerHour, 30}, {3 * secPerHour, 25}, {6 * secPerHour, 20}, {12 * secPerHour, 15},
		{24 * secPerHour, 10}, {36 * secPerHour, 10}, {48 * secPerHour, 5},
	}
	slowReply = []Tier{
		{1 * secPerHour, 0}, {3 * secPerHour, 7}, {6 * secPerHour, 15}, {12 * secPerHour, 22},
		{24 * secPerHour, 30}, {36 * secPerHour, 40}, {48 * secPerHour, 50},
	}
	erraticReply = []Tier{
		{3 * secPerHour, 0}, {6 * secPerHour, 10}, {12 * secPerHour, 20}, {24 * secPerHour, 30},
		{48 * secPerHour, 40}, {math.Inf(1), 50},
	}
	// Sheep scores its band plus half of it again.
	evenShareSheep = []Band{
		{0.495, 0.505, 75}, {0.49, 0.51, 60}, {0.48, 0.52, 45}, {0.47, 0.53, 30}, {0.46, 0.54, 15},
	}
	evenShareDog = []Band{
		{0.495, 0.505, 40}, {0.49, 0.51, 30}, {0.48, 0.52, 20}, {0.47, 0.53, 10},
	}
)

// DefaultPersonalityWeights is the production tuning.
var DefaultPersonalityWeights = PersonalityWeights{
	DefaultReplyMinutes:   60,
	DefaultReplySpreadSec: secPerHour,
	BusyDayMessages:       100,
	BusyDays:              3,
	Formulas: []Formula{
		{
			Label:      ZodiacRat,
			ReplySpeed: fastReply,
			Terms: []Term{
				{Metric: MetricPursuitRate, Saturation: 0.15, Weight: 10},
				{Metric: MetricLoveWords, Saturation: 5, Weight: 10},
				{Metric: MetricPhotoRate, Saturation: 0.15, Weight: 10},
				{Metric: MetricShare, Offset: 0.5, Saturation: 0.15, Weight: 30},
				{Metric: MetricURLs, Saturation: 5, Weight: 10},
			},
		},
		{
			Label:      ZodiacOx,
			ReplySpeed: slowReply,
			Terms: []Term{
				{Metric: MetricPursuitRate, Saturation: 0.15, Weight: 10, Invert: true},
				{Metric: MetricPhotoRate, Saturation: 0.1, Weight: 10, Invert: true},
				{Metric: MetricShortRatio, Saturation: 0.4, Weight: 30},
			},
		},
		{
			Label: ZodiacTiger,
			Terms: []Term{
				{Metric: MetricCallRate, Saturation: 0.1, Weight: 60},
				{Metric: MetricLoveWords, Saturation: 5, Weight: 10},
				{Metric: MetricShare, Offset: 0.5, Saturation: 0.1, Weight: 10, Mirror: true},
				{Metric: MetricMissedRate, Saturation: 0.1, Weight: 10},
			},
		},
		{
			Label:      ZodiacRabbit,
			ReplySpeed: fastReply,
			Cap:        100,
			Terms: []Term{
				{Metric: MetricPursuitRate, Saturation: 0.15, Weight: 30},
				{Metric: MetricLongRatio, Saturation: 0.05, Weight: 10},
				{Metric: MetricNegativeWords, Saturation: 60, Weight: 30},
				{Metric: MetricCancelRatio, Saturation: 0.03, Weight: 20},
			},
		},
		{
			Label: ZodiacDragon,
			Terms: []Term{
				{Metric: MetricFirstPerson, Saturation: 0.12, Weight: 40},
				{Metric: MetricLongRatio, Saturation: 0.05, Weight: 20},
				{Metric: MetricLoveWords, Saturation: 40, Weight: 20},
				{Metric: MetricShare, Offset: 0.5, Saturation: 0.1, Weight: 10},
				{Metric: MetricStickerRate, Saturation: 0.05, Weight: 10},
			},
		},
		{
			Label:            ZodiacSnake,
			ReplySpeed:       slowReply,
			QuietMaxMessages: 50,
			QuietScore:       120,
			Terms: []Term{
				{Metric: MetricDeepHours, Saturation: 0.1, Weight: 20},
				{Metric: MetricCancelRatio, Saturation: 0.05, Weight: 30},
			},
		},
		{
			Label:      ZodiacHorse,
			ReplySpeed: fastReply,
			Terms: []Term{
				{Metric: MetricShortRatio, Offset: 0.1, Saturation: 0.2, Weight: 20},
				{Metric: MetricStickerRate, Saturation: 0.05, Weight: 30},
				{Metric: MetricExclaimQuestion, Saturation: 0.12, Weight: 30},
				{Metric: MetricStickerRate, Saturation: 0.05, Weight: -10},
			},
		},
		{
			Label:      ZodiacSheep,
			ShareBands: evenShareSheep,
		},
		{
			Label: ZodiacMonkey,
			Cap:   99,
			Terms: []Term{
				{Metric: MetricHiragana, Saturation: 0.05, Weight: 15},
				{Metric: MetricStickerRate, Saturation: 0.05, Weight: 20},
				{Metric: MetricShortRatio, Saturation: 0.3, Weight: 10},
				{Metric: MetricExclaimQuestion, Saturation: 0.12, Weight: 30},
				{Metric: MetricLaughter, Saturation: 0.1, Weight: 30},
				{Metric: MetricPhotoRate, Saturation: 0.05, Weight: 15},
			},
		},
		{
			Label:       ZodiacRooster,
			ReplySpread: erraticReply,
			Cap:         98,
			Terms: []Term{
				{Metric: MetricShortRatio, Saturation: 0.3, Weight: 10},
				{Metric: MetricMissedRate, Saturation: 0.1, Weight: 10},
				{Metric: MetricPhotoRate, Saturation: 0.05, Weight: 10},
				{Metric: MetricDeepHours, Saturation: 0.1, Weight: 20},
				{Metric: MetricCallRate, Saturation: 0.1, Weight: 30},
			},
		},
		{
			Label:      ZodiacDog,
			ReplySpeed: fastReply,
			ShareBands: evenShareDog,
			Terms: []Term{
				{Metric: MetricPursuitRate, Saturation: 0.15, Weight: 10},
				{Metric: MetricLoveWords, Saturation: 5, Weight: 10},
				{Metric: MetricPhotoRate, Saturation: 0.15, Weight: 10},
			},
		},
		{
			Label:      ZodiacBoar,
			ReplySpeed: fastReply,
			Terms: []Term{
				{Metric: MetricLoveWords, Saturation: 40, Weight: 20},
				{Metric: MetricPeakDay, Saturation: 1, Weight: 50},
			},
		},
	},
}

// ZodiacScore is one label's score.
type ZodiacScore struct {
	Label ZodiacType `json:"label"`
	Score int        `json:"score"`
}

// PersonalityResult is the classifier output. Scores hold every label in
// formula order and Label is always their argmax.
type PersonalityResult struct {
	Label  ZodiacType    `json:"label"`
	Scores []ZodiacScore `json:"scores"`
}

// Score returns the score for a label and whether it was scored.
func (r PersonalityResult) Score(label ZodiacType) (int, bool) {
	for _, s := range r.Scores {
		if s.Label == label {
			return s.Score, true
		}
	}
	return 0, false
}

var (
	firstPersonPattern = regexp.MustCompile(`俺|僕|私`)
	exclQuesPattern    = regexp.MustCompile(`[！？!?]`)
	laughterPattern    = regexp.MustCompile(`(?i)w|笑`)
)

// PersonalityCollector gathers the body and timing ratios of the other side
// that records and behavior data do not cover.
type PersonalityCollector struct {
	// subject is the side records and behavior data hold the other
	// participant's counts under. A log with one sender keeps them on Self.
	subject  Side
	messages int

	bodyRunes     int
	hiraganaRunes int
	firstPerson   int
	exclQues      int
	laughter      int
	lateNight     int
	earlyMorning  int

	perDay map[string]int
}

// NewPersonalityCollector creates a new personality collector.
func NewPersonalityCollector() *PersonalityCollector {
	return &PersonalityCollector{subject: SideOther, perDay: make(map[string]int)}
}

// Collect processes a single message.
func (c *PersonalityCollector) Collect(msg *Message, ctx *CollectContext) {
	p := ctx.Participants
	if p.Self == p.Other {
		c.subject = SideSelf
	}
	if msg.Sender != p.Other {
		return
	}
	if msg.Type.Valid() {
		c.messages++
	}

	if msg.Body != "" {
		for _, r := range msg.Body {
			c.bodyRunes++
			if isHiragana(r) {
				c.hiraganaRunes++
			}
		}
		if firstPersonPattern.MatchString(msg.Body) {
			c.firstPerson++
		}
		c.exclQues += len(exclQuesPattern.FindAllStringIndex(msg.Body, -1))
		c.laughter += len(laughterPattern.FindAllStringIndex(msg.Body, -1))
	}

	if msg.HasTime() {
		h := msg.At.Hour()
		if h < 5 {
			c.earlyMorning++
		}
		if h >= 23 || h < 3 {
			c.lateNight++
		}
		c.perDay[dayKey(msg.At)]++
	}
}

// Finalize is a no-op; classification needs records and behavior data.
func (c *PersonalityCollector) Finalize(ctx *CollectContext) {}

// Classify scores every formula in w and picks the label.
func (c *PersonalityCollector) Classify(records RecordsData, behavior BehaviorData, w PersonalityWeights) PersonalityResult {
	in := c.inputs(records, behavior, w)

	result := PersonalityResult{Scores: make([]ZodiacScore, 0, len(w.Formulas))}
	best := -1
	for _, f := range w.Formulas {
		score := roundHalfUp(f.evaluate(in))
		result.Scores = append(result.Scores, ZodiacScore{Label: f.Label, Score: score})
		if best < 0 || score > result.Scores[best].Score {
			best = len(result.Scores) - 1
		}
	}
	if best >= 0 {
		result.Label = result.Scores[best].Label
	}
	return result
}

// classifierInputs are the resolved values every formula reads.
type classifierInputs struct {
	metrics        map[Metric]float64
	otherMessages  int
	avgReplySec    float64
	replySpreadSec float64
}

func (c *PersonalityCollector) inputs(records RecordsData, behavior BehaviorData, w PersonalityWeights) classifierInputs {
	// Both totals floor at one so ratios never divide by zero.
	tot := max(c.messages, 1)
	all := max(records.TalkCount.Self, 1) + tot
	ft := float64(tot)

	counters := behavior.Counters.Get(c.subject)
	stats := behavior.ReplyStats.Get(c.subject)

	avgMin := w.DefaultReplyMinutes
	if stats.Avg != nil {
		avgMin = float64(*stats.Avg)
	}
	spread := w.DefaultReplySpreadSec
	if stats.StdSec != nil && *stats.StdSec > 0 {
		spread = float64(*stats.StdSec)
	}

	maxPerDay, busy := 0, 0
	for _, n := range c.perDay {
		maxPerDay = max(maxPerDay, n)
		if n >= w.BusyDayMessages {
			busy++
		}
	}
	peak := float64(maxPerDay) / ft
	if w.BusyDays > 0 && busy >= w.BusyDays {
		peak = 1
	}

	hira := 0.0
	if c.bodyRunes > 0 {
		hira = float64(c.hiraganaRunes) / float64(c.bodyRunes)
	}

	return classifierInputs{
		otherMessages:  tot,
		avgReplySec:    avgMin * 60,
		replySpreadSec: spread,
		metrics: map[Metric]float64{
			MetricPursuitRate:     float64(behavior.PursuitCounts.Get(c.subject)) / ft,
			MetricPhotoRate:       float64(counters.Image) / ft,
			MetricCallRate:        float64(counters.Call) / ft,
			MetricMissedRate:      float64(counters.MissedCall) / ft,
			MetricStickerRate:     float64(counters.Sticker) / ft,
			MetricLoveWords:       float64(records.LoveWordCount.Get(c.subject)),
			MetricNegativeWords:   float64(records.NegativeWordCount.Get(c.subject)),
			MetricURLs:            float64(counters.URL),
			MetricShortRatio:      float64(behavior.ShortCounts.Get(c.subject)) / ft,
			MetricLongRatio:       float64(behavior.LongCounts.Get(c.subject)) / ft,
			MetricCancelRatio:     float64(counters.Cancel) / ft,
			MetricFirstPerson:     float64(c.firstPerson) / ft,
			MetricExclaimQuestion: float64(c.exclQues) / ft,
			MetricLaughter:        float64(c.laughter) / ft,
			MetricHiragana:        hira,
			MetricDeepHours:       math.Max(float64(c.lateNight)/ft, float64(c.earlyMorning)/ft),
			MetricPeakDay:         peak,
			MetricShare:           ft / float64(all),
		},
	}
}

func (f Formula) evaluate(in classifierInputs) float64 {
	if f.QuietMaxMessages > 0 && in.otherMessages <= f.QuietMaxMessages {
		return f.QuietScore
	}

	score := tierPoints(f.ReplySpeed, in.avgReplySec) + tierPoints(f.ReplySpread, in.replySpreadSec)
	share := in.metrics[MetricShare]
	for _, b := range f.ShareBands {
		if share >= b.Lo && share <= b.Hi {
			score += b.Points
			break
		}
	}
	for _, t := range f.Terms {
		score += t.contribution(in.metrics[t.Metric])
	}

	if f.Cap > 0 && score > f.Cap {
		score = f.Cap
	}
	return score
}

func (t Term) contribution(v float64) float64 {
	if t.Saturation <= 0 {
		return 0
	}
	x := v - t.Offset
	if t.Mirror {
		x = t.Offset - v
	}
	frac := math.Min(math.Max(x, 0)/t.Saturation, 1)
	if t.Invert {
		frac = 1 - frac
	}
	return frac * t.Weight
}

func tierPoints(tiers []Tier, v float64) float64 {
	for _, t := range tiers {
		if v <= t.Max {
			return t.Points
		}
	}
	return 0
}

// ClassifyPersonality scores the other participant using precomputed
// records and behavior data.
func ClassifyPersonality(messages []Message, p Participants, records RecordsData, behavior BehaviorData, w PersonalityWeights) PersonalityResult {
	c := NewPersonalityCollector()
	RunCollectors(messages, p, time.Time{}, c)
	return c.Classify(records, behavior, w)
}

func isHiragana(r rune) bool {
	return r >= 0x3040 && r <= 0x309F
}
