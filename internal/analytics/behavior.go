package analytics

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// A repeat message after this long without a reply counts as pursuit.
	pursuitGap = 30 * time.Minute

	shortMessageMaxRunes = 7
	longMessageMinRunes  = 100

	// Reply intervals longer than a week are treated as outliers.
	MaxReplyMinutes = 7 * 24 * 60
)

const cancelMarker = "[送信取消]"

var (
	urlPattern      = regexp.MustCompile(`https?://`)
	wRunPattern     = regexp.MustCompile(`[wｗ]{2,}`)
	exclaimPattern  = regexp.MustCompile(`[!！]`)
	questionPattern = regexp.MustCompile(`[?？]`)
	greetingPattern = regexp.MustCompile(`おはよ|こんにちは|こんばんは|おやすみ`)
	thanksPattern   = regexp.MustCompile(`ありがとう|感謝`)
	apologyPattern  = regexp.MustCompile(`ごめん|すみません`)
)

// Counters are per-side message type and content tallies. Text
// sub-counters count messages that match, not matches.
type Counters struct {
	Sticker         int `json:"sticker"`
	Image           int `json:"image"`
	Video           int `json:"video"`
	Voice           int `json:"voice"`
	File            int `json:"file"`
	MissedCall      int `json:"missedCall"`
	Call            int `json:"call"`
	CallDurationSec int `json:"callDurationSec"`

	Cancel   int `json:"cancel"`
	URL      int `json:"url"`
	Laugh    int `json:"laugh"`
	W        int `json:"w"`
	Exclaim  int `json:"exclaim"`
	Question int `json:"question"`
	Greeting int `json:"greeting"`
	Thanks   int `json:"thanks"`
	Apology  int `json:"apology"`
}

// ReplyStats summarises one side's reply intervals in minutes. All fields
// are nil when no interval survived outlier filtering.
type ReplyStats struct {
	Avg     *int `json:"avg"`
	Fastest *int `json:"fastest"`
	Slowest *int `json:"slowest"`
	// StdSec is the population standard deviation, in seconds.
	StdSec *int `json:"stdSec"`
}

// BehaviorData describes how each side replies and what they send.
type BehaviorData struct {
	Counters      Pair[Counters]   `json:"counters"`
	ShortCounts   Pair[int]        `json:"shortCounts"`
	LongCounts    Pair[int]        `json:"longCounts"`
	PursuitCounts Pair[int]        `json:"pursuitCounts"`
	ReplyStats    Pair[ReplyStats] `json:"replyStats"`

	// ReplyMinutes holds every recorded interval before outlier filtering.
	ReplyMinutes Pair[[]int] `json:"replyMinutes"`
}

// BehaviorCollector computes BehaviorData with a single forward pass.
//
// State machine semantics:
//   - When the side changes, the gap since the previous message is recorded
//     as the new side's reply interval.
//   - When the same side sends again after at least 30 minutes, that side's
//     pursuit counter is incremented.
//
// Messages without a timestamp do not touch the timing state. Negative gaps
// from out-of-order rows are ignored.
type BehaviorCollector struct {
	Data BehaviorData

	prev     time.Time
	lastSide Side
	started  bool
}

// NewBehaviorCollector creates a new behavior collector.
func NewBehaviorCollector() *BehaviorCollector {
	return &BehaviorCollector{}
}

// Collect processes a single message.
func (c *BehaviorCollector) Collect(msg *Message, ctx *CollectContext) {
	side := ctx.Participants.SideOf(msg)

	if msg.HasTime() {
		if c.started {
			gap := msg.At.Sub(c.prev)
			if gap >= 0 {
				if side != c.lastSide {
					mins := int(gap / time.Minute)
					list := c.Data.ReplyMinutes.Of(side)
					*list = append(*list, mins)
				} else if gap >= pursuitGap {
					(*c.Data.PursuitCounts.Of(side))++
				}
			}
		}
		c.prev = msg.At
		c.lastSide = side
		c.started = true
	}

	counters := c.Data.Counters.Of(side)
	switch msg.Type {
	case TypeText:
		n := utf8.RuneCountInString(msg.Body)
		if n <= shortMessageMaxRunes {
			(*c.Data.ShortCounts.Of(side))++
		}
		if n >= longMessageMinRunes {
			(*c.Data.LongCounts.Of(side))++
		}
		countText(counters, msg.Body)
	case TypeSticker:
		counters.Sticker++
	case TypeImage:
		counters.Image++
	case TypeVideo:
		counters.Video++
	case TypeVoice:
		counters.Voice++
	case TypeFile:
		counters.File++
	case TypeMissedCall:
		counters.MissedCall++
	case TypeCall:
		counters.Call++
		if msg.DurationSec != nil {
			counters.CallDurationSec += *msg.DurationSec
		}
	}
}

func countText(c *Counters, body string) {
	if strings.Contains(body, cancelMarker) {
		c.Cancel++
	}
	if urlPattern.MatchString(body) {
		c.URL++
	}
	if strings.Contains(body, "笑") {
		c.Laugh++
	}
	if wRunPattern.MatchString(body) {
		c.W++
	}
	if exclaimPattern.MatchString(body) {
		c.Exclaim++
	}
	if questionPattern.MatchString(body) {
		c.Question++
	}
	if greetingPattern.MatchString(body) {
		c.Greeting++
	}
	if thanksPattern.MatchString(body) {
		c.Thanks++
	}
	if apologyPattern.MatchString(body) {
		c.Apology++
	}
}

// Finalize filters outliers and computes reply statistics.
func (c *BehaviorCollector) Finalize(ctx *CollectContext) {
	for _, side := range []Side{SideSelf, SideOther} {
		*c.Data.ReplyStats.Of(side) = computeReplyStats(c.Data.ReplyMinutes.Get(side))
	}
}

func computeReplyStats(raw []int) ReplyStats {
	var kept []int
	for _, m := range raw {
		if m <= MaxReplyMinutes {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return ReplyStats{}
	}

	fastest, slowest, sum := kept[0], kept[0], 0
	for _, m := range kept {
		sum += m
		fastest = min(fastest, m)
		slowest = max(slowest, m)
	}
	mean := float64(sum) / float64(len(kept))

	var sq float64
	for _, m := range kept {
		d := float64(m) - mean
		sq += d * d
	}
	std := roundHalfUp(math.Sqrt(sq/float64(len(kept))) * 60)
	avg := roundHalfUp(mean)

	return ReplyStats{Avg: &avg, Fastest: &fastest, Slowest: &slowest, StdSec: &std}
}

// roundHalfUp rounds to the nearest integer with halves going up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// AggregateBehavior runs a BehaviorCollector over messages.
func AggregateBehavior(messages []Message, p Participants) BehaviorData {
	c := NewBehaviorCollector()
	RunCollectors(messages, p, time.Time{}, c)
	return c.Data
}
