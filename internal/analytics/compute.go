package analytics

import "time"

// NounExtractor finds the most used nouns per side. Implementations live
// outside this package so the pipeline stays free of dictionary data.
type NounExtractor interface {
	TopNouns(messages []Message, p Participants, n int) Pair[[]PhraseCount]
}

// Options tune a single analysis run. The zero value is usable.
type Options struct {
	// Now anchors date arithmetic. Zero means time.Now().
	Now time.Time

	// Weights overrides DefaultPersonalityWeights when non-nil.
	Weights *PersonalityWeights

	// Nouns adds a noun ranking to the report when non-nil.
	Nouns     NounExtractor
	NounLimit int
}

const defaultNounLimit = 10

// Report bundles every section of one analysis.
type Report struct {
	Participants Participants `json:"participants"`
	MessageCount int          `json:"messageCount"`
	AnalyzedAt   time.Time    `json:"analyzedAt"`

	Records       RecordsData         `json:"records"`
	Habits        HabitsData          `json:"habits"`
	Behavior      BehaviorData        `json:"behavior"`
	Compatibility CompatibilityResult `json:"compatibility"`
	Personality   PersonalityResult   `json:"personality"`

	// WeakestAxis is the lowest compatibility axis, for advice.
	WeakestAxis string `json:"weakestAxis"`

	Nouns *Pair[[]PhraseCount] `json:"nouns,omitempty"`
}

// Analyze runs the whole pipeline over already parsed messages. All
// collectors share one pass; the scorer and classifier run afterwards on
// their outputs.
func Analyze(messages []Message, hint string, opts Options) *Report {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	weights := DefaultPersonalityWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	p := ResolveParticipants(messages, hint)

	records := NewRecordsCollector()
	habits := NewHabitsCollector()
	behavior := NewBehaviorCollector()
	compat := NewCompatibilityCollector()
	personality := NewPersonalityCollector()

	ctx := RunCollectors(messages, p, now, records, habits, behavior, compat, personality)

	report := &Report{
		Participants: p,
		MessageCount: ctx.MessageCount,
		AnalyzedAt:   now,
		Records:      records.Data,
		Habits:       habits.Data,
		Behavior:     behavior.Data,
	}
	report.Compatibility = compat.Score(records.Data)
	report.Personality = personality.Classify(records.Data, behavior.Data, weights)
	report.WeakestAxis = report.Compatibility.Weakest()

	if opts.Nouns != nil {
		limit := opts.NounLimit
		if limit <= 0 {
			limit = defaultNounLimit
		}
		nouns := opts.Nouns.TopNouns(messages, p, limit)
		report.Nouns = &nouns
	}
	return report
}

// AnalyzeText parses a talk export and analyzes it.
func AnalyzeText(text, hint string, opts Options) *Report {
	return Analyze(Parse(text), hint, opts)
}
