package analytics

import "strings"

// Placeholder names used when a log has no senders at all.
const (
	PlaceholderSelf  = "自分"
	PlaceholderOther = "相手"
)

// Participants names the two sides of a conversation.
type Participants struct {
	Self  string `json:"self"`
	Other string `json:"other"`
}

// Side identifies which participant a message belongs to.
type Side int

const (
	SideSelf Side = iota
	SideOther
)

// SideOf attributes a message to a side. Any sender that is not Self counts
// as Other, so group exports collapse into a two-sided view.
func (p Participants) SideOf(m *Message) Side {
	if m.Sender == p.Self {
		return SideSelf
	}
	return SideOther
}

// Name returns the display name for a side.
func (p Participants) Name(s Side) string {
	if s == SideSelf {
		return p.Self
	}
	return p.Other
}

// ResolveParticipants picks self and other from the distinct senders in
// first-seen order. Self is the first sender whose name contains hint (when
// hint is non-empty), otherwise the first sender. Other is the first sender
// that is not self; a single-sender log uses self for both.
func ResolveParticipants(messages []Message, hint string) Participants {
	var names []string
	seen := make(map[string]bool)
	for i := range messages {
		n := messages[i].Sender
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}

	if len(names) == 0 {
		return Participants{Self: PlaceholderSelf, Other: PlaceholderOther}
	}

	self := names[0]
	if hint != "" {
		for _, n := range names {
			if strings.Contains(n, hint) {
				self = n
				break
			}
		}
	}

	other := self
	for _, n := range names {
		if n != self {
			other = n
			break
		}
	}
	return Participants{Self: self, Other: other}
}

// Pair holds one value per side. It stands in for maps keyed by display name
// so results stay well-formed even when both names are equal.
type Pair[T any] struct {
	Self  T `json:"self"`
	Other T `json:"other"`
}

// Of returns a pointer to the value for side s.
func (p *Pair[T]) Of(s Side) *T {
	if s == SideSelf {
		return &p.Self
	}
	return &p.Other
}

// Get returns the value for side s.
func (p Pair[T]) Get(s Side) T {
	if s == SideSelf {
		return p.Self
	}
	return p.Other
}

// Sum adds both sides of an integer pair.
func Sum(p Pair[int]) int {
	return p.Self + p.Other
}
