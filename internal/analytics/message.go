package analytics

import "time"

// MessageType is the closed set of message kinds found in a LINE talk export.
type MessageType string

const (
	TypeText       MessageType = "text"
	TypeSticker    MessageType = "sticker"
	TypeImage      MessageType = "image"
	TypeVideo      MessageType = "video"
	TypeVoice      MessageType = "voice"
	TypeFile       MessageType = "file"
	TypeCall       MessageType = "call"
	TypeMissedCall MessageType = "missedCall"
)

// AllMessageTypes lists every MessageType in a fixed order.
var AllMessageTypes = []MessageType{
	TypeText, TypeSticker, TypeImage, TypeVideo, TypeVoice, TypeFile, TypeCall, TypeMissedCall,
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeSticker, TypeImage, TypeVideo, TypeVoice, TypeFile, TypeCall, TypeMissedCall:
		return true
	}
	return false
}

// Message is one parsed line of a talk export. Messages are produced once by
// the parser and never mutated afterwards.
type Message struct {
	// Datetime is the raw "YYYY/MM/DD HH:MM" string built from the current
	// date header and the line's time token.
	Datetime string `json:"datetime"`

	// At is the parsed instant. It is the zero time when the time token could
	// not be parsed; such messages are still counted but never timed.
	At time.Time `json:"-"`

	Sender string      `json:"sender"`
	Type   MessageType `json:"type"`
	Body   string      `json:"body"`

	// DurationSec is only set for TypeCall.
	DurationSec *int `json:"durationSec,omitempty"`
}

// HasTime reports whether the message carries a usable timestamp.
func (m *Message) HasTime() bool {
	return !m.At.IsZero()
}
