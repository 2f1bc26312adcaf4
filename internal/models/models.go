package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FileJob is a talk log sent to the bot that still needs diagnosing.
// It travels through the queue as JSON.
type FileJob struct {
	LineUserID string    `json:"line_user_id"`
	MessageID  string    `json:"message_id"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Diagnosis is a persisted compatibility diagnosis
type Diagnosis struct {
	ID              uuid.UUID       `json:"id"`
	LineUserID      string          `json:"line_user_id"`
	SourceMessageID string          `json:"source_message_id"`
	SelfName        string          `json:"self_name"`
	OtherName       string          `json:"other_name"`
	MessageCount    int             `json:"message_count"`
	OverallScore    int             `json:"overall_score"`
	Personality     string          `json:"personality"`
	CommonWords     []string        `json:"common_words"`
	Report          json.RawMessage `json:"report"`
	LogObjectKey    *string         `json:"log_object_key,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// DiagnosisSummary is a Diagnosis without its report payload, used in listings
type DiagnosisSummary struct {
	ID           uuid.UUID `json:"id"`
	SelfName     string    `json:"self_name"`
	OtherName    string    `json:"other_name"`
	MessageCount int       `json:"message_count"`
	OverallScore int       `json:"overall_score"`
	Personality  string    `json:"personality"`
	CreatedAt    time.Time `json:"created_at"`
}
