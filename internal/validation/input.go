package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation limits for URL and query parameters
const (
	MaxNameHintLength = 50 // Max runes in the ?me= display name hint
	DefaultListLimit  = 20
	MaxListLimit      = 100
)

// LINE user IDs are "U" followed by 32 lowercase hex chars
var lineUserIDRegex = regexp.MustCompile(`^U[0-9a-f]{32}$`)

// ValidateLineUserID validates a LINE user ID from URL parameters
func ValidateLineUserID(id string) error {
	if id == "" {
		return fmt.Errorf("line_user_id is required")
	}
	if !lineUserIDRegex.MatchString(id) {
		return fmt.Errorf("line_user_id must be U followed by 32 hex characters")
	}
	return nil
}

// ParseDiagnosisID validates and parses a diagnosis ID from URL parameters
func ParseDiagnosisID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("diagnosis id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("diagnosis id must be a UUID")
	}
	return id, nil
}

// ValidateNameHint validates the optional display name hint.
// An empty hint is allowed.
func ValidateNameHint(hint string) error {
	if !utf8.ValidString(hint) {
		return fmt.Errorf("me must be valid UTF-8")
	}
	if utf8.RuneCountInString(hint) > MaxNameHintLength {
		return fmt.Errorf("me must be at most %d characters", MaxNameHintLength)
	}
	return nil
}

// ParseListLimit parses the ?limit= parameter, defaulting when empty
func ParseListLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 || n > MaxListLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxListLimit)
	}
	return n, nil
}
