package diagnosis

import (
	"errors"
	"fmt"

	"github.com/ConfabulousDev/lovelog/internal/line"
)

type step string

const (
	stepDownload step = "download"
	stepParse    step = "parse"
	stepPush     step = "push"
)

// stepError records which pipeline step failed.
type stepError struct {
	step step
	err  error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}

// FailureText picks the message pushed to the user for a failed job.
func FailureText(err error) string {
	var se *stepError
	if !errors.As(err, &se) {
		return FallbackText
	}
	switch se.step {
	case stepDownload:
		if errors.Is(err, line.ErrContentTooLarge) {
			return TooLargeText
		}
		return ReadFailedText
	case stepParse:
		return ParseFailedText
	default:
		return FallbackText
	}
}
