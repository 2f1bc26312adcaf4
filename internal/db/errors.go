package db

import "errors"

// Sentinel errors for type-safe error checking
// Use errors.Is() instead of string comparison
var (
	ErrDiagnosisNotFound = errors.New("diagnosis not found")

	// ErrDuplicateDiagnosis means the same LINE message was already diagnosed
	ErrDuplicateDiagnosis = errors.New("diagnosis already exists for this message")
)
