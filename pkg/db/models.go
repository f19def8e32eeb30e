package db

import "time"

// Outcome of a single existence check.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// Check is one journaled existence check.
type Check struct {
	ID        int64
	RunID     string
	Locale    string
	Slug      string
	Outcome   Outcome
	Error     string
	CheckedAt time.Time
}

// SweptLocale records that a run covered a locale.
type SweptLocale struct {
	Locale  string
	RunID   string
	SweptAt time.Time
}
