package model

import "time"

// ProcessingResult summarizes one pseudonymized document
type ProcessingResult struct {
	Document       *Document     `json:"document,omitempty"`
	Text           string        `json:"text,omitempty"` // Pseudonymized output text
	Assignments    []Assignment  `json:"assignments,omitempty"`
	EntityCount    int           `json:"entity_count"`    // Occurrences replaced
	NewEntities    int           `json:"new_entities"`    // Mappings created by this run
	ReusedEntities int           `json:"reused_entities"` // Mappings found in the store
	Skipped        int           `json:"skipped"`         // Occurrences rejected during validation
	Duration       time.Duration `json:"duration"`
	Success        bool          `json:"success"`
	// Error carries the sanitized failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// BatchFailure records one document that could not be processed.
// Reason is sanitized and safe to log or persist.
type BatchFailure struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// BatchSummary aggregates processing results over a batch run
type BatchSummary struct {
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	Cancelled   bool           `json:"cancelled"`
	EntityCount int            `json:"entity_count"`
	NewEntities int            `json:"new_entities"`
	Duration    time.Duration  `json:"duration"`
	Failures    []BatchFailure `json:"failures,omitempty"`
}
