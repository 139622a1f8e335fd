package model

import (
	"fmt"
	"time"
)

// ErrorPattern is a library entry describing a known error signature and
// how to deal with it. Identity (ID) is immutable; SuccessRate is the only
// field mutated after creation, via effectiveness feedback.
type ErrorPattern struct {
	LastUpdated         time.Time
	ID                  string
	Category            string
	Signature           string // Matching rule, interpreted by the configured Matcher
	Causes              []string
	Preventions         []string
	FixTemplates        []string
	ConfidenceThreshold float64 // 0-100, minimum score to accept a match
	SuccessRate         float64 // 0-100, updated by feedback
}

// Validate checks that the pattern is well-formed enough to load.
func (p *ErrorPattern) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("pattern id is required")
	}
	if p.Signature == "" {
		return fmt.Errorf("pattern %s: signature is required", p.ID)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 100 {
		return fmt.Errorf("pattern %s: confidence threshold must be 0-100, got %.1f", p.ID, p.ConfidenceThreshold)
	}
	return nil
}

// MatchResult is the classifier's verdict for one error context.
type MatchResult struct {
	PatternID        string   `json:"pattern_id,omitempty"`
	Category         string   `json:"category,omitempty"`
	SuggestedActions []string `json:"suggested_actions,omitempty"`
	Confidence       float64  `json:"confidence"` // 0-100
	Matched          bool     `json:"matched"`    // False means "novel error, escalate"
}

// Unmatched returns the sentinel result for an error no pattern could
// confidently resolve.
func Unmatched() MatchResult {
	return MatchResult{
		Confidence:       0,
		Matched:          false,
		SuggestedActions: []string{"escalate: queue for external analysis"},
	}
}
