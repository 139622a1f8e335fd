// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ErrorContext represents a single captured error from any source.
type ErrorContext struct {
	ID          string            `json:"id,omitempty"`
	Message     string            `json:"message"`
	StackTrace  string            `json:"stack_trace,omitempty"`
	Context     string            `json:"context,omitempty"`     // Free-form description of what was happening (e.g. "build", "api call")
	Environment string            `json:"environment,omitempty"` // Where it happened (e.g. "production", "development", "test")
	Platform    string            `json:"platform,omitempty"`    // Runtime/platform hint (e.g. "node", "go", "ci")
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Signature produces the case-folded message+stack string that matchers
// evaluate against.
func (e *ErrorContext) Signature() string {
	return strings.ToLower(strings.TrimSpace(e.Message + " " + e.StackTrace))
}

// Hash creates a content hash over the (message, stack, context) triple,
// used for memoization and batch deduplication.
func (e *ErrorContext) Hash() string {
	data := fmt.Sprintf("%s|%s|%s", e.Message, e.StackTrace, e.Context)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// Validate checks that the required fields are present.
func (e *ErrorContext) Validate() error {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("error message is required")
	}
	return nil
}
