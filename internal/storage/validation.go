// Package storage provides the data persistence layer for the errsage engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmorgan/errsage/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidSolution = errors.New("invalid solution")
	ErrInvalidUsage    = errors.New("invalid usage record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSolution validates a cached solution before persistence.
func validateSolution(sol *model.CachedSolution) error {
	if sol == nil {
		return fmt.Errorf("%w: solution", ErrNilParameter)
	}
	if strings.TrimSpace(sol.PatternID) == "" {
		return fmt.Errorf("%w: pattern id is required", ErrInvalidSolution)
	}
	if sol.ConfidenceScore < 0 || sol.ConfidenceScore > 100 {
		return fmt.Errorf("%w: confidence score must be 0-100, got %.1f", ErrInvalidSolution, sol.ConfidenceScore)
	}
	if sol.SuccessRate < 0 || sol.SuccessRate > 100 {
		return fmt.Errorf("%w: success rate must be 0-100, got %.1f", ErrInvalidSolution, sol.SuccessRate)
	}
	return nil
}

// validateUsage validates a usage record before it is appended to the ledger.
func validateUsage(rec *model.UsageRecord) error {
	if rec.Cost < 0 {
		return fmt.Errorf("%w: cost cannot be negative", ErrInvalidUsage)
	}
	if rec.Tokens < 0 {
		return fmt.Errorf("%w: tokens cannot be negative", ErrInvalidUsage)
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidUsage)
	}
	return nil
}
