// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/jmorgan/errsage/internal/model"
)

// Storage defines the contract for the persistence layer: the durable
// solution cache plus the append-only usage ledger.
type Storage interface {
	// Solution cache operations
	GetSolution(ctx context.Context, patternID string) (*model.CachedSolution, error)
	SaveSolution(ctx context.Context, solution *model.CachedSolution) error
	TouchSolution(ctx context.Context, patternID string, accessedAt time.Time) error
	UpdateSolutionScores(ctx context.Context, patternID string, successRate, confidenceScore float64) error
	ListSolutions(ctx context.Context) ([]model.CachedSolution, error)
	DeleteSolutions(ctx context.Context, patternIDs []string) (int64, error)
	CountSolutions(ctx context.Context) (int64, error)

	// Usage ledger operations
	AppendUsage(ctx context.Context, record model.UsageRecord) error
	GetUsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error)

	// Unresolved-item log
	RecordUnresolved(ctx context.Context, item model.QueuedItem) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// AnalysisClient is the outbound contract to the external analysis service.
type AnalysisClient interface {
	Analyze(ctx context.Context, prompt string) (string, Usage, error)
}

// Usage reports token consumption for one external call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Classifier matches error contexts against the pattern library.
type Classifier interface {
	Match(ctx context.Context, errCtx model.ErrorContext) (model.MatchResult, error)
}

// ResultCache is the single owner of cached solutions.
type ResultCache interface {
	Get(ctx context.Context, patternID string) (*model.CachedSolution, error)
	PutBatch(ctx context.Context, discovered []model.DiscoveredPattern) error
	UpdateEffectiveness(ctx context.Context, patternID string, wasSuccessful bool, note string) (*model.CachedSolution, error)
	SearchSimilar(ctx context.Context, signature string, threshold float64) ([]model.CachedSolution, error)
	Cleanup(ctx context.Context) (int64, error)
	Statistics(ctx context.Context) (model.CacheStatistics, error)
}
