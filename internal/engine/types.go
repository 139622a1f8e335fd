package engine

import (
	"time"

	"github.com/jmorgan/errsage/internal/model"
)

// Outcome labels reported by the batch-analysis and risk-scan verbs.
const (
	OutcomeResolvedLocally     = "resolved_locally"
	OutcomeEscalated           = "escalated"
	OutcomeQueued              = "queued"
	OutcomeLocalFallbackBudget = "local_fallback_budget_exceeded"
	OutcomeLocalOnly           = "local_only"
	RecommendationSafe         = "safe"
	RecommendationReviewNeeded = "review_required"
)

// Report depth levels.
const (
	ReportDepthSummary  = "summary"
	ReportDepthDetailed = "detailed"
)

// defaultRiskThreshold is the review cutoff used when a scan does not
// supply its own.
const defaultRiskThreshold = 50

// CaptureResult answers one capture call. Exactly one of Solution,
// Match actions, or QueueInfo carries the useful payload when Error
// is empty.
type CaptureResult struct {
	Match           *model.MatchResult    `json:"match,omitempty"`
	Solution        *model.CachedSolution `json:"solution,omitempty"`
	QueueInfo       *model.QueueInfo      `json:"queue_info,omitempty"`
	Error           string                `json:"error,omitempty"`
	ResolvedLocally bool                  `json:"resolved_locally"`
}

// BatchResult summarizes one batch analysis across all submitted errors.
type BatchResult struct {
	Outcome        string                    `json:"outcome"`
	LocalMatches   []model.MatchResult       `json:"local_matches"`
	Discovered     []model.DiscoveredPattern `json:"discovered,omitempty"`
	NovelInsights  []string                  `json:"novel_insights,omitempty"`
	Correlations   []string                  `json:"correlations,omitempty"`
	Error          string                    `json:"error,omitempty"`
	Cost           float64                   `json:"cost"`
	LocalCount     int                       `json:"local_count"`
	EscalatedCount int                       `json:"escalated_count"`
}

// Fix is one suggested remediation, ordered most trustworthy first.
type Fix struct {
	Template    string  `json:"template"`
	Source      string  `json:"source"`
	Confidence  float64 `json:"confidence"`
	SuccessRate float64 `json:"success_rate"`
}

// Fix sources.
const (
	FixSourceCache   = "cache"
	FixSourceLibrary = "library"
)

// FixesResult answers a suggest-fixes call.
type FixesResult struct {
	PatternID     string   `json:"pattern_id"`
	TargetContext string   `json:"target_context,omitempty"`
	Fixes         []Fix    `json:"fixes"`
	Preventions   []string `json:"preventions,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// OutcomeAck confirms recorded feedback with the recalibrated scores.
type OutcomeAck struct {
	PatternID         string  `json:"pattern_id"`
	Error             string  `json:"error,omitempty"`
	SuccessRate       float64 `json:"success_rate"`
	ConfidenceScore   float64 `json:"confidence_score"`
	ResolutionMinutes float64 `json:"resolution_minutes,omitempty"`
	Recorded          bool    `json:"recorded"`
}

// RiskResult answers a risk scan over proposed code changes.
type RiskResult struct {
	Recommendation string   `json:"recommendation"`
	MatchedRisks   []string `json:"matched_risks,omitempty"`
	Error          string   `json:"error,omitempty"`
	RiskScore      float64  `json:"risk_score"`
	RiskThreshold  float64  `json:"risk_threshold"`
}

// EnrichmentResult answers an explicit escalation request.
type EnrichmentResult struct {
	Discovered    []model.DiscoveredPattern `json:"discovered,omitempty"`
	NovelInsights []string                  `json:"novel_insights,omitempty"`
	Error         string                    `json:"error,omitempty"`
	Cost          float64                   `json:"cost"`
	Escalated     int                       `json:"escalated"`
}

// GuidanceReport is the periodic effectiveness summary.
type GuidanceReport struct {
	GeneratedAt  time.Time              `json:"generated_at"`
	ID           string                 `json:"id"`
	Target       string                 `json:"target"`
	Period       string                 `json:"period"`
	Depth        string                 `json:"depth"`
	TopSolutions []model.CachedSolution `json:"top_solutions,omitempty"`
	Guidance     []string               `json:"guidance,omitempty"`
	Error        string                 `json:"error,omitempty"`
	CacheStats   model.CacheStatistics  `json:"cache_stats"`
	Budget       model.BudgetStatus     `json:"budget"`
	QueueDepth   int                    `json:"queue_depth"`
}

// TaxonomyStats answers a taxonomy update.
type TaxonomyStats struct {
	Error         string `json:"error,omitempty"`
	TotalEntries  int64  `json:"total_entries"`
	Added         int    `json:"added"`
	Relationships int    `json:"relationships"`
}
