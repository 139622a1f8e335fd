package model

import "time"

// AnalysisDepth controls how far a batch analysis may go.
type AnalysisDepth string

// Analysis depth levels.
const (
	DepthLocalOnly        AnalysisDepth = "local_only"
	DepthEscalateIfNeeded AnalysisDepth = "escalate_if_needed"
	DepthComprehensive    AnalysisDepth = "comprehensive"
)

// AnalysisResult is the parsed output of one external analysis call.
type AnalysisResult struct {
	Patterns                 []DiscoveredPattern
	NovelInsights            []string
	CrossContextCorrelations []string
	Note                     string // Diagnostic note on lenient-parse outcomes
	TokensUsed               int64
	Cost                     float64
}

// UsageRecord is one append-only ledger entry for an external call.
type UsageRecord struct {
	Timestamp time.Time
	Cost      float64
	Tokens    int64
	BatchSize int
}

// BudgetStatus is a snapshot of the rolling spend counters.
type BudgetStatus struct {
	CanProceed      bool    `json:"can_proceed"`
	RemainingBudget float64 `json:"remaining_budget"`
	DailyCeiling    float64 `json:"daily_ceiling"`
	SpentToday      float64 `json:"spent_today"`
	SpentThisWeek   float64 `json:"spent_this_week"`
	SpentThisMonth  float64 `json:"spent_this_month"`
	CallsMadeToday  int     `json:"calls_made_today"`
}

// Outcome is a caller-reported effectiveness result for a cached solution.
type Outcome string

// Outcome values.
const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Valid reports whether o is a recognized outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
		return true
	}
	return false
}
