package model

import "time"

// CachedSolution is a durable cache entry keyed by pattern ID. The result
// cache is the single owner; other components read it through the cache API.
type CachedSolution struct {
	CachedAt           time.Time `json:"cached_at"`
	LastAccessed       time.Time `json:"last_accessed"`
	PatternID          string    `json:"pattern_id"`
	SolutionText       string    `json:"solution_text"`
	ApplicableContexts []string  `json:"applicable_contexts,omitempty"`
	FixTemplates       []string  `json:"fix_templates,omitempty"`
	Preventions        []string  `json:"preventions,omitempty"`
	ConfidenceScore    float64   `json:"confidence_score"` // 0-100
	SuccessRate        float64   `json:"success_rate"`     // 0-100
	UsageCount         int64     `json:"usage_count"`
}

// DiscoveredPattern is one pattern learned from an external analysis run,
// ready to be upserted into the result cache.
type DiscoveredPattern struct {
	PatternID          string   `json:"pattern_id"`
	RootCause          string   `json:"root_cause"`
	Prevention         string   `json:"prevention"`
	FixTemplate        string   `json:"fix_template"`
	Category           string   `json:"category"`
	ApplicableContexts []string `json:"applicable_contexts"`
	Confidence         float64  `json:"confidence"`
}

// CacheStatistics summarizes cache effectiveness from running hit/miss counters.
type CacheStatistics struct {
	TotalEntries     int64   `json:"total_entries"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hit_rate"` // 0-1
	CallsSaved       int64   `json:"calls_saved"`
	EstimatedSavings float64 `json:"estimated_savings"` // Currency units
}
