// Package cache implements the durable result cache: the single source of
// truth for solutions learned from external analysis. Once a pattern is
// cached it is never paid for again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/pattern"
	"github.com/jmorgan/errsage/internal/service"
)

// ResultCache owns all CachedSolution records. Every mutation is persisted
// before the call returns; reads of distinct keys may run concurrently and
// SQLite serializes same-key writes (last writer wins, which is acceptable
// because cache values are idempotent reinforcements).
type ResultCache struct {
	store       service.Storage
	logger      *slog.Logger
	tunables    config.Tunables
	perCallCost float64

	statsMu sync.Mutex
	hits    int64
	misses  int64
}

// New creates a result cache over the given storage.
func New(store service.Storage, tunables config.Tunables, perCallCost float64, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultCache{
		store:       store,
		logger:      logger,
		tunables:    tunables,
		perCallCost: perCallCost,
	}
}

// Get looks up a solution by pattern ID. On a hit it increments the usage
// count and refreshes the last-accessed timestamp, persisting both before
// returning. A storage failure is logged and reported as a miss so that
// classification can continue uncached.
func (c *ResultCache) Get(ctx context.Context, patternID string) (*model.CachedSolution, error) {
	sol, err := c.store.GetSolution(ctx, patternID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			c.logger.Error("cache read failed, treating as miss", "pattern_id", patternID, "error", err)
		}
		c.recordMiss()
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, patternID)
	}

	now := time.Now().UTC()
	if err := c.store.TouchSolution(ctx, patternID, now); err != nil {
		// The hit is still valid; the counter update is best-effort.
		c.logger.Warn("failed to update usage counters", "pattern_id", patternID, "error", err)
	} else {
		sol.UsageCount++
		sol.LastAccessed = now
	}

	c.recordHit()
	return sol, nil
}

// PutBatch upserts discovered patterns. New IDs are inserted with the
// default success rate and the discovery's confidence; existing IDs are
// merged as a reinforcement.
func (c *ResultCache) PutBatch(ctx context.Context, discovered []model.DiscoveredPattern) error {
	for _, d := range discovered {
		if strings.TrimSpace(d.PatternID) == "" {
			return fmt.Errorf("discovered pattern is missing a pattern id")
		}

		existing, err := c.store.GetSolution(ctx, d.PatternID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("failed to check for existing solution: %w", err)
		}

		if existing == nil {
			sol := newSolution(d, c.tunables.DefaultSuccessRate)
			if err := c.store.SaveSolution(ctx, sol); err != nil {
				return fmt.Errorf("failed to insert solution %s: %w", d.PatternID, err)
			}
			c.logger.Info("cached new solution", "pattern_id", d.PatternID, "confidence", sol.ConfidenceScore)
			continue
		}

		merged := mergeSolution(existing, d, c.tunables)
		if err := c.store.SaveSolution(ctx, merged); err != nil {
			return fmt.Errorf("failed to reinforce solution %s: %w", d.PatternID, err)
		}
		c.logger.Debug("reinforced existing solution", "pattern_id", d.PatternID)
	}
	return nil
}

// UpdateEffectiveness applies caller feedback: an exponential-moving-average
// update of the success rate and a bounded nudge of the confidence score.
func (c *ResultCache) UpdateEffectiveness(ctx context.Context, patternID string, wasSuccessful bool, note string) (*model.CachedSolution, error) {
	sol, err := c.store.GetSolution(ctx, patternID)
	if err != nil {
		return nil, fmt.Errorf("cannot record feedback: %w", err)
	}

	w := c.tunables.FeedbackWeight
	target := 0.0
	if wasSuccessful {
		target = 100.0
	}
	sol.SuccessRate = sol.SuccessRate*(1-w) + target*w

	if wasSuccessful {
		sol.ConfidenceScore += c.tunables.ConfidenceReward
		if sol.ConfidenceScore > 100 {
			sol.ConfidenceScore = 100
		}
	} else {
		sol.ConfidenceScore -= c.tunables.ConfidencePenalty
		if sol.ConfidenceScore < c.tunables.ConfidenceFloor {
			sol.ConfidenceScore = c.tunables.ConfidenceFloor
		}
	}

	if err := c.store.UpdateSolutionScores(ctx, patternID, sol.SuccessRate, sol.ConfidenceScore); err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}

	c.logger.Info("recorded effectiveness feedback",
		"pattern_id", patternID,
		"successful", wasSuccessful,
		"success_rate", sol.SuccessRate,
		"confidence", sol.ConfidenceScore,
		"note", note)
	return sol, nil
}

// SearchSimilar returns cached solutions whose solution text overlaps the
// given signature at or above the threshold, ranked by
// confidence_score * success_rate descending.
func (c *ResultCache) SearchSimilar(ctx context.Context, signature string, threshold float64) ([]model.CachedSolution, error) {
	all, err := c.store.ListSolutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list solutions: %w", err)
	}

	var matches []model.CachedSolution
	for _, sol := range all {
		score := pattern.Similarity(signature, sol.SolutionText+" "+strings.Join(sol.ApplicableContexts, " "))
		if score >= threshold {
			matches = append(matches, sol)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ConfidenceScore*matches[i].SuccessRate >
			matches[j].ConfidenceScore*matches[j].SuccessRate
	})
	return matches, nil
}

// Cleanup removes stale entries (older than the retention window with few
// uses) and chronically ineffective ones (low success rate despite enough
// samples). Returns the number of entries removed.
func (c *ResultCache) Cleanup(ctx context.Context) (int64, error) {
	all, err := c.store.ListSolutions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list solutions for cleanup: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -c.tunables.RetentionDays)
	var victims []string
	for _, sol := range all {
		stale := sol.CachedAt.Before(cutoff) && sol.UsageCount < c.tunables.MinUsageToRetain
		ineffective := sol.SuccessRate < c.tunables.IneffectiveRate && sol.UsageCount > c.tunables.IneffectiveMinUses
		if stale || ineffective {
			victims = append(victims, sol.PatternID)
		}
	}

	if len(victims) == 0 {
		return 0, nil
	}

	removed, err := c.store.DeleteSolutions(ctx, victims)
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}

	c.logger.Info("cache cleanup complete", "removed", removed)
	return removed, nil
}

// Statistics reports cache effectiveness from the running hit/miss counters.
// Every hit is an external call that did not have to be paid for.
func (c *ResultCache) Statistics(ctx context.Context) (model.CacheStatistics, error) {
	total, err := c.store.CountSolutions(ctx)
	if err != nil {
		return model.CacheStatistics{}, fmt.Errorf("failed to count solutions: %w", err)
	}

	c.statsMu.Lock()
	hits, misses := c.hits, c.misses
	c.statsMu.Unlock()

	stats := model.CacheStatistics{
		TotalEntries:     total,
		Hits:             hits,
		Misses:           misses,
		CallsSaved:       hits,
		EstimatedSavings: float64(hits) * c.perCallCost,
	}
	if hits+misses > 0 {
		stats.HitRate = float64(hits) / float64(hits+misses)
	}
	return stats, nil
}

func (c *ResultCache) recordHit() {
	c.statsMu.Lock()
	c.hits++
	c.statsMu.Unlock()
}

func (c *ResultCache) recordMiss() {
	c.statsMu.Lock()
	c.misses++
	c.statsMu.Unlock()
}

// newSolution builds the initial cache entry for a freshly discovered pattern.
func newSolution(d model.DiscoveredPattern, defaultSuccessRate float64) *model.CachedSolution {
	now := time.Now().UTC()
	confidence := d.Confidence
	if confidence <= 0 {
		confidence = 75
	}
	return &model.CachedSolution{
		PatternID:          d.PatternID,
		SolutionText:       solutionText(d),
		ConfidenceScore:    confidence,
		SuccessRate:        defaultSuccessRate,
		ApplicableContexts: d.ApplicableContexts,
		FixTemplates:       listOrNil(d.FixTemplate),
		Preventions:        listOrNil(d.Prevention),
		CachedAt:           now,
		LastAccessed:       now,
	}
}

// mergeSolution treats a re-discovery as a reinforcement: text and templates
// are refreshed, scores move toward the new observation.
func mergeSolution(existing *model.CachedSolution, d model.DiscoveredPattern, t config.Tunables) *model.CachedSolution {
	merged := *existing
	if text := solutionText(d); text != "" {
		merged.SolutionText = text
	}
	if d.FixTemplate != "" {
		merged.FixTemplates = appendUnique(merged.FixTemplates, d.FixTemplate)
	}
	if d.Prevention != "" {
		merged.Preventions = appendUnique(merged.Preventions, d.Prevention)
	}
	for _, c := range d.ApplicableContexts {
		merged.ApplicableContexts = appendUnique(merged.ApplicableContexts, c)
	}
	if d.Confidence > 0 {
		merged.ConfidenceScore = merged.ConfidenceScore*(1-t.FeedbackWeight) + d.Confidence*t.FeedbackWeight
	}
	return &merged
}

// solutionText derives the human-readable solution summary from a discovery.
func solutionText(d model.DiscoveredPattern) string {
	switch {
	case d.RootCause != "" && d.FixTemplate != "":
		return fmt.Sprintf("%s (fix: %s)", d.RootCause, d.FixTemplate)
	case d.FixTemplate != "":
		return d.FixTemplate
	default:
		return d.RootCause
	}
}

func listOrNil(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
