// Package engine orchestrates the diagnosis pipeline: every public verb
// runs the cheap local tier first and pays for external analysis only
// when the classifier comes up empty and the budget ledger allows it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmorgan/errsage/internal/budget"
	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/pattern"
	"github.com/jmorgan/errsage/internal/scheduler"
	"github.com/jmorgan/errsage/internal/service"
)

// Engine wires the classifier, cache, scheduler, gateway, and ledger into
// the verbs callers interact with. It holds no state of its own.
type Engine struct {
	classifier service.Classifier
	cache      service.ResultCache
	sched      *scheduler.Scheduler
	dispatcher scheduler.Dispatcher
	ledger     *budget.Ledger
	library    *pattern.Library
	logger     *slog.Logger
	tunables   config.Tunables
}

// New creates an engine over fully constructed components.
func New(classifier service.Classifier, cache service.ResultCache, sched *scheduler.Scheduler, dispatcher scheduler.Dispatcher, ledger *budget.Ledger, library *pattern.Library, tunables config.Tunables, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		classifier: classifier,
		cache:      cache,
		sched:      sched,
		dispatcher: dispatcher,
		ledger:     ledger,
		library:    library,
		logger:     logger,
		tunables:   tunables,
	}
}

// Capture ingests one error. A confident local match resolves immediately,
// preferring the cached solution over the library's builtin guidance; a
// novel error is queued for the next affordable batch and never triggers
// an inline external call.
func (e *Engine) Capture(ctx context.Context, errCtx model.ErrorContext) (CaptureResult, error) {
	match, err := e.classifier.Match(ctx, errCtx)
	if err != nil {
		return CaptureResult{Error: err.Error()}, fmt.Errorf("classification failed: %w", err)
	}

	if match.Matched {
		result := CaptureResult{Match: &match, ResolvedLocally: true}
		if sol, err := e.cache.Get(ctx, match.PatternID); err == nil {
			result.Solution = sol
		}
		return result, nil
	}

	info, err := e.sched.Enqueue(errCtx)
	if err != nil {
		return CaptureResult{Match: &match, Error: err.Error()}, fmt.Errorf("failed to queue novel error: %w", err)
	}
	return CaptureResult{Match: &match, QueueInfo: &info}, nil
}

// AnalyzeBatch classifies every submitted error and, depending on depth,
// escalates the remainder in one external call. crossContext asks the
// external service for correlations across the batch; comprehensive depth
// implies it. Budget exhaustion is not an error: the caller gets the local
// results with a fallback outcome.
func (e *Engine) AnalyzeBatch(ctx context.Context, errs []model.ErrorContext, depth model.AnalysisDepth, crossContext bool) (BatchResult, error) {
	if len(errs) == 0 {
		return BatchResult{Error: common.ErrEmptyBatch.Error()}, common.ErrEmptyBatch
	}

	result := BatchResult{Outcome: OutcomeResolvedLocally}
	var unresolved []model.ErrorContext
	for _, errCtx := range errs {
		match, err := e.classifier.Match(ctx, errCtx)
		if err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("classification failed: %w", err)
		}
		result.LocalMatches = append(result.LocalMatches, match)
		if match.Matched {
			result.LocalCount++
			continue
		}
		unresolved = append(unresolved, errCtx)
	}

	if depth == model.DepthLocalOnly {
		result.Outcome = OutcomeLocalOnly
		return result, nil
	}
	if len(unresolved) == 0 {
		return result, nil
	}

	if status := e.ledger.Status(); !status.CanProceed {
		e.logger.Warn("budget exhausted, returning local results only",
			"unresolved", len(unresolved),
			"remaining_budget", status.RemainingBudget)
		result.Outcome = OutcomeLocalFallbackBudget
		return result, nil
	}

	items := buildItems(unresolved)
	analysis, err := e.dispatch(ctx, items, crossContext || depth == model.DepthComprehensive)
	if err != nil {
		if errors.Is(err, common.ErrBudgetExhausted) {
			result.Outcome = OutcomeLocalFallbackBudget
			return result, nil
		}
		result.Error = err.Error()
		return result, err
	}

	result.Outcome = OutcomeEscalated
	result.EscalatedCount = len(items)
	result.Discovered = analysis.Patterns
	result.NovelInsights = analysis.NovelInsights
	result.Correlations = analysis.CrossContextCorrelations
	result.Cost = analysis.Cost
	return result, nil
}

// SuggestFixes collects remediations for a pattern from the cache and the
// library, ranked by confidence times success rate. A non-empty
// targetContext drops cached fixes whose solution declares contexts that
// do not cover it; riskTolerance caps how chancy a fix may be, dropping
// any with a success rate below 100-riskTolerance. Zero disables either
// filter.
func (e *Engine) SuggestFixes(ctx context.Context, patternID, targetContext string, riskTolerance float64) (FixesResult, error) {
	result := FixesResult{PatternID: patternID, TargetContext: targetContext}

	if sol, err := e.cache.Get(ctx, patternID); err == nil && contextApplies(sol.ApplicableContexts, targetContext) {
		templates := sol.FixTemplates
		if len(templates) == 0 && sol.SolutionText != "" {
			templates = []string{sol.SolutionText}
		}
		for _, t := range templates {
			result.Fixes = append(result.Fixes, Fix{
				Template:    t,
				Source:      FixSourceCache,
				Confidence:  sol.ConfidenceScore,
				SuccessRate: sol.SuccessRate,
			})
		}
		result.Preventions = append(result.Preventions, sol.Preventions...)
	}

	if p, ok := e.library.Get(patternID); ok {
		for _, t := range p.FixTemplates {
			result.Fixes = append(result.Fixes, Fix{
				Template:    t,
				Source:      FixSourceLibrary,
				Confidence:  p.ConfidenceThreshold,
				SuccessRate: p.SuccessRate,
			})
		}
		for _, prev := range p.Preventions {
			result.Preventions = appendUnique(result.Preventions, prev)
		}
	}

	if riskTolerance > 0 {
		minSuccess := 100 - riskTolerance
		kept := result.Fixes[:0]
		for _, fix := range result.Fixes {
			if fix.SuccessRate >= minSuccess {
				kept = append(kept, fix)
			}
		}
		result.Fixes = kept
	}

	if len(result.Fixes) == 0 && len(result.Preventions) == 0 {
		err := fmt.Errorf("%w: no fixes known for pattern %s", common.ErrNotFound, patternID)
		result.Error = err.Error()
		return result, err
	}

	sort.SliceStable(result.Fixes, func(i, j int) bool {
		return result.Fixes[i].Confidence*result.Fixes[i].SuccessRate >
			result.Fixes[j].Confidence*result.Fixes[j].SuccessRate
	})
	return result, nil
}

// RecordOutcome feeds an applied fix's result back into the cache and the
// library. A partial outcome counts as a success; the note and the time
// to resolution preserve the caller's nuance in the log and the ack.
func (e *Engine) RecordOutcome(ctx context.Context, patternID string, outcome model.Outcome, note string, resolutionMinutes float64) (OutcomeAck, error) {
	if !outcome.Valid() {
		err := fmt.Errorf("unrecognized outcome %q", outcome)
		return OutcomeAck{PatternID: patternID, Error: err.Error()}, err
	}
	if resolutionMinutes < 0 {
		err := fmt.Errorf("resolution minutes must not be negative, got %v", resolutionMinutes)
		return OutcomeAck{PatternID: patternID, Error: err.Error()}, err
	}

	wasSuccessful := outcome != model.OutcomeFailure
	inLibrary := e.library.RecordFeedback(patternID, wasSuccessful, e.tunables.FeedbackWeight)

	if resolutionMinutes > 0 {
		e.logger.Info("fix outcome reported",
			"pattern_id", patternID,
			"outcome", outcome,
			"resolution_minutes", resolutionMinutes)
	}

	sol, err := e.cache.UpdateEffectiveness(ctx, patternID, wasSuccessful, note)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) && inLibrary {
			p, _ := e.library.Get(patternID)
			return OutcomeAck{
				PatternID:         patternID,
				SuccessRate:       p.SuccessRate,
				ConfidenceScore:   p.ConfidenceThreshold,
				ResolutionMinutes: resolutionMinutes,
				Recorded:          true,
			}, nil
		}
		return OutcomeAck{PatternID: patternID, Error: err.Error()}, err
	}

	return OutcomeAck{
		PatternID:         patternID,
		SuccessRate:       sol.SuccessRate,
		ConfidenceScore:   sol.ConfidenceScore,
		ResolutionMinutes: resolutionMinutes,
		Recorded:          true,
	}, nil
}

// ScanRisk matches proposed change descriptions against the known failure
// patterns. Each hit raises the score; a score at or above riskThreshold
// (default 50) or any security-category hit forces a review.
func (e *Engine) ScanRisk(ctx context.Context, changes []string, riskThreshold float64) (RiskResult, error) {
	if err := ctx.Err(); err != nil {
		return RiskResult{Error: err.Error()}, err
	}
	if riskThreshold <= 0 {
		riskThreshold = defaultRiskThreshold
	}

	result := RiskResult{Recommendation: RecommendationSafe, RiskThreshold: riskThreshold}
	securityHit := false
	for _, change := range changes {
		text := strings.ToLower(change)
		for _, p := range e.library.Patterns() {
			matcher, ok := e.library.Matcher(p.ID)
			if !ok || !matcher.Matches(text) {
				continue
			}
			risk := p.ID
			if len(p.Causes) > 0 {
				risk = fmt.Sprintf("%s: %s", p.ID, p.Causes[0])
			}
			result.MatchedRisks = appendUnique(result.MatchedRisks, risk)
			if p.Category == "security" {
				securityHit = true
			}
		}
	}

	result.RiskScore = float64(len(result.MatchedRisks)) * 25
	if result.RiskScore > 100 {
		result.RiskScore = 100
	}
	if result.RiskScore >= riskThreshold || securityHit {
		result.Recommendation = RecommendationReviewNeeded
	}
	return result, nil
}

// EscalateExternal sends errors straight to external analysis, bypassing
// the queue but never the ledger. budgetLimit caps this call's spend; zero
// means the normal daily limit applies.
func (e *Engine) EscalateExternal(ctx context.Context, errs []model.ErrorContext, budgetLimit float64) (EnrichmentResult, error) {
	if len(errs) == 0 {
		return EnrichmentResult{Error: common.ErrEmptyBatch.Error()}, common.ErrEmptyBatch
	}

	items := buildItems(errs)
	if budgetLimit > 0 {
		items = trimToBudget(items, budgetLimit)
		if len(items) == 0 {
			err := fmt.Errorf("%w: budget limit %.4f does not cover a single item", common.ErrBudgetExhausted, budgetLimit)
			return EnrichmentResult{Error: err.Error()}, err
		}
	}

	analysis, err := e.dispatch(ctx, items, false)
	if err != nil {
		return EnrichmentResult{Error: err.Error()}, err
	}

	return EnrichmentResult{
		Discovered:    analysis.Patterns,
		NovelInsights: analysis.NovelInsights,
		Cost:          analysis.Cost,
		Escalated:     len(items),
	}, nil
}

// Report assembles the periodic effectiveness summary: cache statistics,
// budget position, queue depth, and the highest-value solutions with
// guidance distilled from their preventions. Depth is "summary" (top 5
// solutions, the default) or "detailed" (top 10).
func (e *Engine) Report(ctx context.Context, target, period, depth string) (GuidanceReport, error) {
	topN := 0
	switch depth {
	case "", ReportDepthSummary:
		depth = ReportDepthSummary
		topN = 5
	case ReportDepthDetailed:
		topN = 10
	default:
		err := fmt.Errorf("unrecognized report depth %q", depth)
		return GuidanceReport{Error: err.Error()}, err
	}

	report := GuidanceReport{
		ID:          uuid.NewString(),
		Target:      target,
		Period:      period,
		Depth:       depth,
		GeneratedAt: time.Now().UTC(),
	}

	stats, err := e.cache.Statistics(ctx)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("failed to gather cache statistics: %w", err)
	}
	report.CacheStats = stats
	report.Budget = e.ledger.Status()
	report.QueueDepth = e.sched.QueueSize()

	// Threshold zero against an empty signature ranks every entry.
	top, err := e.cache.SearchSimilar(ctx, "", 0)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("failed to rank solutions: %w", err)
	}
	if len(top) > topN {
		top = top[:topN]
	}
	report.TopSolutions = top

	report.Guidance = buildGuidance(stats, report.Budget, top)
	return report, nil
}

// UpdateTaxonomy folds externally discovered patterns into the cache and
// counts the category relationships they form with the builtin library.
func (e *Engine) UpdateTaxonomy(ctx context.Context, discovered []model.DiscoveredPattern) (TaxonomyStats, error) {
	if err := e.cache.PutBatch(ctx, discovered); err != nil {
		return TaxonomyStats{Error: err.Error()}, fmt.Errorf("failed to store discovered patterns: %w", err)
	}

	categories := make(map[string]bool)
	for _, p := range e.library.Patterns() {
		categories[p.Category] = true
	}
	relationships := 0
	for _, d := range discovered {
		if categories[d.Category] {
			relationships++
		}
	}

	stats, err := e.cache.Statistics(ctx)
	if err != nil {
		return TaxonomyStats{Added: len(discovered), Error: err.Error()}, err
	}
	return TaxonomyStats{
		TotalEntries:  stats.TotalEntries,
		Added:         len(discovered),
		Relationships: relationships,
	}, nil
}

// dispatch reserves budget, runs one gateway call, and stores any results.
// The reservation is released on failure and committed by the gateway on
// success.
func (e *Engine) dispatch(ctx context.Context, items []model.QueuedItem, crossContext bool) (model.AnalysisResult, error) {
	estimate := 0.0
	critical := false
	for _, item := range items {
		estimate += item.EstimatedCost
		if item.Priority == model.PriorityCritical {
			critical = true
		}
	}

	reservation, err := e.ledger.Reserve(estimate, critical)
	if err != nil {
		return model.AnalysisResult{}, err
	}

	analysis, err := e.dispatcher.AnalyzeBatch(ctx, items, crossContext, reservation)
	if err != nil {
		reservation.Release()
		return model.AnalysisResult{}, fmt.Errorf("external analysis failed: %w", err)
	}

	if len(analysis.Patterns) > 0 {
		if err := e.cache.PutBatch(ctx, analysis.Patterns); err != nil {
			e.logger.Error("failed to cache discovered patterns", "error", err)
		}
	}
	return analysis, nil
}

// buildItems wraps error contexts as priced, prioritized queue items.
func buildItems(errs []model.ErrorContext) []model.QueuedItem {
	now := time.Now().UTC()
	items := make([]model.QueuedItem, 0, len(errs))
	for _, errCtx := range errs {
		items = append(items, model.QueuedItem{
			ID:            uuid.NewString(),
			Error:         errCtx,
			Priority:      scheduler.DerivePriority(errCtx),
			QueuedAt:      now,
			EstimatedCost: scheduler.EstimateCost(errCtx),
		})
	}
	return items
}

// trimToBudget keeps the highest-priority items whose combined estimate
// fits under the limit.
func trimToBudget(items []model.QueuedItem, limit float64) []model.QueuedItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Priority.Weight() > items[j].Priority.Weight()
	})
	var kept []model.QueuedItem
	spent := 0.0
	for _, item := range items {
		if spent+item.EstimatedCost > limit {
			continue
		}
		spent += item.EstimatedCost
		kept = append(kept, item)
	}
	return kept
}

// buildGuidance turns the numbers into a few human-readable observations.
func buildGuidance(stats model.CacheStatistics, status model.BudgetStatus, top []model.CachedSolution) []string {
	var guidance []string

	if stats.Hits+stats.Misses > 0 {
		guidance = append(guidance, fmt.Sprintf(
			"Cache resolved %.0f%% of lookups, saving an estimated %.2f in external analysis",
			stats.HitRate*100, stats.EstimatedSavings))
	}
	if !status.CanProceed {
		guidance = append(guidance, "Daily analysis budget is exhausted; queued errors will wait for the next window")
	} else if status.RemainingBudget < status.DailyCeiling*0.25 {
		guidance = append(guidance, fmt.Sprintf(
			"Only %.2f of today's %.2f budget remains", status.RemainingBudget, status.DailyCeiling))
	}
	for _, sol := range top {
		for _, prev := range sol.Preventions {
			guidance = append(guidance, fmt.Sprintf("Recurring issue %s: %s", sol.PatternID, prev))
		}
	}
	return guidance
}

// contextApplies reports whether a cached solution's declared contexts
// cover the requested one. An empty request or an undeclared list always
// applies.
func contextApplies(declared []string, target string) bool {
	if target == "" || len(declared) == 0 {
		return true
	}
	target = strings.ToLower(target)
	for _, c := range declared {
		c = strings.ToLower(c)
		if strings.Contains(c, target) || strings.Contains(target, c) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
