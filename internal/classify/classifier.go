// Package classify implements the zero-cost local classifier: it matches
// incoming error contexts against the pattern library and produces a
// confidence-scored verdict without any network calls.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/pattern"
)

// Classifier matches error contexts against the pattern library.
type Classifier struct {
	library  *pattern.Library
	memo     *memo
	logger   *slog.Logger
	tunables config.Tunables
}

// NewClassifier creates a classifier over the given library.
func NewClassifier(library *pattern.Library, tunables config.Tunables, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		library:  library,
		memo:     newMemo(tunables.MemoSize),
		logger:   logger,
		tunables: tunables,
	}
}

// Match evaluates an error context against every library pattern and
// returns the highest-scoring match that meets its own confidence
// threshold, or the unmatched sentinel when none qualifies. The global
// escalation threshold is a floor under every per-pattern threshold: a
// best score below it is treated as novel even when a lax pattern would
// accept it.
func (c *Classifier) Match(ctx context.Context, errCtx model.ErrorContext) (model.MatchResult, error) {
	if err := errCtx.Validate(); err != nil {
		return model.MatchResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.MatchResult{}, err
	}

	key := errCtx.Hash()
	if result, found := c.memo.get(key); found {
		c.logger.Debug("classification memo hit", "pattern_id", result.PatternID)
		return result, nil
	}

	signature := errCtx.Signature()
	best := model.Unmatched()
	bestScore := 0.0

	for _, p := range c.library.Patterns() {
		matcher, ok := c.library.Matcher(p.ID)
		if !ok || !matcher.Matches(signature) {
			continue
		}

		score := c.score(errCtx, p)

		threshold := p.ConfidenceThreshold
		if threshold == 0 {
			threshold = c.tunables.LocalMatchThreshold
		}
		if score < threshold || score <= bestScore {
			continue
		}

		bestScore = score
		best = model.MatchResult{
			PatternID:        p.ID,
			Category:         p.Category,
			Confidence:       score,
			Matched:          true,
			SuggestedActions: suggestedActions(p),
		}
	}

	if best.Matched && bestScore < c.tunables.EscalationThreshold {
		c.logger.Debug("best match falls below the escalation threshold",
			"pattern_id", best.PatternID,
			"confidence", bestScore,
			"escalation_threshold", c.tunables.EscalationThreshold)
		best = model.Unmatched()
	}

	c.memo.set(key, best)

	if best.Matched {
		c.logger.Info("error matched locally",
			"pattern_id", best.PatternID,
			"category", best.Category,
			"confidence", best.Confidence)
	} else {
		c.logger.Debug("no confident local match, escalation advised")
	}

	return best, nil
}

// score computes the confidence for a pattern whose rule already matched:
// base value, plus the rule-match bonus, plus a hint bonus for each context
// field that aligns with the pattern's category, capped at 100.
func (c *Classifier) score(errCtx model.ErrorContext, p model.ErrorPattern) float64 {
	score := c.tunables.BaseConfidence + c.tunables.RuleMatchBonus

	for _, hint := range []string{errCtx.Context, errCtx.Environment, errCtx.Platform} {
		if hintAligns(hint, p.Category) {
			score += c.tunables.ContextHintBonus
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// hintAligns reports whether a context hint shares a token with the
// pattern's category tag.
func hintAligns(hint, category string) bool {
	if hint == "" || category == "" {
		return false
	}
	hint = strings.ToLower(hint)
	for _, tok := range strings.Split(strings.ToLower(category), "-") {
		if tok != "" && strings.Contains(hint, tok) {
			return true
		}
	}
	return false
}

// suggestedActions flattens a pattern's fixes and preventions into the
// action list returned to callers.
func suggestedActions(p model.ErrorPattern) []string {
	actions := make([]string, 0, len(p.FixTemplates)+len(p.Preventions))
	actions = append(actions, p.FixTemplates...)
	for _, prev := range p.Preventions {
		actions = append(actions, "prevent: "+prev)
	}
	return actions
}

// MemoSize returns the number of memoized classifications.
func (c *Classifier) MemoSize() int {
	return c.memo.size()
}
