package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/pattern"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	lib, err := pattern.NewLibrary(pattern.DefaultPatterns())
	require.NoError(t, err)
	return NewClassifier(lib, config.DefaultTunables(), nil)
}

func TestMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("known error resolves locally with high confidence", func(t *testing.T) {
		c := newTestClassifier(t)

		result, err := c.Match(ctx, model.ErrorContext{
			Message:     "Cannot read property 'length' of undefined",
			StackTrace:  "at processItems (app.js:42)",
			Context:     "api call",
			Environment: "production",
			Platform:    "node",
		})
		require.NoError(t, err)

		assert.True(t, result.Matched)
		assert.Equal(t, "null-property-access", result.PatternID)
		assert.GreaterOrEqual(t, result.Confidence, 85.0)
		assert.NotEmpty(t, result.SuggestedActions)
	})

	t.Run("aligned context hint raises the score", func(t *testing.T) {
		c := newTestClassifier(t)

		plain, err := c.Match(ctx, model.ErrorContext{Message: "connection refused"})
		require.NoError(t, err)

		hinted, err := c.Match(ctx, model.ErrorContext{
			Message: "connection refused",
			Context: "network request",
		})
		require.NoError(t, err)

		assert.True(t, plain.Matched)
		assert.True(t, hinted.Matched)
		assert.Equal(t, plain.Confidence+10, hinted.Confidence)
	})

	t.Run("confidence caps at 100", func(t *testing.T) {
		c := newTestClassifier(t)

		result, err := c.Match(ctx, model.ErrorContext{
			Message:     "syntax error: unexpected token",
			Context:     "build step",
			Environment: "build server",
			Platform:    "buildkite",
		})
		require.NoError(t, err)

		assert.True(t, result.Matched)
		assert.Equal(t, 100.0, result.Confidence)
	})

	t.Run("novel error advises escalation", func(t *testing.T) {
		c := newTestClassifier(t)

		result, err := c.Match(ctx, model.ErrorContext{
			Message: "flux capacitor desynchronization in warp core",
		})
		require.NoError(t, err)

		assert.False(t, result.Matched)
		assert.Empty(t, result.PatternID)
		assert.Contains(t, result.SuggestedActions, "escalate: queue for external analysis")
	})

	t.Run("missing message is rejected", func(t *testing.T) {
		c := newTestClassifier(t)
		_, err := c.Match(ctx, model.ErrorContext{StackTrace: "at main"})
		require.Error(t, err)
	})

	t.Run("canceled context is honored", func(t *testing.T) {
		c := newTestClassifier(t)
		canceled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Match(canceled, model.ErrorContext{Message: "connection refused"})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestMatchThresholds(t *testing.T) {
	ctx := context.Background()

	lib, err := pattern.NewLibrary([]model.ErrorPattern{{
		ID:        "loose-pattern",
		Category:  "misc",
		Signature: "widget failure",
	}})
	require.NoError(t, err)

	t.Run("zero threshold falls back to the default", func(t *testing.T) {
		c := NewClassifier(lib, config.DefaultTunables(), nil)
		result, err := c.Match(ctx, model.ErrorContext{Message: "widget failure in module"})
		require.NoError(t, err)
		assert.True(t, result.Matched)
	})

	t.Run("score below fallback threshold stays unmatched", func(t *testing.T) {
		tunables := config.DefaultTunables()
		tunables.LocalMatchThreshold = 95
		c := NewClassifier(lib, tunables, nil)

		result, err := c.Match(ctx, model.ErrorContext{Message: "widget failure in module"})
		require.NoError(t, err)
		assert.False(t, result.Matched)
	})

	t.Run("escalation threshold floors a lax per-pattern threshold", func(t *testing.T) {
		laxLib, err := pattern.NewLibrary([]model.ErrorPattern{{
			ID:                  "lax-pattern",
			Category:            "misc",
			Signature:           "widget failure",
			ConfidenceThreshold: 80,
		}})
		require.NoError(t, err)

		tunables := config.DefaultTunables()
		tunables.EscalationThreshold = 95
		c := NewClassifier(laxLib, tunables, nil)

		// Rule match alone scores 90: the pattern would accept it, the
		// escalation floor does not.
		plain, err := c.Match(ctx, model.ErrorContext{Message: "widget failure in module"})
		require.NoError(t, err)
		assert.False(t, plain.Matched)

		// An aligned hint lifts the score to 100, clearing the floor.
		hinted, err := c.Match(ctx, model.ErrorContext{
			Message: "widget failure in module",
			Context: "misc subsystem",
		})
		require.NoError(t, err)
		assert.True(t, hinted.Matched)
	})
}

func TestMatchMemo(t *testing.T) {
	ctx := context.Background()
	c := newTestClassifier(t)

	errCtx := model.ErrorContext{Message: "connection refused", Context: "network"}

	first, err := c.Match(ctx, errCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.MemoSize())

	second, err := c.Match(ctx, errCtx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.MemoSize(), "repeat classification is memoized, not recomputed")
}

func TestMemoEviction(t *testing.T) {
	m := newMemo(2)

	m.set("a", model.MatchResult{PatternID: "a"})
	m.set("b", model.MatchResult{PatternID: "b"})

	// Touch "a" so "b" is the eviction candidate.
	_, ok := m.get("a")
	require.True(t, ok)

	m.set("c", model.MatchResult{PatternID: "c"})
	assert.Equal(t, 2, m.size())

	_, ok = m.get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = m.get("a")
	assert.True(t, ok)
	_, ok = m.get("c")
	assert.True(t, ok)
}
