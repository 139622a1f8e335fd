package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/storage"
)

func createTestCache(t *testing.T) (*ResultCache, *storage.SQLiteStorage) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))

	return New(store, config.DefaultTunables(), 0.15, nil), store
}

func discovery(patternID string) model.DiscoveredPattern {
	return model.DiscoveredPattern{
		PatternID:          patternID,
		RootCause:          "event listener accumulation across reconnects",
		Prevention:         "remove listeners on disconnect",
		FixTemplate:        "deregister the listener in the cleanup path",
		Category:           "resources",
		ApplicableContexts: []string{"websocket", "node"},
		Confidence:         90,
	}
}

func TestPutBatchAndGet(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{discovery("listener-leak")}))

	sol, err := c.Get(ctx, "listener-leak")
	require.NoError(t, err)

	assert.Equal(t, "listener-leak", sol.PatternID)
	assert.Contains(t, sol.SolutionText, "event listener accumulation")
	assert.Equal(t, 90.0, sol.ConfidenceScore)
	assert.Equal(t, 85.0, sol.SuccessRate, "new entries get the default success rate")
	assert.Equal(t, []string{"deregister the listener in the cleanup path"}, sol.FixTemplates)
	assert.Equal(t, int64(1), sol.UsageCount, "a hit counts as one use")
}

func TestPutBatchDefaults(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	d := discovery("no-confidence")
	d.Confidence = 0
	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{d}))

	sol, err := c.Get(ctx, "no-confidence")
	require.NoError(t, err)
	assert.Equal(t, 75.0, sol.ConfidenceScore, "missing confidence gets a conservative default")
}

func TestPutBatchRejectsMissingID(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	d := discovery("")
	require.Error(t, c.PutBatch(ctx, []model.DiscoveredPattern{d}))
}

func TestPutBatchReinforcesExisting(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{discovery("listener-leak")}))

	again := discovery("listener-leak")
	again.FixTemplate = "use a connection-scoped listener registry"
	again.ApplicableContexts = []string{"websocket", "browser"}
	again.Confidence = 100
	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{again}))

	sol, err := c.Get(ctx, "listener-leak")
	require.NoError(t, err)

	assert.Len(t, sol.FixTemplates, 2, "new fix template is appended")
	assert.ElementsMatch(t, []string{"websocket", "node", "browser"}, sol.ApplicableContexts)
	assert.InDelta(t, 91.0, sol.ConfidenceScore, 0.01, "confidence moves toward the new observation")
}

func TestGetMissAndHitCounters(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	_, err := c.Get(ctx, "never-cached")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{discovery("hit-me")}))
	_, err = c.Get(ctx, "hit-me")
	require.NoError(t, err)
	_, err = c.Get(ctx, "hit-me")
	require.NoError(t, err)

	stats, err := c.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.Equal(t, int64(2), stats.CallsSaved)
	assert.InDelta(t, 0.30, stats.EstimatedSavings, 0.001, "each hit saves one external call")
}

func TestUpdateEffectiveness(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{discovery("feedback-target")}))

	t.Run("success nudges both scores up", func(t *testing.T) {
		sol, err := c.UpdateEffectiveness(ctx, "feedback-target", true, "fixed on first try")
		require.NoError(t, err)

		// EMA from 85 toward 100 with weight 0.1, confidence 90 + 2.
		assert.InDelta(t, 86.5, sol.SuccessRate, 0.01)
		assert.InDelta(t, 92.0, sol.ConfidenceScore, 0.01)
	})

	t.Run("failure nudges both scores down", func(t *testing.T) {
		sol, err := c.UpdateEffectiveness(ctx, "feedback-target", false, "did not help")
		require.NoError(t, err)

		assert.InDelta(t, 77.85, sol.SuccessRate, 0.01)
		assert.InDelta(t, 87.0, sol.ConfidenceScore, 0.01)
	})

	t.Run("confidence never exceeds 100", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := c.UpdateEffectiveness(ctx, "feedback-target", true, "")
			require.NoError(t, err)
		}
		sol, err := c.Get(ctx, "feedback-target")
		require.NoError(t, err)
		assert.LessOrEqual(t, sol.ConfidenceScore, 100.0)
	})

	t.Run("confidence never drops below the floor", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			_, err := c.UpdateEffectiveness(ctx, "feedback-target", false, "")
			require.NoError(t, err)
		}
		sol, err := c.Get(ctx, "feedback-target")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sol.ConfidenceScore, 50.0)
	})

	t.Run("unknown pattern errors", func(t *testing.T) {
		_, err := c.UpdateEffectiveness(ctx, "missing", true, "")
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestSearchSimilar(t *testing.T) {
	ctx := context.Background()
	c, _ := createTestCache(t)

	leak := discovery("listener-leak")
	pool := model.DiscoveredPattern{
		PatternID:   "pool-exhaustion",
		RootCause:   "connection pool exhausted under burst load",
		FixTemplate: "raise the pool size and add backpressure",
		Category:    "resources",
		Confidence:  80,
	}
	require.NoError(t, c.PutBatch(ctx, []model.DiscoveredPattern{leak, pool}))

	matches, err := c.SearchSimilar(ctx, "connection pool exhausted during load spike", 30)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "pool-exhaustion", matches[0].PatternID)

	t.Run("threshold zero ranks everything", func(t *testing.T) {
		all, err := c.SearchSimilar(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	c, store := createTestCache(t)

	now := time.Now().UTC()
	old := now.AddDate(0, 0, -120)

	entries := []*model.CachedSolution{
		{PatternID: "stale-unused", SolutionText: "s", ConfidenceScore: 80, SuccessRate: 80, CachedAt: old, LastAccessed: old, UsageCount: 1},
		{PatternID: "old-but-used", SolutionText: "s", ConfidenceScore: 80, SuccessRate: 80, CachedAt: old, LastAccessed: now, UsageCount: 10},
		{PatternID: "ineffective", SolutionText: "s", ConfidenceScore: 55, SuccessRate: 20, CachedAt: now, LastAccessed: now, UsageCount: 8},
		{PatternID: "fresh", SolutionText: "s", ConfidenceScore: 90, SuccessRate: 90, CachedAt: now, LastAccessed: now, UsageCount: 2},
	}
	for _, sol := range entries {
		require.NoError(t, store.SaveSolution(ctx, sol))
	}

	removed, err := c.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = c.Get(ctx, "stale-unused")
	assert.ErrorIs(t, err, common.ErrNotFound, "stale entries with few uses are removed")
	_, err = c.Get(ctx, "ineffective")
	assert.ErrorIs(t, err, common.ErrNotFound, "chronically ineffective entries are removed")

	_, err = c.Get(ctx, "old-but-used")
	assert.NoError(t, err, "old entries with enough uses survive")
	_, err = c.Get(ctx, "fresh")
	assert.NoError(t, err)
}
