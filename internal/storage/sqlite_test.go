package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/model"
)

func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

func testSolution(patternID string) *model.CachedSolution {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.CachedSolution{
		PatternID:          patternID,
		SolutionText:       "restart the worker pool (fix: drain before restart)",
		ConfidenceScore:    90,
		SuccessRate:        85,
		ApplicableContexts: []string{"api", "worker"},
		FixTemplates:       []string{"drain before restart"},
		Preventions:        []string{"health-check workers"},
		CachedAt:           now,
		LastAccessed:       now,
		UsageCount:         1,
	}
}

func TestSolutionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	sol := testSolution("worker-pool-stall")
	require.NoError(t, store.SaveSolution(ctx, sol))

	got, err := store.GetSolution(ctx, "worker-pool-stall")
	require.NoError(t, err)

	assert.Equal(t, sol.PatternID, got.PatternID)
	assert.Equal(t, sol.SolutionText, got.SolutionText)
	assert.Equal(t, sol.ConfidenceScore, got.ConfidenceScore)
	assert.Equal(t, sol.SuccessRate, got.SuccessRate)
	assert.Equal(t, sol.ApplicableContexts, got.ApplicableContexts)
	assert.Equal(t, sol.FixTemplates, got.FixTemplates)
	assert.Equal(t, sol.Preventions, got.Preventions)
	assert.Equal(t, int64(1), got.UsageCount)
}

func TestGetSolutionNotFound(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetSolution(ctx, "no-such-pattern")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveSolutionUpsert(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	sol := testSolution("upsert-me")
	require.NoError(t, store.SaveSolution(ctx, sol))

	sol.SolutionText = "updated solution"
	sol.ConfidenceScore = 95
	require.NoError(t, store.SaveSolution(ctx, sol))

	got, err := store.GetSolution(ctx, "upsert-me")
	require.NoError(t, err)
	assert.Equal(t, "updated solution", got.SolutionText)
	assert.Equal(t, 95.0, got.ConfidenceScore)

	count, err := store.CountSolutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTouchSolution(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveSolution(ctx, testSolution("touch-me")))

	accessedAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.TouchSolution(ctx, "touch-me", accessedAt))

	got, err := store.GetSolution(ctx, "touch-me")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UsageCount)
	assert.WithinDuration(t, accessedAt, got.LastAccessed, time.Second)

	t.Run("unknown pattern errors", func(t *testing.T) {
		err := store.TouchSolution(ctx, "missing", accessedAt)
		require.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestUpdateSolutionScores(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	require.NoError(t, store.SaveSolution(ctx, testSolution("score-me")))
	require.NoError(t, store.UpdateSolutionScores(ctx, "score-me", 60.5, 72))

	got, err := store.GetSolution(ctx, "score-me")
	require.NoError(t, err)
	assert.Equal(t, 60.5, got.SuccessRate)
	assert.Equal(t, 72.0, got.ConfidenceScore)
}

func TestListAndDeleteSolutions(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, store.SaveSolution(ctx, testSolution(id)))
	}

	all, err := store.ListSolutions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	removed, err := store.DeleteSolutions(ctx, []string{"p1", "p3", "not-there"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err := store.CountSolutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUsageLedger(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	base := time.Now().UTC().Truncate(time.Second)
	records := []model.UsageRecord{
		{Timestamp: base.Add(-48 * time.Hour), Cost: 0.30, Tokens: 2000, BatchSize: 8},
		{Timestamp: base.Add(-1 * time.Hour), Cost: 0.12, Tokens: 900, BatchSize: 3},
		{Timestamp: base, Cost: 0.05, Tokens: 400, BatchSize: 1},
	}
	for _, rec := range records {
		require.NoError(t, store.AppendUsage(ctx, rec))
	}

	since, err := store.GetUsageSince(ctx, base.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, since, 2)

	assert.True(t, since[0].Timestamp.Before(since[1].Timestamp), "records come back oldest first")
	assert.Equal(t, 0.12, since[0].Cost)
	assert.Equal(t, int64(400), since[1].Tokens)
}

func TestRecordUnresolved(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	item := model.QueuedItem{
		ID:            "item-1",
		Error:         model.ErrorContext{Message: "mystery failure"},
		Priority:      model.PriorityHigh,
		QueuedAt:      time.Now().UTC(),
		EstimatedCost: 0.03,
		RetryCount:    3,
	}
	require.NoError(t, store.RecordUnresolved(ctx, item))

	// Recording the same item again must not error.
	require.NoError(t, store.RecordUnresolved(ctx, item))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	t.Run("nil solution rejected", func(t *testing.T) {
		require.Error(t, store.SaveSolution(ctx, nil))
	})

	t.Run("empty pattern id rejected", func(t *testing.T) {
		_, err := store.GetSolution(ctx, "")
		require.Error(t, err)
	})

	t.Run("nil context rejected", func(t *testing.T) {
		//nolint:staticcheck // passing nil context on purpose
		_, err := store.GetSolution(nil, "anything")
		require.Error(t, err)
	})
}
