package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Budget.MonthlyCeiling)
	assert.Equal(t, 10, cfg.Budget.DailyCallCap)
	assert.Equal(t, 0.15, cfg.Budget.PerCallEstimate)

	assert.Equal(t, "anthropic", cfg.Gateway.Provider)
	assert.Equal(t, 120*time.Second, cfg.Gateway.RequestTimeout)
	assert.Equal(t, 12, cfg.Gateway.OptimalBatchSize)
	assert.Equal(t, 20, cfg.Gateway.MaxBatchSize)
	// Per-1k prices are stored per token.
	assert.InDelta(t, 0.000003, cfg.Gateway.InputPricePerTok, 1e-9)
	assert.InDelta(t, 0.000015, cfg.Gateway.OutputPricePerTok, 1e-9)

	assert.Equal(t, time.Monday, cfg.Scheduler.WeekendBatchDay)
	assert.Equal(t, time.Wednesday, cfg.Scheduler.CorrelationDay)
	assert.Equal(t, time.Friday, cfg.Scheduler.SynthesisDay)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.CriticalInterval)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)

	assert.Equal(t, DefaultTunables(), cfg.Tunables)
	assert.False(t, strings.HasPrefix(cfg.DatabasePath, "~"), "home shorthand is expanded")
}

func TestLoadOverrides(t *testing.T) {
	resetViper(t)
	viper.Set("budget.monthly_ceiling", 120.0)
	viper.Set("scheduler.weekend_batch_day", "saturday")
	viper.Set("tunables.local_match_threshold", 92)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120.0, cfg.Budget.MonthlyCeiling)
	assert.Equal(t, time.Saturday, cfg.Scheduler.WeekendBatchDay)
	assert.Equal(t, 92.0, cfg.Tunables.LocalMatchThreshold)
}

func TestLoadValidation(t *testing.T) {
	t.Run("non-positive monthly ceiling", func(t *testing.T) {
		resetViper(t)
		viper.Set("budget.monthly_ceiling", 0)

		_, err := Load()
		require.ErrorContains(t, err, "monthly_ceiling")
	})

	t.Run("max batch below optimal", func(t *testing.T) {
		resetViper(t)
		viper.Set("gateway.max_batch_size", 4)

		_, err := Load()
		require.ErrorContains(t, err, "max_batch_size")
	})

	t.Run("unrecognized weekday", func(t *testing.T) {
		resetViper(t)
		viper.Set("scheduler.correlation_day", "someday")

		_, err := Load()
		require.ErrorContains(t, err, "someday")
	})
}

func TestParseWeekday(t *testing.T) {
	for name, want := range map[string]time.Weekday{
		"monday":    time.Monday,
		"Friday":    time.Friday,
		" SUNDAY ":  time.Sunday,
		"wednesday": time.Wednesday,
	} {
		got, err := parseWeekday(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	_, err := parseWeekday("weekend")
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x.db"), ExpandPath("~/x.db"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/x.db", ExpandPath("/abs/x.db"))
	assert.Empty(t, ExpandPath(""))
}
