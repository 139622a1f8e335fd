package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan/errsage/internal/model"
)

func TestDefaultWindows(t *testing.T) {
	windows := DefaultWindows(testSchedulerConfig())
	require.Len(t, windows, 4)

	total := 0.0
	for _, w := range windows {
		total += w.SubBudget
	}
	assert.InDelta(t, 1.0, total, 0.0001, "sub-budgets partition the daily ceiling")

	monday := time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)
	wednesday := monday.AddDate(0, 0, 2)

	assert.True(t, windows[0].Active(monday), "weekend backlog fires on its weekday")
	assert.False(t, windows[0].Active(wednesday))

	assert.True(t, windows[1].Active(wednesday))
	assert.True(t, windows[1].CrossContext, "the correlation pass requests cross-context analysis")

	critical := windows[3]
	assert.True(t, critical.Selects(model.QueuedItem{Priority: model.PriorityCritical}))
	assert.False(t, critical.Selects(model.QueuedItem{Priority: model.PriorityHigh}))
}

func TestEveryOtherDay(t *testing.T) {
	even := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC) // Day 166
	odd := even.AddDate(0, 0, 1)

	assert.True(t, everyOtherDay(even))
	assert.False(t, everyOtherDay(odd))
}

func TestNextActivation(t *testing.T) {
	w := Window{Active: onWeekday(time.Friday)}

	t.Run("later this week", func(t *testing.T) {
		monday := time.Date(2026, time.June, 15, 9, 0, 0, 0, time.UTC)
		next := w.nextActivation(monday)
		assert.Equal(t, time.Friday, next.Weekday())
		assert.Equal(t, 19, next.Day())
	})

	t.Run("same day still counts while it lasts", func(t *testing.T) {
		friday := time.Date(2026, time.June, 19, 9, 0, 0, 0, time.UTC)
		next := w.nextActivation(friday)
		assert.Equal(t, 19, next.Day())
	})
}

func TestEstimateETA(t *testing.T) {
	s, _, _ := createTestScheduler(t, &stubDispatcher{}, 300)
	now := time.Date(2026, time.June, 16, 9, 0, 0, 0, time.UTC) // Tuesday
	s.now = func() time.Time { return now }

	t.Run("critical items go out on the next tick", func(t *testing.T) {
		eta := s.estimateETA(model.QueuedItem{Priority: model.PriorityCritical})
		assert.Equal(t, now.Add(30*time.Second), eta)
	})

	t.Run("other items wait for the next selecting window", func(t *testing.T) {
		eta := s.estimateETA(model.QueuedItem{Priority: model.PriorityLow})
		assert.Equal(t, time.Wednesday, eta.Weekday(), "the correlation pass is the nearest window")
	})
}
