package scheduler

import (
	"time"

	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
)

// Window is one declarative cadence slot: when it triggers, how much of
// the daily ceiling it may spend, and which queued items it selects.
// Expressing the cadence as data keeps it configurable and testable
// without touching the clock.
type Window struct {
	Name         string
	SubBudget    float64 // Fraction of the daily ceiling carved out for this window
	CrossContext bool    // Request cross-context correlations in this pass
	Active       func(day time.Time) bool
	Selects      func(item model.QueuedItem) bool
}

// selectAll admits every queued item.
func selectAll(model.QueuedItem) bool { return true }

// selectCritical admits only critical-priority items.
func selectCritical(item model.QueuedItem) bool {
	return item.Priority == model.PriorityCritical
}

// onWeekday builds an activation check for a fixed weekday.
func onWeekday(day time.Weekday) func(time.Time) bool {
	return func(t time.Time) bool { return t.Weekday() == day }
}

// everyOtherDay activates on even days of the year, giving a roughly
// alternating cadence without tracking state between runs.
func everyOtherDay(t time.Time) bool {
	return t.YearDay()%2 == 0
}

// DefaultWindows returns the standard four-window cadence. Sub-budgets are
// carved so unplanned spend on light days cannot starve the big batches:
// the weekend backlog keeps the largest share.
func DefaultWindows(cfg config.Scheduler) []Window {
	return []Window{
		{
			Name:         "weekend-backlog",
			SubBudget:    0.50,
			Active:       onWeekday(cfg.WeekendBatchDay),
			Selects:      selectAll,
			CrossContext: false,
		},
		{
			Name:         "cross-context-correlation",
			SubBudget:    0.25,
			Active:       onWeekday(cfg.CorrelationDay),
			Selects:      selectAll,
			CrossContext: true,
		},
		{
			Name:         "synthesis",
			SubBudget:    0.15,
			Active:       onWeekday(cfg.SynthesisDay),
			Selects:      selectAll,
			CrossContext: false,
		},
		{
			Name:         "critical-only",
			SubBudget:    0.10,
			Active:       everyOtherDay,
			Selects:      selectCritical,
			CrossContext: false,
		},
	}
}

// nextActivation returns the next time at or after from when the window
// triggers, evaluated at day granularity.
func (w Window) nextActivation(from time.Time) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		candidate := day.AddDate(0, 0, i)
		if w.Active(candidate) && (i > 0 || candidate.AddDate(0, 0, 1).After(from)) {
			return candidate
		}
	}
	return day.AddDate(0, 0, 7)
}
