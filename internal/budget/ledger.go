// Package budget implements the single-writer spend ledger that gates all
// external analysis calls. Spend is reserved before a call and committed
// (or released) afterwards, with every commit persisted to the append-only
// usage ledger so that a restart reconstructs the same counters.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/service"
)

// Ledger tracks rolling spend against the configured ceilings. All methods
// are safe for concurrent use; the in-memory counters are authoritative
// between restarts and rebuilt from storage on startup.
type Ledger struct {
	store  service.Storage
	logger *slog.Logger
	cfg    config.Budget
	now    func() time.Time

	mu         sync.Mutex
	day        time.Time // UTC midnight of the day the counters describe
	spentToday float64
	spentWeek  float64
	spentMonth float64
	callsToday int
	reserved   float64 // Spend held by in-flight reservations
}

// NewLedger creates a ledger and replays this month's usage records from
// storage to rebuild the rolling counters.
func NewLedger(ctx context.Context, store service.Storage, cfg config.Budget, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}

	monthStart := startOfMonth(l.now().UTC())
	records, err := store.GetUsageSince(ctx, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to replay usage ledger: %w", err)
	}

	l.day = startOfDay(l.now().UTC())
	weekStart := startOfWeek(l.now().UTC())
	for _, rec := range records {
		ts := rec.Timestamp.UTC()
		l.spentMonth += rec.Cost
		if !ts.Before(weekStart) {
			l.spentWeek += rec.Cost
		}
		if !ts.Before(l.day) {
			l.spentToday += rec.Cost
			l.callsToday++
		}
	}

	logger.Info("budget ledger initialized",
		"spent_today", l.spentToday,
		"spent_month", l.spentMonth,
		"calls_today", l.callsToday)
	return l, nil
}

// DailyCeiling returns the per-day allowance: the monthly ceiling spread
// evenly over the days of the current month.
func (l *Ledger) DailyCeiling() float64 {
	now := l.now().UTC()
	days := daysInMonth(now)
	return l.cfg.MonthlyCeiling / float64(days)
}

// EmergencyAllowance returns the bounded overflow reserved for the
// critical lane.
func (l *Ledger) EmergencyAllowance() float64 {
	return l.DailyCeiling() * l.cfg.EmergencyAllowance
}

// Status returns a snapshot of the rolling counters. CanProceed is true
// when the remaining daily budget covers at least one minimum-cost call
// and the daily call cap has not been reached.
func (l *Ledger) Status() model.BudgetStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	ceiling := l.DailyCeiling()
	remaining := ceiling - l.spentToday - l.reserved
	return model.BudgetStatus{
		CanProceed:      remaining >= l.cfg.PerCallEstimate && l.callsToday < l.cfg.DailyCallCap,
		RemainingBudget: remaining,
		DailyCeiling:    ceiling,
		SpentToday:      l.spentToday,
		SpentThisWeek:   l.spentWeek,
		SpentThisMonth:  l.spentMonth,
		CallsMadeToday:  l.callsToday,
	}
}

// Reservation holds budget for one in-flight external call.
type Reservation struct {
	ledger   *Ledger
	amount   float64
	settled  bool
	critical bool
}

// Reserve holds amount against today's remaining budget. Critical
// reservations may additionally draw on the emergency allowance. Returns
// common.ErrBudgetExhausted when the hold cannot be granted.
func (l *Ledger) Reserve(amount float64, critical bool) (*Reservation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive, got %.4f", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.callsToday >= l.cfg.DailyCallCap {
		return nil, fmt.Errorf("%w: daily call cap of %d reached", common.ErrBudgetExhausted, l.cfg.DailyCallCap)
	}

	limit := l.DailyCeiling()
	if critical {
		limit += l.EmergencyAllowance()
	}
	if l.spentToday+l.reserved+amount > limit {
		return nil, fmt.Errorf("%w: %.4f requested, %.4f remaining",
			common.ErrBudgetExhausted, amount, limit-l.spentToday-l.reserved)
	}

	l.reserved += amount
	return &Reservation{ledger: l, amount: amount, critical: critical}, nil
}

// Commit settles the reservation with the actual cost and persists the
// usage record. The actual cost may differ from the reserved estimate.
func (r *Reservation) Commit(ctx context.Context, record model.UsageRecord) error {
	r.ledger.mu.Lock()
	if r.settled {
		r.ledger.mu.Unlock()
		return fmt.Errorf("reservation already settled")
	}
	r.settled = true
	r.ledger.reserved -= r.amount
	r.ledger.spentToday += record.Cost
	r.ledger.spentWeek += record.Cost
	r.ledger.spentMonth += record.Cost
	r.ledger.callsToday++
	r.ledger.mu.Unlock()

	// Persist after the counters move: a crash between the two leaves the
	// ledger under-counting for at most one call until restart replay.
	if err := r.ledger.store.AppendUsage(ctx, record); err != nil {
		return fmt.Errorf("spend committed but not persisted: %w", err)
	}
	return nil
}

// Release abandons the reservation without spending.
func (r *Reservation) Release() {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	if r.settled {
		return
	}
	r.settled = true
	r.ledger.reserved -= r.amount
}

// rollover resets the daily counters at the UTC day boundary and the
// weekly/monthly counters at their boundaries. Callers must hold l.mu.
func (l *Ledger) rollover() {
	today := startOfDay(l.now().UTC())
	if today.Equal(l.day) {
		return
	}

	l.logger.Info("budget day rollover", "previous_day", l.day.Format("2006-01-02"))
	if !startOfWeek(today).Equal(startOfWeek(l.day)) {
		l.spentWeek = 0
	}
	if !startOfMonth(today).Equal(startOfMonth(l.day)) {
		l.spentMonth = 0
	}
	l.day = today
	l.spentToday = 0
	l.callsToday = 0
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) - int(time.Monday) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
