// Package scheduler implements the budget-aware escalation queue: novel
// errors wait here, ordered by priority, until a cadence window and the
// budget ledger both allow a batch to be dispatched.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmorgan/errsage/internal/budget"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/service"
)

// Per-item cost estimation: a fixed base fee plus small premiums for
// payloads that will consume more analysis tokens.
const (
	baseItemFee       = 0.02
	largeStackPremium = 0.01
	richMetaPremium   = 0.005
	largeStackChars   = 1500
)

// Dispatcher sends an approved batch to the external analysis service.
type Dispatcher interface {
	AnalyzeBatch(ctx context.Context, items []model.QueuedItem, crossContext bool, reservation *budget.Reservation) (model.AnalysisResult, error)
}

// Scheduler owns all queued novel errors. The queue and the in-flight
// budget reservation are guarded by a single mutex: batch selection and
// queue updates happen inside it, the slow gateway call outside.
type Scheduler struct {
	ledger     *budget.Ledger
	dispatcher Dispatcher
	sink       service.ResultCache
	store      service.Storage
	logger     *slog.Logger
	cfg        config.Scheduler
	gatewayCfg config.Gateway
	windows    []Window
	now        func() time.Time

	mu         sync.Mutex
	queue      []model.QueuedItem
	dispatched int64
	dropped    int64
}

// New creates a scheduler with the default cadence windows.
func New(ledger *budget.Ledger, dispatcher Dispatcher, sink service.ResultCache, store service.Storage, cfg config.Scheduler, gatewayCfg config.Gateway, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Scheduler{
		ledger:     ledger,
		dispatcher: dispatcher,
		sink:       sink,
		store:      store,
		logger:     logger,
		cfg:        cfg,
		gatewayCfg: gatewayCfg,
		windows:    DefaultWindows(cfg),
		now:        time.Now,
	}
}

// Enqueue accepts a novel error, derives its priority from context
// heuristics, and returns its queue position, cost estimate, and a rough
// dispatch ETA. Higher-priority items always sort ahead; FIFO within a tier.
func (s *Scheduler) Enqueue(errCtx model.ErrorContext) (model.QueueInfo, error) {
	if err := errCtx.Validate(); err != nil {
		return model.QueueInfo{}, err
	}

	item := model.QueuedItem{
		ID:            uuid.NewString(),
		Error:         errCtx,
		Priority:      DerivePriority(errCtx),
		QueuedAt:      s.now().UTC(),
		EstimatedCost: EstimateCost(errCtx),
	}

	s.mu.Lock()
	position := 1
	for _, queued := range s.queue {
		if queued.Priority.Weight() >= item.Priority.Weight() {
			position++
		}
	}
	s.queue = append(s.queue, item)
	s.sortQueueLocked()
	s.mu.Unlock()

	s.logger.Info("enqueued novel error",
		"item_id", item.ID,
		"priority", item.Priority,
		"position", position,
		"estimated_cost", item.EstimatedCost)

	return model.QueueInfo{
		ItemID:        item.ID,
		Priority:      item.Priority,
		QueuePosition: position,
		CostEstimate:  item.EstimatedCost,
		ETA:           s.estimateETA(item),
	}, nil
}

// CheckBudget reports whether a dispatch could proceed right now.
func (s *Scheduler) CheckBudget() model.BudgetStatus {
	return s.ledger.Status()
}

// QueueSize returns the number of currently queued items.
func (s *Scheduler) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Snapshot returns a copy of the queue for inspection.
func (s *Scheduler) Snapshot() []model.QueuedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.QueuedItem, len(s.queue))
	copy(out, s.queue)
	return out
}

// Run starts the three cooperative drain loops and blocks until the
// context is canceled: a frequent critical-lane drain, an hourly general
// drain, and the cadence check folded into the hourly tick.
func (s *Scheduler) Run(ctx context.Context) {
	criticalInterval := s.cfg.CriticalInterval
	if criticalInterval <= 0 {
		criticalInterval = 30 * time.Second
	}
	generalInterval := s.cfg.GeneralInterval
	if generalInterval <= 0 {
		generalInterval = time.Hour
	}

	criticalTicker := time.NewTicker(criticalInterval)
	generalTicker := time.NewTicker(generalInterval)
	defer criticalTicker.Stop()
	defer generalTicker.Stop()

	s.logger.Info("scheduler started",
		"critical_interval", criticalInterval,
		"general_interval", generalInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "queued", s.QueueSize())
			return
		case <-criticalTicker.C:
			s.DrainCritical(ctx)
		case <-generalTicker.C:
			s.DrainWindows(ctx)
		}
	}
}

// DrainCritical dispatches critical items immediately, drawing on the
// reserved emergency sub-budget regardless of which day it is.
func (s *Scheduler) DrainCritical(ctx context.Context) {
	batch := s.takeBatch(selectCritical, s.ledger.EmergencyAllowance())
	if len(batch) == 0 {
		return
	}
	s.dispatch(ctx, batch, false, true)
}

// DrainWindows evaluates every cadence window against today and dispatches
// the batches of those that are active.
func (s *Scheduler) DrainWindows(ctx context.Context) {
	today := s.now().UTC()
	for _, w := range s.windows {
		if !w.Active(today) {
			continue
		}
		subBudget := s.ledger.DailyCeiling() * w.SubBudget
		batch := s.takeBatch(w.Selects, subBudget)
		if len(batch) == 0 {
			continue
		}
		s.logger.Info("cadence window firing", "window", w.Name, "batch_size", len(batch))
		s.dispatch(ctx, batch, w.CrossContext, false)
	}
}

// takeBatch removes and returns the items a window may spend on: priority
// weight descending, enqueue time ascending within a tier, greedily until
// the sub-budget would be exceeded.
func (s *Scheduler) takeBatch(selects func(model.QueuedItem) bool, subBudget float64) []model.QueuedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sortQueueLocked()

	maxItems := s.gatewayCfg.OptimalBatchSize
	if maxItems <= 0 {
		maxItems = 12
	}

	var batch []model.QueuedItem
	var remaining []model.QueuedItem
	spent := 0.0
	for _, item := range s.queue {
		if !selects(item) || len(batch) >= maxItems || spent+item.EstimatedCost > subBudget {
			remaining = append(remaining, item)
			continue
		}
		spent += item.EstimatedCost
		batch = append(batch, item)
	}
	s.queue = remaining
	return batch
}

// dispatch reserves budget, calls the gateway outside the queue lock, and
// settles the outcome: results flow to the cache, failures requeue the
// batch until the retry ceiling drops it.
func (s *Scheduler) dispatch(ctx context.Context, batch []model.QueuedItem, crossContext, critical bool) {
	estimate := 0.0
	for _, item := range batch {
		estimate += item.EstimatedCost
	}

	reservation, err := s.ledger.Reserve(estimate, critical)
	if err != nil {
		s.logger.Warn("dispatch blocked by budget, requeueing", "batch_size", len(batch), "error", err)
		s.requeue(ctx, batch, false)
		return
	}

	result, err := s.dispatcher.AnalyzeBatch(ctx, batch, crossContext, reservation)
	if err != nil {
		reservation.Release()
		s.logger.Error("batch dispatch failed", "batch_size", len(batch), "error", err)
		s.requeue(ctx, batch, true)
		return
	}

	if len(result.Patterns) > 0 {
		if err := s.sink.PutBatch(ctx, result.Patterns); err != nil {
			s.logger.Error("failed to cache discovered patterns", "error", err)
		}
	}

	s.mu.Lock()
	s.dispatched += int64(len(batch))
	s.mu.Unlock()

	s.logger.Info("batch resolved",
		"batch_size", len(batch),
		"patterns_discovered", len(result.Patterns),
		"cost", result.Cost)
}

// requeue returns failed items to the queue with an incremented retry
// count when countRetry is set; items at the retry ceiling are dropped and
// recorded as permanently unresolved, never lost silently.
func (s *Scheduler) requeue(ctx context.Context, batch []model.QueuedItem, countRetry bool) {
	var keep []model.QueuedItem
	for _, item := range batch {
		if countRetry {
			item.RetryCount++
		}
		if item.RetryCount >= s.cfg.MaxRetries {
			if err := s.store.RecordUnresolved(ctx, item); err != nil {
				s.logger.Error("failed to record unresolved item", "item_id", item.ID, "error", err)
			}
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			continue
		}
		keep = append(keep, item)
	}

	s.mu.Lock()
	s.queue = append(s.queue, keep...)
	s.sortQueueLocked()
	s.mu.Unlock()
}

// sortQueueLocked orders the queue by priority weight descending, then by
// enqueue time ascending. Callers must hold s.mu.
func (s *Scheduler) sortQueueLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		wi, wj := s.queue[i].Priority.Weight(), s.queue[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return s.queue[i].QueuedAt.Before(s.queue[j].QueuedAt)
	})
}

// estimateETA predicts when the item's batch will be dispatched: critical
// items go out on the next critical-lane tick, everything else waits for
// the next window that selects it.
func (s *Scheduler) estimateETA(item model.QueuedItem) time.Time {
	now := s.now().UTC()
	if item.Priority == model.PriorityCritical {
		interval := s.cfg.CriticalInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		return now.Add(interval)
	}

	next := now.AddDate(0, 0, 8)
	for _, w := range s.windows {
		if !w.Selects(item) {
			continue
		}
		if activation := w.nextActivation(now); activation.Before(next) {
			next = activation
		}
	}
	return next
}

// DerivePriority maps context heuristics onto a priority tier: production
// or security signals are critical, build/API failures high, dev and test
// contexts medium, everything else low.
func DerivePriority(errCtx model.ErrorContext) model.Priority {
	text := strings.ToLower(errCtx.Context + " " + errCtx.Environment + " " + errCtx.Message)

	switch {
	case strings.Contains(text, "production") || strings.Contains(text, "prod") ||
		containsAny(text, "security", "vulnerability", "exploit", "unauthorized", "injection"):
		return model.PriorityCritical
	case containsAny(text, "build", "compile", "api", "deploy", "pipeline"):
		return model.PriorityHigh
	case containsAny(text, "development", "dev", "test", "staging"):
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// EstimateCost prices one item: a base fee plus premiums for payloads
// that will consume more analysis tokens.
func EstimateCost(errCtx model.ErrorContext) float64 {
	cost := baseItemFee
	if len(errCtx.StackTrace) > largeStackChars {
		cost += largeStackPremium
	}
	if len(errCtx.Metadata) >= 3 || (errCtx.Environment != "" && errCtx.Platform != "") {
		cost += richMetaPremium
	}
	return cost
}
