// Package gateway turns an approved batch of novel errors into a single
// outbound request to the external analysis service, tracks the actual
// cost, and parses the structured result into cacheable pattern records.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmorgan/errsage/internal/budget"
	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/service"
)

// Gateway is the only component that talks to the external analysis
// service and the only writer of budget spend.
type Gateway struct {
	client      service.AnalysisClient
	ledger      *budget.Ledger
	limiter     *rateLimiter
	logger      *slog.Logger
	cfg         config.Gateway
	retryOpts   common.RetryOptions
	perCallCost float64
}

// New creates a gateway for the configured provider.
func New(cfg config.Gateway, ledger *budget.Ledger, perCallCost float64, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var client service.AnalysisClient
	var err error
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis client: %w", err)
	}

	return &Gateway{
		client:      client,
		ledger:      ledger,
		limiter:     newRateLimiter(cfg.RateLimit),
		logger:      logger,
		cfg:         cfg,
		perCallCost: perCallCost,
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// NewWithClient creates a gateway with an injected client, used by tests
// and by callers that bring their own transport.
func NewWithClient(client service.AnalysisClient, cfg config.Gateway, ledger *budget.Ledger, perCallCost float64, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:      client,
		ledger:      ledger,
		limiter:     newRateLimiter(cfg.RateLimit),
		logger:      logger,
		cfg:         cfg,
		perCallCost: perCallCost,
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
		},
	}
}

// AnalyzeBatch dispatches one batch to the external service. The caller
// must already hold a budget reservation; the gateway commits actual
// usage against it before returning. Items are deduplicated, capped at
// the configured maximum, and ordered most complex first.
func (g *Gateway) AnalyzeBatch(ctx context.Context, items []model.QueuedItem, crossContext bool, reservation *budget.Reservation) (model.AnalysisResult, error) {
	if len(items) == 0 {
		return model.AnalysisResult{}, common.ErrEmptyBatch
	}

	batch := g.prepareBatch(items)
	prompt := buildPrompt(batch, crossContext)

	if err := g.limiter.wait(ctx); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("rate limit error: %w", err)
	}

	timeout := g.cfg.RequestTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw string
	var usage service.Usage
	err := common.WithRetry(callCtx, func() error {
		var callErr error
		raw, usage, callErr = g.client.Analyze(callCtx, prompt)
		if callErr != nil {
			g.logger.Warn("analysis attempt failed", "error", callErr, "batch_size", len(batch))
			return &common.RetryableError{Err: callErr, Retryable: true}
		}
		return nil
	}, g.retryOpts)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// Caller cancellation, not our request deadline.
			return model.AnalysisResult{}, fmt.Errorf("batch analysis canceled: %w", ctx.Err())
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return model.AnalysisResult{}, fmt.Errorf("%w: %v", common.ErrGatewayTimeout, err)
		default:
			return model.AnalysisResult{}, fmt.Errorf("batch analysis failed: %w", err)
		}
	}

	result := parseAnalysis(raw)
	result.TokensUsed = totalTokens(usage, prompt, raw)
	result.Cost = g.estimateCost(result.TokensUsed)

	record := model.UsageRecord{
		Timestamp: time.Now().UTC(),
		Cost:      result.Cost,
		Tokens:    result.TokensUsed,
		BatchSize: len(batch),
	}
	if err := reservation.Commit(ctx, record); err != nil {
		return result, fmt.Errorf("failed to record usage: %w", err)
	}

	g.logger.Info("batch analysis complete",
		"batch_size", len(batch),
		"patterns", len(result.Patterns),
		"tokens", result.TokensUsed,
		"cost", result.Cost,
		"note", result.Note)
	return result, nil
}

// prepareBatch deduplicates items by content hash, sorts the most complex
// payloads first, and caps the batch at the configured maximum.
func (g *Gateway) prepareBatch(items []model.QueuedItem) []model.QueuedItem {
	seen := make(map[string]bool, len(items))
	batch := make([]model.QueuedItem, 0, len(items))
	for _, item := range items {
		key := item.Error.Hash()
		if seen[key] {
			continue
		}
		seen[key] = true
		batch = append(batch, item)
	}

	// Complexity heuristic: longer stack traces get analyzed first
	sort.SliceStable(batch, func(i, j int) bool {
		return len(batch[i].Error.StackTrace) > len(batch[j].Error.StackTrace)
	})

	limit := g.cfg.MaxBatchSize
	if limit <= 0 {
		limit = 20
	}
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch
}

// totalTokens prefers API-reported usage and falls back to the chars/4
// proxy when the provider reports nothing.
func totalTokens(usage service.Usage, prompt, response string) int64 {
	if usage.InputTokens+usage.OutputTokens > 0 {
		return usage.InputTokens + usage.OutputTokens
	}
	return int64((len(prompt) + len(response)) / 4)
}

// estimateCost derives a monetary cost from total tokens using the
// configured input/output price split: roughly 70% of tokens are input,
// 30% output.
func (g *Gateway) estimateCost(tokens int64) float64 {
	inputTokens := float64(tokens) * 0.7
	outputTokens := float64(tokens) * 0.3
	return inputTokens*g.cfg.InputPricePerTok + outputTokens*g.cfg.OutputPricePerTok
}

// Close stops the gateway's background goroutines.
func (g *Gateway) Close() error {
	g.limiter.Close()
	return nil
}
