package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmorgan/errsage/internal/budget"
	"github.com/jmorgan/errsage/internal/cache"
	"github.com/jmorgan/errsage/internal/classify"
	"github.com/jmorgan/errsage/internal/config"
	"github.com/jmorgan/errsage/internal/engine"
	"github.com/jmorgan/errsage/internal/gateway"
	"github.com/jmorgan/errsage/internal/model"
	"github.com/jmorgan/errsage/internal/pattern"
	"github.com/jmorgan/errsage/internal/scheduler"
	"github.com/jmorgan/errsage/internal/service"
	"github.com/jmorgan/errsage/internal/storage"
)

// initStorage initializes the storage service with auto-migration.
func initStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadLibrary builds the pattern library: builtin patterns first, then any
// configured extension file.
func loadLibrary(cfg *config.Config) (*pattern.Library, error) {
	patterns := pattern.DefaultPatterns()
	if cfg.PatternsFile != "" {
		extra, err := pattern.LoadFile(cfg.PatternsFile)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, extra...)
	}
	return pattern.NewLibrary(patterns)
}

// app bundles the fully wired components behind the CLI commands.
type app struct {
	cfg     *config.Config
	store   service.Storage
	library *pattern.Library
	cache   *cache.ResultCache
	ledger  *budget.Ledger
	sched   *scheduler.Scheduler
	engine  *engine.Engine
	gateway *gateway.Gateway
}

// buildApp wires the full pipeline. When no API key is configured the
// gateway is replaced by a stub so local-only commands still work; any
// command that actually escalates will then fail with a clear error.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	library, err := loadLibrary(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ledger, err := budget.NewLedger(ctx, store, cfg.Budget, slog.Default())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	resultCache := cache.New(store, cfg.Tunables, cfg.Budget.PerCallEstimate, slog.Default())
	classifier := classify.NewClassifier(library, cfg.Tunables, slog.Default())

	a := &app{
		cfg:     cfg,
		store:   store,
		library: library,
		cache:   resultCache,
		ledger:  ledger,
	}

	var dispatcher scheduler.Dispatcher
	if cfg.Gateway.APIKey != "" {
		gw, err := gateway.New(cfg.Gateway, ledger, cfg.Budget.PerCallEstimate, slog.Default())
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.gateway = gw
		dispatcher = gw
	} else {
		dispatcher = unavailableDispatcher{}
	}

	a.sched = scheduler.New(ledger, dispatcher, resultCache, store, cfg.Scheduler, cfg.Gateway, slog.Default())
	a.engine = engine.New(classifier, resultCache, a.sched, dispatcher, ledger, library, cfg.Tunables, slog.Default())
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.gateway != nil {
		_ = a.gateway.Close()
	}
	_ = a.store.Close()
}

// unavailableDispatcher stands in when no analysis provider is configured.
type unavailableDispatcher struct{}

func (unavailableDispatcher) AnalyzeBatch(context.Context, []model.QueuedItem, bool, *budget.Reservation) (model.AnalysisResult, error) {
	return model.AnalysisResult{}, fmt.Errorf("no analysis provider configured: set gateway.api_key or ERRSAGE_GATEWAY_API_KEY")
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readErrorContexts loads a JSON array of error contexts from a file, or
// from stdin when path is "-" or empty.
func readErrorContexts(path string) ([]model.ErrorContext, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read error input: %w", err)
	}

	var errs []model.ErrorContext
	if err := json.Unmarshal(data, &errs); err != nil {
		return nil, fmt.Errorf("failed to parse error input: %w", err)
	}
	return errs, nil
}
