package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmorgan/errsage/internal/model"
)

// AppendUsage records one external-call usage entry in the append-only
// ledger. The write is committed before return so a crash cannot lose
// spend history.
func (s *SQLiteStorage) AppendUsage(ctx context.Context, record model.UsageRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUsage(&record); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_ledger (timestamp, cost, tokens, batch_size)
		VALUES (?, ?, ?, ?)`,
		record.Timestamp, record.Cost, record.Tokens, record.BatchSize); err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}

	slog.Debug("appended usage record",
		"cost", record.Cost,
		"tokens", record.Tokens,
		"batch_size", record.BatchSize)
	return nil
}

// GetUsageSince returns all ledger entries at or after the given time,
// oldest first. Used to reconstruct budget state on restart.
func (s *SQLiteStorage) GetUsageSince(ctx context.Context, since time.Time) ([]model.UsageRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, cost, tokens, batch_size
		FROM usage_ledger
		WHERE timestamp >= ?
		ORDER BY timestamp ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage ledger: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var records []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Cost, &rec.Tokens, &rec.BatchSize); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}
	return records, nil
}

// RecordUnresolved logs an item dropped after exhausting its retries.
func (s *SQLiteStorage) RecordUnresolved(ctx context.Context, item model.QueuedItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO unresolved (id, message, context, priority, retry_count, dropped_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.Error.Message, item.Error.Context, string(item.Priority),
		item.RetryCount, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record unresolved item: %w", err)
	}

	slog.Warn("recorded permanently unresolved error",
		"item_id", item.ID,
		"priority", item.Priority,
		"retries", item.RetryCount)
	return nil
}
