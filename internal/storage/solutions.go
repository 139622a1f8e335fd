package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmorgan/errsage/internal/common"
	"github.com/jmorgan/errsage/internal/model"
)

// GetSolution retrieves a cached solution by pattern ID.
// Returns common.ErrNotFound when no entry exists.
func (s *SQLiteStorage) GetSolution(ctx context.Context, patternID string) (*model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return nil, err
	}

	query := `
		SELECT pattern_id, solution_text, confidence_score, success_rate,
			applicable_contexts, fix_templates, preventions,
			cached_at, usage_count, last_accessed
		FROM solutions
		WHERE pattern_id = ?`

	sol := &model.CachedSolution{}
	var contexts, fixes, preventions sql.NullString

	err := s.db.QueryRowContext(ctx, query, patternID).Scan(
		&sol.PatternID, &sol.SolutionText, &sol.ConfidenceScore, &sol.SuccessRate,
		&contexts, &fixes, &preventions,
		&sol.CachedAt, &sol.UsageCount, &sol.LastAccessed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: solution for pattern %s", common.ErrNotFound, patternID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query solution: %w", err)
	}

	if err := unmarshalList(contexts, &sol.ApplicableContexts); err != nil {
		return nil, err
	}
	if err := unmarshalList(fixes, &sol.FixTemplates); err != nil {
		return nil, err
	}
	if err := unmarshalList(preventions, &sol.Preventions); err != nil {
		return nil, err
	}

	return sol, nil
}

// SaveSolution inserts or replaces a cached solution.
func (s *SQLiteStorage) SaveSolution(ctx context.Context, sol *model.CachedSolution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSolution(sol); err != nil {
		return err
	}

	contexts, err := marshalList(sol.ApplicableContexts)
	if err != nil {
		return err
	}
	fixes, err := marshalList(sol.FixTemplates)
	if err != nil {
		return err
	}
	preventions, err := marshalList(sol.Preventions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO solutions (
			pattern_id, solution_text, confidence_score, success_rate,
			applicable_contexts, fix_templates, preventions,
			cached_at, usage_count, last_accessed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pattern_id) DO UPDATE SET
			solution_text = excluded.solution_text,
			confidence_score = excluded.confidence_score,
			success_rate = excluded.success_rate,
			applicable_contexts = excluded.applicable_contexts,
			fix_templates = excluded.fix_templates,
			preventions = excluded.preventions,
			usage_count = excluded.usage_count,
			last_accessed = excluded.last_accessed`

	if _, err := s.db.ExecContext(ctx, query,
		sol.PatternID, sol.SolutionText, sol.ConfidenceScore, sol.SuccessRate,
		contexts, fixes, preventions,
		sol.CachedAt, sol.UsageCount, sol.LastAccessed,
	); err != nil {
		return fmt.Errorf("failed to save solution: %w", err)
	}

	slog.Debug("saved solution", "pattern_id", sol.PatternID)
	return nil
}

// TouchSolution increments a solution's usage count and refreshes its
// last-accessed timestamp.
func (s *SQLiteStorage) TouchSolution(ctx context.Context, patternID string, accessedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE solutions
		SET usage_count = usage_count + 1, last_accessed = ?
		WHERE pattern_id = ?`,
		accessedAt, patternID)
	if err != nil {
		return fmt.Errorf("failed to touch solution: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: solution for pattern %s", common.ErrNotFound, patternID)
	}
	return nil
}

// UpdateSolutionScores persists recalibrated success rate and confidence
// for a solution.
func (s *SQLiteStorage) UpdateSolutionScores(ctx context.Context, patternID string, successRate, confidenceScore float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE solutions
		SET success_rate = ?, confidence_score = ?
		WHERE pattern_id = ?`,
		successRate, confidenceScore, patternID)
	if err != nil {
		return fmt.Errorf("failed to update solution scores: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: solution for pattern %s", common.ErrNotFound, patternID)
	}
	return nil
}

// ListSolutions returns all cached solutions ordered by pattern ID.
func (s *SQLiteStorage) ListSolutions(ctx context.Context) ([]model.CachedSolution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern_id, solution_text, confidence_score, success_rate,
			applicable_contexts, fix_templates, preventions,
			cached_at, usage_count, last_accessed
		FROM solutions
		ORDER BY pattern_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query solutions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var solutions []model.CachedSolution
	for rows.Next() {
		var sol model.CachedSolution
		var contexts, fixes, preventions sql.NullString

		if err := rows.Scan(
			&sol.PatternID, &sol.SolutionText, &sol.ConfidenceScore, &sol.SuccessRate,
			&contexts, &fixes, &preventions,
			&sol.CachedAt, &sol.UsageCount, &sol.LastAccessed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}

		if err := unmarshalList(contexts, &sol.ApplicableContexts); err != nil {
			return nil, err
		}
		if err := unmarshalList(fixes, &sol.FixTemplates); err != nil {
			return nil, err
		}
		if err := unmarshalList(preventions, &sol.Preventions); err != nil {
			return nil, err
		}

		solutions = append(solutions, sol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating solutions: %w", err)
	}
	return solutions, nil
}

// DeleteSolutions removes the given pattern IDs and returns how many rows
// were deleted.
func (s *SQLiteStorage) DeleteSolutions(ctx context.Context, patternIDs []string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(patternIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var deleted int64
	for _, id := range patternIDs {
		result, err := tx.ExecContext(ctx, `DELETE FROM solutions WHERE pattern_id = ?`, id)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to delete solution %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit deletions: %w", err)
	}

	slog.Info("deleted solutions", "count", deleted)
	return deleted, nil
}

// CountSolutions returns the number of cached solutions.
func (s *SQLiteStorage) CountSolutions(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solutions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count solutions: %w", err)
	}
	return count, nil
}

// marshalList serializes a string slice to JSON for storage.
func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(data), nil
}

// unmarshalList deserializes a JSON column into a string slice.
func unmarshalList(col sql.NullString, dst *[]string) error {
	if !col.Valid || col.String == "" {
		*dst = nil
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("failed to unmarshal list: %w", err)
	}
	return nil
}
