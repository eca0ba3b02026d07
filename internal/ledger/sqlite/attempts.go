package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"newsreel/internal/ledger"
	"newsreel/internal/types"
)

// maxStoredTitle bounds the title column for storage economy; the full title
// lives only in the log stream.
const maxStoredTitle = 100

type attemptLedger struct {
	db *sql.DB
}

func (l *attemptLedger) Record(ctx context.Context, rec *types.AttemptRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO attempts (identity, source_url, title, section, overall_success, retryable, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			source_url = excluded.source_url,
			title = excluded.title,
			section = excluded.section,
			overall_success = excluded.overall_success,
			retryable = excluded.retryable,
			created_at = excluded.created_at
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, query,
		rec.Identity, rec.SourceURL, truncate(rec.Title, maxStoredTitle), rec.Section,
		rec.OverallSuccess, rec.Retryable, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert attempt: %w", err)
	}

	// The second call's data wins wholesale: replace the outcome rows rather
	// than merging them.
	if _, err := tx.ExecContext(ctx, `DELETE FROM attempt_outcomes WHERE identity = ?`, rec.Identity); err != nil {
		return fmt.Errorf("failed to clear prior outcomes: %w", err)
	}

	for platform, result := range rec.Platforms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attempt_outcomes (identity, platform, status, external_id, error, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.Identity, platform, string(result.Status), result.ExternalID, result.Error, result.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to store outcome for %s: %w", platform, err)
		}
	}

	return tx.Commit()
}

func (l *attemptLedger) Exists(ctx context.Context, identity, sourceURL string) (bool, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attempts
		WHERE (identity = ? OR source_url = ?) AND retryable = 0
	`, identity, sourceURL).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return count > 0, nil
}

func (l *attemptLedger) Get(ctx context.Context, identity string) (*types.AttemptRecord, error) {
	rec := &types.AttemptRecord{Identity: identity, Platforms: map[string]types.PlatformResult{}}

	err := l.db.QueryRowContext(ctx, `
		SELECT source_url, title, section, overall_success, retryable, created_at
		FROM attempts WHERE identity = ?
	`, identity).Scan(&rec.SourceURL, &rec.Title, &rec.Section, &rec.OverallSuccess, &rec.Retryable, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT platform, status, external_id, error, recorded_at
		FROM attempt_outcomes WHERE identity = ?
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to load outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform, status string
		var result types.PlatformResult
		if err := rows.Scan(&platform, &status, &result.ExternalID, &result.Error, &result.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		result.Status = types.OutcomeStatus(status)
		rec.Platforms[platform] = result
	}

	return rec, rows.Err()
}

func (l *attemptLedger) Stats(ctx context.Context) (*ledger.Stats, error) {
	stats := &ledger.Stats{
		Sections:          map[string]int{},
		PlatformSuccesses: map[string]int{},
	}

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(overall_success), 0) FROM attempts
	`).Scan(&stats.TotalAttempts, &stats.Successes)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT section, COUNT(*) FROM attempts GROUP BY section ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section string
		var count int
		if err := rows.Scan(&section, &count); err != nil {
			return nil, fmt.Errorf("failed to scan section count: %w", err)
		}
		stats.Sections[section] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	platformRows, err := l.db.QueryContext(ctx, `
		SELECT platform, COUNT(*) FROM attempt_outcomes WHERE status = ? GROUP BY platform
	`, string(types.StatusSuccess))
	if err != nil {
		return nil, fmt.Errorf("failed to count platform successes: %w", err)
	}
	defer platformRows.Close()

	for platformRows.Next() {
		var platform string
		var count int
		if err := platformRows.Scan(&platform, &count); err != nil {
			return nil, fmt.Errorf("failed to scan platform count: %w", err)
		}
		stats.PlatformSuccesses[platform] = count
	}

	return stats, platformRows.Err()
}

func (l *attemptLedger) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	slog.Debug("Deleting attempts older than cutoff", "age", age, "cutoff", cutoff.Format(time.RFC3339))
	result, err := l.db.ExecContext(ctx, `DELETE FROM attempts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old attempts: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if rows > 0 {
		slog.Debug("Deleted old attempts", "count", rows)
	}
	return rows, nil
}

func (l *attemptLedger) Close() error {
	return l.db.Close()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
