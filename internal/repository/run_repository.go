package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digestmail/digestmail/internal/database"
	"github.com/digestmail/digestmail/internal/model"
)

// RunRepository handles merge run and send outcome persistence
type RunRepository struct {
	db *database.Postgres
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(db *database.Postgres) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a new merge run
func (r *RunRepository) CreateRun(ctx context.Context, run *model.Run) error {
	query := `
		INSERT INTO merge_runs (id, subject, provider, total, succeeded, failed, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Subject,
		run.Provider,
		run.Total,
		run.Succeeded,
		run.Failed,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create merge run: %w", err)
	}
	return nil
}

// RecordOutcome stores one recipient's send outcome
func (r *RunRepository) RecordOutcome(ctx context.Context, runID string, outcome model.Outcome) error {
	query := `
		INSERT INTO send_outcomes (run_id, position, full_name, email, succeeded, error, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var errText *string
	if outcome.Error != "" {
		errText = &outcome.Error
	}
	_, err := r.db.ExecContext(ctx, query,
		runID,
		outcome.Position,
		outcome.Recipient.FullName,
		outcome.Recipient.Email,
		outcome.Succeeded,
		errText,
		outcome.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record send outcome: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of a run
func (r *RunRepository) FinishRun(ctx context.Context, summary *model.Summary, status model.RunStatus) error {
	query := `
		UPDATE merge_runs
		SET succeeded = $2, failed = $3, status = $4, finished_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		summary.RunID,
		summary.Succeeded,
		summary.Failed(),
		status,
		summary.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finish merge run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRun retrieves a merge run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*model.Run, error) {
	query := `
		SELECT id, subject, provider, total, succeeded, failed, status, started_at, finished_at
		FROM merge_runs
		WHERE id = $1
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get merge run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, subject, provider, total, succeeded, failed, status, started_at, finished_at
		FROM merge_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var (
		run      model.Run
		finished sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Subject,
		&run.Provider,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Status,
		&run.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// staleAfter is how long a run may stay "running" before MarkStale fails it
const staleAfter = 6 * time.Hour

// MarkStale fails runs left "running" by a process that exited mid-run
func (r *RunRepository) MarkStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE merge_runs
		SET status = $1, finished_at = $2
		WHERE status = $3 AND started_at < $4
	`
	res, err := r.db.ExecContext(ctx, query, model.RunStatusFailed, now, model.RunStatusRunning, now.Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}
	return res.RowsAffected()
}
