package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

var runColumns = []string{
	"id", "workspace_id", "workflow", "status", "started_at", "finished_at",
	"iterations", "processed", "errors", "skipped", "force_failed",
	"items_per_second", "error_message",
}

// RecordRunState writes the run record, inserting it on first use.
func (s *Store) RecordRunState(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO process_runs (`+strings.Join(runColumns, ", ")+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             finished_at = excluded.finished_at,
             iterations = excluded.iterations,
             processed = excluded.processed,
             errors = excluded.errors,
             skipped = excluded.skipped,
             force_failed = excluded.force_failed,
             items_per_second = excluded.items_per_second,
             error_message = excluded.error_message`,
		run.ID,
		run.WorkspaceID,
		run.Workflow,
		string(run.Status),
		formatTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		run.Iterations,
		run.Processed,
		run.Errors,
		run.Skipped,
		run.ForceFailed,
		run.ItemsPerSecond,
		nullableString(run.ErrorMessage),
	); err != nil {
		return fmt.Errorf("record run state: %w", err)
	}
	return nil
}

// GetRun fetches a run record. A missing run yields nil, nil.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	runs, err := s.queryRuns(ctx, sq.Select(runColumns...).From("process_runs").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns returns a workspace's most recent runs first.
func (s *Store) ListRuns(ctx context.Context, workspaceID string, limit int) ([]*Run, error) {
	builder := sq.Select(runColumns...).
		From("process_runs").
		Where(sq.Eq{"workspace_id": workspaceID}).
		OrderBy("started_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	runs, err := s.queryRuns(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Store) queryRuns(ctx context.Context, builder sq.SelectBuilder) ([]*Run, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run        Run
			status     string
			started    string
			finished   sql.NullString
			errMessage sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.WorkspaceID,
			&run.Workflow,
			&status,
			&started,
			&finished,
			&run.Iterations,
			&run.Processed,
			&run.Errors,
			&run.Skipped,
			&run.ForceFailed,
			&run.ItemsPerSecond,
			&errMessage,
		); err != nil {
			return nil, err
		}
		run.Status = RunStatus(status)
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished.String)
		run.ErrorMessage = errMessage.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
