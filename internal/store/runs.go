package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// BeginRun records a new sweep run in the running state.
func (s *Store) BeginRun(ctx context.Context, window model.SweepWindow, objectCount int) (model.SweepRun, error) {
	if err := window.Validate(); err != nil {
		return model.SweepRun{}, err
	}
	run := model.SweepRun{
		ID:          uuid.NewString(),
		Window:      window,
		ObjectCount: objectCount,
		Status:      model.RunRunning,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_runs
		(id, window_start, window_end, step_ns, threshold_km, object_count, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTimestamp(window.Start),
		formatTimestamp(window.End),
		int64(window.Step),
		window.ThresholdKm,
		objectCount,
		string(run.Status),
		formatTimestamp(run.StartedAt),
	)
	if err != nil {
		return model.SweepRun{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// ReopenRun marks a previously stopped run as running again.
func (s *Store) ReopenRun(ctx context.Context, id string) (model.SweepRun, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sweep_runs SET status = ?, finished_at = NULL WHERE id = ?",
		string(model.RunRunning), id)
	if err != nil {
		return model.SweepRun{}, fmt.Errorf("reopen run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return model.SweepRun{}, fmt.Errorf("reopen run: rows affected: %w", err)
	} else if n == 0 {
		return model.SweepRun{}, fmt.Errorf("reopen run: %w: %s", ErrRunNotFound, id)
	}
	return s.Run(ctx, id)
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sweep_runs SET status = ?, finished_at = ? WHERE id = ?",
		string(status), formatTimestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("finish run: %w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, window_start, window_end, step_ns, threshold_km, object_count,
	status, started_at, finished_at, last_instant`

// Run loads one run record.
func (s *Store) Run(ctx context.Context, id string) (model.SweepRun, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM sweep_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SweepRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Runs lists runs, most recently started first.
func (s *Store) Runs(ctx context.Context) ([]model.SweepRun, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM sweep_runs ORDER BY started_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []model.SweepRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LastCommitted returns the last instant committed for a run; ok is false
// when no step has been committed yet.
func (s *Store) LastCommitted(ctx context.Context, id string) (t time.Time, ok bool, err error) {
	run, err := s.Run(ctx, id)
	if err != nil {
		return time.Time{}, false, err
	}
	return run.LastInstant, run.Committed(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.SweepRun, error) {
	var (
		run                   model.SweepRun
		start, end, started   string
		stepNs                int64
		status                string
		finished, lastInstant sql.NullString
	)
	err := row.Scan(&run.ID, &start, &end, &stepNs, &run.Window.ThresholdKm, &run.ObjectCount,
		&status, &started, &finished, &lastInstant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SweepRun{}, err
		}
		return model.SweepRun{}, fmt.Errorf("scan run: %w", err)
	}
	run.Window.Start = parseTimestamp(start)
	run.Window.End = parseTimestamp(end)
	run.Window.Step = time.Duration(stepNs)
	run.Status = model.RunStatus(status)
	run.StartedAt = parseTimestamp(started)
	if finished.Valid {
		run.FinishedAt = parseTimestamp(finished.String)
	}
	if lastInstant.Valid {
		run.LastInstant = parseTimestamp(lastInstant.String)
	}
	return run, nil
}
