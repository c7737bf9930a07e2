package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/model"
)

// EventFilter narrows an Events query. Zero values do not filter.
type EventFilter struct {
	RunID     string
	Satellite string // matches sat1 or sat2
	From      time.Time
	To        time.Time // inclusive
	Limit     int
}

// Append writes events as a single transaction: either all of them are
// stored or none are. Identifiers are assigned by the store.
func (s *Store) Append(ctx context.Context, events []model.ConjunctionEvent) error {
	return s.CommitStep(ctx, model.StepCommit{Events: events})
}

// CommitStep writes one instant's events and, when RunID is set, advances the
// run's last committed instant, all in one transaction.
func (s *Store) CommitStep(ctx context.Context, commit model.StepCommit) error {
	for i, ev := range commit.Events {
		if err := validateEvent(ev); err != nil {
			return fmt.Errorf("commit step: event %d: %w", i, err)
		}
	}

	if commit.RunID != "" && commit.Instant.Nanosecond() != 0 {
		return fmt.Errorf("commit step: instant %s is finer than the stored whole seconds",
			commit.Instant.Format(time.RFC3339Nano))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit step: begin tx: %w", err)
	}
	defer tx.Rollback()

	runID := sql.NullString{String: commit.RunID, Valid: commit.RunID != ""}

	if len(commit.Events) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO events (run_id, timestamp, sat1, sat2, distance_km) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("commit step: prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, ev := range commit.Events {
			if _, err := stmt.ExecContext(ctx, runID, formatTimestamp(ev.Timestamp), ev.Sat1, ev.Sat2, ev.DistanceKm); err != nil {
				return fmt.Errorf("commit step: insert event %s/%s: %w", ev.Sat1, ev.Sat2, err)
			}
		}
	}

	if runID.Valid {
		res, err := tx.ExecContext(ctx,
			"UPDATE sweep_runs SET last_instant = ? WHERE id = ?",
			formatTimestamp(commit.Instant), commit.RunID)
		if err != nil {
			return fmt.Errorf("commit step: advance run: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("commit step: rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("commit step: %w: %s", ErrRunNotFound, commit.RunID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit step: commit: %w", err)
	}
	return nil
}

func validateEvent(ev model.ConjunctionEvent) error {
	switch {
	case ev.ID != 0:
		return fmt.Errorf("event already has id %d", ev.ID)
	case ev.Sat1 == "" || ev.Sat2 == "":
		return fmt.Errorf("event has an empty designator")
	case ev.Sat1 >= ev.Sat2:
		return fmt.Errorf("designators %q, %q are not in canonical order", ev.Sat1, ev.Sat2)
	case math.IsNaN(ev.DistanceKm) || math.IsInf(ev.DistanceKm, 0):
		return fmt.Errorf("distance %v is not finite", ev.DistanceKm)
	case ev.Timestamp.IsZero():
		return fmt.Errorf("event has no timestamp")
	case ev.Timestamp.Nanosecond() != 0:
		return fmt.Errorf("timestamp %s is finer than the stored whole seconds", ev.Timestamp.Format(time.RFC3339Nano))
	}
	return nil
}

// Events returns stored events in write order.
func (s *Store) Events(ctx context.Context, f EventFilter) ([]model.ConjunctionEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.Satellite != "" {
		where = append(where, "(sat1 = ? OR sat2 = ?)")
		args = append(args, f.Satellite, f.Satellite)
	}
	if !f.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, formatTimestamp(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, formatTimestamp(f.To))
	}

	query := "SELECT id, timestamp, sat1, sat2, distance_km FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.ConjunctionEvent
	for rows.Next() {
		var (
			ev model.ConjunctionEvent
			ts string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.Sat1, &ev.Sat2, &ev.DistanceKm); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = parseTimestamp(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountEvents returns the number of stored events for a run, or for all runs
// when runID is empty.
func (s *Store) CountEvents(ctx context.Context, runID string) (int64, error) {
	query := "SELECT COUNT(*) FROM events"
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
