package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Phase labels for entries.
const (
	PhaseRun    = "run"
	PhasePrep   = "phase1"
	PhaseRender = "phase2"
)

// Entry is one journaled track outcome.
type Entry struct {
	ID            int64
	RunID         string
	Phase         string
	LedgerPath    string
	Row           int
	Track         string
	OldStatus     string
	NewStatus     string
	FailedStages  []string
	Duration      time.Duration
	CorrelationID string
	Error         string
	CreatedAt     time.Time
}

// Succeeded reports whether no stage failed.
func (e Entry) Succeeded() bool {
	return len(e.FailedStages) == 0 && e.Error == ""
}

// Record appends an entry and returns its ID. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if strings.TrimSpace(e.Track) == "" {
		return 0, fmt.Errorf("journal entry requires a track")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx, `INSERT INTO entries
		(run_id, phase, ledger_path, row_number, track, old_status, new_status,
		 failed_stages, duration_ms, correlation_id, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Phase, e.LedgerPath, e.Row, e.Track, e.OldStatus, e.NewStatus,
		strings.Join(e.FailedStages, ","), e.Duration.Milliseconds(), e.CorrelationID, e.Error,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}
	return res.LastInsertId()
}

const selectColumns = `id, run_id, phase, ledger_path, row_number, track, old_status, new_status,
	failed_stages, duration_ms, correlation_id, error_message, created_at`

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, "SELECT "+selectColumns+" FROM entries ORDER BY id DESC LIMIT ?", limit)
}

// ForTrack returns up to limit entries for one track, newest first.
func (s *Store) ForTrack(ctx context.Context, track string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, "SELECT "+selectColumns+" FROM entries WHERE track = ? ORDER BY id DESC LIMIT ?", track, limit)
}

// ForRun returns every entry of one driver invocation in insertion order.
func (s *Store) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, "SELECT "+selectColumns+" FROM entries WHERE run_id = ? ORDER BY id ASC", runID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var rows *sql.Rows
	if err := retryOnBusy(ctx, func() error {
		var err error
		rows, err = s.db.QueryContext(ctx, query, args...)
		return err
	}); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			failed    string
			duration  int64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Phase, &e.LedgerPath, &e.Row, &e.Track, &e.OldStatus, &e.NewStatus,
			&failed, &duration, &e.CorrelationID, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if failed != "" {
			e.FailedStages = strings.Split(failed, ",")
		}
		e.Duration = time.Duration(duration) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
