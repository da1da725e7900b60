package actionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Analysis run statuses.
const (
	RunRunning     = "running"
	RunCompleted   = "completed"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// HeartbeatStaleAfter is how long an analysis run may go without a
// heartbeat before it is considered interrupted.
const HeartbeatStaleAfter = 60 * time.Second

// ErrRunNotFound is returned when the requested analysis run does not
// exist.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is the persisted state of one mailbox analysis job.
type AnalysisRun struct {
	ID             string
	Status         string
	StartedAt      time.Time
	LastUpdate     time.Time
	CompletedAt    time.Time
	SendersScanned int
	Error          string
}

// SenderStat is the per-sender result of an analysis run.
type SenderStat struct {
	Sender       string
	MessageCount int
	UnreadCount  int
}

// StartAnalysisRun records a new running analysis.
func (s *Store) StartAnalysisRun(ctx context.Context, id string) error {
	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, status, started_at, last_update)
		VALUES (?, ?, ?, ?)
	`, id, RunRunning, now, now)
	if err != nil {
		return fmt.Errorf("failed to start analysis run: %w", err)
	}
	return nil
}

// Heartbeat refreshes a running analysis run's liveness timestamp and
// progress counter. Executors call this between batches.
func (s *Store) Heartbeat(ctx context.Context, id string, sendersScanned int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET last_update = ?, senders_scanned = ?
		WHERE id = ? AND status = ?
	`, s.now().Unix(), sendersScanned, id, RunRunning)
	if err != nil {
		return fmt.Errorf("failed to heartbeat analysis run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("heartbeat for run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// CompleteAnalysisRun marks a run as finished.
func (s *Store) CompleteAnalysisRun(ctx context.Context, id string, sendersScanned int) error {
	return s.finishRun(ctx, id, RunCompleted, sendersScanned, "")
}

// FailAnalysisRun marks a run as failed with the given message.
func (s *Store) FailAnalysisRun(ctx context.Context, id string, errMsg string) error {
	run, err := s.AnalysisRun(ctx, id)
	if err != nil {
		return err
	}
	return s.finishRun(ctx, id, RunFailed, run.SendersScanned, errMsg)
}

func (s *Store) finishRun(ctx context.Context, id, status string, sendersScanned int, errMsg string) error {
	now := s.now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, last_update = ?, completed_at = ?, senders_scanned = ?, error = ?
		WHERE id = ?
	`, status, now, now, sendersScanned, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to finish analysis run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// MarkInterruptedRuns flags running analyses whose heartbeat is older
// than staleAfter as interrupted. Called at startup so crashed runs do
// not appear live forever. Returns the number of runs flagged.
func (s *Store) MarkInterruptedRuns(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-staleAfter).Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE analysis_runs
		SET status = ?, error = 'interrupted', completed_at = ?
		WHERE status = ? AND last_update < ?
	`, RunInterrupted, s.now().Unix(), RunRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count interrupted runs: %w", err)
	}
	return int(n), nil
}

// AnalysisRun returns one run by ID.
func (s *Store) AnalysisRun(ctx context.Context, id string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_at, last_update, completed_at, senders_scanned, error
		FROM analysis_runs
		WHERE id = ?
	`, id)

	var run AnalysisRun
	var startedAt, lastUpdate int64
	var completedAt sql.NullInt64
	err := row.Scan(&run.ID, &run.Status, &startedAt, &lastUpdate, &completedAt, &run.SendersScanned, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis run: %w", err)
	}
	run.StartedAt = time.Unix(startedAt, 0)
	run.LastUpdate = time.Unix(lastUpdate, 0)
	if completedAt.Valid {
		run.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	return &run, nil
}

// SaveSenderStats stores the per-sender results of an analysis run,
// replacing any previous results for the same run.
func (s *Store) SaveSenderStats(ctx context.Context, runID string, stats []SenderStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sender_stats WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear previous stats: %w", err)
	}
	for _, st := range stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sender_stats (run_id, sender, message_count, unread_count)
			VALUES (?, ?, ?, ?)
		`, runID, st.Sender, st.MessageCount, st.UnreadCount)
		if err != nil {
			return fmt.Errorf("failed to insert sender stats: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sender stats: %w", err)
	}
	return nil
}

// TopSenders returns the senders with the most messages for a run,
// limited to the given count.
func (s *Store) TopSenders(ctx context.Context, runID string, limit int) ([]SenderStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender, message_count, unread_count
		FROM sender_stats
		WHERE run_id = ?
		ORDER BY message_count DESC, sender ASC
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top senders: %w", err)
	}
	defer rows.Close()

	var stats []SenderStat
	for rows.Next() {
		var st SenderStat
		if err := rows.Scan(&st.Sender, &st.MessageCount, &st.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan sender stats: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sender stats: %w", err)
	}
	return stats, nil
}
