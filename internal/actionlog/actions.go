package actionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/teemow/inboxsweeper/internal/logging"
)

// Sender action statuses.
const (
	ActionPending   = "pending"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
)

// SenderAction is one entry in the append-only per-sender action log.
type SenderAction struct {
	ID          int64
	Sender      string
	Action      string
	Status      string
	JobID       string
	Detail      string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// QueueSenderAction appends a pending action for a sender and returns
// its row ID. The entry stays pending until a job completes or fails
// it, so requested work survives restarts.
func (s *Store) QueueSenderAction(ctx context.Context, sender, action string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sender_actions (sender, action, status, created_at)
		VALUES (?, ?, ?, ?)
	`, sender, action, ActionPending, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to queue sender action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read action id: %w", err)
	}

	s.logger.Info("queued sender action",
		logging.SenderHash(sender),
		logging.Operation(action))
	s.publish("queued", SenderAction{
		ID:     id,
		Sender: sender,
		Action: action,
		Status: ActionPending,
	})
	return id, nil
}

// CompletePendingActions marks the sender's pending actions of the
// given type as completed by the given job. Pending actions of other
// types stay pending until their own job settles them. It returns the
// number of rows updated.
func (s *Store) CompletePendingActions(ctx context.Context, sender, action, jobID string) (int, error) {
	return s.finishPendingActions(ctx, sender, action, jobID, ActionCompleted, "")
}

// FailPendingActions marks the sender's pending actions of the given
// type as failed with the given detail. It returns the number of rows
// updated.
func (s *Store) FailPendingActions(ctx context.Context, sender, action, jobID, detail string) (int, error) {
	return s.finishPendingActions(ctx, sender, action, jobID, ActionFailed, detail)
}

func (s *Store) finishPendingActions(ctx context.Context, sender, action, jobID, status, detail string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sender_actions
		SET status = ?, job_id = ?, detail = ?, completed_at = ?
		WHERE sender = ? AND action = ? AND status = ?
	`, status, jobID, detail, s.now().Unix(), sender, action, ActionPending)
	if err != nil {
		return 0, fmt.Errorf("failed to update sender actions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count updated actions: %w", err)
	}
	if n > 0 {
		s.publish(status, SenderAction{
			Sender: sender,
			Action: action,
			Status: status,
			JobID:  jobID,
			Detail: detail,
		})
	}
	return int(n), nil
}

// SenderActions returns all logged actions for a sender, newest first.
func (s *Store) SenderActions(ctx context.Context, sender string) ([]SenderAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, action, status, job_id, detail, created_at, completed_at
		FROM sender_actions
		WHERE sender = ?
		ORDER BY id DESC
	`, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to query sender actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

// PendingActions returns all pending actions across senders, oldest
// first, in the order they should be executed.
func (s *Store) PendingActions(ctx context.Context) ([]SenderAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, action, status, job_id, detail, created_at, completed_at
		FROM sender_actions
		WHERE status = ?
		ORDER BY id ASC
	`, ActionPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending actions: %w", err)
	}
	defer rows.Close()
	return scanActions(rows)
}

func scanActions(rows *sql.Rows) ([]SenderAction, error) {
	var actions []SenderAction
	for rows.Next() {
		var a SenderAction
		var createdAt int64
		var completedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Sender, &a.Action, &a.Status, &a.JobID, &a.Detail, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sender action: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		if completedAt.Valid {
			a.CompletedAt = time.Unix(completedAt.Int64, 0)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sender actions: %w", err)
	}
	return actions, nil
}
