package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mediaflow/internal/workflow"
)

// MarkInterrupted fails every job that is not terminal, together with its
// unfinished tasks. Call it once at startup before accepting work.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(s.now())
	var affected int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, finished_at = ?, updated_at = ?
			 WHERE state NOT IN (?, ?)`,
			string(workflow.StateFailed), interruptedMessage, ErrorKindInterrupted, now, now,
			string(workflow.StateCompleted), string(workflow.StateFailed),
		)
		if err != nil {
			return fmt.Errorf("mark interrupted jobs: %w", err)
		}
		affected, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET state = ?, error_message = ?, finished_at = ? WHERE state IN (?, ?)`,
			string(workflow.TaskFailed), interruptedMessage, now,
			string(workflow.TaskPending), string(workflow.TaskRunning),
		); err != nil {
			return fmt.Errorf("mark interrupted tasks: %w", err)
		}
		return nil
	})
	return affected, err
}

// Prune deletes terminal jobs that finished before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM jobs WHERE state IN (?, ?) AND finished_at < ?`,
		string(workflow.StateCompleted), string(workflow.StateFailed), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}
