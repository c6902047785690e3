package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mediaflow/internal/request"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

var _ workflow.History = (*Store)(nil)

// RecordSubmitted inserts the job with one pending task per activity.
func (s *Store) RecordSubmitted(ctx context.Context, id string, req request.Request, at time.Time) error {
	encoded, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	now := formatTime(s.now())
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, state, file, request_json, submitted_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, string(workflow.StateQueued), req.File, string(encoded), formatTime(at), now,
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		for i, activity := range req.Activities {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (job_id, activity, position, state) VALUES (?, ?, ?, ?)`,
				id, activity, i, string(workflow.TaskPending),
			); err != nil {
				return fmt.Errorf("insert task %s: %w", activity, err)
			}
		}
		return nil
	})
}

// RecordStarted marks the job as staging.
func (s *Store) RecordStarted(ctx context.Context, id string, at time.Time) error {
	return s.updateJob(ctx, id, "started",
		`UPDATE jobs SET state = ?, started_at = ?, updated_at = ? WHERE id = ?`,
		string(workflow.StateStaging), formatTime(at), formatTime(s.now()), id)
}

// RecordTask stores one task's latest status. The first task report also
// moves the job to running.
func (s *Store) RecordTask(ctx context.Context, id string, status workflow.TaskStatus) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET state = ?, error_message = ?, started_at = ?, finished_at = ? WHERE job_id = ? AND activity = ?`,
			string(status.State), nullString(status.Error), formatTime(status.StartedAt), formatTime(status.FinishedAt), id, status.Activity,
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", status.Activity, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "jobstore", "record task", id+"/"+status.Activity, nil)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = ?, updated_at = ? WHERE id = ? AND state IN (?, ?)`,
			string(workflow.StateRunning), formatTime(s.now()), id, string(workflow.StateQueued), string(workflow.StateStaging),
		)
		return err
	})
}

// RecordCompleted stores the aggregated result.
func (s *Store) RecordCompleted(ctx context.Context, id string, result map[string]any, at time.Time) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.updateJob(ctx, id, "completed",
		`UPDATE jobs SET state = ?, result_json = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		string(workflow.StateCompleted), string(encoded), formatTime(at), formatTime(s.now()), id)
}

// RecordFailed stores the job error and the names of the failed activities.
func (s *Store) RecordFailed(ctx context.Context, id string, jobErr error, failed []string, at time.Time) error {
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("encode failed activities: %w", err)
	}
	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}
	return s.updateJob(ctx, id, "failed",
		`UPDATE jobs SET state = ?, error_message = ?, error_kind = ?, failed_json = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		string(workflow.StateFailed), nullString(message), nullString(services.Kind(jobErr)), string(failedJSON), formatTime(at), formatTime(s.now()), id)
}

func (s *Store) updateJob(ctx context.Context, id, event, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record %s: %w", event, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "jobstore", "record "+event, id, nil)
	}
	return nil
}
