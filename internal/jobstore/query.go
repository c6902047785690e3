package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

const jobColumns = "id, state, request_json, result_json, error_message, error_kind, failed_json, submitted_at, started_at, finished_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		state        string
		requestRaw   string
		resultRaw    sql.NullString
		errorMessage sql.NullString
		errorKind    sql.NullString
		failedRaw    sql.NullString
		submittedRaw sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&state,
		&requestRaw,
		&resultRaw,
		&errorMessage,
		&errorKind,
		&failedRaw,
		&submittedRaw,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		State:       workflow.State(state),
		Error:       errorMessage.String,
		ErrorKind:   errorKind.String,
		SubmittedAt: parseTime(submittedRaw),
		StartedAt:   parseTime(startedRaw),
		FinishedAt:  parseTime(finishedRaw),
		UpdatedAt:   parseTime(updatedRaw),
	}
	if err := json.Unmarshal([]byte(requestRaw), &job.Request); err != nil {
		return nil, fmt.Errorf("decode request of job %s: %w", id, err)
	}
	if resultRaw.Valid && resultRaw.String != "" {
		job.Result = json.RawMessage(resultRaw.String)
	}
	if failedRaw.Valid && failedRaw.String != "" && failedRaw.String != "null" {
		if err := json.Unmarshal([]byte(failedRaw.String), &job.Failed); err != nil {
			return nil, fmt.Errorf("decode failed activities of job %s: %w", id, err)
		}
	}
	return job, nil
}

// Get returns the job with its tasks in request order.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "jobstore", "get", "job "+id+" not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	tasks, err := s.tasks(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Tasks = tasks
	return job, nil
}

func (s *Store) tasks(ctx context.Context, id string) ([]workflow.TaskStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT activity, state, error_message, started_at, finished_at FROM tasks WHERE job_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list tasks of job %s: %w", id, err)
	}
	defer rows.Close()

	var tasks []workflow.TaskStatus
	for rows.Next() {
		var (
			activity, state               string
			errorMessage, started, finish sql.NullString
		)
		if err := rows.Scan(&activity, &state, &errorMessage, &started, &finish); err != nil {
			return nil, err
		}
		tasks = append(tasks, workflow.TaskStatus{
			Activity:   activity,
			State:      workflow.TaskState(state),
			Error:      errorMessage.String,
			StartedAt:  parseTime(started),
			FinishedAt: parseTime(finish),
		})
	}
	return tasks, rows.Err()
}

// List returns jobs newest first. Tasks are not loaded; use Get for detail.
func (s *Store) List(ctx context.Context, filter Filter) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var args []any
	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += " WHERE state IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY submitted_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[workflow.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[workflow.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[workflow.State(state)] = count
	}
	return stats, rows.Err()
}
