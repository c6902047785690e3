package jobstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"mediaflow/internal/jobstore"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func submit(t *testing.T, store *jobstore.Store, id string, at time.Time, activities ...string) {
	t.Helper()
	req := request.Request{File: "https://media.test/" + id + ".mp4", Activities: activities}
	if err := store.RecordSubmitted(context.Background(), id, req, at); err != nil {
		t.Fatalf("RecordSubmitted(%s): %v", id, err)
	}
}

func TestRecordsCompletedJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	submit(t, store, "job-1", baseTime, request.VideoMetadata, request.AudioWaveform)

	if err := store.RecordStarted(ctx, "job-1", baseTime.Add(time.Second)); err != nil {
		t.Fatalf("RecordStarted: %v", err)
	}
	job, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != workflow.StateStaging {
		t.Fatalf("state after start = %s", job.State)
	}

	for _, activity := range []string{request.AudioWaveform, request.VideoMetadata} {
		status := workflow.TaskStatus{
			Activity:   activity,
			State:      workflow.TaskSucceeded,
			StartedAt:  baseTime.Add(2 * time.Second),
			FinishedAt: baseTime.Add(3 * time.Second),
		}
		if err := store.RecordTask(ctx, "job-1", status); err != nil {
			t.Fatalf("RecordTask(%s): %v", activity, err)
		}
	}
	result := map[string]any{request.VideoMetadata: map[string]any{"duration": 12.5}, request.AudioWaveform: []float64{0, 1}}
	if err := store.RecordCompleted(ctx, "job-1", result, baseTime.Add(4*time.Second)); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	job, err = store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != workflow.StateCompleted {
		t.Fatalf("state = %s", job.State)
	}
	if !job.SubmittedAt.Equal(baseTime) || !job.FinishedAt.Equal(baseTime.Add(4*time.Second)) {
		t.Fatalf("timestamps = %v / %v", job.SubmittedAt, job.FinishedAt)
	}
	if got := []string{job.Tasks[0].Activity, job.Tasks[1].Activity}; !slices.Equal(got, []string{request.VideoMetadata, request.AudioWaveform}) {
		t.Fatalf("tasks should keep request order, got %v", got)
	}
	for _, task := range job.Tasks {
		if task.State != workflow.TaskSucceeded {
			t.Fatalf("task %s state = %s", task.Activity, task.State)
		}
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(job.Result, &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("result keys = %v", decoded)
	}
	if job.Request.File != "https://media.test/job-1.mp4" {
		t.Fatalf("request = %+v", job.Request)
	}
}

func TestRecordsFailedJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	submit(t, store, "job-f", baseTime, request.AudioWaveform)

	jobErr := &services.ActivityError{
		Activity: request.AudioWaveform,
		Err:      &services.DeadlineExceededError{Activity: request.AudioWaveform, Step: "waveform", Kind: services.DeadlineStartToClose, Limit: time.Second},
	}
	if err := store.RecordFailed(ctx, "job-f", jobErr, []string{request.AudioWaveform}, baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("RecordFailed: %v", err)
	}
	job, err := store.Get(ctx, "job-f")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != workflow.StateFailed || job.ErrorKind != "deadline_exceeded" {
		t.Fatalf("job = %+v", job)
	}
	if !slices.Equal(job.Failed, []string{request.AudioWaveform}) {
		t.Fatalf("failed = %v", job.Failed)
	}
}

func TestGetUnknownJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.RecordStarted(context.Background(), "missing", baseTime); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for update, got %v", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for i := range 4 {
		submit(t, store, fmt.Sprintf("job-%d", i), baseTime.Add(time.Duration(i)*time.Minute), request.VideoMetadata)
	}
	if err := store.RecordCompleted(ctx, "job-1", map[string]any{}, baseTime.Add(time.Hour)); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	all, err := store.List(ctx, jobstore.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, job := range all {
		ids = append(ids, job.ID)
	}
	if !slices.Equal(ids, []string{"job-3", "job-2", "job-1", "job-0"}) {
		t.Fatalf("List order = %v", ids)
	}

	queued, err := store.List(ctx, jobstore.Filter{States: []workflow.State{workflow.StateQueued}, Limit: 2})
	if err != nil {
		t.Fatalf("List queued: %v", err)
	}
	if len(queued) != 2 || queued[0].ID != "job-3" {
		t.Fatalf("queued = %+v", queued)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[workflow.StateQueued] != 3 || stats[workflow.StateCompleted] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestMarkInterruptedFailsUnfinishedJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	submit(t, store, "running", baseTime, request.VideoMetadata, request.AudioWaveform)
	submit(t, store, "done", baseTime, request.VideoMetadata)
	if err := store.RecordTask(ctx, "running", workflow.TaskStatus{Activity: request.VideoMetadata, State: workflow.TaskSucceeded}); err != nil {
		t.Fatalf("RecordTask: %v", err)
	}
	if err := store.RecordCompleted(ctx, "done", map[string]any{}, baseTime); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	n, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("interrupted %d jobs, want 1", n)
	}
	job, err := store.Get(ctx, "running")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.State != workflow.StateFailed || job.ErrorKind != jobstore.ErrorKindInterrupted {
		t.Fatalf("job = %+v", job)
	}
	if job.Tasks[0].State != workflow.TaskSucceeded || job.Tasks[1].State != workflow.TaskFailed {
		t.Fatalf("tasks = %+v", job.Tasks)
	}
	done, err := store.Get(ctx, "done")
	if err != nil || done.State != workflow.StateCompleted {
		t.Fatalf("completed job changed: %+v %v", done, err)
	}
}

func TestPruneRemovesOldFinishedJobs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	submit(t, store, "old", baseTime, request.VideoMetadata)
	submit(t, store, "new", baseTime, request.VideoMetadata)
	submit(t, store, "pending", baseTime, request.VideoMetadata)
	if err := store.RecordCompleted(ctx, "old", map[string]any{}, baseTime.Add(time.Hour)); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}
	if err := store.RecordCompleted(ctx, "new", map[string]any{}, baseTime.Add(48*time.Hour)); err != nil {
		t.Fatalf("RecordCompleted: %v", err)
	}

	n, err := store.Prune(ctx, baseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("old job should be gone, got %v", err)
	}
	for _, id := range []string{"new", "pending"} {
		if _, err := store.Get(ctx, id); err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	submit(t, store, "persisted", baseTime, request.VideoMetadata)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.Get(context.Background(), "persisted"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
