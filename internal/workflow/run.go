package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"mediaflow/internal/activity"
	"mediaflow/internal/callback"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const stageActivity = "stage"

func (m *Manager) run(ctx context.Context, job *Job) {
	defer m.wg.Done()
	logger := logging.WithContext(ctx, m.logger)

	if err := m.slots.Acquire(ctx, 1); err != nil {
		m.finish(ctx, logger, job, nil, context.Cause(ctx), false)
		return
	}
	defer m.slots.Release(1)
	m.metrics.JobStarted()

	ctx, cancel := context.WithTimeoutCause(ctx, m.jobTimeout, &services.DeadlineExceededError{
		Activity: "job", Kind: services.DeadlineJob, Limit: m.jobTimeout,
	})
	defer cancel()

	job.setState(StateStaging, m.now())
	m.recordHistory(ctx, "started", func(ctx context.Context, h History) error {
		return h.RecordStarted(ctx, job.id, job.Status().StartedAt)
	})

	result, err := m.execute(ctx, logger, job)
	if err != nil && ctx.Err() != nil {
		// Job deadline or shutdown: report the cause rather than whichever
		// task noticed it first.
		err = context.Cause(ctx)
	}
	m.finish(ctx, logger, job, result, err, true)
}

// execute stages the input and runs every task. The job directory is
// removed before it returns.
func (m *Manager) execute(ctx context.Context, logger *slog.Logger, job *Job) (*Result, error) {
	dir := m.jobDir(job)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("staging directory cleanup failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "staging_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the directory manually; the cleanup loop also retries"),
			)
		}
	}()

	input, err := m.stage(ctx, job, dir)
	if err != nil {
		return nil, err
	}

	job.setState(StateRunning, m.now())
	logger.Info("input staged; starting tasks",
		logging.String(logging.FieldEventType, "job_running"),
		logging.String("input", input),
		logging.Int("tasks", len(job.tasks)),
	)

	// Tasks never cancel each other; the group only joins them and keeps
	// the first failure.
	var tasks errgroup.Group
	var callbacks sync.WaitGroup
	for _, t := range job.tasks {
		tasks.Go(func() error {
			return m.runTask(ctx, job, t, input, dir, &callbacks)
		})
	}
	taskErr := tasks.Wait()
	callbacks.Wait()
	if taskErr != nil {
		return nil, taskErr
	}
	return &Result{ID: job.id, Request: job.original, Result: job.store.Snapshot()}, nil
}

func (m *Manager) stage(ctx context.Context, job *Job, dir string) (string, error) {
	source := job.request.File
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &services.StagingError{Source: source, Err: services.Wrap(services.ErrConfiguration, "staging", "create job directory", dir, err)}
	}
	input, err := activity.Run(ctx, m.invoker, stageActivity, "download", m.stagingPolicy, func(ctx context.Context) (string, error) {
		return m.stager.Stage(ctx, dir, source)
	})
	if err != nil {
		var staging *services.StagingError
		if errors.As(err, &staging) {
			return "", err
		}
		return "", &services.StagingError{Source: source, Err: err}
	}
	return input, nil
}

func (m *Manager) runTask(ctx context.Context, job *Job, t *task, input, dir string, callbacks *sync.WaitGroup) error {
	name := t.registration.Name
	ctx = services.WithActivity(ctx, name)
	logger := logging.WithContext(ctx, m.logger)

	job.taskStarted(t, m.now())
	env := &TaskEnv{
		JobID:       job.id,
		Activity:    name,
		Input:       input,
		WorkDir:     filepath.Join(dir, name),
		Logger:      logger,
		invoker:     m.invoker,
		policy:      m.policy,
		uploader:    m.uploader,
		uploadLimit: m.uploadLimit,
	}

	value, err := m.invokePipeline(ctx, env, t)
	if err == nil {
		err = job.store.Put(name, value)
	}
	if err != nil {
		taskErr := &services.ActivityError{Activity: name, Err: err}
		job.taskFailed(t, taskErr, m.now())
		m.recordTask(ctx, job, t)
		logger.Warn("activity failed",
			logging.Error(taskErr),
			logging.ErrorKind(err),
			logging.String(logging.FieldEventType, "activity_failed"),
			logging.String(logging.FieldErrorHint, "inspect the step error; the job will report this failure"),
			logging.String(logging.FieldImpact, "job will fail once the remaining tasks finish"),
		)
		return taskErr
	}

	job.taskSucceeded(t, m.now())
	m.recordTask(ctx, job, t)
	logger.Info("activity completed", logging.String(logging.FieldEventType, "activity_completed"))

	if job.request.Callback != "" {
		callbacks.Add(1)
		go func() {
			defer callbacks.Done()
			m.notify(ctx, job, name, callback.KindActivity, callback.Payload{
				ID:      job.id,
				Request: job.original,
				Result:  map[string]any{name: value},
			})
		}()
	}
	return nil
}

func (m *Manager) invokePipeline(ctx context.Context, env *TaskEnv, t *task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()
	if err := os.MkdirAll(env.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, env.Activity, "create work directory", env.WorkDir, err)
	}
	return t.registration.Run(ctx, env, t.params)
}

func (m *Manager) recordTask(ctx context.Context, job *Job, t *task) {
	job.mu.Lock()
	status := t.status
	job.mu.Unlock()
	m.recordHistory(ctx, "task", func(ctx context.Context, h History) error {
		return h.RecordTask(ctx, job.id, status)
	})
}

// finish sends the final callback and records history, then resolves the
// job. Wait therefore returns only after every notification for the job was
// attempted.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, job *Job, result *Result, err error, started bool) {
	if job.request.Callback != "" {
		payload := callback.Payload{ID: job.id, Request: job.original}
		kind := callback.KindFinal
		if err != nil {
			kind = callback.KindError
			payload.Error = err.Error()
		} else {
			payload.Result = result.Result
		}
		m.notify(ctx, job, "job", kind, payload)
	}

	finishedAt := m.now()
	failed := job.failedActivities()
	if err != nil {
		m.recordHistory(ctx, "failed", func(ctx context.Context, h History) error {
			return h.RecordFailed(ctx, job.id, err, failed, finishedAt)
		})
		m.metrics.JobFinished(string(StateFailed), started)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.Any("failed_activities", failed),
			logging.Int("succeeded", job.store.Len()),
			logging.String(logging.FieldErrorHint, "partial results stay queryable until the job is evicted"),
		)
	} else {
		m.recordHistory(ctx, "completed", func(ctx context.Context, h History) error {
			return h.RecordCompleted(ctx, job.id, result.Result, finishedAt)
		})
		m.metrics.JobFinished(string(StateCompleted), started)
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_completed"),
			logging.Int("results", len(result.Result)),
			logging.Duration("elapsed", finishedAt.Sub(job.submittedAt)),
		)
	}

	job.finish(result, err, finishedAt)
	m.evictAfter(job)
}

// notify delivers one callback under the invoker's retry policy. Delivery is
// detached from job and manager cancellation and bounded by the policy's
// schedule-to-close limit instead.
func (m *Manager) notify(ctx context.Context, job *Job, scope string, kind callback.Kind, payload callback.Payload) {
	deliverCtx := services.WithJobID(context.WithoutCancel(m.baseCtx), job.id)
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		deliverCtx = services.WithRequestID(deliverCtx, requestID)
	}
	_, err := activity.Run(deliverCtx, m.invoker, scope, "callback", m.callbackPolicy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.notifier.Notify(ctx, job.request.Callback, kind, payload)
	})
	m.metrics.Callback(string(kind), err)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(deliverCtx, m.logger), "callback delivery failed", "callback_failed",
			logging.String("callback_kind", string(kind)),
			logging.String("callback_scope", scope),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the callback endpoint is reachable and returns 2xx"),
			logging.String(logging.FieldImpact, "job outcome is unaffected"),
		)
	}
}
