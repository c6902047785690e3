package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"mediaflow/internal/activity"
	"mediaflow/internal/logging"
)

// Uploader publishes a local artifact and returns a URL for it.
type Uploader interface {
	Upload(ctx context.Context, path, contentType string) (string, error)
}

// TaskEnv is what a pipeline sees of its job: the staged input, a private
// scratch directory and the invocation policy for its steps.
type TaskEnv struct {
	JobID    string
	Activity string
	// Input is the staged file. It is shared by every task of the job and
	// must not be modified.
	Input string
	// WorkDir is private to this task and removed with the job.
	WorkDir string
	Logger  *slog.Logger

	invoker     *activity.Invoker
	policy      activity.Policy
	uploader    Uploader
	uploadLimit int
}

// Policy returns the default step policy for this task.
func (e *TaskEnv) Policy() activity.Policy {
	return e.policy
}

// ScratchDir returns the directory the current step attempt writes to.
// Retries get their own subdirectory so an abandoned attempt that is still
// running never shares files with its successor.
func (e *TaskEnv) ScratchDir(ctx context.Context) string {
	attempt := activity.Attempt(ctx)
	if attempt <= 1 {
		return e.WorkDir
	}
	dir := filepath.Join(e.WorkDir, fmt.Sprintf("attempt-%d", attempt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// The step's own write reports the failure.
		e.Logger.Warn("create attempt directory failed", logging.String("dir", dir), logging.Error(err))
	}
	return dir
}

// Path joins name onto ScratchDir(ctx).
func (e *TaskEnv) Path(ctx context.Context, name string) string {
	return filepath.Join(e.ScratchDir(ctx), name)
}

// Step invokes fn as one named step of the task's activity under the default
// policy.
func Step[T any](ctx context.Context, env *TaskEnv, step string, fn func(context.Context) (T, error)) (T, error) {
	return StepWithPolicy(ctx, env, step, env.policy, fn)
}

// StepWithPolicy is Step with an explicit policy.
func StepWithPolicy[T any](ctx context.Context, env *TaskEnv, step string, policy activity.Policy, fn func(context.Context) (T, error)) (T, error) {
	return activity.Run(ctx, env.invoker, env.Activity, step, policy, fn)
}

// Upload publishes one artifact as an "upload" step.
func (e *TaskEnv) Upload(ctx context.Context, path, contentType string) (string, error) {
	return Step(ctx, e, "upload", func(ctx context.Context) (string, error) {
		return e.uploader.Upload(ctx, path, contentType)
	})
}

// UploadAll publishes paths concurrently and returns their URLs in input
// order. The first failure cancels the remaining uploads.
func (e *TaskEnv) UploadAll(ctx context.Context, paths []string, contentType string) ([]string, error) {
	urls := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if e.uploadLimit > 0 {
		g.SetLimit(e.uploadLimit)
	}
	for i, path := range paths {
		g.Go(func() error {
			url, err := e.Upload(gctx, path, contentType)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
