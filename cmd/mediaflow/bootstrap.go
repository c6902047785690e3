package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mediaflow/internal/callback"
	"mediaflow/internal/config"
	"mediaflow/internal/metrics"
	"mediaflow/internal/pipelines"
	"mediaflow/internal/staging"
	"mediaflow/internal/storage"
	"mediaflow/internal/workflow"
)

// runtime bundles what serve and run share: the activity registry, artifact
// storage and an orchestrator wired to both.
type runtime struct {
	metrics *metrics.Metrics
	backend storage.Backend
	manager *workflow.Manager
}

// newRuntime wires the orchestrator. stager is nil for API-facing runtimes,
// which then confine local inputs to staging.allowed_local_roots.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, stager *staging.Stager, opts ...workflow.ManagerOption) (*runtime, error) {
	registry, err := pipelines.Registry(pipelines.DepsFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("build activity registry: %w", err)
	}
	backend, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open artifact storage: %w", err)
	}

	mt := metrics.New()
	base := []workflow.ManagerOption{
		workflow.WithNotifier(callback.NewNotifier(cfg)),
		workflow.WithLogger(logger),
		workflow.WithMetrics(mt),
	}
	if stager == nil {
		stager = staging.New(cfg, staging.WithLogger(logger))
	}
	manager := workflow.NewManager(cfg, registry, stager, backend, append(base, opts...)...)
	return &runtime{metrics: mt, backend: backend, manager: manager}, nil
}

// close waits for running jobs, bounded by ctx, then releases storage.
func (r *runtime) close(ctx context.Context) error {
	var errs []error
	if err := r.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown orchestrator: %w", err))
	}
	if err := r.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
