package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"mediaflow/internal/config"
	"mediaflow/internal/deps"
	"mediaflow/internal/jobstore"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/preflight"
	"mediaflow/internal/staging"
	"mediaflow/internal/workflow"
)

// shutdownGrace bounds how long Stop waits for running jobs to unwind.
const shutdownGrace = 30 * time.Second

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobstore.Store
	manager *workflow.Manager
	metrics *metrics.Metrics

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running     atomic.Bool
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Storage      string
	Jobs         map[workflow.State]int
	History      map[workflow.State]int
	StagingDir   string
	StagingDirs  int
	StagingBytes int64
	Checks       []preflight.Result
	Dependencies []deps.Status
}

// Option configures optional Daemon behavior.
type Option func(*Daemon)

// WithMetrics exposes mt on /metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = mt }
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, manager *workflow.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, job store and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, d.logger)
	return d, nil
}

// Start acquires the daemon lock, recovers state left by a previous process
// and starts the cleanup loop and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	if n, err := d.store.MarkInterrupted(ctx); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "failed to mark interrupted jobs", "history_recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and database permissions"),
			logging.String(logging.FieldImpact, "jobs from the previous run may still show as running"),
		)
	} else if n > 0 {
		d.logger.Info("marked interrupted jobs as failed",
			logging.String(logging.FieldEventType, "jobs_interrupted"),
			logging.Int64("count", n),
		)
	}

	// Sweep before the API accepts work so only directories from a previous
	// process can be treated as orphans.
	d.sweepOrphans(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.cleanupDone = make(chan struct{})
	go d.cleanupLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop stops accepting work, waits for running jobs and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cleanupDone != nil {
		<-d.cleanupDone
		d.cleanupDone = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := d.manager.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("jobs still running at shutdown",
			logging.Error(err),
			logging.String(logging.FieldEventType, "shutdown_timeout"),
			logging.String(logging.FieldErrorHint, "the next start marks them interrupted"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Manager returns the orchestrator the daemon serves.
func (d *Daemon) Manager() *workflow.Manager {
	return d.manager
}

// Status reports runtime information, live job counts and dependency health.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Storage:      d.cfg.Storage.Backend,
		Jobs:         d.manager.Counts(),
		StagingDir:   d.cfg.Paths.StagingDir,
		Checks:       preflight.RunAll(ctx, d.cfg),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if history, err := d.store.Stats(ctx); err == nil {
		status.History = history
	} else {
		d.logger.Warn("history stats unavailable", logging.Error(err))
	}
	if dirs, err := staging.ListDirectories(d.cfg.Paths.StagingDir); err == nil {
		status.StagingDirs = len(dirs)
		for _, dir := range dirs {
			status.StagingBytes += dir.Size
		}
	}
	return status
}
