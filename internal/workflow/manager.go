package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"mediaflow/internal/activity"
	"mediaflow/internal/callback"
	"mediaflow/internal/config"
	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
)

// ErrShuttingDown is returned by Submit after Shutdown and is the terminal
// error of jobs that never got a concurrency slot.
var ErrShuttingDown = errors.New("orchestrator shutting down")

// Stager fetches a job's input into dir and returns the local path.
type Stager interface {
	Stage(ctx context.Context, dir, source string) (string, error)
}

// History persists job records. Failures are logged and never affect the
// job itself.
type History interface {
	RecordSubmitted(ctx context.Context, id string, req request.Request, at time.Time) error
	RecordStarted(ctx context.Context, id string, at time.Time) error
	RecordTask(ctx context.Context, id string, status TaskStatus) error
	RecordCompleted(ctx context.Context, id string, result map[string]any, at time.Time) error
	RecordFailed(ctx context.Context, id string, err error, failed []string, at time.Time) error
}

// Manager accepts requests and runs each as a Job.
type Manager struct {
	registry *Registry
	stager   Stager
	uploader Uploader
	notifier callback.Notifier
	history  History
	invoker  *activity.Invoker
	metrics  *metrics.Metrics
	logger   *slog.Logger

	stagingDir     string
	policy         activity.Policy
	stagingPolicy  activity.Policy
	callbackPolicy activity.Policy
	jobTimeout     time.Duration
	retention      time.Duration
	uploadLimit    int
	slots          *semaphore.Weighted
	newID          func() string
	now            func() time.Time

	baseCtx context.Context
	cancel  context.CancelCauseFunc
	wg      sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier sets the callback notifier (callback.Noop by default).
func WithNotifier(n callback.Notifier) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithHistory records job lifecycle events in h.
func WithHistory(h History) ManagerOption {
	return func(m *Manager) { m.history = h }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithInvoker replaces the activity invoker (tests use this to skip backoff).
func WithInvoker(inv *activity.Invoker) ManagerOption {
	return func(m *Manager) {
		if inv != nil {
			m.invoker = inv
		}
	}
}

// WithPolicies overrides the step and staging policies derived from config.
func WithPolicies(step, staging activity.Policy) ManagerOption {
	return func(m *Manager) {
		m.policy = step
		m.stagingPolicy = staging
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager constructs a Manager. Jobs run until Shutdown.
func NewManager(cfg *config.Config, registry *Registry, stager Stager, uploader Uploader, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:      registry,
		stager:        stager,
		uploader:      uploader,
		notifier:      callback.Noop{},
		logger:        logging.NewNop(),
		policy:        activity.PolicyFromConfig(cfg),
		stagingPolicy: activity.StagingPolicyFromConfig(cfg),
		jobTimeout:    2 * time.Hour,
		retention:     10 * time.Minute,
		uploadLimit:   4,
		stagingDir:    os.TempDir(),
		newID:         uuid.NewString,
		now:           time.Now,
		jobs:          make(map[string]*Job),
	}
	maxJobs := int64(4)
	if cfg != nil {
		m.stagingDir = cfg.Paths.StagingDir
		m.jobTimeout = cfg.JobTimeout()
		m.retention = cfg.ResultRetention()
		m.uploadLimit = cfg.Activities.UploadConcurrency
		maxJobs = int64(cfg.Workflow.MaxConcurrentJobs)
	}
	for _, opt := range opts {
		opt(m)
	}
	if maxJobs < 1 {
		maxJobs = 1
	}
	m.slots = semaphore.NewWeighted(maxJobs)
	m.callbackPolicy = m.policy
	if m.invoker == nil {
		m.invoker = activity.NewInvoker(activity.WithLogger(m.logger), activity.WithMetrics(m.metrics))
	}
	m.logger = logging.NewComponentLogger(m.logger, "orchestrator")
	m.baseCtx, m.cancel = context.WithCancelCause(context.Background())
	return m
}

// Registry returns the activity table the manager validates against.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Submit normalizes and validates original and starts a job for it. Validation failures are
// returned before any work starts. The job runs in the background and is
// not bound to ctx; ctx only contributes its correlation ID.
func (m *Manager) Submit(ctx context.Context, original request.Request) (*Job, error) {
	req := original.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	plan, err := m.registry.plan(req)
	if err != nil {
		return nil, err
	}

	job := newJob(m.newID(), original, req, plan, m.now())

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.jobs[job.id] = job
	m.wg.Add(1)
	m.mu.Unlock()

	jobCtx := services.WithJobID(m.baseCtx, job.id)
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		jobCtx = services.WithRequestID(jobCtx, requestID)
	}
	m.metrics.JobSubmitted()
	m.recordHistory(jobCtx, "submitted", func(ctx context.Context, h History) error {
		return h.RecordSubmitted(ctx, job.id, job.original, job.submittedAt)
	})
	logging.WithContext(jobCtx, m.logger).Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Any("activities", req.Activities),
		logging.String("file", req.File),
		logging.Bool("callback", req.Callback != ""),
	)

	go m.run(jobCtx, job)
	return job, nil
}

// Job returns a live or recently finished job.
func (m *Manager) Job(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Jobs returns every retained job, oldest first.
func (m *Manager) Jobs() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()
	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := a.submittedAt.Compare(b.submittedAt); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return jobs
}

// Shutdown stops accepting work, cancels running jobs and waits for them to
// reach a terminal state or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Counts reports retained jobs by state.
func (m *Manager) Counts() map[State]int {
	counts := make(map[State]int)
	for _, job := range m.Jobs() {
		counts[job.Status().State]++
	}
	return counts
}

func (m *Manager) evictAfter(job *Job) {
	if m.retention <= 0 {
		return
	}
	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		delete(m.jobs, job.id)
		m.mu.Unlock()
	})
}

func (m *Manager) jobDir(job *Job) string {
	return filepath.Join(m.stagingDir, job.id)
}

// recordHistory writes through m.history on a context that outlives job
// cancellation so terminal records land even after a deadline.
func (m *Manager) recordHistory(ctx context.Context, event string, fn func(context.Context, History) error) {
	if m.history == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), m.history); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "job history update failed", "history_write_failed",
			logging.String("history_event", event),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and database permissions"),
			logging.String(logging.FieldImpact, "job runs normally but its history record may be stale"),
		)
	}
}
