package workflow

import (
	"context"
	"sync"
	"time"

	"mediaflow/internal/request"
	"mediaflow/internal/results"
	"mediaflow/internal/services"
)

// State is the lifecycle state of a job.
type State string

const (
	StateQueued    State = "queued"
	StateStaging   State = "staging"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// TaskState is the lifecycle state of one activity task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Result is the aggregated outcome of a successful job.
type Result struct {
	ID      string          `json:"id"`
	Request request.Request `json:"request"`
	Result  map[string]any  `json:"result"`
}

// TaskStatus is a point-in-time view of one task.
type TaskStatus struct {
	Activity   string    `json:"activity"`
	State      TaskState `json:"state"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Status is a point-in-time view of a job.
type Status struct {
	ID          string          `json:"id"`
	State       State           `json:"state"`
	Request     request.Request `json:"request"`
	Tasks       []TaskStatus    `json:"tasks"`
	Failed      []string        `json:"failed,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   time.Time       `json:"started_at,omitzero"`
	FinishedAt  time.Time       `json:"finished_at,omitzero"`
}

type task struct {
	plannedTask
	status TaskStatus
	err    error
	// failed is closed when the task fails so blocked readers of its key
	// return without waiting for the rest of the job.
	failed chan struct{}
}

// Job is the handle of one submitted request. All methods are safe for
// concurrent use.
type Job struct {
	id       string
	request  request.Request
	original request.Request // as submitted; results and callbacks echo it
	store    *results.Store
	done     chan struct{}

	mu          sync.Mutex
	state       State
	tasks       []*task
	byName      map[string]*task
	result      *Result
	err         error
	submittedAt time.Time
	startedAt   time.Time
	finishedAt  time.Time
}

func newJob(id string, original, req request.Request, plan []plannedTask, now time.Time) *Job {
	j := &Job{
		id:          id,
		request:     req,
		original:    original.Clone(),
		store:       results.New(),
		done:        make(chan struct{}),
		state:       StateQueued,
		byName:      make(map[string]*task, len(plan)),
		submittedAt: now,
	}
	for _, p := range plan {
		t := &task{
			plannedTask: p,
			status:      TaskStatus{Activity: p.registration.Name, State: TaskPending},
			failed:      make(chan struct{}),
		}
		j.tasks = append(j.tasks, t)
		j.byName[t.status.Activity] = t
	}
	return j
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Request returns the normalized request the job runs.
func (j *Job) Request() request.Request { return j.request }

// OriginalRequest returns the request exactly as it was submitted.
func (j *Job) OriginalRequest() request.Request { return j.original }

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Get blocks until the named activity's result is written, the task fails,
// the job ends without it, or ctx is done.
func (j *Job) Get(ctx context.Context, activity string) (any, error) {
	t, ok := j.byName[activity]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "job", j.id, "activity "+activity+" was not requested", nil)
	}
	if value, ok := j.store.Lookup(activity); ok {
		return value, nil
	}

	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-t.failed:
			cancel(j.taskError(t))
		case <-waitCtx.Done():
		}
	}()

	value, err := j.store.Get(waitCtx, activity)
	if err == nil {
		return value, nil
	}
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}
	if taskErr := j.taskError(t); taskErr != nil {
		return nil, taskErr
	}
	return nil, err
}

// Lookup returns the named activity's result without waiting.
func (j *Job) Lookup(activity string) (any, bool) {
	return j.store.Lookup(activity)
}

// Results returns the results written so far.
func (j *Job) Results() map[string]any {
	return j.store.Snapshot()
}

// Wait blocks until the job is terminal and returns its result or error.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.err
}

// Status returns a snapshot of the job and its tasks.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	status := Status{
		ID:          j.id,
		State:       j.state,
		Request:     j.original,
		Tasks:       make([]TaskStatus, 0, len(j.tasks)),
		SubmittedAt: j.submittedAt,
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
	}
	for _, t := range j.tasks {
		status.Tasks = append(status.Tasks, t.status)
		if t.status.State == TaskFailed {
			status.Failed = append(status.Failed, t.status.Activity)
		}
	}
	if j.err != nil {
		status.Error = j.err.Error()
		status.ErrorKind = services.Kind(j.err)
	}
	return status
}

func (j *Job) setState(state State, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = state
	if state == StateStaging && j.startedAt.IsZero() {
		j.startedAt = now
	}
}

func (j *Job) taskStarted(t *task, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t.status.State = TaskRunning
	t.status.StartedAt = now
}

func (j *Job) taskSucceeded(t *task, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t.status.State = TaskSucceeded
	t.status.FinishedAt = now
}

func (j *Job) taskFailed(t *task, err error, now time.Time) {
	j.mu.Lock()
	t.status.State = TaskFailed
	t.status.FinishedAt = now
	t.status.Error = err.Error()
	t.err = err
	j.mu.Unlock()
	close(t.failed)
}

func (j *Job) failedActivities() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var failed []string
	for _, t := range j.tasks {
		if t.status.State == TaskFailed {
			failed = append(failed, t.status.Activity)
		}
	}
	return failed
}

func (j *Job) taskError(t *task) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return t.err
}

// finish records the terminal outcome and releases every waiter. It must be
// called exactly once.
func (j *Job) finish(result *Result, err error, now time.Time) {
	j.mu.Lock()
	if err != nil {
		j.state = StateFailed
	} else {
		j.state = StateCompleted
	}
	j.result = result
	j.err = err
	j.finishedAt = now
	j.mu.Unlock()

	j.store.Close(err)
	close(j.done)
}
