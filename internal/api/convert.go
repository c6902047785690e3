package api

import (
	"encoding/json"
	"time"

	"mediaflow/internal/deps"
	"mediaflow/internal/jobstore"
	"mediaflow/internal/preflight"
	"mediaflow/internal/workflow"
)

// FromStatus converts a live job snapshot. result is the job's aggregated
// result and may be nil.
func FromStatus(status workflow.Status, result map[string]any) Job {
	dto := Job{
		ID:          status.ID,
		State:       string(status.State),
		File:        status.Request.File,
		Activities:  status.Request.Activities,
		Callback:    status.Request.Callback,
		Tasks:       fromTasks(status.Tasks),
		Failed:      status.Failed,
		Error:       status.Error,
		ErrorKind:   status.ErrorKind,
		SubmittedAt: formatTime(status.SubmittedAt),
		StartedAt:   formatTime(status.StartedAt),
		FinishedAt:  formatTime(status.FinishedAt),
		Live:        true,
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			dto.Result = raw
		}
	}
	return dto
}

// FromRecord converts a persisted history record.
func FromRecord(record *jobstore.Job) Job {
	if record == nil {
		return Job{}
	}
	return Job{
		ID:          record.ID,
		State:       string(record.State),
		File:        record.Request.File,
		Activities:  record.Request.Activities,
		Callback:    record.Request.Callback,
		Tasks:       fromTasks(record.Tasks),
		Failed:      record.Failed,
		Error:       record.Error,
		ErrorKind:   record.ErrorKind,
		Result:      record.Result,
		SubmittedAt: formatTime(record.SubmittedAt),
		StartedAt:   formatTime(record.StartedAt),
		FinishedAt:  formatTime(record.FinishedAt),
	}
}

// FromResult converts a completed job's aggregated result.
func FromResult(result *workflow.Result) ResultResponse {
	if result == nil {
		return ResultResponse{}
	}
	return ResultResponse{ID: result.ID, Request: result.Request, Result: result.Result}
}

// FromDependencies converts dependency check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FromChecks converts preflight results.
func FromChecks(results []preflight.Result) []CheckStatus {
	out := make([]CheckStatus, len(results))
	for i, r := range results {
		out[i] = CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail}
	}
	return out
}

// StateCounts flattens per-state counts into string keys.
func StateCounts(counts map[workflow.State]int) map[string]int {
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out
}

func fromTasks(tasks []workflow.TaskStatus) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = Task{
			Activity:   t.Activity,
			State:      string(t.State),
			Error:      t.Error,
			StartedAt:  formatTime(t.StartedAt),
			FinishedAt: formatTime(t.FinishedAt),
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
