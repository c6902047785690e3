package api

import (
	"encoding/json"

	"mediaflow/internal/request"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes one activity of a job.
type Task struct {
	Activity   string `json:"activity"`
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// Job describes a job in a transport-friendly format.
type Job struct {
	ID          string          `json:"id"`
	State       string          `json:"state"`
	File        string          `json:"file"`
	Activities  []string        `json:"activities"`
	Callback    string          `json:"callback,omitempty"`
	Tasks       []Task          `json:"tasks"`
	Failed      []string        `json:"failed,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   string          `json:"errorKind,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	SubmittedAt string          `json:"submittedAt,omitempty"`
	StartedAt   string          `json:"startedAt,omitempty"`
	FinishedAt  string          `json:"finishedAt,omitempty"`
	// Live is true while the job handle is still held by the orchestrator;
	// only live jobs answer blocking result queries.
	Live bool `json:"live"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// ResultResponse is the aggregated outcome of a completed job.
type ResultResponse struct {
	ID      string          `json:"id"`
	Request request.Request `json:"request"`
	Result  map[string]any  `json:"result"`
}

// ActivityResultResponse carries one activity's result.
type ActivityResultResponse struct {
	ID       string `json:"id"`
	Activity string `json:"activity"`
	Result   any    `json:"result"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs, newest first.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// ActivitiesResponse lists the registered activity names.
type ActivitiesResponse struct {
	Activities []string `json:"activities"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	// Kind is the error taxonomy class (validation, staging, activity, ...).
	Kind   string   `json:"kind,omitempty"`
	Field  string   `json:"field,omitempty"`
	Failed []string `json:"failed,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckStatus mirrors a preflight result.
type CheckStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StagingStatus summarizes the staging directory.
type StagingStatus struct {
	Dir         string `json:"dir"`
	Directories int    `json:"directories"`
	Bytes       int64  `json:"bytes"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Storage      string             `json:"storage"`
	Jobs         map[string]int     `json:"jobs"`
	History      map[string]int     `json:"history"`
	Staging      StagingStatus      `json:"staging"`
	Checks       []CheckStatus      `json:"checks"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
