package jobstore

import (
	"encoding/json"
	"time"

	"mediaflow/internal/request"
	"mediaflow/internal/workflow"
)

// Job is the persisted record of one job.
type Job struct {
	ID          string                `json:"id"`
	State       workflow.State        `json:"state"`
	Request     request.Request       `json:"request"`
	Result      json.RawMessage       `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`
	ErrorKind   string                `json:"error_kind,omitempty"`
	Failed      []string              `json:"failed,omitempty"`
	Tasks       []workflow.TaskStatus `json:"tasks,omitempty"`
	SubmittedAt time.Time             `json:"submitted_at"`
	StartedAt   time.Time             `json:"started_at,omitzero"`
	FinishedAt  time.Time             `json:"finished_at,omitzero"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	States []workflow.State
	// Limit caps the number of rows; zero or less means no limit.
	Limit int
}

// interruptedMessage is recorded for jobs a previous process left unfinished.
const interruptedMessage = "interrupted: the daemon stopped before the job finished"

// ErrorKindInterrupted classifies jobs failed by MarkInterrupted.
const ErrorKindInterrupted = "interrupted"
