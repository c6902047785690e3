package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrStaging       = errors.New("staging failure")
	ErrCallback      = errors.New("callback delivery failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ValidationError reports a malformed or unsupported job request. It is
// raised before any work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StagingError reports that the job input could not be fetched.
type StagingError struct {
	Source string
	Err    error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Source, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

func (e *StagingError) Is(target error) bool { return target == ErrStaging }

// ActivityError reports that one activity pipeline failed.
type ActivityError struct {
	Activity string
	Err      error
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity %s failed: %v", e.Activity, e.Err)
}

func (e *ActivityError) Unwrap() error { return e.Err }

// DeadlineKind names which limit a DeadlineExceededError tripped.
type DeadlineKind string

const (
	DeadlineStartToClose    DeadlineKind = "start-to-close"
	DeadlineScheduleToClose DeadlineKind = "schedule-to-close"
	DeadlineJob             DeadlineKind = "job"
)

// DeadlineExceededError reports an attempt, total or job-level timeout.
type DeadlineExceededError struct {
	Activity string
	Step     string
	Kind     DeadlineKind
	Limit    time.Duration
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("%s: %s deadline of %s exceeded", joinScope(e.Activity, e.Step), e.Kind, e.Limit)
}

func (e *DeadlineExceededError) Is(target error) bool { return target == ErrTimeout }

// HeartbeatTimeoutError reports a liveness failure: the operation stopped
// reporting progress for longer than the allowed window.
type HeartbeatTimeoutError struct {
	Activity string
	Step     string
	Window   time.Duration
}

func (e *HeartbeatTimeoutError) Error() string {
	return fmt.Sprintf("%s: no heartbeat within %s", joinScope(e.Activity, e.Step), e.Window)
}

func (e *HeartbeatTimeoutError) Is(target error) bool { return target == ErrTimeout }

// CallbackDeliveryError is logged when a callback cannot be delivered. It
// never changes job state.
type CallbackDeliveryError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *CallbackDeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callback %s: %v", e.URL, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("callback %s returned %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("callback %s returned %d", e.URL, e.StatusCode)
}

func (e *CallbackDeliveryError) Unwrap() error { return e.Err }

func (e *CallbackDeliveryError) Is(target error) bool { return target == ErrCallback }

// Kind classifies an error for logs and job history.
func Kind(err error) string {
	var heartbeat *HeartbeatTimeoutError
	var deadline *DeadlineExceededError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStaging):
		return "staging"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.As(err, &heartbeat):
		return "heartbeat_timeout"
	case errors.As(err, &deadline):
		return "deadline_exceeded"
	case errors.Is(err, ErrCallback):
		return "callback"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "activity"
	}
}

// Retryable reports whether an invocation failure may succeed on a new attempt.
func Retryable(err error) bool {
	var heartbeat *HeartbeatTimeoutError
	var deadline *DeadlineExceededError
	switch {
	case err == nil:
		return false
	case errors.As(err, &heartbeat):
		return true
	case errors.As(err, &deadline):
		return deadline.Kind == DeadlineStartToClose
	default:
		return errors.Is(err, ErrTransient)
	}
}

func joinScope(activity, step string) string {
	switch {
	case activity != "" && step != "" && activity != step:
		return activity + ": " + step
	case activity != "":
		return activity
	case step != "":
		return step
	default:
		return "invocation"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
