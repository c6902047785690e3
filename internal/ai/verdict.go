package ai

import "mediaflow/internal/services"

// Verdict is the outcome of checking model output: Ok carries the value,
// Rejected carries the reason.
type Verdict[T any] struct {
	value  T
	reason string
	ok     bool
}

// Ok accepts value.
func Ok[T any](value T) Verdict[T] {
	return Verdict[T]{value: value, ok: true}
}

// Rejected refuses the output for reason.
func Rejected[T any](reason string) Verdict[T] {
	return Verdict[T]{reason: reason}
}

// OK reports whether the output was accepted.
func (v Verdict[T]) OK() bool { return v.ok }

// Value returns the accepted value and whether there was one.
func (v Verdict[T]) Value() (T, bool) { return v.value, v.ok }

// Reason returns the rejection reason, empty when accepted.
func (v Verdict[T]) Reason() string { return v.reason }

// Unwrap returns the value, or a transient error describing the rejection so
// the step can be retried with a fresh completion.
func (v Verdict[T]) Unwrap(operation string) (T, error) {
	if v.ok {
		return v.value, nil
	}
	var zero T
	return zero, services.Wrap(services.ErrTransient, "ai", operation, "model output rejected: "+v.reason, nil)
}
