package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mediaflow/internal/logging"
	"mediaflow/internal/metrics"
	"mediaflow/internal/services"
	"mediaflow/internal/telemetry"
)

// Invoker runs activity steps. The zero value is not usable; use NewInvoker.
type Invoker struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleeper func(context.Context, time.Duration) error
	now     func() time.Time
}

// Option configures an Invoker.
type Option func(*Invoker)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Invoker) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Invoker) { i.metrics = m }
}

// WithSleeper overrides how retry backoff waits (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(i *Invoker) {
		if sleeper != nil {
			i.sleeper = sleeper
		}
	}
}

// NewInvoker constructs an Invoker.
func NewInvoker(opts ...Option) *Invoker {
	inv := &Invoker{
		logger:  logging.NewNop(),
		sleeper: sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(inv)
	}
	inv.logger = logging.NewComponentLogger(inv.logger, "activity")
	return inv
}

// Run invokes fn under policy, retrying retryable failures. The returned
// error is the last attempt's error, or a DeadlineExceededError when the
// schedule-to-close limit (or a parent job deadline) cut the step short.
func Run[T any](ctx context.Context, inv *Invoker, activity, step string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if inv == nil {
		inv = NewInvoker()
	}
	ctx = services.WithActivity(ctx, activity)
	ctx = services.WithStep(ctx, step)
	ctx, span := telemetry.StartSpan(ctx, "activity."+step,
		attribute.String("mediaflow.activity", activity),
		attribute.String("mediaflow.step", step),
	)
	logger := logging.WithContext(ctx, inv.logger)
	started := inv.now()

	total := ctx
	if policy.ScheduleToClose > 0 {
		var cancel context.CancelFunc
		total, cancel = context.WithTimeoutCause(ctx, policy.ScheduleToClose, &services.DeadlineExceededError{
			Activity: activity, Step: step, Kind: services.DeadlineScheduleToClose, Limit: policy.ScheduleToClose,
		})
		defer cancel()
	}

	result, attempts, err := invokeWithRetry(total, inv, logger, activity, step, policy, fn)

	outcome := "ok"
	if err != nil {
		outcome = services.Kind(err)
	}
	span.SetAttributes(attribute.Int("mediaflow.attempts", attempts))
	telemetry.EndSpan(span, err)
	inv.metrics.ObserveInvocation(activity, step, outcome, inv.now().Sub(started))
	if err != nil {
		return zero, err
	}
	logger.Debug("activity step completed",
		logging.Int(logging.FieldAttempt, attempts),
		logging.Duration("elapsed", inv.now().Sub(started)),
	)
	return result, nil
}

func invokeWithRetry[T any](ctx context.Context, inv *Invoker, logger *slog.Logger, activity, step string, policy Policy, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := policy.attempts()
	for attempt := 1; ; attempt++ {
		result, err := runAttempt(ctx, attempt, activity, step, policy, fn)
		if err == nil {
			return result, attempt, nil
		}
		if ctx.Err() != nil {
			return zero, attempt, causeOf(ctx, err)
		}
		if !services.Retryable(err) || attempt >= maxAttempts {
			if attempt > 1 {
				err = fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return zero, attempt, err
		}

		delay := policy.backoff(attempt)
		inv.metrics.Retry(activity, step, services.Kind(err))
		logger.Warn("activity step failed; retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("retry_in", delay),
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldEventType, "activity_retry"),
			logging.String(logging.FieldErrorHint, "check the external tool or service the step depends on"),
			logging.String(logging.FieldImpact, "step will be retried"),
		)
		if sleepErr := inv.sleeper(ctx, delay); sleepErr != nil {
			return zero, attempt, causeOf(ctx, sleepErr)
		}
	}
}

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the step running on ctx, or
// 0 outside a step. An attempt that overran its deadline may still be
// running when the next one starts, so files an attempt writes should be
// keyed by it.
func Attempt(ctx context.Context) int {
	attempt, _ := ctx.Value(attemptKey{}).(int)
	return attempt
}

type attemptResult[T any] struct {
	value T
	err   error
}

func runAttempt[T any](parent context.Context, attempt int, activity, step string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx := context.WithValue(parent, attemptKey{}, attempt)
	if policy.StartToClose > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, policy.StartToClose, &services.DeadlineExceededError{
			Activity: activity, Step: step, Kind: services.DeadlineStartToClose, Limit: policy.StartToClose,
		})
		defer cancel()
	}
	ctx, cancelCause := context.WithCancelCause(ctx)
	defer cancelCause(nil)

	if policy.HeartbeatTimeout > 0 {
		hb := &heartbeat{beats: make(chan struct{}, 1)}
		ctx = context.WithValue(ctx, heartbeatKey{}, hb)
		go watchHeartbeats(ctx, cancelCause, hb, policy.HeartbeatTimeout, activity, step)
	}

	done := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{err: fmt.Errorf("%s panicked: %v", step, r)}
			}
		}()
		value, err := fn(ctx)
		done <- attemptResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && ctx.Err() != nil {
			return zero, causeOf(ctx, res.err)
		}
		return res.value, res.err
	case <-ctx.Done():
		return zero, causeOf(ctx, ctx.Err())
	}
}

// causeOf prefers the cancellation cause (a typed deadline or heartbeat
// error, or the parent's cause) over whatever the step returned once its
// context was cancelled.
func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return err
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
