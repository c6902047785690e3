package activity

import (
	"context"
	"time"

	"mediaflow/internal/services"
)

type heartbeatKey struct{}

type heartbeat struct {
	beats chan struct{}
}

// RecordHeartbeat reports progress for the running step. It is a no-op when
// the step has no heartbeat timeout.
func RecordHeartbeat(ctx context.Context) {
	hb, ok := ctx.Value(heartbeatKey{}).(*heartbeat)
	if !ok || hb == nil {
		return
	}
	select {
	case hb.beats <- struct{}{}:
	default:
	}
}

// watchHeartbeats cancels the attempt when no beat arrives within window.
// The first window starts when the attempt starts.
func watchHeartbeats(ctx context.Context, cancel context.CancelCauseFunc, hb *heartbeat, window time.Duration, activity, step string) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-hb.beats:
			timer.Reset(window)
		case <-timer.C:
			cancel(&services.HeartbeatTimeoutError{Activity: activity, Step: step, Window: window})
			return
		}
	}
}
