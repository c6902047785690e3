package activity

import (
	"time"

	"mediaflow/internal/config"
)

// Policy bounds one activity step.
type Policy struct {
	StartToClose    time.Duration
	ScheduleToClose time.Duration
	// HeartbeatTimeout enables liveness detection when positive.
	HeartbeatTimeout time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

// DefaultPolicy mirrors the built-in activity defaults.
func DefaultPolicy() Policy {
	return Policy{
		StartToClose:    5 * time.Minute,
		ScheduleToClose: 20 * time.Minute,
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
	}
}

// PolicyFromConfig builds the default step policy.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	p := DefaultPolicy()
	p.StartToClose, p.ScheduleToClose = cfg.ActivityTimeouts()
	p.BaseDelay, p.MaxDelay = cfg.RetryBackoff()
	p.MaxAttempts = cfg.Activities.RetryMaxAttempts
	return p
}

// StagingPolicyFromConfig builds the download policy: long deadlines plus a
// heartbeat window.
func StagingPolicyFromConfig(cfg *config.Config) Policy {
	p := PolicyFromConfig(cfg)
	if cfg == nil {
		p.HeartbeatTimeout = time.Minute
		p.StartToClose = 30 * time.Minute
		p.ScheduleToClose = time.Hour
		return p
	}
	p.HeartbeatTimeout, p.StartToClose, p.ScheduleToClose = cfg.StagingTimeouts()
	return p
}

// WithHeartbeat returns a copy of p with liveness detection enabled.
func (p Policy) WithHeartbeat(window time.Duration) Policy {
	p.HeartbeatTimeout = window
	return p
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff returns the delay before the attempt after the given 1-based one:
// base, base*2, base*4 and so on, capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && delay > p.MaxDelay/2 {
			delay = p.MaxDelay
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
