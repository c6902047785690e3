// Package activity invokes named activity steps under a timeout and retry
// policy.
//
// Every invocation is bounded by a per-attempt start-to-close deadline and a
// schedule-to-close deadline that spans all attempts. Steps that declare a
// heartbeat timeout must call RecordHeartbeat while they make progress; a
// silent step is cancelled with a HeartbeatTimeoutError, which is distinct
// from a hard deadline. Attempt timeouts, heartbeat timeouts and errors
// tagged services.ErrTransient are retried with capped exponential backoff.
//
// The step function runs on its own goroutine so a deadline is enforced even
// when the step ignores its context; such a step keeps running in the
// background until it returns, and its late result is discarded.
package activity
