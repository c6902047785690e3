// Package services defines shared utilities consumed by the orchestrator,
// the activity invoker and the activity pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, activity names, pipeline steps and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper, and the typed errors
//     (validation, staging, activity, deadline, heartbeat, callback) that
//     surface to API callers and callback subscribers.
//   - Kind and Retryable, which the invoker and job history use to classify
//     failures consistently.
package services
