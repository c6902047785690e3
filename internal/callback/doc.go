// Package callback delivers job notifications to caller-supplied URLs.
//
// Delivery is best-effort: the orchestrator logs failures and never lets
// them change job state. Each POST carries an Idempotency-Key header so
// receivers can discard duplicates produced by retried deliveries.
package callback
