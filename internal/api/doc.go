// Package api defines the wire-format types of the HTTP API and a client for
// it. It translates live job handles and persisted history records into
// transport-friendly DTOs that the CLI and other consumers render without
// coupling to internal types.
//
// # Key Types
//
// Job: one job with its per-activity task states, failure details and, once
// completed, its aggregated result.
//
// ResultResponse: the {id, request, result} document a completed job yields.
//
// DaemonStatus: daemon running state, live job counts, history counts,
// staging usage and dependency health.
//
// # Converters
//
// FromStatus: workflow.Status -> Job for jobs still held in memory.
//
// FromRecord: jobstore.Job -> Job for jobs only present in history.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Activity results are passed through
// unchanged because their shape belongs to each activity. Timestamps use
// RFC3339 with milliseconds.
package api
