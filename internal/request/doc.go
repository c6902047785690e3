// Package request defines the job submission payload and the typed parameter
// variant of every activity.
//
// A Request is immutable once accepted: the orchestrator echoes it verbatim in
// every callback and in the final result. Per-activity parameters arrive as raw
// JSON and are decoded into their activity's Params variant, with defaults
// applied and unknown keys rejected, before any work starts.
package request
