// Package workflow runs jobs: it stages a request's input once, fans out one
// task per requested activity and aggregates their results.
//
// The Manager validates a request against the Registry, assigns a job ID and
// returns a Job handle immediately. A background goroutine waits for a
// concurrency slot, stages the input with a heartbeat-guarded download, then
// starts every task. Tasks are independent: a failing task never cancels a
// sibling. Each successful task writes its result once into the job's
// results.Store and fires a per-activity callback. When every task is
// terminal the job completes with the aggregated map, or fails with the first
// task failure observed. Results already written stay queryable through
// Job.Get until the handle is evicted.
//
// Activity pipelines receive a TaskEnv. Step wraps each external call in the
// activity invoker so every step gets its own deadlines, retries and
// telemetry; Upload and UploadAll publish artifacts through the configured
// storage backend.
package workflow
