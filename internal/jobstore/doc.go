// Package jobstore keeps the history of orchestrated jobs in SQLite.
//
// The Store implements workflow.History: the orchestrator reports each
// lifecycle event (submitted, started, per-task outcome, completed, failed)
// and the store upserts one row per job plus one row per requested activity.
// Records outlive the in-memory job handle so jobs stay listable after
// eviction and across restarts.
//
// History is never used to resume work. On startup MarkInterrupted fails
// every job a previous process left unfinished.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package jobstore
