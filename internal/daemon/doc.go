// Package daemon coordinates the long-running mediaflow process.
//
// It wires configuration, the job history store, the orchestrator and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. At startup it fails jobs a previous process left
// unfinished and removes orphaned staging directories; while running it
// sweeps stale staging directories and prunes old history.
//
// Keep orchestration logic here: activity pipelines live in their own
// package while the daemon focuses on startup, shutdown and the HTTP surface.
package daemon
