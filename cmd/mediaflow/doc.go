// Command mediaflow runs the media job orchestrator and talks to it.
//
// "mediaflow serve" starts the daemon with its HTTP API. The submit, jobs,
// activities and status commands are thin clients of that API; "mediaflow
// run" executes a single request in-process without a daemon.
package main
