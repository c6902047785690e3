// Package staging fetches job inputs into per-job scratch directories and
// sweeps directories that outlive their jobs.
//
// Stager.Stage downloads http(s) sources or copies local paths, recording an
// activity heartbeat for every chunk so a stalled transfer trips the
// heartbeat window long before the attempt deadline. CleanStale and
// CleanOrphaned run from the daemon's cleanup loop and at startup.
package staging
