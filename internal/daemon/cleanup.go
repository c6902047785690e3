package daemon

import (
	"context"
	"time"

	"mediaflow/internal/logging"
	"mediaflow/internal/staging"
)

// sweepOrphans removes staging directories that belong to no live job.
func (d *Daemon) sweepOrphans(ctx context.Context) {
	active := make(map[string]struct{})
	for _, job := range d.manager.Jobs() {
		active[job.ID()] = struct{}{}
	}
	d.logSweep("orphaned", staging.CleanOrphaned(ctx, d.cfg.Paths.StagingDir, active, d.logger))
}

// cleanupLoop prunes history once, then sweeps stale staging directories and
// prunes history every staging.cleanup_interval seconds.
func (d *Daemon) cleanupLoop(ctx context.Context) {
	defer close(d.cleanupDone)

	d.pruneHistory(ctx)

	interval := time.Duration(d.cfg.Staging.CleanupInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maxAge := time.Duration(d.cfg.Staging.RetentionHours) * time.Hour
			if maxAge > 0 {
				d.logSweep("stale", staging.CleanStale(ctx, d.cfg.Paths.StagingDir, maxAge, d.logger))
			}
			d.pruneHistory(ctx)
		}
	}
}

func (d *Daemon) pruneHistory(ctx context.Context) {
	retention := d.cfg.HistoryRetention()
	if retention <= 0 {
		return
	}
	removed, err := d.store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory and database permissions"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("pruned job history",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
			logging.Int("retention_days", d.cfg.Workflow.HistoryRetentionDays),
		)
	}
}

func (d *Daemon) logSweep(reason string, result staging.CleanStaleResult) {
	if len(result.Removed) > 0 {
		d.logger.Info("staging cleanup",
			logging.String(logging.FieldEventType, "staging_cleanup"),
			logging.String("reason", reason),
			logging.Int("removed", len(result.Removed)),
		)
	}
	for _, failure := range result.Errors {
		d.logger.Warn("staging cleanup failed",
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			logging.String("path", failure.Path),
			logging.Error(failure.Error),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
		)
	}
}
