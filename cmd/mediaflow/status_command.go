package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/preflight"
	"mediaflow/internal/workflow"
)

var jobStates = []workflow.State{
	workflow.StateQueued,
	workflow.StateStaging,
	workflow.StateRunning,
	workflow.StateCompleted,
	workflow.StateFailed,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, storage and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var status *api.DaemonStatus
			if client, err := ctx.client(); err == nil {
				if s, err := client.Status(cmd.Context()); err == nil {
					status = &s
				} else if !api.IsAPIUnavailable(err) {
					return wrapClientError(err, ctx.apiAddress())
				}
			}

			if jsonOutput {
				if status == nil {
					return writeJSON(cmd, localStatus(cmd.Context(), cfg))
				}
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.Context(), cmd.OutOrStdout(), cfg, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// localStatus evaluates what can be checked without a daemon.
func localStatus(ctx context.Context, cfg *config.Config) api.DaemonStatus {
	return api.DaemonStatus{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		Storage:      cfg.Storage.Backend,
		Staging:      api.StagingStatus{Dir: cfg.Paths.StagingDir},
		Checks:       api.FromChecks(preflight.RunAll(ctx, cfg)),
		Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cfg)),
	}
}

func renderStatus(ctx context.Context, out io.Writer, cfg *config.Config, status *api.DaemonStatus) {
	colorize := shouldColorize(out)
	section := func(title string) {
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}

	section("Daemon")
	if status == nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
		local := localStatus(ctx, cfg)
		status = &local
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		fmt.Fprintln(out, renderStatusLine("Live jobs", statusInfo, formatCounts(status.Jobs), colorize))
		fmt.Fprintln(out, renderStatusLine("History", statusInfo, formatCounts(status.History), colorize))
		fmt.Fprintln(out, renderStatusLine("Staging", statusInfo,
			fmt.Sprintf("%d directories, %s in %s", status.Staging.Directories, formatBytes(status.Staging.Bytes), status.Staging.Dir), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, "")

	section("Services")
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	ai := preflight.CheckAIFromConfig(ctx, cfg)
	if !slices.ContainsFunc(status.Checks, func(c api.CheckStatus) bool { return c.Name == ai.Name }) {
		kind := statusOK
		if !ai.Passed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(ai.Name, kind, ai.Detail, colorize))
	}
	storageCheck := preflight.StorageDetail(cfg)
	storageKind := statusOK
	if !storageCheck.Passed {
		storageKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine(storageCheck.Name, storageKind, storageCheck.Detail, colorize))
	fmt.Fprintln(out, "")

	section("Dependencies")
	for _, dep := range status.Dependencies {
		kind := statusOK
		detail := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			detail = strings.TrimSpace(dep.Detail)
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, detail, colorize))
	}
}

func formatCounts(counts map[string]int) string {
	parts := make([]string, 0, len(jobStates))
	for _, state := range jobStates {
		if n := counts[string(state)]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", state, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
