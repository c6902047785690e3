package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
)

const resultPreviewWidth = 72

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect submitted jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsResultCommand(ctx))
	jobsCmd.AddCommand(newJobsGetCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.ListJobs(cmd.Context(), state, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						colorState(job.State, colorize),
						strings.Join(job.Activities, ","),
						sinceTimestamp(job.SubmittedAt),
						job.ErrorKind,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "State", "Activities", "Submitted", "Error"}, rows, nil, colorize))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&state, "status", "s", "", "Filter by state (queued, staging, running, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its activities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				renderJob(cmd, job)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsResultCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Wait for a job and print its aggregated result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Result(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				return renderResult(cmd, result)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <activity>",
		Short: "Wait for one activity's result and print it as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.ActivityResult(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd, result.Result)
			})
		},
	}
}

func renderJob(cmd *cobra.Command, job api.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "State:      %s\n", colorState(job.State, colorize))
	fmt.Fprintf(out, "File:       %s\n", job.File)
	fmt.Fprintf(out, "Submitted:  %s\n", formatTimestamp(job.SubmittedAt))
	fmt.Fprintf(out, "Started:    %s\n", formatTimestamp(job.StartedAt))
	fmt.Fprintf(out, "Finished:   %s\n", formatTimestamp(job.FinishedAt))
	fmt.Fprintf(out, "In memory:  %s\n", yesNo(job.Live))
	if job.Callback != "" {
		fmt.Fprintf(out, "Callback:   %s\n", job.Callback)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:      %s (%s)\n", job.Error, job.ErrorKind)
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(job.Tasks))
	for _, task := range job.Tasks {
		rows = append(rows, []string{task.Activity, colorState(task.State, colorize), formatTimestamp(task.FinishedAt), task.Error})
	}
	fmt.Fprintln(out, renderTable([]string{"Activity", "State", "Finished", "Error"}, rows, nil, colorize))
}

// renderResult prints one row per activity with a compact JSON preview.
func renderResult(cmd *cobra.Command, result api.ResultResponse) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintf(out, "Job %s completed\n", result.ID)
	rows := make([][]string, 0, len(result.Result))
	for _, activity := range result.Request.Activities {
		value, ok := result.Result[activity]
		if !ok {
			continue
		}
		preview, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s result: %w", activity, err)
		}
		rows = append(rows, []string{activity, truncate(string(preview), resultPreviewWidth)})
	}
	fmt.Fprintln(out, renderTable([]string{"Activity", "Result"}, rows, nil, colorize))
	return nil
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
