package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
	"mediaflow/internal/pipelines"
)

func newActivitiesCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List the activities a job can request",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, source, err := activityNames(cmd, ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.ActivitiesResponse{Activities: names})
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			if source != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "(%s)\n", source)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// activityNames asks the daemon and falls back to the registry this binary
// was built with when no daemon is reachable.
func activityNames(cmd *cobra.Command, ctx *commandContext) ([]string, string, error) {
	client, err := ctx.client()
	if err == nil {
		names, err := client.Activities(cmd.Context())
		if err == nil {
			return names, "", nil
		}
		if !api.IsAPIUnavailable(err) {
			return nil, "", wrapClientError(err, ctx.apiAddress())
		}
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	registry, err := pipelines.Registry(pipelines.DepsFromConfig(cfg))
	if err != nil {
		return nil, "", err
	}
	return registry.Names(), "daemon not reachable; listing built-in activities", nil
}
