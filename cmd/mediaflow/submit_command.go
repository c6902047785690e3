package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var flags requestFlags
	var wait bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <file-or-url>",
		Short: "Submit a job to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.build(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				if !wait {
					resp, err := client.Submit(cmd.Context(), req)
					if err != nil {
						return err
					}
					if jsonOutput {
						return writeJSON(cmd, resp)
					}
					fmt.Fprintf(out, "Submitted job %s (%s)\n", resp.ID, resp.State)
					return nil
				}
				result, err := client.SubmitAndWait(cmd.Context(), req)
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
	flags.register(cmd)
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish and print its result")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
