package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/api"
	"mediaflow/internal/logging"
	"mediaflow/internal/staging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags requestFlags
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run <file-or-url>",
		Short: "Run a job in-process without a daemon",
		Long: "Run stages the input, executes the requested activities and prints the\n" +
			"aggregated result. The job is not recorded in the daemon's history.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := flags.build(args[0])
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:            logLevel,
				Format:           "console",
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
				Color:            true,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			base := cmd.Context()
			if base == nil {
				base = context.Background()
			}
			signalCtx, cancel := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// run reads inputs as the invoking user, so local paths are not confined.
			stager := staging.New(cfg, staging.WithLogger(logger), staging.WithAnyLocalPath())
			rt, err := newRuntime(signalCtx, cfg, logger, stager)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := rt.close(closeCtx); err != nil {
					fmt.Fprintf(os.Stderr, "warn: %v\n", err)
				}
			}()

			job, err := rt.manager.Submit(signalCtx, req)
			if err != nil {
				return err
			}
			result, err := job.Wait(signalCtx)
			if err != nil {
				if failed := job.Status().Failed; len(failed) > 0 {
					return fmt.Errorf("job %s failed (activities: %v): %w", job.ID(), failed, err)
				}
				return fmt.Errorf("job %s failed: %w", job.ID(), err)
			}
			dto := api.FromResult(result)
			if jsonOutput {
				return writeJSON(cmd, dto)
			}
			return renderResult(cmd, dto)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level for progress output on stderr")
	return cmd
}
