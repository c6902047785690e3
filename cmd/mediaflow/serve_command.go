package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaflow/internal/daemon"
	"mediaflow/internal/deps"
	"mediaflow/internal/jobstore"
	"mediaflow/internal/logging"
	"mediaflow/internal/preflight"
	"mediaflow/internal/telemetry"
	"mediaflow/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mediaflow daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	tel, err := telemetry.Setup(signalCtx, cfg.Telemetry, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: telemetry disabled: %v\n", err)
		tel = &telemetry.Telemetry{}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()
	logger = logging.WithTelemetry(logger, cfg.Telemetry.ServiceName, tel.Enabled())

	for _, result := range preflight.RunAll(signalCtx, cfg) {
		if !result.Passed {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "activities depending on it will fail"),
			)
		}
	}
	for _, dep := range deps.Missing(preflight.CheckSystemDeps(cfg)) {
		logging.WarnWithContext(logger, "required tool missing", "dependency_missing",
			logging.String("tool", dep.Name),
			logging.String("command", dep.Command),
			logging.String("detail", dep.Detail),
			logging.String(logging.FieldErrorHint, "install it or point [tools] at it"),
		)
	}

	store, err := jobstore.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	rt, err := newRuntime(signalCtx, cfg, logger, nil, workflow.WithHistory(store))
	if err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := rt.close(closeCtx); err != nil {
			logger.Warn("runtime close", logging.Error(err))
		}
	}()

	d, err := daemon.New(cfg, store, rt.manager, logger, daemon.WithMetrics(rt.metrics))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("mediaflow daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}
