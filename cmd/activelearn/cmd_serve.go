package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mimir-aip/activelearn/pkg/api"
	"github.com/mimir-aip/activelearn/pkg/experiment"
	"github.com/mimir-aip/activelearn/pkg/observability"
	"github.com/mimir-aip/activelearn/pkg/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run history API and run scheduled experiments",
	Long: `Starts the HTTP API on $PORT (/health, /ready, /metrics, /api/runs,
/api/schedules) and the cron scheduler for stored schedules.`,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	logger.Info("Starting activelearn server", zap.String("environment", appConfig.Environment))

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := observability.NewMetrics()
	runner := experiment.NewRunner(
		experiment.WithLogger(logger),
		experiment.WithMetrics(metrics),
		experiment.WithCache(st),
		experiment.WithRecorder(st),
	)

	schedules := scheduler.NewService(st, runner, nil, logger.Named("scheduler"))
	if err := schedules.Start(); err != nil {
		return err
	}
	defer schedules.Stop()

	server := api.NewServer(st, schedules, metrics, logger.Named("api"), appConfig.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
