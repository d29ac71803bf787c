package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"alarm-triage-agent/internal/infrastructure/config"
	signalhandler "alarm-triage-agent/internal/infrastructure/signal"
)

// serveCmd represents the serve command.
//
//nolint:gochecknoglobals // cobra command pattern requires global variable
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the alarm receiver server",
	Long: `Start an HTTP server that receives alarm webhooks and investigates
each alarming transition in the background.

The server exposes:
- Alarm intake:  POST /alarms
- Health checks: GET /health
- Prometheus metrics on a separate listener

Example:
  triage-agent serve --listen-addr :8080 --metrics-addr :9090

Send SIGHUP to rotate the log file when file logging is enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen-addr", ":8080", "Alarm receiver listen address")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address")

	if err := viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen-addr")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind listen-addr flag: %v\n", err)
	}
	if err := viper.BindPFlag("metrics_addr", serveCmd.Flags().Lookup("metrics-addr")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind metrics-addr flag: %v\n", err)
	}
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := GetConfig(cmd)

	container, err := config.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	logger := container.Logger()

	// SIGHUP rotates the log file so logrotate-style setups work.
	reloadHandler := signalhandler.NewReloadHandler(func(context.Context) {
		if err := container.RotateLogs(); err != nil {
			logger.Warn("log rotation failed", zap.Error(err))
			return
		}
		logger.Info("log file rotated")
	})
	reloadHandler.Start()
	defer reloadHandler.Stop()

	// Metrics get their own listener so the intake surface stays minimal.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", container.Metrics().Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	logger.Info("starting triage agent",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("model", cfg.Model),
	)

	// Blocks until the context is cancelled by SIGINT or SIGTERM.
	return container.Receiver().Start(ctx)
}
