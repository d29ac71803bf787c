package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"alarm-triage-agent/internal/infrastructure/config"
)

// global config shared between commands.
var cfg *config.Config

type configKey struct{}

func contextWithConfig(ctx context.Context, c *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, c)
}

func configFromContext(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return nil
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "triage-agent",
	Short: "Automated first-responder for monitoring alarms",
	Long: `Triage Agent investigates monitoring alarms automatically. When an
alarm fires it runs a model-driven investigation: the model writes small
scripts that query logs, metrics, and resource state through a sandboxed
interpreter, then produces a structured root-cause report.

Reports are stored in object storage and a notification is sent for every
finished investigation.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.LoadConfig()
		cmd.SetContext(contextWithConfig(cmd.Context(), cfg))
		return nil
	},
}

// Execute runs the root command with signal-aware context cancellation.
// This is called by main.main().
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// GetConfig retrieves the configuration from the command context.
func GetConfig(cmd *cobra.Command) *config.Config {
	if c := configFromContext(cmd.Context()); c != nil {
		return c
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().String("model", "claude-sonnet-4-5", "Model identifier for investigation requests")
	rootCmd.PersistentFlags().String("valkey-addr", "localhost:6379", "Admission gate backend address")
	rootCmd.PersistentFlags().String("report-bucket", "triage-reports", "GCS bucket for investigation reports")
	rootCmd.PersistentFlags().String("notify-url", "http://localhost:9094/notify", "Endpoint receiving completion notifications")
	rootCmd.PersistentFlags().String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Optional rotated log file path")

	bindings := map[string]string{
		"model":         "model",
		"valkey_addr":   "valkey-addr",
		"report_bucket": "report-bucket",
		"notify_url":    "notify-url",
		"log_level":     "log-level",
		"log_file":      "log-file",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s flag: %v\n", flag, err)
		}
	}
}
