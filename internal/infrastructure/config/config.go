// Package config provides configuration management and dependency wiring
// for the triage agent. It uses viper for loading configuration from
// command-line flags, environment variables, and defaults.
//
// Configuration priority (highest to lowest):
// 1. Command-line flags
// 2. Environment variables (with TRIAGE_ prefix)
// 3. Defaults
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	appconfig "alarm-triage-agent/internal/application/config"
)

// Config holds all configuration values for the application.
type Config struct {
	// Model is the model identifier used for investigation requests.
	// Defaults to "claude-sonnet-4-5".
	Model string

	// MaxIterations caps model round-trips per investigation.
	MaxIterations int

	// TimeBudget is the wall-clock ceiling for one investigation.
	TimeBudget time.Duration

	// ToolTimeLimit is the wall-clock ceiling for one sandboxed execution.
	ToolTimeLimit time.Duration

	// MaxRetries is the retry count per model call on transient errors.
	MaxRetries int

	// RetryBaseDelay is the first backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration

	// AdmissionWindow is the dedup window per alarm identity.
	AdmissionWindow time.Duration

	// ValkeyAddr is the host:port of the admission gate backend.
	ValkeyAddr string
	// ValkeyUsername authenticates against the gate backend when set.
	ValkeyUsername string
	// ValkeyPassword authenticates against the gate backend when set.
	ValkeyPassword string
	// ValkeyTLS enables TLS toward the gate backend.
	ValkeyTLS bool

	// InfluxURL is the metrics backend endpoint.
	InfluxURL string
	// InfluxToken authenticates against the metrics backend.
	InfluxToken string
	// InfluxOrg is the metrics backend organization.
	InfluxOrg string
	// InfluxBucket is the bucket investigation queries read from.
	InfluxBucket string

	// LogAPIURL is the log search backend endpoint.
	LogAPIURL string

	// ResourceAPIURL is the resource inventory backend endpoint.
	ResourceAPIURL string

	// ReportBucket is the GCS bucket investigation reports are written to.
	ReportBucket string
	// GCSCredentialsFile optionally points at a service account key.
	GCSCredentialsFile string

	// NotifyURL receives completion notifications as JSON POSTs.
	NotifyURL string
	// NotifyToken, when set, is sent as a bearer token on notifications.
	NotifyToken string

	// ListenAddr is the alarm receiver listen address.
	ListenAddr string
	// MetricsAddr is the Prometheus exposition listen address.
	MetricsAddr string

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string
	// LogFile, when set, duplicates logs to a rotated file.
	LogFile string
}

// Defaults returns a Config struct with all default values set.
func Defaults() *Config {
	return &Config{
		Model:           "claude-sonnet-4-5",
		MaxIterations:   100,
		TimeBudget:      13 * time.Minute,
		ToolTimeLimit:   25 * time.Second,
		MaxRetries:      3,
		RetryBaseDelay:  2 * time.Second,
		AdmissionWindow: time.Hour,
		ValkeyAddr:      "localhost:6379",
		InfluxURL:       "http://localhost:8086",
		InfluxOrg:       "ops",
		InfluxBucket:    "observability",
		LogAPIURL:       "http://localhost:9428",
		ResourceAPIURL:  "http://localhost:9080",
		ReportBucket:    "triage-reports",
		NotifyURL:       "http://localhost:9094/notify",
		ListenAddr:      ":8080",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
	}
}

// LoadConfig loads and returns the configuration from viper.
// It sets up environment variable bindings with the TRIAGE_ prefix.
//
// The caller is expected to have set up viper with BindPFlag() calls
// for command-line flags before calling this function.
func LoadConfig() *Config {
	cfg := Defaults()

	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if viper.IsSet("model") {
		cfg.Model = viper.GetString("model")
	}
	if viper.IsSet("max_iterations") {
		cfg.MaxIterations = viper.GetInt("max_iterations")
	}
	if viper.IsSet("time_budget") {
		cfg.TimeBudget = viper.GetDuration("time_budget")
	}
	if viper.IsSet("tool_time_limit") {
		cfg.ToolTimeLimit = viper.GetDuration("tool_time_limit")
	}
	if viper.IsSet("max_retries") {
		cfg.MaxRetries = viper.GetInt("max_retries")
	}
	if viper.IsSet("retry_base_delay") {
		cfg.RetryBaseDelay = viper.GetDuration("retry_base_delay")
	}
	if viper.IsSet("admission_window") {
		cfg.AdmissionWindow = viper.GetDuration("admission_window")
	}
	if viper.IsSet("valkey_addr") {
		cfg.ValkeyAddr = viper.GetString("valkey_addr")
	}
	if viper.IsSet("valkey_username") {
		cfg.ValkeyUsername = viper.GetString("valkey_username")
	}
	if viper.IsSet("valkey_password") {
		cfg.ValkeyPassword = viper.GetString("valkey_password")
	}
	if viper.IsSet("valkey_tls") {
		cfg.ValkeyTLS = viper.GetBool("valkey_tls")
	}
	if viper.IsSet("influx_url") {
		cfg.InfluxURL = viper.GetString("influx_url")
	}
	if viper.IsSet("influx_token") {
		cfg.InfluxToken = viper.GetString("influx_token")
	}
	if viper.IsSet("influx_org") {
		cfg.InfluxOrg = viper.GetString("influx_org")
	}
	if viper.IsSet("influx_bucket") {
		cfg.InfluxBucket = viper.GetString("influx_bucket")
	}
	if viper.IsSet("log_api_url") {
		cfg.LogAPIURL = viper.GetString("log_api_url")
	}
	if viper.IsSet("resource_api_url") {
		cfg.ResourceAPIURL = viper.GetString("resource_api_url")
	}
	if viper.IsSet("report_bucket") {
		cfg.ReportBucket = viper.GetString("report_bucket")
	}
	if viper.IsSet("gcs_credentials_file") {
		cfg.GCSCredentialsFile = viper.GetString("gcs_credentials_file")
	}
	if viper.IsSet("notify_url") {
		cfg.NotifyURL = viper.GetString("notify_url")
	}
	if viper.IsSet("notify_token") {
		cfg.NotifyToken = viper.GetString("notify_token")
	}
	if viper.IsSet("listen_addr") {
		cfg.ListenAddr = viper.GetString("listen_addr")
	}
	if viper.IsSet("metrics_addr") {
		cfg.MetricsAddr = viper.GetString("metrics_addr")
	}
	if viper.IsSet("log_level") {
		cfg.LogLevel = viper.GetString("log_level")
	}
	if viper.IsSet("log_file") {
		cfg.LogFile = viper.GetString("log_file")
	}

	return cfg
}

// BuildTriageConfig converts the flat config into the application layer's
// validated limit object.
func (c *Config) BuildTriageConfig() (*appconfig.TriageConfig, error) {
	tc := appconfig.DefaultTriageConfig()
	if err := tc.SetMaxIterations(c.MaxIterations); err != nil {
		return nil, err
	}
	if err := tc.SetTimeBudget(c.TimeBudget); err != nil {
		return nil, err
	}
	if err := tc.SetToolTimeLimit(c.ToolTimeLimit); err != nil {
		return nil, err
	}
	if err := tc.SetMaxRetries(c.MaxRetries); err != nil {
		return nil, err
	}
	if err := tc.SetRetryBaseDelay(c.RetryBaseDelay); err != nil {
		return nil, err
	}
	if err := tc.SetAdmissionWindow(c.AdmissionWindow); err != nil {
		return nil, err
	}
	return tc, nil
}
