package config

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appconfig "alarm-triage-agent/internal/application/config"
	"alarm-triage-agent/internal/application/service"
	"alarm-triage-agent/internal/application/usecase"
	"alarm-triage-agent/internal/domain/entity"
	"alarm-triage-agent/internal/infrastructure/adapter/ai"
	"alarm-triage-agent/internal/infrastructure/adapter/capability"
	"alarm-triage-agent/internal/infrastructure/adapter/dedup"
	"alarm-triage-agent/internal/infrastructure/adapter/report"
	"alarm-triage-agent/internal/infrastructure/adapter/sandbox"
	"alarm-triage-agent/internal/infrastructure/adapter/webhook"
	"alarm-triage-agent/internal/infrastructure/logging"
	"alarm-triage-agent/internal/infrastructure/metrics"
)

// Container wires the full triage pipeline: capability adapters, the
// sandbox, the model provider, the admission gate, report emission, and
// the inbound alarm receiver.
//
// The wiring order is:
// 1. Logger and metrics
// 2. Infrastructure adapters (gate, capabilities, sandbox, model, report)
// 3. Application services (report emitter, runner, alarm handler)
// 4. The inbound receiver dispatching into the handler
type Container struct {
	config    *Config
	triageCfg *appconfig.TriageConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
	gate      *dedup.ValkeyGate
	metricsQ  *capability.InfluxMetricQuerier
	gcsStore  *report.GCSStore
	handler   *usecase.AlarmHandler
	receiver  *webhook.Receiver
	rotate    func() error
}

// NewContainer creates a DI container and wires all dependencies.
// The context bounds backend handshakes made during construction.
func NewContainer(ctx context.Context, cfg *Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	logger, rotateLogs, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 10,
		MaxAgeDays: 30,
		Compress:   true,
	})
	if err != nil {
		return nil, err
	}

	triageCfg, err := cfg.BuildTriageConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid triage limits: %w", err)
	}

	m := metrics.New()

	gate, err := dedup.NewValkeyGate(dedup.Config{
		Addr:     cfg.ValkeyAddr,
		Username: cfg.ValkeyUsername,
		Password: cfg.ValkeyPassword,
		TLS:      cfg.ValkeyTLS,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("admission gate: %w", err)
	}

	logQuerier, err := capability.NewHTTPLogQuerier(capability.HTTPLogConfig{
		BaseURL: cfg.LogAPIURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("log capability: %w", err)
	}
	metricQuerier, err := capability.NewInfluxMetricQuerier(capability.InfluxConfig{
		URL:    cfg.InfluxURL,
		Token:  cfg.InfluxToken,
		Org:    cfg.InfluxOrg,
		Bucket: cfg.InfluxBucket,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("metric capability: %w", err)
	}
	resourceDescriber, err := capability.NewHTTPResourceDescriber(capability.HTTPResourceConfig{
		BaseURL: cfg.ResourceAPIURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("resource capability: %w", err)
	}

	registry, err := sandbox.NewRegistry(logQuerier, metricQuerier, resourceDescriber, logger)
	if err != nil {
		return nil, err
	}
	executor, err := sandbox.NewStarlarkExecutor(registry, logger)
	if err != nil {
		return nil, err
	}
	executor.SetObserver(m.ToolExecuted)
	scriptTool, err := registry.ScriptTool()
	if err != nil {
		return nil, fmt.Errorf("script tool schema: %w", err)
	}

	provider, err := ai.NewRetryingProvider(
		ai.NewAnthropicAdapter(cfg.Model),
		triageCfg.MaxRetries(),
		triageCfg.RetryBaseDelay(),
		logger,
	)
	if err != nil {
		return nil, err
	}
	provider.SetRetryHook(m.ModelRetried)

	gcsStore, err := report.NewGCSStore(ctx, report.GCSStoreConfig{
		Bucket:          cfg.ReportBucket,
		CredentialsFile: cfg.GCSCredentialsFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("report store: %w", err)
	}
	notifier, err := report.NewWebhookNotifier(report.WebhookNotifierConfig{
		URL:       cfg.NotifyURL,
		AuthToken: cfg.NotifyToken,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	emitter, err := service.NewReportService(gcsStore, notifier, logger)
	if err != nil {
		return nil, err
	}
	emitter.SetStoreObserver(m.ReportWritten)

	runner, err := usecase.NewTriageRunner(
		provider,
		executor,
		usecase.NewPromptBuilder(),
		[]entity.Tool{*scriptTool},
		triageCfg,
		logger,
	)
	if err != nil {
		return nil, err
	}

	handler, err := usecase.NewAlarmHandler(gate, runner, emitter, triageCfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:    cfg,
		triageCfg: triageCfg,
		logger:    logger,
		metrics:   m,
		gate:      gate,
		metricsQ:  metricQuerier,
		gcsStore:  gcsStore,
		handler:   handler,
		rotate:    rotateLogs,
	}

	receiverCfg := webhook.DefaultReceiverConfig()
	receiverCfg.Addr = cfg.ListenAddr
	receiver, err := webhook.NewReceiver(c.HandleAlarm, receiverCfg, logger)
	if err != nil {
		return nil, err
	}
	c.receiver = receiver

	return c, nil
}

// HandleAlarm runs one alarm through the pipeline and records the
// outcome in the metric set.
func (c *Container) HandleAlarm(ctx context.Context, alarm *entity.AlarmEvent) error {
	c.metrics.AlarmReceived(alarm.State())

	outcome, err := c.handler.Handle(ctx, alarm)
	if outcome != nil {
		if !outcome.Skipped || outcome.Duplicate {
			c.metrics.AdmissionDecided(!outcome.Duplicate)
		}
		if outcome.Result != nil {
			c.metrics.InvestigationFinished(outcome.Result.Status, outcome.Result.Elapsed.Seconds())
		}
	}
	return err
}

// Config returns the application configuration.
func (c *Container) Config() *Config { return c.config }

// Logger returns the process-wide logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Metrics returns the Prometheus metric set.
func (c *Container) Metrics() *metrics.Metrics { return c.metrics }

// AlarmHandler returns the wired alarm handler.
func (c *Container) AlarmHandler() *usecase.AlarmHandler { return c.handler }

// Receiver returns the inbound alarm receiver.
func (c *Container) Receiver() *webhook.Receiver { return c.receiver }

// RotateLogs forces a log file rotation. No-op for stderr-only logging.
func (c *Container) RotateLogs() error { return c.rotate() }

// Close releases backend clients and flushes the logger.
func (c *Container) Close() error {
	c.metricsQ.Close()
	err := c.gcsStore.Close()
	_ = c.logger.Sync()
	return err
}
