package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/yourorg/pdf-converter-service/pkg/api"
	"github.com/yourorg/pdf-converter-service/pkg/artifacts"
	"github.com/yourorg/pdf-converter-service/pkg/blobclient"
	"github.com/yourorg/pdf-converter-service/pkg/config"
	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/filestore"
	"github.com/yourorg/pdf-converter-service/pkg/httpservice"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/pdfutil"
	"github.com/yourorg/pdf-converter-service/pkg/servicebusclient"
	"github.com/yourorg/pdf-converter-service/pkg/telemetry"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	bus       servicebusclient.ServiceBusClient
	newRelic  *telemetry.NewRelicClient
	slack     *telemetry.SlackClient
	publisher *artifacts.Publisher
	handler   *api.Handler
	server    *httpservice.Server
}

func main() {
	// Ignore error if .env doesn't exist
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat,
		logging.NewField("version", cfg.AppVersion),
		logging.NewField("environment", cfg.Environment),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	logger.Info("Starting PDF converter service", logging.NewField("service", cfg.AppName))

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialise service", logging.NewField("error", err))
		os.Exit(1)
	}

	go func() {
		if err := app.server.Start(); err != nil {
			logger.Error("Server error", logging.NewField("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	// In-flight conversions get the converter timeout plus a margin.
	grace := cfg.ConverterTimeoutDuration() + 10*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	app.shutdown(ctx)
}

// loadConfig reads CONFIG_FILE when set, with environment variables taking
// precedence, and the environment alone otherwise.
func loadConfig() (*config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadConfigFromFile(path)
	}
	return config.LoadConfigFromEnv()
}

func newApp(cfg *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	uploads, err := filestore.New(cfg.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("upload store: %w", err)
	}
	outputs, err := filestore.New(cfg.OutputDir, logger)
	if err != nil {
		return nil, fmt.Errorf("output store: %w", err)
	}

	svc := conversion.NewService(conversion.Config{
		OutputDir:        outputs.Dir(),
		TempDir:          cfg.TempDir,
		ConverterBinary:  cfg.ConverterBinary,
		ConverterTimeout: cfg.ConverterTimeoutDuration(),
		MarkdownEngine:   conversion.MarkdownEngine(cfg.ConverterMarkdownEngine),
	}, pdfutil.NewPDFParser(), conversion.NewExecRunner(), logger)

	app.newRelic, err = telemetry.NewNewRelicClient(telemetry.NewRelicConfig{
		LicenseKey:  cfg.NewRelicLicenseKey,
		AppName:     cfg.AppName,
		ServiceName: cfg.AppName,
		Enabled:     cfg.NewRelicLicenseKey != "",
	}, logger)
	if err != nil {
		return nil, err
	}

	app.slack = telemetry.NewSlackClient(telemetry.SlackConfig{
		WebhookURL:  cfg.SlackWebhookURL,
		ServiceName: cfg.AppName,
		Enabled:     cfg.SlackWebhookURL != "",
	}, logger)

	app.publisher, err = app.buildPublisher()
	if err != nil {
		return nil, err
	}

	var opts []api.Option
	if app.publisher.Enabled() {
		opts = append(opts, api.WithPublisher(app.publisher))
	}
	app.handler = api.NewHandler(uploads, outputs, svc, opts...)

	app.server, err = httpservice.NewServer(httpservice.ServerConfig{
		Port:                 cfg.HTTPPort,
		ReadTimeout:          time.Duration(cfg.HTTPReadTimeout) * time.Second,
		WriteTimeout:         time.Duration(cfg.HTTPWriteTimeout) * time.Second,
		IdleTimeout:          time.Duration(cfg.HTTPIdleTimeout) * time.Second,
		Logger:               logger,
		ServiceName:          cfg.AppName,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		AllowedOrigins:       cfg.CORSAllowedOrigins,
		MaxBodySize:          cfg.MaxUploadBytes,
		SlowRequestThreshold: time.Duration(cfg.SlowRequestThresholdMs) * time.Millisecond,
		SlowRouteThresholds: map[string]time.Duration{
			"/convert/": cfg.ConverterTimeoutDuration() * 3 / 4,
		},
		Telemetry: app.newRelic,
		Slack:     app.slack,
	}, app.handler)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	logger.Info("Service configured",
		logging.NewField("upload_dir", uploads.Dir()),
		logging.NewField("output_dir", outputs.Dir()),
		logging.NewField("converter", cfg.ConverterBinary),
		logging.NewField("markdown_backend", cfg.ConverterMarkdownEngine),
		logging.NewField("mirror", cfg.BlobStorageAccountName != ""),
		logging.NewField("events", cfg.ServiceBusNamespace != ""),
	)

	return app, nil
}

// buildPublisher wires only the sinks that are configured. With none, the
// publisher is disabled and conversions are purely local.
func (a *App) buildPublisher() (*artifacts.Publisher, error) {
	cfg := a.config
	var opts []artifacts.Option
	if a.newRelic.Enabled() {
		opts = append(opts, artifacts.WithEventRecorder(a.newRelic))
	}

	if cfg.BlobStorageAccountName != "" {
		blobs, err := blobclient.NewAzureBlobClient(
			cfg.BlobStorageAccountName,
			cfg.BlobStorageAccountKey,
			cfg.BlobStorageAccountKey == "",
			a.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("blob client: %w", err)
		}
		opts = append(opts, artifacts.WithBlobClient(blobs))
	}

	if cfg.ServiceBusNamespace != "" {
		bus, err := servicebusclient.NewAzureServiceBusClient(
			cfg.ServiceBusNamespace,
			cfg.ServiceBusKeyName,
			cfg.ServiceBusKeyValue,
			cfg.ServiceBusKeyValue == "",
			a.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("service bus client: %w", err)
		}
		a.bus = bus
		opts = append(opts, artifacts.WithServiceBus(bus))
	}

	return artifacts.NewPublisher(artifacts.Config{
		Container: cfg.BlobContainer,
		Queue:     cfg.ServiceBusQueue,
		Retry: utils.RetryConfig{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: time.Duration(cfg.RetryInitialDelay) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.RetryMaxDelay) * time.Millisecond,
			Multiplier:   2.0,
		},
	}, a.logger, opts...), nil
}

func (a *App) shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logging.NewField("error", err))
	}
	if a.bus != nil {
		if err := a.bus.Close(ctx); err != nil {
			a.logger.Warn("Service Bus close error", logging.NewField("error", err))
		}
	}
	a.newRelic.Shutdown(10 * time.Second)
}
