package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// NewRelicClient wraps the New Relic agent. A disabled client accepts every
// call and does nothing.
type NewRelicClient struct {
	app         *newrelic.Application
	logger      logging.Logger
	serviceName string
	enabled     bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	LicenseKey  string
	AppName     string
	ServiceName string
	Enabled     bool
}

// NewNewRelicClient creates a new New Relic client.
func NewNewRelicClient(cfg NewRelicConfig, logger logging.Logger) (*NewRelicClient, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if !cfg.Enabled || cfg.LicenseKey == "" {
		logger.Info("New Relic disabled or license key not provided")
		return &NewRelicClient{logger: logger, serviceName: cfg.ServiceName}, nil
	}

	appName := cfg.AppName
	if appName == "" {
		appName = cfg.ServiceName
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(appName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	logger.Info("New Relic client initialized",
		logging.NewField("app_name", appName),
		logging.NewField("service", cfg.ServiceName),
	)

	return &NewRelicClient{
		app:         app,
		logger:      logger,
		serviceName: cfg.ServiceName,
		enabled:     true,
	}, nil
}

// Enabled reports whether events reach New Relic.
func (n *NewRelicClient) Enabled() bool {
	return n.enabled && n.app != nil
}

// RecordCustomEvent records a custom event tagged with the service name.
func (n *NewRelicClient) RecordCustomEvent(eventType string, attributes map[string]interface{}) {
	if !n.Enabled() {
		return
	}
	attrs := make(map[string]interface{}, len(attributes)+1)
	for k, v := range attributes {
		attrs[k] = v
	}
	attrs["service"] = n.serviceName
	n.app.RecordCustomEvent(eventType, attrs)
}

// recordTransaction annotates the transaction already in ctx, or starts and
// ends a standalone one.
func (n *NewRelicClient) recordTransaction(ctx interface{}, name string, durationMs int64, statusCode int, traceID, requestID string) {
	var txn *newrelic.Transaction
	if c, ok := ctx.(context.Context); ok && c != nil {
		txn = newrelic.FromContext(c)
	}
	if txn == nil {
		txn = n.app.StartTransaction(name)
		defer txn.End()
	}

	txn.AddAttribute("trace_id", traceID)
	txn.AddAttribute("request_id", requestID)
	txn.AddAttribute("status_code", statusCode)
	txn.AddAttribute("duration_ms", durationMs)
	txn.AddAttribute("service", n.serviceName)

	if statusCode >= 500 {
		txn.NoticeError(fmt.Errorf("HTTP %d", statusCode))
	}
}

// RecordSlowRequest implements middleware.TelemetryClient.
func (n *NewRelicClient) RecordSlowRequest(ctx interface{}, path string, durationMs int64, traceID, requestID string) {
	if !n.Enabled() {
		return
	}

	n.RecordCustomEvent("SlowRequest", map[string]interface{}{
		"path":        path,
		"duration_ms": durationMs,
		"trace_id":    traceID,
		"request_id":  requestID,
	})
	n.recordTransaction(ctx, path, durationMs, 200, traceID, requestID)
}

// RecordError implements middleware.TelemetryClient.
func (n *NewRelicClient) RecordError(ctx interface{}, path, errorMsg string, statusCode int, traceID, requestID string) {
	if !n.Enabled() {
		return
	}

	n.RecordCustomEvent("ServiceError", map[string]interface{}{
		"path":        path,
		"error":       errorMsg,
		"status_code": statusCode,
		"trace_id":    traceID,
		"request_id":  requestID,
	})
	n.recordTransaction(ctx, path, 0, statusCode, traceID, requestID)
}

// Shutdown flushes pending data.
func (n *NewRelicClient) Shutdown(timeout time.Duration) {
	if n.Enabled() {
		n.app.Shutdown(timeout)
	}
}
