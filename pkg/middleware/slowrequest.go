package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// TelemetryClient defines the interface for telemetry operations.
type TelemetryClient interface {
	RecordSlowRequest(ctx interface{}, path string, durationMs int64, traceID, requestID string)
	RecordError(ctx interface{}, path, errorMsg string, statusCode int, traceID, requestID string)
}

// SlackClient defines the interface for Slack notifications.
type SlackClient interface {
	SendSlowRequestAlert(ctx interface{}, path string, durationMs int64, traceID, requestID string) error
	SendErrorAlert(ctx interface{}, path, errorMsg string, statusCode int, traceID, requestID string) error
}

// SlowRequestConfig configures SlowRequestMiddleware.
type SlowRequestConfig struct {
	Threshold time.Duration
	// RouteThresholds overrides Threshold per gin route template, e.g.
	// "/convert/", whose latency is bounded by the converter timeout instead.
	RouteThresholds map[string]time.Duration
	Telemetry       TelemetryClient
	Slack           SlackClient
}

func (cfg SlowRequestConfig) thresholdFor(route string) time.Duration {
	if d, ok := cfg.RouteThresholds[route]; ok {
		return d
	}
	return cfg.Threshold
}

// SlowRequestMiddleware reports slow requests and 5xx responses to telemetry
// and Slack. Slack delivery runs in the background so alerts never delay the
// response.
func SlowRequestMiddleware(cfg SlowRequestConfig, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		latency := time.Since(start)
		statusCode := c.Writer.Status()
		traceID := GetTraceIDFromGin(c)
		requestID := GetRequestIDFromGin(c)
		ctx := context.WithoutCancel(c.Request.Context())

		if threshold := cfg.thresholdFor(c.FullPath()); threshold > 0 && latency > threshold {
			logger.Warn("Slow request detected",
				logging.NewField("path", path),
				logging.NewField("duration_ms", latency.Milliseconds()),
				logging.NewField("threshold_ms", threshold.Milliseconds()),
			)

			if cfg.Telemetry != nil {
				cfg.Telemetry.RecordSlowRequest(ctx, path, latency.Milliseconds(), traceID, requestID)
			}
			if cfg.Slack != nil {
				go func() {
					if err := cfg.Slack.SendSlowRequestAlert(ctx, path, latency.Milliseconds(), traceID, requestID); err != nil {
						logger.Error("Failed to send Slack alert", logging.NewField("error", err))
					}
				}()
			}
		}

		if statusCode >= 500 {
			errorMsg := "Internal server error"
			if len(c.Errors) > 0 {
				errorMsg = c.Errors.String()
			}

			// ErrorHandlerMiddleware already logged it.
			if cfg.Telemetry != nil {
				cfg.Telemetry.RecordError(ctx, path, errorMsg, statusCode, traceID, requestID)
			}
			if cfg.Slack != nil {
				go func() {
					if err := cfg.Slack.SendErrorAlert(ctx, path, errorMsg, statusCode, traceID, requestID); err != nil {
						logger.Error("Failed to send Slack alert", logging.NewField("error", err))
					}
				}()
			}
		}
	}
}
