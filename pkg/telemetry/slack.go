package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

const defaultSlackChannel = "#alerts"

// SlackClient posts alerts to an incoming webhook. Messages are spaced at
// least minInterval apart.
type SlackClient struct {
	webhookURL  string
	serviceName string
	channel     string
	logger      logging.Logger
	enabled     bool
	client      *http.Client
	retry       utils.RetryConfig

	mu          sync.Mutex
	lastSent    time.Time
	minInterval time.Duration
}

// SlackConfig holds Slack configuration.
type SlackConfig struct {
	WebhookURL  string
	ServiceName string
	Channel     string
	Enabled     bool

	// MinInterval defaults to one second.
	MinInterval time.Duration
	// Retry defaults to three quick attempts.
	Retry utils.RetryConfig
}

// SlackMessage represents a Slack webhook message.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment.
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NewSlackClient creates a new Slack client.
func NewSlackClient(cfg SlackConfig, logger logging.Logger) *SlackClient {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if !cfg.Enabled || cfg.WebhookURL == "" {
		logger.Info("Slack notifications disabled or webhook URL not provided")
		return &SlackClient{logger: logger}
	}

	channel := cfg.Channel
	if channel == "" {
		channel = defaultSlackChannel
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = utils.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		}
	}

	return &SlackClient{
		webhookURL:  cfg.WebhookURL,
		serviceName: cfg.ServiceName,
		channel:     channel,
		logger:      logger,
		enabled:     true,
		client:      &http.Client{Timeout: 10 * time.Second},
		retry:       retry,
		minInterval: interval,
	}
}

// Enabled reports whether alerts are delivered.
func (s *SlackClient) Enabled() bool {
	return s.enabled
}

// SendMessage posts msg once.
func (s *SlackClient) SendMessage(ctx context.Context, msg SlackMessage) error {
	if !s.enabled {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if wait := s.minInterval - time.Since(s.lastSent); !s.lastSent.IsZero() && wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if msg.Channel == "" {
		msg.Channel = s.channel
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack message: %w", err)
	}
	defer resp.Body.Close()

	s.lastSent = time.Now()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// RetrySendMessage sends msg with the client's retry policy.
func (s *SlackClient) RetrySendMessage(ctx context.Context, msg SlackMessage) error {
	if !s.enabled {
		return nil
	}
	return utils.Retry(ctx, s.retry, func() error {
		return s.SendMessage(ctx, msg)
	})
}

// SendSlowRequestAlert implements middleware.SlackClient.
func (s *SlackClient) SendSlowRequestAlert(ctx interface{}, path string, durationMs int64, traceID, requestID string) error {
	if !s.enabled {
		return nil
	}

	return s.alert(ctx, "warning",
		fmt.Sprintf("⚠️ Slow Request Detected - %s", s.serviceName),
		fmt.Sprintf("A slow request was detected in %s", s.serviceName),
		[]SlackField{
			{Title: "Path", Value: path, Short: true},
			{Title: "Service", Value: s.serviceName, Short: true},
			{Title: "Duration", Value: fmt.Sprintf("%d ms", durationMs), Short: true},
			{Title: "Trace ID", Value: traceID, Short: true},
			{Title: "Request ID", Value: requestID, Short: true},
		})
}

// SendErrorAlert implements middleware.SlackClient.
func (s *SlackClient) SendErrorAlert(ctx interface{}, path, errorMsg string, statusCode int, traceID, requestID string) error {
	if !s.enabled {
		return nil
	}

	return s.alert(ctx, "danger",
		fmt.Sprintf("🚨 Error - %s", s.serviceName),
		fmt.Sprintf("An error occurred in %s", s.serviceName),
		[]SlackField{
			{Title: "Path", Value: path, Short: true},
			{Title: "Service", Value: s.serviceName, Short: true},
			{Title: "Error", Value: errorMsg, Short: false},
			{Title: "Status Code", Value: fmt.Sprintf("%d", statusCode), Short: true},
			{Title: "Trace ID", Value: traceID, Short: true},
			{Title: "Request ID", Value: requestID, Short: true},
		})
}

func (s *SlackClient) alert(ctx interface{}, color, title, text string, fields []SlackField) error {
	c, ok := ctx.(context.Context)
	if !ok || c == nil {
		c = context.Background()
	}

	msg := SlackMessage{
		Text: title,
		Attachments: []SlackAttachment{{
			Color:     color,
			Title:     title,
			Text:      text,
			Fields:    fields,
			Timestamp: time.Now().Unix(),
		}},
	}

	if err := s.RetrySendMessage(c, msg); err != nil {
		s.logger.Warn("Failed to deliver Slack alert",
			logging.NewField("title", title),
			logging.NewField("error", err),
		)
		return err
	}
	return nil
}
