// Package artifacts mirrors converted artifacts to blob storage and announces
// them on the message bus. Every sink is optional.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yourorg/pdf-converter-service/pkg/blobclient"
	"github.com/yourorg/pdf-converter-service/pkg/conversion"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/middleware"
	"github.com/yourorg/pdf-converter-service/pkg/servicebusclient"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

// EventTypeConversionCompleted is the bus subject of a finished conversion.
const EventTypeConversionCompleted = "conversion.completed"

// ErrNotMirrored is returned by Fetch when no blob mirror holds the artifact.
var ErrNotMirrored = errors.New("artifact not mirrored")

// EventRecorder receives custom analytics events.
type EventRecorder interface {
	RecordCustomEvent(eventType string, attributes map[string]interface{})
}

// Event is the JSON body published for every successful conversion.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	SourceFile string    `json:"source_file"`
	OutputFile string    `json:"output_file"`
	Format     string    `json:"format"`
	Bytes      int64     `json:"bytes"`
	Pages      int       `json:"pages"`
	DurationMs int64     `json:"duration_ms"`
	BlobURL    string    `json:"blob_url,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Config names the publishing destinations.
type Config struct {
	Container string
	Queue     string
	Retry     utils.RetryConfig
}

// Publisher fans a conversion result out to the configured sinks.
type Publisher struct {
	cfg      Config
	blobs    blobclient.BlobClient
	bus      servicebusclient.ServiceBusClient
	recorder EventRecorder
	logger   logging.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithBlobClient mirrors artifacts to Config.Container.
func WithBlobClient(c blobclient.BlobClient) Option {
	return func(p *Publisher) { p.blobs = c }
}

// WithServiceBus publishes events to Config.Queue.
func WithServiceBus(c servicebusclient.ServiceBusClient) Option {
	return func(p *Publisher) { p.bus = c }
}

// WithEventRecorder records a custom event per conversion.
func WithEventRecorder(r EventRecorder) Option {
	return func(p *Publisher) { p.recorder = r }
}

// NewPublisher creates a Publisher. Without options it does nothing.
func NewPublisher(cfg Config, logger logging.Logger, opts ...Option) *Publisher {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Publisher{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether any sink is configured.
func (p *Publisher) Enabled() bool {
	return p.blobs != nil || p.bus != nil || p.recorder != nil
}

// Publish mirrors the artifact and announces it. Sink failures are logged and
// returned joined; the artifact on disk is unaffected.
func (p *Publisher) Publish(ctx context.Context, sourcePath string, res *conversion.Result) (*Event, error) {
	logger := p.loggerFor(ctx).With(
		logging.NewField("operation", "artifacts.publish"),
		logging.NewField("output_file", res.FileName()),
	)

	event := &Event{
		ID:         utils.GenerateUUID(),
		Type:       EventTypeConversionCompleted,
		SourceFile: filepath.Base(sourcePath),
		OutputFile: res.FileName(),
		Format:     res.Format.String(),
		Bytes:      res.Size,
		Pages:      res.Pages,
		DurationMs: res.Elapsed.Milliseconds(),
		TraceID:    middleware.GetTraceID(ctx),
		OccurredAt: time.Now().UTC(),
	}

	var errs []error

	if p.blobs != nil {
		url, err := p.mirror(ctx, res)
		if err != nil {
			logger.Warn("Failed to mirror artifact", logging.NewField("error", err))
			errs = append(errs, err)
		} else {
			event.BlobURL = url
		}
	}

	if p.bus != nil {
		if err := p.announce(ctx, event); err != nil {
			logger.Warn("Failed to publish conversion event", logging.NewField("error", err))
			errs = append(errs, err)
		}
	}

	if p.recorder != nil {
		p.recorder.RecordCustomEvent("ConversionCompleted", map[string]interface{}{
			"format":      event.Format,
			"bytes":       event.Bytes,
			"pages":       event.Pages,
			"duration_ms": event.DurationMs,
			"mirrored":    event.BlobURL != "",
		})
	}

	return event, errors.Join(errs...)
}

// Fetch opens a mirrored artifact. It returns ErrNotMirrored when the mirror
// is disabled or does not hold name.
func (p *Publisher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if p.blobs == nil {
		return nil, ErrNotMirrored
	}
	rc, err := p.blobs.Download(ctx, p.cfg.Container, name)
	if err != nil {
		if errors.Is(err, blobclient.ErrBlobNotFound) {
			return nil, ErrNotMirrored
		}
		return nil, err
	}
	return rc, nil
}

// mirror reopens the artifact on every attempt so retries upload it whole.
func (p *Publisher) mirror(ctx context.Context, res *conversion.Result) (string, error) {
	name := res.FileName()
	return utils.RetryWithResult(ctx, p.cfg.Retry, func() (string, error) {
		f, err := os.Open(res.OutputPath)
		if err != nil {
			return "", utils.Permanent(err)
		}
		defer f.Close()
		return p.blobs.Upload(ctx, p.cfg.Container, name, f, blobclient.ContentTypeFor(name))
	})
}

func (p *Publisher) announce(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return utils.Retry(ctx, p.cfg.Retry, func() error {
		_, err := p.bus.Send(ctx, p.cfg.Queue, body,
			servicebusclient.WithMessageID(event.ID),
			servicebusclient.WithContentType("application/json"),
			servicebusclient.WithSubject(event.Type),
			servicebusclient.WithProperties(map[string]interface{}{"format": event.Format}),
		)
		return err
	})
}

func (p *Publisher) loggerFor(ctx context.Context) logging.Logger {
	if l, ok := logging.LoggerFromContext(ctx); ok {
		return l
	}
	return p.logger
}
