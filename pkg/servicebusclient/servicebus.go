// Package servicebusclient publishes conversion events to a message broker.
package servicebusclient

import (
	"context"
	"time"
)

// ServiceBusClient defines the interface for Service Bus operations.
type ServiceBusClient interface {
	// Send sends a message to a queue or topic.
	Send(ctx context.Context, queueOrTopicName string, body []byte, opts ...SendOption) (messageID string, err error)

	// Close releases senders and the underlying connection.
	Close(ctx context.Context) error
}

// Message is a sent message as recorded by MockServiceBusClient.
type Message struct {
	ID          string
	Body        []byte
	ContentType string
	Subject     string
	Properties  map[string]interface{}
	EnqueuedAt  time.Time
}

// SendOption represents optional parameters for send operations.
type SendOption func(*SendOptions)

// SendOptions contains options for send operations.
type SendOptions struct {
	ContentType string
	Subject     string
	Properties  map[string]interface{}
	MessageID   string
}

// WithContentType sets the content type for a message.
func WithContentType(contentType string) SendOption {
	return func(opts *SendOptions) {
		opts.ContentType = contentType
	}
}

// WithSubject sets the message subject (label) used for routing.
func WithSubject(subject string) SendOption {
	return func(opts *SendOptions) {
		opts.Subject = subject
	}
}

// WithProperties sets custom properties for a message.
func WithProperties(properties map[string]interface{}) SendOption {
	return func(opts *SendOptions) {
		opts.Properties = properties
	}
}

// WithMessageID sets a custom message ID.
func WithMessageID(messageID string) SendOption {
	return func(opts *SendOptions) {
		opts.MessageID = messageID
	}
}

func buildOptions(opts []SendOption) *SendOptions {
	o := &SendOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
