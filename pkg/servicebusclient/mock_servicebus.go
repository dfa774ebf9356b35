package servicebusclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

// MockServiceBusClient is an in-memory implementation of ServiceBusClient for testing.
type MockServiceBusClient struct {
	mu     sync.RWMutex
	queues map[string][]Message // queueName -> messages
	err    error
	closed bool
}

// NewMockServiceBusClient creates a new mock Service Bus client.
func NewMockServiceBusClient() *MockServiceBusClient {
	return &MockServiceBusClient{
		queues: make(map[string][]Message),
	}
}

// FailWith makes every following Send return err. A nil err restores success.
func (m *MockServiceBusClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Send records the message.
func (m *MockServiceBusClient) Send(ctx context.Context, queueOrTopicName string, body []byte, opts ...SendOption) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", fmt.Errorf("client closed")
	}
	if m.err != nil {
		return "", m.err
	}

	o := buildOptions(opts)
	messageID := o.MessageID
	if messageID == "" {
		messageID = utils.GenerateUUID()
	}

	m.queues[queueOrTopicName] = append(m.queues[queueOrTopicName], Message{
		ID:          messageID,
		Body:        body,
		ContentType: o.ContentType,
		Subject:     o.Subject,
		Properties:  o.Properties,
		EnqueuedAt:  time.Now(),
	})
	return messageID, nil
}

// Messages returns a copy of the messages sent to a queue.
func (m *MockServiceBusClient) Messages(queueOrTopicName string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.queues[queueOrTopicName]...)
}

// Close marks the client closed.
func (m *MockServiceBusClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
