package servicebusclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
	"github.com/yourorg/pdf-converter-service/pkg/utils"
)

// AzureServiceBusClient implements ServiceBusClient using Azure Service Bus.
type AzureServiceBusClient struct {
	client *azservicebus.Client
	logger logging.Logger

	mu      sync.Mutex
	senders map[string]*azservicebus.Sender
}

// NewAzureServiceBusClient creates a new Azure Service Bus client.
// namespace is the short namespace name. Without a key name and value, or with
// useManagedIdentity, the default Azure credential chain is used.
func NewAzureServiceBusClient(namespace, keyName, keyValue string, useManagedIdentity bool, logger logging.Logger) (*AzureServiceBusClient, error) {
	var client *azservicebus.Client

	if useManagedIdentity || keyName == "" || keyValue == "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err = azservicebus.NewClient(fmt.Sprintf("%s.servicebus.windows.net", namespace), cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
		}
	} else {
		connStr := fmt.Sprintf("Endpoint=sb://%s.servicebus.windows.net/;SharedAccessKeyName=%s;SharedAccessKey=%s",
			namespace, keyName, keyValue)
		var err error
		client, err = azservicebus.NewClientFromConnectionString(connStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
		}
	}

	return &AzureServiceBusClient{
		client:  client,
		logger:  logger,
		senders: make(map[string]*azservicebus.Sender),
	}, nil
}

// Send sends a message to a queue or topic.
func (a *AzureServiceBusClient) Send(ctx context.Context, queueOrTopicName string, body []byte, opts ...SendOption) (string, error) {
	logger := a.logger.With(
		logging.NewField("operation", "servicebus.send"),
		logging.NewField("queue", queueOrTopicName),
	)

	sender, err := a.sender(queueOrTopicName)
	if err != nil {
		logger.Error("Failed to create sender", logging.NewField("error", err))
		return "", err
	}

	o := buildOptions(opts)
	messageID := o.MessageID
	if messageID == "" {
		messageID = utils.GenerateUUID()
	}

	msg := &azservicebus.Message{
		Body:      body,
		MessageID: &messageID,
	}
	if o.ContentType != "" {
		msg.ContentType = &o.ContentType
	}
	if o.Subject != "" {
		msg.Subject = &o.Subject
	}
	if len(o.Properties) > 0 {
		msg.ApplicationProperties = make(map[string]interface{}, len(o.Properties))
		for k, v := range o.Properties {
			msg.ApplicationProperties[k] = v
		}
	}

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.Error("Failed to send message", logging.NewField("error", err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	logger.Debug("Message sent", logging.NewField("message_id", messageID))
	return messageID, nil
}

// Close closes all cached senders and the client.
func (a *AzureServiceBusClient) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for name, s := range a.senders {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sender %s: %w", name, err))
		}
		delete(a.senders, name)
	}
	if err := a.client.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *AzureServiceBusClient) sender(queueOrTopicName string) (*azservicebus.Sender, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.senders[queueOrTopicName]; ok {
		return s, nil
	}
	s, err := a.client.NewSender(queueOrTopicName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}
	a.senders[queueOrTopicName] = s
	return s, nil
}
