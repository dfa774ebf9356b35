package blobclient

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/yourorg/pdf-converter-service/pkg/logging"
)

// AzureBlobClient implements BlobClient using Azure Blob Storage.
type AzureBlobClient struct {
	client      *azblob.Client
	logger      logging.Logger
	accountName string

	// containers already created by this process
	containers sync.Map
}

// NewAzureBlobClient creates a new Azure Blob Storage client.
// An empty accountKey, or useManagedIdentity, selects the default Azure
// credential chain instead of shared key auth.
func NewAzureBlobClient(accountName, accountKey string, useManagedIdentity bool, logger logging.Logger) (*AzureBlobClient, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)

	var client *azblob.Client

	if useManagedIdentity || accountKey == "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
	} else {
		cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
	}

	return &AzureBlobClient{
		client:      client,
		logger:      logger,
		accountName: accountName,
	}, nil
}

// Upload uploads data to Azure Blob Storage.
func (a *AzureBlobClient) Upload(ctx context.Context, container, blobName string, data io.Reader, contentType string) (string, error) {
	logger := a.logger.With(
		logging.NewField("operation", "blob.upload"),
		logging.NewField("container", container),
		logging.NewField("blob", blobName),
	)

	if err := a.ensureContainer(ctx, container); err != nil {
		logger.Error("Failed to create container", logging.NewField("error", err))
		return "", err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := a.client.UploadStream(ctx, container, blobName, data, opts); err != nil {
		logger.Error("Failed to upload blob", logging.NewField("error", err))
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	url := a.url(container, blobName)
	logger.Info("Blob upload successful", logging.NewField("url", url))
	return url, nil
}

// Download opens a blob from Azure Blob Storage.
func (a *AzureBlobClient) Download(ctx context.Context, container, blobName string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrBlobNotFound
		}
		a.logger.Error("Failed to download blob",
			logging.NewField("container", container),
			logging.NewField("blob", blobName),
			logging.NewField("error", err),
		)
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	return resp.Body, nil
}

// Exists checks if a blob exists in Azure Blob Storage.
func (a *AzureBlobClient) Exists(ctx context.Context, container, blobName string) (bool, error) {
	_, err := a.client.ServiceClient().
		NewContainerClient(container).
		NewBlobClient(blobName).
		GetProperties(ctx, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}
	return true, nil
}

func (a *AzureBlobClient) ensureContainer(ctx context.Context, container string) error {
	if _, ok := a.containers.Load(container); ok {
		return nil
	}
	_, err := a.client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container %s: %w", container, err)
	}
	a.containers.Store(container, struct{}{})
	return nil
}

func (a *AzureBlobClient) url(container, blobName string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", a.accountName, container, blobName)
}

func isNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound)
}
