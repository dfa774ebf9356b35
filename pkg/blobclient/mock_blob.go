package blobclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MockBlobClient is an in-memory implementation of BlobClient for testing.
type MockBlobClient struct {
	mu    sync.RWMutex
	blobs map[string]map[string]mockBlob // container -> blobName -> blob

	// failUploads makes the next n uploads fail.
	failUploads int
	uploads     int
}

type mockBlob struct {
	data        []byte
	contentType string
}

// NewMockBlobClient creates a new mock blob client.
func NewMockBlobClient() *MockBlobClient {
	return &MockBlobClient{
		blobs: make(map[string]map[string]mockBlob),
	}
}

// FailNextUploads makes the next n calls to Upload return an error.
func (m *MockBlobClient) FailNextUploads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUploads = n
}

// Uploads returns the number of Upload calls, including failed ones.
func (m *MockBlobClient) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}

// Upload stores data in memory.
func (m *MockBlobClient) Upload(ctx context.Context, container, blobName string, data io.Reader, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploads++
	if m.failUploads > 0 {
		m.failUploads--
		return "", fmt.Errorf("mock upload failure for %s/%s", container, blobName)
	}

	blobData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}

	if m.blobs[container] == nil {
		m.blobs[container] = make(map[string]mockBlob)
	}
	m.blobs[container][blobName] = mockBlob{data: blobData, contentType: contentType}

	return fmt.Sprintf("mock://%s/%s", container, blobName), nil
}

// Download returns a reader over the stored bytes.
func (m *MockBlobClient) Download(ctx context.Context, container, blobName string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[container][blobName]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Exists checks if a blob exists in the mock storage.
func (m *MockBlobClient) Exists(ctx context.Context, container, blobName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[container][blobName]
	return ok, nil
}

// ContentType returns the content type a blob was stored with.
func (m *MockBlobClient) ContentType(container, blobName string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.blobs[container][blobName].contentType
}
