// Package blobclient mirrors converted artifacts to object storage.
package blobclient

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrBlobNotFound is returned when the container or blob does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobClient defines the interface for blob storage operations.
type BlobClient interface {
	// Upload stores data under container/blobName, replacing any existing blob,
	// and returns the blob URL.
	Upload(ctx context.Context, container, blobName string, data io.Reader, contentType string) (url string, err error)

	// Download opens a stored blob. The caller must close the reader.
	Download(ctx context.Context, container, blobName string) (io.ReadCloser, error)

	// Exists checks if a blob exists.
	Exists(ctx context.Context, container, blobName string) (bool, error)
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
}

// ContentTypeFor returns the MIME type stored with an artifact named name.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}
