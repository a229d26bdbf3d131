package gcsuploader

import (
	"context"
	"io"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload streams r into bucket/object and returns the gs:// URI.
	Upload(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error)

	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) (string, error)

	// Download returns the bytes behind a gs:// URI.
	Download(ctx context.Context, gcsURI string) ([]byte, error)
}
