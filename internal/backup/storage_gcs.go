package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorageProvider implements StorageProvider for Google Cloud Storage
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
}

// NewGCSStorageProvider creates a new GCSStorageProvider instance
func NewGCSStorageProvider(ctx context.Context, config *GCSConfig) (*GCSStorageProvider, error) {
	if config == nil || config.Bucket == "" {
		return nil, NewValidationError("GCS bucket is required", nil)
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSStorageProvider{client: client, bucketName: config.Bucket}, nil
}

// Put writes data to the object, replacing any previous generation
func (gcsp *GCSStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	obj := gcsp.client.Bucket(gcsp.bucketName).Object(objectName(path))

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = map[string]string{"backup-type": BackupTypeScheduled}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return NewStorageError("failed to write object to GCS", err).WithContext("object", obj.ObjectName())
	}
	if err := writer.Close(); err != nil {
		return NewStorageError("failed to finalize GCS upload", err).WithContext("object", obj.ObjectName())
	}
	return nil
}

// Remove deletes the object. A missing object is not an error.
func (gcsp *GCSStorageProvider) Remove(ctx context.Context, path string) error {
	err := gcsp.client.Bucket(gcsp.bucketName).Object(objectName(path)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return NewStorageError("failed to delete object from GCS", err).WithContext("object", objectName(path))
	}
	return nil
}

// Location returns the gs:// URL of an object
func (gcsp *GCSStorageProvider) Location(path string) string {
	return fmt.Sprintf("gs://%s/%s", gcsp.bucketName, objectName(path))
}

// Close releases the GCS client
func (gcsp *GCSStorageProvider) Close() error {
	return gcsp.client.Close()
}

func objectName(path string) string {
	return strings.TrimPrefix(path, "/")
}
