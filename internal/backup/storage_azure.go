package backup

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStorageProvider implements StorageProvider for Azure Blob Storage
type AzureStorageProvider struct {
	containerURL  azblob.ContainerURL
	containerName string
}

// NewAzureStorageProvider creates a new AzureStorageProvider instance
func NewAzureStorageProvider(config *AzureConfig) (*AzureStorageProvider, error) {
	if config == nil || config.AccountName == "" || config.ContainerName == "" {
		return nil, NewValidationError("Azure account name and container are required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	service := azblob.NewServiceURL(*serviceURL, pipeline)

	return &AzureStorageProvider{
		containerURL:  service.NewContainerURL(config.ContainerName),
		containerName: config.ContainerName,
	}, nil
}

// Put uploads data as a block blob, overwriting any existing blob
func (azp *AzureStorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	blobURL := azp.containerURL.NewBlockBlobURL(objectName(path))

	_, err := azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: contentType},
		Metadata:        azblob.Metadata{"backuptype": BackupTypeScheduled},
	})
	if err != nil {
		return NewStorageError("failed to upload blob to Azure", err).WithContext("blob", objectName(path))
	}
	return nil
}

// Remove deletes the blob and its snapshots. A missing blob is not an error.
func (azp *AzureStorageProvider) Remove(ctx context.Context, path string) error {
	blobURL := azp.containerURL.NewBlockBlobURL(objectName(path))

	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		var stgErr azblob.StorageError
		if errors.As(err, &stgErr) && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil
		}
		return NewStorageError("failed to delete blob from Azure", err).WithContext("blob", objectName(path))
	}
	return nil
}

// Location returns the azure:// URL of a blob
func (azp *AzureStorageProvider) Location(path string) string {
	return fmt.Sprintf("azure://%s/%s", azp.containerName, objectName(path))
}
