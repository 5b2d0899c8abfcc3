package backup

import (
	"context"
	"fmt"
)

// NewStorageProvider creates the storage provider selected by config
func NewStorageProvider(ctx context.Context, config StorageConfig) (StorageProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid storage configuration", err)
	}

	var (
		provider StorageProvider
		err      error
	)
	switch config.Provider {
	case StorageProviderLocal:
		var p *LocalStorageProvider
		p, err = NewLocalStorageProvider(config.Local)
		provider = p
	case StorageProviderS3:
		var p *S3StorageProvider
		p, err = NewS3StorageProvider(config.S3)
		provider = p
	case StorageProviderAzure:
		var p *AzureStorageProvider
		p, err = NewAzureStorageProvider(config.Azure)
		provider = p
	case StorageProviderGCS:
		var p *GCSStorageProvider
		p, err = NewGCSStorageProvider(ctx, config.GCS)
		provider = p
	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// SupportedProviders lists the storage backends
func SupportedProviders() []StorageProviderType {
	return []StorageProviderType{
		StorageProviderLocal,
		StorageProviderS3,
		StorageProviderAzure,
		StorageProviderGCS,
	}
}
