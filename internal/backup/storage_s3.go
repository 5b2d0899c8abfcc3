package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3StorageProvider implements StorageProvider for S3 and S3-compatible stores
type S3StorageProvider struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3StorageProvider creates a new S3StorageProvider instance
func NewS3StorageProvider(config *S3Config) (*S3StorageProvider, error) {
	if config == nil || config.Bucket == "" {
		return nil, NewValidationError("S3 bucket is required", nil)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.ForcePathStyle {
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return NewS3StorageProviderWithClient(s3.New(sess), config.Bucket, config.Prefix), nil
}

// NewS3StorageProviderWithClient uses an existing S3 client
func NewS3StorageProviderWithClient(client s3iface.S3API, bucket, prefix string) *S3StorageProvider {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3StorageProvider{client: client, bucket: bucket, prefix: prefix}
}

// Put uploads data, overwriting any existing object with the same key
func (s3p *S3StorageProvider) Put(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := s3p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s3p.bucket),
		Key:         aws.String(s3p.key(path)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]*string{
			"backup-type": aws.String(BackupTypeScheduled),
		},
	})
	if err != nil {
		return NewStorageError("failed to upload object to S3", err).WithContext("key", s3p.key(path))
	}
	return nil
}

// Remove deletes an object. S3 reports success for missing keys.
func (s3p *S3StorageProvider) Remove(ctx context.Context, path string) error {
	_, err := s3p.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s3p.bucket),
		Key:    aws.String(s3p.key(path)),
	})
	if err != nil {
		return NewStorageError("failed to delete object from S3", err).WithContext("key", s3p.key(path))
	}
	return nil
}

// Location returns the s3:// URL of an object
func (s3p *S3StorageProvider) Location(path string) string {
	return fmt.Sprintf("s3://%s/%s", s3p.bucket, s3p.key(path))
}

func (s3p *S3StorageProvider) key(path string) string {
	return s3p.prefix + strings.TrimPrefix(path, "/")
}
