package backup

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records the calls the provider makes
type fakeS3 struct {
	s3iface.S3API
	puts    []*s3.PutObjectInput
	bodies  [][]byte
	deletes []*s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageProviderPutAndRemove(t *testing.T) {
	client := &fakeS3{}
	provider := NewS3StorageProviderWithClient(client, "crm-backups", "scheduled")
	ctx := context.Background()

	require.NoError(t, provider.Put(ctx, "owner/file.json", []byte(`{}`), ContentTypeJSON))
	require.Len(t, client.puts, 1)
	assert.Equal(t, "crm-backups", aws.StringValue(client.puts[0].Bucket))
	assert.Equal(t, "scheduled/owner/file.json", aws.StringValue(client.puts[0].Key))
	assert.Equal(t, ContentTypeJSON, aws.StringValue(client.puts[0].ContentType))
	assert.Equal(t, []byte(`{}`), client.bodies[0])

	require.NoError(t, provider.Remove(ctx, "/owner/file.json"))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, "scheduled/owner/file.json", aws.StringValue(client.deletes[0].Key))

	assert.Equal(t, "s3://crm-backups/scheduled/owner/file.json", provider.Location("owner/file.json"))
}

func TestS3StorageProviderErrors(t *testing.T) {
	provider := NewS3StorageProviderWithClient(&fakeS3{err: errors.New("AccessDenied")}, "b", "")

	err := provider.Put(context.Background(), "o/f.json", nil, ContentTypeJSON)
	var backupErr *BackupError
	require.ErrorAs(t, err, &backupErr)
	assert.Equal(t, BackupErrorTypeStorage, backupErr.Type)
	assert.Equal(t, "o/f.json", backupErr.Context["key"])

	assert.Error(t, provider.Remove(context.Background(), "o/f.json"))
}

func TestCloudProviderValidation(t *testing.T) {
	_, err := NewS3StorageProvider(nil)
	assert.Error(t, err)
	_, err = NewS3StorageProvider(&S3Config{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = NewAzureStorageProvider(&AzureConfig{AccountName: "acct"})
	assert.Error(t, err)
	_, err = NewAzureStorageProvider(nil)
	assert.Error(t, err)

	_, err = NewGCSStorageProvider(context.Background(), &GCSConfig{})
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "owner/file.json", objectName("/owner/file.json"))
	assert.Equal(t, "owner/file.json", objectName("owner/file.json"))
}
