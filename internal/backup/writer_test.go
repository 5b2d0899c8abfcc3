package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func assembleFor(t *testing.T, owner, module string, created time.Time) *AssembledArtifact {
	t.Helper()
	out, err := NewAssembler().Assemble(ArtifactMeta{CreatedAt: created, Owner: owner, Module: module},
		[]string{"contacts"}, map[string][]Row{"contacts": sampleRows(4, "contacts")})
	require.NoError(t, err)
	return out
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, "scheduled-deals-2024-01-02T09-30-00-000Z.json", FileName("deals", ts, ""))
	assert.Equal(t, "scheduled-full-2024-01-02T09-30-00-000Z.json", FileName("", ts, ""))
	assert.Equal(t, "scheduled-full-2024-01-02T09-30-00-000Z.json.gz", FileName("", ts, ".gz"))
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "owner-1/file.json", ObjectPath("owner-1", "file.json"))
	assert.Equal(t, "00000000-0000-0000-0000-000000000000/file.json", ObjectPath("", "file.json"))
}

func TestArtifactWriterSuccess(t *testing.T) {
	storage := newMemoryStorage()
	ledger := newFakeLedger()
	created := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	assembled := assembleFor(t, "owner-1", "contacts", created)

	record, err := NewArtifactWriter(storage, ledger, nil, nil).Write(context.Background(), assembled)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, "owner-1/scheduled-contacts-2024-01-02T09-30-00-000Z.json", record.FilePath)
	assert.Equal(t, 4, record.RecordsCount)
	assert.Equal(t, 1, record.TablesCount)
	assert.Equal(t, assembled.SizeBytes, record.SizeBytes)
	assert.Equal(t, "scheduled", record.BackupType)
	require.NotNil(t, record.Module)
	assert.Equal(t, "contacts", *record.Module)

	assert.Equal(t, assembled.Payload, storage.objects[record.FilePath])
	assert.Equal(t, Checksum(assembled.Payload), record.Checksum)
	assert.NoError(t, record.UploadErr)
	assert.Len(t, ledger.all(), 1)
}

func TestChecksum(t *testing.T) {
	// BLAKE2b-256 of the empty input
	assert.Equal(t, "0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8", Checksum(nil))
	assert.Len(t, Checksum([]byte(`{"version":"1.0"}`)), 64)
	assert.NotEqual(t, Checksum([]byte("a")), Checksum([]byte("b")))
}

func TestArtifactWriterUploadFailureStillRecorded(t *testing.T) {
	storage := new(MockStorageProvider)
	storage.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, ContentTypeJSON).
		Return(errors.New("bucket not found"))
	ledger := newFakeLedger()

	record, err := NewArtifactWriter(storage, ledger, nil, nil).
		Write(context.Background(), assembleFor(t, "", "", time.Now()))
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, record.Status)
	assert.Empty(t, record.Checksum)
	require.Error(t, record.UploadErr)
	assert.ErrorIs(t, record.UploadErr, &BackupError{Type: BackupErrorTypeStorage})
	assert.Contains(t, record.UploadErr.Error(), "bucket not found")
	assert.Nil(t, record.Module)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", record.Owner)
	rows := ledger.all()
	require.Len(t, rows, 1)
	assert.Equal(t, StatusFailed, rows[0].Status)
	storage.AssertExpectations(t)
}

func TestArtifactWriterLedgerFailure(t *testing.T) {
	storage := newMemoryStorage()
	ledger := newFakeLedger()
	ledger.insertErr = errors.New("insert denied")

	_, err := NewArtifactWriter(storage, ledger, nil, nil).
		Write(context.Background(), assembleFor(t, "o", "", time.Now()))

	require.Error(t, err)
	var backupErr *BackupError
	require.ErrorAs(t, err, &backupErr)
	assert.Equal(t, BackupErrorTypeDatabase, backupErr.Type)
}

func TestArtifactWriterCompressed(t *testing.T) {
	storage := newMemoryStorage()
	compressor, err := NewCompressor(CompressionConfig{Algorithm: CompressionTypeGzip})
	require.NoError(t, err)
	assembled := assembleFor(t, "o", "", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	record, err := NewArtifactWriter(storage, newFakeLedger(), compressor, nil).Write(context.Background(), assembled)
	require.NoError(t, err)

	assert.Equal(t, "o/scheduled-full-2024-01-01T00-00-00-000Z.json.gz", record.FilePath)
	stored := storage.objects[record.FilePath]
	plain, err := compressor.Decompress(stored)
	require.NoError(t, err)
	assert.Equal(t, assembled.Payload, plain)
	assert.Equal(t, assembled.SizeBytes, record.SizeBytes, "size is measured on the serialized JSON")
}
