package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scheduled-backup/internal/logging"
)

// ArtifactWriter uploads artifacts and records them in the ledger
type ArtifactWriter struct {
	storage    StorageProvider
	ledger     Ledger
	compressor *Compressor
	logger     *logging.Logger
}

// NewArtifactWriter creates a writer. A nil compressor stores plain JSON.
func NewArtifactWriter(storage StorageProvider, ledger Ledger, compressor *Compressor, logger *logging.Logger) *ArtifactWriter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ArtifactWriter{
		storage:    storage,
		ledger:     ledger,
		compressor: compressor,
		logger:     logger,
	}
}

// FileName returns the artifact file name for a module (empty for full backups) and time.
func FileName(module string, createdAt time.Time, extension string) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(createdAt.UTC().Format(TimestampLayout))
	if module != "" {
		return fmt.Sprintf("scheduled-%s-%s.json%s", module, ts, extension)
	}
	return fmt.Sprintf("scheduled-full-%s.json%s", ts, extension)
}

// ObjectPath places a file under its owner's prefix
func ObjectPath(owner, fileName string) string {
	return OwnerOrNil(owner) + "/" + fileName
}

// Write uploads the artifact and inserts its ledger row.
// A failed upload is recorded with status failed; only a ledger failure is returned.
func (w *ArtifactWriter) Write(ctx context.Context, assembled *AssembledArtifact) (*Record, error) {
	artifact := assembled.Artifact
	module := ""
	if artifact.ModuleName != nil {
		module = *artifact.ModuleName
	}

	fileName := FileName(module, assembled.CreatedAt, w.compressor.Extension())
	path := ObjectPath(artifact.CreatedBy, fileName)

	status := StatusCompleted
	checksum := ""
	start := time.Now()
	body, err := w.compressor.Compress(assembled.Payload)
	if err == nil {
		checksum = Checksum(body)
		err = w.storage.Put(ctx, path, body, w.compressor.ContentType())
	}
	w.logger.LogArtifactUpload(ctx, w.storage.Location(path), int64(len(body)), checksum, time.Since(start), err)
	var uploadErr error
	if err != nil {
		status = StatusFailed
		checksum = ""
		uploadErr = NewStorageError("failed to upload artifact", err).WithContext("file_path", path)
	} else {
		ArtifactBytes.Observe(float64(len(body)))
	}

	record := &Record{
		FileName:     fileName,
		FilePath:     path,
		BackupType:   BackupTypeScheduled,
		Module:       artifact.ModuleName,
		Status:       status,
		Owner:        artifact.CreatedBy,
		SizeBytes:    assembled.SizeBytes,
		TablesCount:  len(artifact.Tables),
		RecordsCount: assembled.TotalRecords,
		Manifest:     assembled.Manifest,
		Checksum:     checksum,
		UploadErr:    uploadErr,
	}

	if err := w.ledger.Insert(ctx, record); err != nil {
		return record, NewDatabaseError("failed to insert ledger record", err).
			WithContext("file_path", path)
	}
	return record, nil
}
