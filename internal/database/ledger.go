package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/logging"
)

const insertBackupQuery = `INSERT INTO backups
	(id, file_name, file_path, backup_type, module_name, status, created_by,
	 size_bytes, tables_count, records_count, manifest)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const completedBackupsQuery = `SELECT id, file_name, file_path, created_at
FROM backups
WHERE status = ?
ORDER BY created_at ASC, id ASC`

const deleteBackupQuery = `DELETE FROM backups WHERE id = ?`

// LedgerRepository persists rows of the backups table
type LedgerRepository struct {
	db     *sql.DB
	logger *logging.Logger
	now    func() time.Time
}

// NewLedgerRepository creates a repository over db
func NewLedgerRepository(db *sql.DB, logger *logging.Logger) *LedgerRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &LedgerRepository{db: db, logger: logger, now: time.Now}
}

// Insert stores rec under a fresh id. created_at is left to the column default;
// rec.CreatedAt is set to the local insert time.
func (r *LedgerRepository) Insert(ctx context.Context, rec *backup.Record) error {
	manifest, err := json.Marshal(rec.Manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	id := uuid.NewString()
	var module sql.NullString
	if rec.Module != nil {
		module = sql.NullString{String: *rec.Module, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, insertBackupQuery,
		id, rec.FileName, rec.FilePath, rec.BackupType, module, string(rec.Status), rec.Owner,
		rec.SizeBytes, rec.TablesCount, rec.RecordsCount, manifest)
	if err != nil {
		return fmt.Errorf("failed to insert backup %s: %w", rec.FileName, err)
	}

	rec.ID = id
	rec.CreatedAt = r.now().UTC()
	r.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"backup_id": id,
		"status":    string(rec.Status),
	}).Debug("Ledger row inserted")
	return nil
}

// ListCompleted returns completed backups, oldest first
func (r *LedgerRepository) ListCompleted(ctx context.Context) ([]backup.Record, error) {
	rows, err := r.db.QueryContext(ctx, completedBackupsQuery, string(backup.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query completed backups: %w", err)
	}
	defer rows.Close()

	var records []backup.Record
	for rows.Next() {
		rec := backup.Record{Status: backup.StatusCompleted}
		if err := rows.Scan(&rec.ID, &rec.FileName, &rec.FilePath, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backups: %w", err)
	}
	return records, nil
}

// Delete removes a ledger row. Deleting a missing row is not an error.
func (r *LedgerRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteBackupQuery, id); err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", id, err)
	}
	return nil
}
