package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"scheduled-backup/internal/logging"
)

// RetentionResult represents the result of one retention pass
type RetentionResult struct {
	TotalProcessed int           `json:"total_processed" yaml:"total_processed"`
	Deleted        []Record      `json:"deleted" yaml:"deleted"`
	Kept           int           `json:"kept" yaml:"kept"`
	Errors         []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	ProcessingTime time.Duration `json:"processing_time" yaml:"processing_time"`
	DryRun         bool          `json:"dry_run" yaml:"dry_run"`
}

// RetentionEnforcer keeps at most a fixed number of completed backups.
// Passes are serialized across all callers sharing the enforcer.
type RetentionEnforcer struct {
	mu      sync.Mutex
	ledger  Ledger
	storage StorageProvider
	cap     int
	logger  *logging.Logger
}

// NewRetentionEnforcer creates an enforcer keeping up to cap completed backups
func NewRetentionEnforcer(ledger Ledger, storage StorageProvider, cap int, logger *logging.Logger) *RetentionEnforcer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cap < 1 {
		cap = DefaultRetentionCap
	}
	return &RetentionEnforcer{ledger: ledger, storage: storage, cap: cap, logger: logger}
}

// Cap returns the configured retention cap
func (re *RetentionEnforcer) Cap() int {
	return re.cap
}

// Enforce deletes the oldest completed backups beyond the cap.
// For each candidate both the stored object and the ledger row are removed; a failure
// of either is logged and the pass continues.
func (re *RetentionEnforcer) Enforce(ctx context.Context) (*RetentionResult, error) {
	return re.apply(ctx, false)
}

// Plan reports what Enforce would delete without deleting anything
func (re *RetentionEnforcer) Plan(ctx context.Context) (*RetentionResult, error) {
	return re.apply(ctx, true)
}

func (re *RetentionEnforcer) apply(ctx context.Context, dryRun bool) (*RetentionResult, error) {
	re.mu.Lock()
	defer re.mu.Unlock()

	startTime := time.Now()

	records, err := re.ledger.ListCompleted(ctx)
	if err != nil {
		return nil, NewRetentionError("failed to list completed backups", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	result := &RetentionResult{
		TotalProcessed: len(records),
		Kept:           len(records),
		DryRun:         dryRun,
	}
	if len(records) <= re.cap {
		result.ProcessingTime = time.Since(startTime)
		return result, nil
	}

	excess := records[:len(records)-re.cap]
	result.Deleted = append([]Record(nil), excess...)
	result.Kept = re.cap

	if !dryRun {
		for _, rec := range excess {
			result.Errors = append(result.Errors, re.deleteOne(ctx, rec)...)
		}
	}

	result.ProcessingTime = time.Since(startTime)
	re.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"operation": "retention",
		"processed": result.TotalProcessed,
		"deleted":   len(result.Deleted),
		"kept":      result.Kept,
		"errors":    len(result.Errors),
		"dry_run":   dryRun,
	}).Info("Retention pass finished")

	return result, nil
}

func (re *RetentionEnforcer) deleteOne(ctx context.Context, rec Record) []string {
	var errs []string

	if err := re.storage.Remove(ctx, rec.FilePath); err != nil {
		msg := fmt.Sprintf("failed to remove object %s for backup %s: %v", rec.FilePath, rec.ID, err)
		errs = append(errs, msg)
		re.logger.WithContext(ctx).Error(msg)
	}
	if err := re.ledger.Delete(ctx, rec.ID); err != nil {
		msg := fmt.Sprintf("failed to delete ledger row %s: %v", rec.ID, err)
		errs = append(errs, msg)
		re.logger.WithContext(ctx).Error(msg)
	}

	if len(errs) == 0 {
		RetentionDeletions.WithLabelValues("ok").Inc()
		re.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"backup_id":  rec.ID,
			"file_path":  rec.FilePath,
			"created_at": rec.CreatedAt.Format(time.RFC3339),
		}).Debug("Deleted backup")
	} else {
		RetentionDeletions.WithLabelValues("partial").Inc()
	}
	return errs
}
