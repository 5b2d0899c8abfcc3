// Package backup implements the scheduled backup engine.
//
// On each invocation the Orchestrator fetches the schedules that are due and,
// one schedule at a time:
//
//  1. resolves the table set for the schedule's scope through the Catalog
//  2. pages every table out of the store with the Extractor
//  3. builds a versioned JSON artifact with the Assembler
//  4. uploads it through a StorageProvider and records it in the Ledger
//  5. advances the schedule's next run time
//  6. trims completed backups beyond the retention cap
//
// Steps 5 and 6 run even when an earlier step failed. A failure or panic while
// processing one schedule is recorded in its Outcome and never stops the others.
//
// Storage providers exist for the local file system, S3 (and S3-compatible
// services), Azure Blob Storage and Google Cloud Storage. Uploads overwrite,
// so re-running with the same path is safe.
//
// Example usage:
//
//	catalog := backup.DefaultCatalog()
//	orchestrator := backup.NewOrchestrator(backup.Components{
//		Schedules: schedules,
//		Catalog:   catalog,
//		Extractor: backup.NewExtractor(tables, engineConfig, logger),
//		Writer:    backup.NewArtifactWriter(storage, ledger, nil, logger),
//		Advancer:  backup.NewAdvancer(schedules, catalog, time.UTC, logger),
//		Retention: backup.NewRetentionEnforcer(ledger, storage, 30, logger),
//		Logger:    logger,
//	})
//	report, err := orchestrator.Run(ctx)
package backup
