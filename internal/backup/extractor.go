package backup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "scheduled-backup/internal/errors"
	"scheduled-backup/internal/logging"
)

// Extractor pages through source tables.
// A read error ends the table early; whatever was gathered is kept.
type Extractor struct {
	reader      TableReader
	pageSize    int
	concurrency int
	retry       *appErrors.RetryHandler
	logger      *logging.Logger
}

// NewExtractor creates an extractor using the engine's paging and retry settings
func NewExtractor(reader TableReader, config EngineConfig, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	pageSize := config.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	concurrency := config.TableConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Extractor{
		reader:      reader,
		pageSize:    pageSize,
		concurrency: concurrency,
		retry: appErrors.NewRetryHandler(appErrors.RetryConfig{
			MaxAttempts: config.ExtractRetryAttempts,
			BaseDelay:   config.ExtractRetryDelay,
			MaxDelay:    5 * time.Second,
			Multiplier:  2.0,
			OnRetry: func(attempt int, delay time.Duration, err *appErrors.AppError) {
				logger.WithFields(map[string]interface{}{
					"attempt":  attempt,
					"delay_ms": delay.Milliseconds(),
					"error":    err.Error(),
				}).Debug("Retrying page read")
			},
		}),
		logger: logger,
	}
}

// Extract reads every row of table, stopping at the first short or empty page.
func (e *Extractor) Extract(ctx context.Context, table string) []Row {
	start := time.Now()
	var (
		rows    []Row
		pages   int
		readErr error
	)

	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}

		var page []Row
		err := e.retry.Retry(ctx, func() error {
			var err error
			page, err = e.reader.ReadPage(ctx, table, offset, e.pageSize)
			return err
		})
		if err != nil {
			readErr = NewExtractionError("page read failed", err).
				WithContext("table", table).
				WithContext("offset", offset)
			break
		}

		pages++
		rows = append(rows, page...)
		if len(page) < e.pageSize {
			break
		}
		offset += len(page)
	}

	RowsExtracted.WithLabelValues(table).Add(float64(len(rows)))
	if readErr != nil {
		ExtractionTruncations.WithLabelValues(table).Inc()
	}
	e.logger.LogTableExtraction(ctx, table, len(rows), pages, time.Since(start), readErr)

	if rows == nil {
		rows = []Row{}
	}
	return rows
}

// ExtractAll extracts each table, up to the configured number at a time.
func (e *Extractor) ExtractAll(ctx context.Context, tables []string) map[string][]Row {
	data := make(map[string][]Row, len(tables))

	if e.concurrency == 1 || len(tables) < 2 {
		for _, table := range tables {
			data[table] = e.Extract(ctx, table)
		}
		return data
	}

	var (
		mu       sync.Mutex
		panicked any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, table := range tables {
		table := table
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if panicked == nil {
						panicked = r
					}
					mu.Unlock()
				}
			}()
			rows := e.Extract(gctx, table)
			mu.Lock()
			data[table] = rows
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// re-raise on the caller's goroutine so the schedule's own recovery sees it
	if panicked != nil {
		panic(panicked)
	}
	return data
}
