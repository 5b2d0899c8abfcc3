package server

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"scheduled-backup/internal/logging"
)

// CronTrigger runs the backup invocation on a cron schedule inside the serving process
type CronTrigger struct {
	cron   *cron.Cron
	runner Runner
	logger *logging.Logger
	ctx    context.Context
}

// NewCronTrigger parses expr (five fields or a descriptor such as @hourly) in loc
func NewCronTrigger(expr string, loc *time.Location, runner Runner, logger *logging.Logger) (*CronTrigger, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{logger: logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	t := &CronTrigger{
		runner: runner,
		logger: logger,
		ctx:    context.Background(),
	}
	t.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := t.cron.AddFunc(expr, t.fire); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return t, nil
}

// Start begins firing. Runs use ctx, so canceling it aborts an in-flight run.
func (t *CronTrigger) Start(ctx context.Context) {
	t.ctx = ctx
	t.cron.Start()
	if entries := t.cron.Entries(); len(entries) > 0 {
		t.logger.WithField("next", entries[0].Next.Format(time.RFC3339)).Info("Cron trigger started")
	}
}

// Stop prevents further firings and waits for a running invocation to finish
func (t *CronTrigger) Stop() {
	<-t.cron.Stop().Done()
}

func (t *CronTrigger) fire() {
	report, err := t.runner.Run(t.ctx)
	if err != nil {
		t.logger.WithField("error", err.Error()).Error("Cron-triggered backup run failed")
		return
	}
	t.logger.WithFields(map[string]interface{}{
		"processed": report.Processed,
		"message":   report.Message,
	}).Info("Cron-triggered backup run finished")
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(pairs(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	l.logger.WithFields(fields).Error("cron: " + msg)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
