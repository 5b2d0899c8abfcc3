package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scheduled-backup/internal/logging"
)

// followUpTimeout bounds rescheduling and retention once the caller's context is gone
const followUpTimeout = 30 * time.Second

// Orchestrator runs every due schedule through extract, assemble, store,
// reschedule and trim. Schedules are processed one after another and a
// failure in one never affects the others.
type Orchestrator struct {
	schedules ScheduleStore
	catalog   *Catalog
	extractor *Extractor
	assembler *Assembler
	writer    *ArtifactWriter
	advancer  *Advancer
	retention *RetentionEnforcer
	clock     Clock
	logger    *logging.Logger
}

// Components are the collaborators an Orchestrator needs
type Components struct {
	Schedules ScheduleStore
	Catalog   *Catalog
	Extractor *Extractor
	Assembler *Assembler
	Writer    *ArtifactWriter
	Advancer  *Advancer
	Retention *RetentionEnforcer
	Clock     Clock
	Logger    *logging.Logger
}

// NewOrchestrator wires an orchestrator. Clock defaults to time.Now.
func NewOrchestrator(c Components) *Orchestrator {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = logging.NewNopLogger()
	}
	if c.Assembler == nil {
		c.Assembler = NewAssembler()
	}
	return &Orchestrator{
		schedules: c.Schedules,
		catalog:   c.Catalog,
		extractor: c.Extractor,
		assembler: c.Assembler,
		writer:    c.Writer,
		advancer:  c.Advancer,
		retention: c.Retention,
		clock:     c.Clock,
		logger:    c.Logger,
	}
}

// Run processes all schedules due now. Only a failure to list schedules is returned as an error.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	ctx = logging.ContextWithRunID(ctx, uuid.NewString())
	now := o.clock()

	due, err := o.schedules.Due(ctx, now)
	if err != nil {
		RunsTotal.WithLabelValues("fatal").Inc()
		return nil, NewDatabaseError("failed to fetch due schedules", err)
	}
	RunsTotal.WithLabelValues("ok").Inc()

	if len(due) == 0 {
		o.logger.WithContext(ctx).Info(NoSchedulesDueMessage)
		return &RunReport{Message: NoSchedulesDueMessage, Processed: 0}, nil
	}

	o.logger.WithContext(ctx).WithField("due", len(due)).Info("Processing scheduled backups")

	results := make([]Outcome, 0, len(due))
	for _, s := range due {
		results = append(results, o.processSchedule(ctx, s))
	}

	return &RunReport{Processed: len(results), Results: results}, nil
}

func (o *Orchestrator) processSchedule(ctx context.Context, s Schedule) Outcome {
	start := time.Now()
	log := o.logger.WithContext(ctx).WithField("schedule_id", s.ID)

	outcome := Outcome{ScheduleID: s.ID}
	var (
		failure     error
		failedStage Stage
	)
	stage := StagePending

	failure = guard(func() error {
		stage = StageExtracting
		tables := o.catalog.Resolve(s.Scope, s.Module)
		if s.Scope == ScopeModule && !o.catalog.IsKnownModule(s.Module) {
			log.WithFields(map[string]interface{}{
				"module":        s.Module,
				"known_modules": o.catalog.Modules(),
			}).Warn("Unknown module, backing up all tables")
		}
		data := o.extractor.ExtractAll(ctx, tables)
		if err := ctx.Err(); err != nil {
			return NewExtractionError("run canceled during extraction", err)
		}

		stage = StageAssembling
		assembled, err := o.assembler.Assemble(ArtifactMeta{
			CreatedAt: o.clock(),
			Owner:     s.Owner,
			Module:    s.Module,
		}, tables, data)
		if err != nil {
			return err
		}

		stage = StageStoring
		record, err := o.writer.Write(ctx, assembled)
		if err != nil {
			return err
		}

		outcome.Status = record.Status
		records := assembled.TotalRecords
		outcome.Records = &records
		if record.UploadErr != nil {
			outcome.Error = record.UploadErr.Error()
			outcome.Stage = StageStoring
			StageFailures.WithLabelValues(string(StageStoring)).Inc()
		}
		log.WithFields(map[string]interface{}{
			"file_name": record.FileName,
			"records":   records,
			"status":    string(record.Status),
		}).Info("Scheduled backup written")
		return nil
	})
	if failure != nil {
		failedStage = stage
	}

	followCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	if failure != nil && ctx.Err() != nil {
		// interrupted: keep next_run_at so the next trigger picks the schedule up again
		log.WithField("error", failure.Error()).Warn("Run interrupted, schedule left due")
	} else if err := guard(func() error {
		_, err := o.advancer.Advance(followCtx, s, o.clock())
		return err
	}); err != nil {
		log.WithField("error", err.Error()).Error("Failed to advance schedule")
		if failure == nil {
			failure, failedStage = err, StageRescheduling
		}
	}

	if err := guard(func() error {
		_, err := o.retention.Enforce(followCtx)
		return err
	}); err != nil {
		log.WithField("error", err.Error()).Warn("Retention pass failed")
	}

	if failure != nil {
		outcome = Outcome{
			ScheduleID: s.ID,
			Status:     StatusFailed,
			Error:      failure.Error(),
			Stage:      failedStage,
		}
		StageFailures.WithLabelValues(string(failedStage)).Inc()
		log.WithFields(map[string]interface{}{
			"stage": string(failedStage),
			"error": failure.Error(),
		}).Error("Scheduled backup failed")
	}

	SchedulesProcessed.WithLabelValues(string(outcome.Status)).Inc()
	ScheduleDuration.Observe(time.Since(start).Seconds())
	return outcome
}

// guard runs fn, turning a panic into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
