package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scheduled-backup/internal/backup"
	"scheduled-backup/internal/logging"
)

const dueSchedulesQuery = `SELECT id, is_enabled, backup_scope, backup_module, frequency, time_of_day,
	created_by, last_run_at, next_run_at
FROM backup_schedules
WHERE is_enabled = TRUE AND next_run_at <= ?
ORDER BY next_run_at, id`

const advanceScheduleQuery = `UPDATE backup_schedules SET last_run_at = ?, next_run_at = ? WHERE id = ?`

// ScheduleRepository reads and advances rows of backup_schedules
type ScheduleRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewScheduleRepository creates a repository over db
func NewScheduleRepository(db *sql.DB, logger *logging.Logger) *ScheduleRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ScheduleRepository{db: db, logger: logger}
}

// Due returns enabled schedules whose next run is at or before now
func (r *ScheduleRepository) Due(ctx context.Context, now time.Time) ([]backup.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, dueSchedulesQuery, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []backup.Schedule
	for rows.Next() {
		var (
			s                                   backup.Schedule
			scope, module, frequency, timeOfDay sql.NullString
			owner                               sql.NullString
			lastRun, nextRun                    sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Enabled, &scope, &module, &frequency, &timeOfDay,
			&owner, &lastRun, &nextRun); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		s.Scope = backup.ParseScope(scope.String)
		s.Module = module.String
		s.Frequency = backup.Frequency(frequency.String)
		s.TimeOfDay = timeOfDay.String
		s.Owner = owner.String
		if lastRun.Valid {
			t := lastRun.Time
			s.LastRunAt = &t
		}
		if nextRun.Valid {
			t := nextRun.Time
			s.NextRunAt = &t
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schedules: %w", err)
	}

	r.logger.WithContext(ctx).WithField("due", len(schedules)).Debug("Fetched due schedules")
	return schedules, nil
}

// Advance records the run time and the next run time of a schedule
func (r *ScheduleRepository) Advance(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	res, err := r.db.ExecContext(ctx, advanceScheduleQuery, lastRun.UTC(), nextRun.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.WithContext(ctx).WithField("schedule_id", id).Warn("Schedule update matched no rows")
	}
	return nil
}
