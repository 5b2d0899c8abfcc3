package backup

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"scheduled-backup/internal/logging"
)

// ParseTimeOfDay accepts HH:MM or HH:MM:SS and returns hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time of day %q has invalid hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day %q has invalid minute", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, 0, fmt.Errorf("time of day %q has invalid second", s)
		}
	}
	return hour, minute, nil
}

// NextRun returns the date intervalDays after now at timeOfDay in loc, seconds zeroed.
// The result is always strictly after now. An unparsable timeOfDay yields now + interval
// together with the parse error.
func NextRun(now time.Time, intervalDays int, timeOfDay string, loc *time.Location) (time.Time, error) {
	if intervalDays < 1 {
		intervalDays = 1
	}
	if loc == nil {
		loc = time.UTC
	}

	hour, minute, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return now.AddDate(0, 0, intervalDays), err
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+intervalDays, hour, minute, 0, 0, loc)
	for !next.After(now) {
		next = time.Date(next.Year(), next.Month(), next.Day()+1, hour, minute, 0, 0, loc)
	}
	return next, nil
}

// Advancer moves schedules forward after each attempt
type Advancer struct {
	store   ScheduleStore
	catalog *Catalog
	loc     *time.Location
	logger  *logging.Logger
}

// NewAdvancer creates an advancer computing times in loc
func NewAdvancer(store ScheduleStore, catalog *Catalog, loc *time.Location, logger *logging.Logger) *Advancer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Advancer{store: store, catalog: catalog, loc: loc, logger: logger}
}

// Advance computes and persists the next run for schedule. It runs whether or not the backup succeeded.
func (a *Advancer) Advance(ctx context.Context, schedule Schedule, now time.Time) (time.Time, error) {
	interval := a.catalog.IntervalDays(schedule.Frequency)
	next, err := NextRun(now, interval, schedule.TimeOfDay, a.loc)
	if err != nil {
		a.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"schedule_id": schedule.ID,
			"time_of_day": schedule.TimeOfDay,
			"error":       err.Error(),
		}).Warn("Invalid time of day, advancing by interval only")
	}

	if err := a.store.Advance(ctx, schedule.ID, now, next); err != nil {
		return next, NewSchedulingError("failed to persist next run", err).
			WithContext("schedule_id", schedule.ID)
	}

	a.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"schedule_id": schedule.ID,
		"frequency":   string(schedule.Frequency),
		"next_run_at": next.Format(time.RFC3339),
	}).Debug("Schedule advanced")
	return next, nil
}
