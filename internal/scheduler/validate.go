package scheduler

import (
	"fmt"
	"time"

	"promptyoself/internal/db"
	"promptyoself/internal/schedule"
)

// RegisterRequest carries the raw registration arguments. Exactly one of
// Time, Cron, and Every must be set; StartAt is only meaningful with Every.
type RegisterRequest struct {
	AgentID        string
	Message        string
	Time           string
	Cron           string
	Every          string
	MaxRepetitions *int
	StartAt        string
	SkipValidation bool
}

// normalized is the validated (schedule_type, schedule_value, next_run)
// triple handed to the store.
type normalized struct {
	scheduleType  string
	scheduleValue string
	nextRun       time.Time
}

// validateRegistration applies the registration rules in order and returns
// the normalized triple, without touching the store.
func (s *Service) validateRegistration(req RegisterRequest) (normalized, error) {
	var norm normalized

	if req.AgentID == "" || req.Message == "" {
		return norm, ErrMissingArgument
	}

	provided := 0
	for _, opt := range []string{req.Time, req.Cron, req.Every} {
		if opt != "" {
			provided++
		}
	}
	if provided == 0 {
		return norm, ErrNoScheduleOption
	}
	if provided > 1 {
		return norm, ErrConflictingScheduleOptions
	}

	now := s.now()

	switch {
	case req.Time != "":
		at, err := schedule.ParseTimestamp(req.Time)
		if err != nil {
			return norm, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		if !at.After(now) {
			return norm, ErrTimeNotInFuture
		}
		norm = normalized{
			scheduleType:  db.TypeOnce,
			scheduleValue: req.Time,
			nextRun:       at,
		}

	case req.Cron != "":
		sched, err := schedule.ParseCron(req.Cron)
		if err != nil {
			return norm, fmt.Errorf("%w: %v", ErrInvalidCronExpression, err)
		}
		norm = normalized{
			scheduleType:  db.TypeCron,
			scheduleValue: req.Cron,
			nextRun:       sched.Next(now),
		}

	case req.Every != "":
		every, err := schedule.ParseInterval(req.Every)
		if err != nil {
			return norm, fmt.Errorf("%w: %q (use forms like 30s, 5m, 1h)", ErrInvalidIntervalFormat, req.Every)
		}

		nextRun := now.Add(every)
		if req.StartAt != "" {
			startAt, err := schedule.ParseTimestamp(req.StartAt)
			if err != nil {
				return norm, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
			}
			if !startAt.After(now) {
				return norm, ErrStartTimeNotInFuture
			}
			nextRun = startAt
		}
		norm = normalized{
			scheduleType:  db.TypeInterval,
			scheduleValue: req.Every,
			nextRun:       nextRun,
		}
	}

	if req.MaxRepetitions != nil && *req.MaxRepetitions <= 0 {
		return norm, ErrInvalidMaxRepetitions
	}

	return norm, nil
}
