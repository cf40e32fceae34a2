package scheduler

import "errors"

// Validation errors surfaced to the registration caller. None of these
// reach the store; a failed registration never writes a row.
var (
	ErrMissingArgument            = errors.New("missing required arguments: agent_id and message")
	ErrNoScheduleOption           = errors.New("must specify one of time, cron, or every")
	ErrConflictingScheduleOptions = errors.New("cannot specify multiple scheduling options")
	ErrInvalidTimeFormat          = errors.New("invalid time format")
	ErrTimeNotInFuture            = errors.New("scheduled time must be in the future")
	ErrInvalidCronExpression      = errors.New("invalid cron expression")
	ErrInvalidIntervalFormat      = errors.New("invalid interval format")
	ErrStartTimeNotInFuture       = errors.New("start time must be in the future")
	ErrInvalidMaxRepetitions      = errors.New("max_repetitions must be a positive integer")
	ErrAgentValidationFailed      = errors.New("agent validation failed")
)

// IsValidationError reports whether err belongs to the registration
// validation taxonomy, as opposed to a storage fault.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrMissingArgument,
		ErrNoScheduleOption,
		ErrConflictingScheduleOptions,
		ErrInvalidTimeFormat,
		ErrTimeNotInFuture,
		ErrInvalidCronExpression,
		ErrInvalidIntervalFormat,
		ErrStartTimeNotInFuture,
		ErrInvalidMaxRepetitions,
		ErrAgentValidationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
