package db

import (
	"time"
)

// Reminder is a scheduled prompt for an agent. agent_id, message and the
// schedule pair are immutable after creation; the execution loop mutates
// only next_run, active, repetition_count and last_run.
type Reminder struct {
	ID              int64      `json:"id"`
	AgentID         string     `json:"agent_id"`
	Message         string     `json:"message"`
	ScheduleType    string     `json:"schedule_type"`
	ScheduleValue   string     `json:"schedule_value"`
	NextRun         *time.Time `json:"next_run"`
	Active          bool       `json:"active"`
	MaxRepetitions  *int       `json:"max_repetitions,omitempty"`
	RepetitionCount int        `json:"repetition_count"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Schedule type constants, mirroring internal/schedule kinds at the storage
// boundary.
const (
	TypeOnce     = "once"
	TypeCron     = "cron"
	TypeInterval = "interval"
)

// ReminderPatch is a field-level update applied by the execution loop or by
// cancellation. Nil fields are left untouched. ClearNextRun nulls next_run,
// which a plain *time.Time cannot express.
type ReminderPatch struct {
	NextRun         *time.Time
	ClearNextRun    bool
	Active          *bool
	RepetitionCount *int
	LastRun         *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p ReminderPatch) IsEmpty() bool {
	return p.NextRun == nil && !p.ClearNextRun && p.Active == nil &&
		p.RepetitionCount == nil && p.LastRun == nil
}
